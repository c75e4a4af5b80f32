// Package importer implements the Importer (§4.7): bulk lot CSV
// ingest and image-filename-to-lot matching. Both are whole-batch
// operations — a CSV with any bad row is rejected outright, never
// partially applied.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/logger"
	"github.com/kartnagrale/auctionhouse/internal/rules"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// requiredColumns are the CSV header fields §4.7 mandates.
var requiredColumns = []string{"lot_number", "title", "starting_bid"}

// ErrInvalidCSV wraps the first structural problem found in a CSV
// (missing header, wrong column count) that makes per-row errors
// meaningless.
type ErrInvalidCSV struct{ Reason string }

func (e ErrInvalidCSV) Error() string { return "invalid csv: " + e.Reason }

// Importer parses and persists lot CSV batches and image filename
// mappings.
type Importer struct {
	Store store.Store
}

// New builds an Importer.
func New(s store.Store) *Importer {
	return &Importer{Store: s}
}

// ImportLotsCSV is §4.7's "Lot CSV" procedure: parse every row,
// collect per-row field errors, and reject the whole batch if any row
// errored or any lot_number collides (within the CSV or against an
// existing lot in the auction). On success every parsed lot is
// inserted with status=pending in one call.
func (imp *Importer) ImportLotsCSV(ctx context.Context, auctionID string, r io.Reader) (domain.ImportBatch, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return domain.ImportBatch{}, ErrInvalidCSV{Reason: "empty file"}
	}
	if err != nil {
		return domain.ImportBatch{}, ErrInvalidCSV{Reason: err.Error()}
	}
	cols, err := indexHeader(header)
	if err != nil {
		return domain.ImportBatch{}, err
	}

	existing, err := imp.Store.LotNumbersInAuction(ctx, auctionID)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("load existing lot numbers: %w", err)
	}

	var (
		lots      []domain.Lot
		rowErrors []domain.ImportRowError
		seen      = map[int]int{} // lot_number -> first row that claimed it
		rowNum    = 0
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.ImportBatch{}, ErrInvalidCSV{Reason: err.Error()}
		}
		rowNum++

		lot, fieldErrs := parseRow(record, cols, auctionID)
		if len(fieldErrs) > 0 {
			rowErrors = append(rowErrors, domain.ImportRowError{Row: rowNum, Fields: fieldErrs})
			continue
		}

		if firstRow, dup := seen[lot.LotNumber]; dup {
			rowErrors = append(rowErrors, domain.ImportRowError{
				Row: rowNum,
				Fields: map[string]string{
					"lot_number": fmt.Sprintf("duplicates lot_number from row %d", firstRow),
				},
			})
			continue
		}
		if name, exists := existing[lot.LotNumber]; exists {
			rowErrors = append(rowErrors, domain.ImportRowError{
				Row:    rowNum,
				Fields: map[string]string{"lot_number": fmt.Sprintf("already used by lot %q in this auction", name)},
			})
			continue
		}
		seen[lot.LotNumber] = rowNum
		lots = append(lots, lot)
	}

	batch := domain.ImportBatch{
		AuctionID: auctionID,
		TotalRows: rowNum,
		RowErrors: rowErrors,
	}

	if len(rowErrors) > 0 {
		logger.Importer().Warn().Str("auction_id", auctionID).Int("errors", len(rowErrors)).Msg("csv import rejected")
		created, err := imp.Store.CreateImportBatch(ctx, batch)
		if err != nil {
			return domain.ImportBatch{}, fmt.Errorf("record failed import batch: %w", err)
		}
		return created, nil
	}

	if err := imp.Store.InsertLotsBatch(ctx, auctionID, lots); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("insert lots: %w", err)
	}
	batch.Inserted = len(lots)

	created, err := imp.Store.CreateImportBatch(ctx, batch)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("record import batch: %w", err)
	}
	logger.Importer().Info().Str("auction_id", auctionID).Int("inserted", batch.Inserted).Msg("csv import committed")
	return created, nil
}

// indexHeader maps required/optional column names to their position,
// failing if any required column is absent.
func indexHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, ErrInvalidCSV{Reason: fmt.Sprintf("missing required column %q", req)}
		}
	}
	return cols, nil
}

// parseRow validates and builds one lot from a CSV record, per §4.7's
// field rules. A non-empty fieldErrs means the row is rejected.
func parseRow(record []string, cols map[string]int, auctionID string) (domain.Lot, map[string]string) {
	errs := map[string]string{}
	field := func(name string) (string, bool) {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[idx]), true
	}

	lot := domain.Lot{AuctionID: auctionID, Status: domain.LotPending}

	lotNumStr, _ := field("lot_number")
	if lotNumStr == "" {
		errs["lot_number"] = "missing"
	} else if n, err := strconv.Atoi(lotNumStr); err != nil {
		errs["lot_number"] = "not an integer"
	} else {
		lot.LotNumber = n
	}

	title, _ := field("title")
	if title == "" {
		errs["title"] = "missing"
	}
	lot.Title = title

	startingStr, _ := field("starting_bid")
	if startingStr == "" {
		errs["starting_bid"] = "missing"
	} else if amt, err := decimal.NewFromString(startingStr); err != nil {
		errs["starting_bid"] = "not a number"
	} else if amt.IsNegative() {
		errs["starting_bid"] = "must be >= 0"
	} else {
		lot.StartingBid = amt
		lot.CurrentBid = decimal.Zero
	}

	if v, ok := field("description"); ok {
		lot.Description = v
	}
	if v, ok := field("category"); ok {
		lot.Category = v
	}
	if v, ok := field("condition"); ok {
		lot.Condition = v
	}
	if v, ok := field("reserve_price"); ok && v != "" {
		if amt, err := decimal.NewFromString(v); err != nil {
			errs["reserve_price"] = "not a number"
		} else {
			lot.ReservePrice = &amt
		}
	}
	if v, ok := field("buy_now_price"); ok && v != "" {
		if amt, err := decimal.NewFromString(v); err != nil {
			errs["buy_now_price"] = "not a number"
		} else {
			lot.BuyNowPrice = &amt
		}
	}
	if v, ok := field("shipping_available"); ok && v != "" {
		// Presence alone doesn't carry a numeric shipping amount from
		// the CSV; this column is only validated, and imported lots
		// keep a zero ShippingAmount.
		switch strings.ToLower(v) {
		case "true", "1", "false", "0":
		default:
			errs["shipping_available"] = "must be true/false/1/0"
		}
	}

	return lot, errs
}

// MatchImages is §4.7's "Image filenames" procedure: parse each
// filename against the authoritative grammar (internal/rules), assign
// matched ones to their lot at their photo order, and flag the rest.
// The first mapping to claim a given (lot, order) wins; later claims
// on the same pair become conflicts.
func (imp *Importer) MatchImages(ctx context.Context, auctionID string, files []FileUpload) ([]domain.ImageMapping, error) {
	lotNumbers, err := imp.Store.LotNumbersInAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load lot numbers: %w", err)
	}
	lotIDByNumber := make(map[int]string, len(lotNumbers))
	for n, id := range lotNumbers {
		lotIDByNumber[n] = id
	}

	taken, err := imp.Store.ExistingImageAssignments(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("load existing image assignments: %w", err)
	}
	claimed := map[[2]int]bool{}
	for k, v := range taken {
		claimed[k] = v
	}

	mappings := make([]domain.ImageMapping, 0, len(files))
	for _, f := range files {
		m := domain.ImageMapping{AuctionID: auctionID, Filename: f.Filename, StoredURL: f.StoredURL}

		lotNumber, order, ok := rules.ParseImageFilename(f.Filename)
		if !ok {
			m.Status = domain.ImageUnmatched
			m.Reason = "unparseable"
			mappings = append(mappings, m)
			continue
		}

		lotID, found := lotIDByNumber[lotNumber]
		if !found {
			m.Status = domain.ImageUnmatched
			m.Reason = "no lot"
			mappings = append(mappings, m)
			continue
		}

		key := [2]int{lotNumber, order}
		if claimed[key] {
			m.Status = domain.ImageConflict
			m.Reason = fmt.Sprintf("lot %d photo_order %d already assigned", lotNumber, order)
			mappings = append(mappings, m)
			continue
		}
		claimed[key] = true
		m.Status = domain.ImageMatched
		m.LotID = &lotID
		m.PhotoOrder = &order
		mappings = append(mappings, m)
	}

	return imp.Store.CreateImageMappings(ctx, mappings)
}

// FileUpload is one uploaded image's filename and the URL it was
// stored at by the (external) object-storage collaborator.
type FileUpload struct {
	Filename  string
	StoredURL string
}

// ManualAssignImage is the admin-triggered manual-assign(mapping_id,
// lot_id, order) operation from §4.7.
func (imp *Importer) ManualAssignImage(ctx context.Context, mappingID, lotID string, order int) error {
	return imp.Store.SetImageMappingManual(ctx, mappingID, lotID, order)
}
