package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kartnagrale/auctionhouse/internal/closer"
	"github.com/kartnagrale/auctionhouse/internal/importer"
	"github.com/kartnagrale/auctionhouse/internal/invoicer"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

// AdminHandler serves the admin-only operations: close_lot,
// close_auction, generate_invoices, import_lots_csv, match_images (§6).
type AdminHandler struct {
	Closer   *closer.Closer
	Invoicer *invoicer.Invoicer
	Importer *importer.Importer
}

// CloseLot handles POST /admin/lots/{lotID}/close.
func (h *AdminHandler) CloseLot(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")
	lot, err := h.Closer.CloseLot(r.Context(), lotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "lot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// CloseAuction handles POST /admin/auctions/{auctionID}/close.
func (h *AdminHandler) CloseAuction(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")
	if err := h.Closer.ForceCloseAuction(r.Context(), auctionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "auction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GenerateInvoices handles POST /admin/auctions/{auctionID}/invoices.
func (h *AdminHandler) GenerateInvoices(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")
	invoices, err := h.Invoicer.GenerateInvoices(r.Context(), auctionID)
	if err != nil {
		switch {
		case errors.Is(err, invoicer.ErrAlreadyGenerated):
			writeError(w, http.StatusConflict, "ALREADY_GENERATED", "invoices already generated for this auction")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "auction not found")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		}
		return
	}

	ids := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.Number)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"invoice_numbers": ids})
}

// ImportLotsCSV handles POST /admin/auctions/{auctionID}/import-lots.
func (h *AdminHandler) ImportLotsCSV(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")

	batch, err := h.Importer.ImportLotsCSV(r.Context(), auctionID, r.Body)
	if err != nil {
		var invalidCSV importer.ErrInvalidCSV
		if errors.As(err, &invalidCSV) {
			writeError(w, http.StatusBadRequest, "INVALID_CSV", invalidCSV.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

type matchImagesRequest struct {
	Files []importer.FileUpload `json:"files"`
}

// MatchImages handles POST /admin/auctions/{auctionID}/match-images.
func (h *AdminHandler) MatchImages(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")

	var req matchImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}

	mappings, err := h.Importer.MatchImages(r.Context(), auctionID, req.Files)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, mappings)
}

type manualAssignRequest struct {
	LotID string `json:"lot_id"`
	Order int    `json:"order"`
}

// ManualAssignImage handles POST /admin/image-mappings/{mappingID}/assign.
func (h *AdminHandler) ManualAssignImage(w http.ResponseWriter, r *http.Request) {
	mappingID := chi.URLParam(r, "mappingID")

	var req manualAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}

	if err := h.Importer.ManualAssignImage(r.Context(), mappingID, req.LotID, req.Order); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
