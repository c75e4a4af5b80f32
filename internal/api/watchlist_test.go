package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/kartnagrale/auctionhouse/internal/api"
	"github.com/kartnagrale/auctionhouse/internal/domain"
	"github.com/kartnagrale/auctionhouse/internal/httpmw"
	"github.com/kartnagrale/auctionhouse/internal/store"
	"github.com/kartnagrale/auctionhouse/internal/watchlist"
)

const secret = "test-secret"

type fakeWatchStore struct {
	lots    map[string]domain.Lot
	watched map[string]map[string]bool
}

func (s *fakeWatchStore) GetLot(ctx context.Context, id string) (domain.Lot, error) {
	l, ok := s.lots[id]
	if !ok {
		return domain.Lot{}, store.ErrNotFound
	}
	return l, nil
}
func (s *fakeWatchStore) AddWatch(ctx context.Context, userID, lotID string) error {
	if s.watched[userID] == nil {
		s.watched[userID] = map[string]bool{}
	}
	s.watched[userID][lotID] = true
	return nil
}
func (s *fakeWatchStore) RemoveWatch(ctx context.Context, userID, lotID string) error {
	delete(s.watched[userID], lotID)
	return nil
}
func (s *fakeWatchStore) ListWatched(ctx context.Context, userID string) ([]domain.Lot, error) {
	var out []domain.Lot
	for lotID := range s.watched[userID] {
		out = append(out, s.lots[lotID])
	}
	return out, nil
}

func (s *fakeWatchStore) WithLotTx(context.Context, string, func(context.Context, store.LotTx) error) error {
	panic("unused")
}
func (s *fakeWatchStore) CreateAuction(context.Context, domain.Auction) (domain.Auction, error) {
	panic("unused")
}
func (s *fakeWatchStore) GetAuction(context.Context, string) (domain.Auction, error) { panic("unused") }
func (s *fakeWatchStore) ListAuctions(context.Context) ([]domain.Auction, error)     { panic("unused") }
func (s *fakeWatchStore) SetAuctionStatus(context.Context, string, domain.AuctionStatus) error {
	panic("unused")
}
func (s *fakeWatchStore) ActivateDueAuctions(context.Context, time.Time) ([]string, error) {
	panic("unused")
}
func (s *fakeWatchStore) ListLotsForAuction(context.Context, string) ([]domain.Lot, error) {
	panic("unused")
}
func (s *fakeWatchStore) LotsPastClose(context.Context, time.Time) ([]domain.Lot, error) {
	panic("unused")
}
func (s *fakeWatchStore) SoldLotsForAuction(context.Context, string) ([]domain.Lot, error) {
	panic("unused")
}
func (s *fakeWatchStore) AllLotsClosed(context.Context, string) (bool, error) { panic("unused") }
func (s *fakeWatchStore) BidHistory(context.Context, string, int, *time.Time) ([]domain.Bid, error) {
	panic("unused")
}
func (s *fakeWatchStore) LotNumbersInAuction(context.Context, string) (map[int]string, error) {
	panic("unused")
}
func (s *fakeWatchStore) InsertLotsBatch(context.Context, string, []domain.Lot) error {
	panic("unused")
}
func (s *fakeWatchStore) CreateImportBatch(context.Context, domain.ImportBatch) (domain.ImportBatch, error) {
	panic("unused")
}
func (s *fakeWatchStore) CreateImageMappings(context.Context, []domain.ImageMapping) ([]domain.ImageMapping, error) {
	panic("unused")
}
func (s *fakeWatchStore) ExistingImageAssignments(context.Context, string) (map[[2]int]bool, error) {
	panic("unused")
}
func (s *fakeWatchStore) SetImageMappingManual(context.Context, string, string, int) error {
	panic("unused")
}
func (s *fakeWatchStore) InvoiceExistsForAuction(context.Context, string) (bool, error) {
	panic("unused")
}
func (s *fakeWatchStore) CreateInvoices(context.Context, []domain.Invoice) error { panic("unused") }
func (s *fakeWatchStore) NextInvoiceSequence(context.Context) (int, error)       { panic("unused") }

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "admin": false}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestWatchlistHandler_AddThenList(t *testing.T) {
	s := &fakeWatchStore{lots: map[string]domain.Lot{"lot-1": {ID: "lot-1"}}, watched: map[string]map[string]bool{}}
	wl := watchlist.New(s)
	h := &api.WatchlistHandler{Watchlist: wl}

	authMW := httpmw.Auth(secret)

	addReq := httptest.NewRequest(http.MethodPut, "/lots/lot-1/watch", nil)
	addReq.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))
	addReq = withURLParam(addReq, "lotID", "lot-1")
	addRec := httptest.NewRecorder()
	authMW(http.HandlerFunc(h.Add)).ServeHTTP(addRec, addReq)
	require.Equal(t, http.StatusOK, addRec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/watchlist", nil)
	listReq.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))
	listRec := httptest.NewRecorder()
	authMW(http.HandlerFunc(h.List)).ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var lots []domain.Lot
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &lots))
	require.Len(t, lots, 1)
	require.Equal(t, "lot-1", lots[0].ID)
}

func TestWatchlistHandler_AddUnknownLotIsNotFound(t *testing.T) {
	s := &fakeWatchStore{lots: map[string]domain.Lot{}, watched: map[string]map[string]bool{}}
	wl := watchlist.New(s)
	h := &api.WatchlistHandler{Watchlist: wl}
	authMW := httpmw.Auth(secret)

	req := httptest.NewRequest(http.MethodPut, "/lots/missing/watch", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1"))
	req = withURLParam(req, "lotID", "missing")
	rec := httptest.NewRecorder()
	authMW(http.HandlerFunc(h.Add)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
