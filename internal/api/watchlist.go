package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kartnagrale/auctionhouse/internal/httpmw"
	"github.com/kartnagrale/auctionhouse/internal/store"
	"github.com/kartnagrale/auctionhouse/internal/watchlist"
)

// WatchlistHandler serves add_watch/remove_watch/list_watched (§6).
type WatchlistHandler struct {
	Watchlist *watchlist.Watchlist
}

// Add handles PUT /lots/{lotID}/watch.
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpmw.UserID(r.Context())
	lotID := chi.URLParam(r, "lotID")

	if err := h.Watchlist.Add(r.Context(), userID, lotID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "lot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Remove handles DELETE /lots/{lotID}/watch.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpmw.UserID(r.Context())
	lotID := chi.URLParam(r, "lotID")

	if err := h.Watchlist.Remove(r.Context(), userID, lotID); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// List handles GET /watchlist.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpmw.UserID(r.Context())

	lots, err := h.Watchlist.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, lots)
}
