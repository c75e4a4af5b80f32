package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kartnagrale/auctionhouse/internal/engine"
	"github.com/kartnagrale/auctionhouse/internal/hub"
	"github.com/kartnagrale/auctionhouse/internal/httpmw"
	"github.com/kartnagrale/auctionhouse/internal/logger"
	"github.com/kartnagrale/auctionhouse/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SubscriptionHandler handles the subscribe websocket upgrade (§4.8, §6).
type SubscriptionHandler struct {
	Hub   *hub.Hub
	Store store.Store
}

// Subscribe handles GET /lots/{lotID}/subscribe, upgrading to a
// websocket and delivering a lot snapshot as the first frame.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")

	lot, err := h.Store.GetLot(r.Context(), lotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "lot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "unexpected server error")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.HTTP().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	userID, _ := httpmw.UserID(r.Context())
	h.Hub.Subscribe(userID, lotID, conn, engine.Snapshot(lot))
}
