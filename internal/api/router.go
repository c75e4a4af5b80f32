package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kartnagrale/auctionhouse/internal/closer"
	"github.com/kartnagrale/auctionhouse/internal/engine"
	"github.com/kartnagrale/auctionhouse/internal/hub"
	"github.com/kartnagrale/auctionhouse/internal/httpmw"
	"github.com/kartnagrale/auctionhouse/internal/importer"
	"github.com/kartnagrale/auctionhouse/internal/invoicer"
	"github.com/kartnagrale/auctionhouse/internal/metrics"
	"github.com/kartnagrale/auctionhouse/internal/ratelimit"
	"github.com/kartnagrale/auctionhouse/internal/store"
	"github.com/kartnagrale/auctionhouse/internal/watchlist"
)

// Config collects every collaborator the router needs to build its
// handlers, mirroring the teacher's main.go wiring style.
type Config struct {
	Store        store.Store
	Engine       *engine.Engine
	Closer       *closer.Closer
	Invoicer     *invoicer.Invoicer
	Importer     *importer.Importer
	Watchlist    *watchlist.Watchlist
	Hub          *hub.Hub
	Metrics      *metrics.Metrics
	RateLimiter  *ratelimit.Limiter
	JWTSecret    string
	AllowOrigins []string
}

// NewRouter builds the complete chi router for the API surface (§4.9).
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	bidHandler := &BidHandler{Engine: cfg.Engine, Store: cfg.Store}
	subHandler := &SubscriptionHandler{Hub: cfg.Hub, Store: cfg.Store}
	watchHandler := &WatchlistHandler{Watchlist: cfg.Watchlist}
	adminHandler := &AdminHandler{Closer: cfg.Closer, Invoicer: cfg.Invoicer, Importer: cfg.Importer}

	auth := httpmw.Auth(cfg.JWTSecret)
	rateLimit := httpmw.RateLimit(cfg.RateLimiter)

	r.Route("/lots/{lotID}", func(r chi.Router) {
		r.Get("/subscribe", subHandler.Subscribe)
		r.With(auth).Get("/bids", bidHandler.BidHistory)

		r.Group(func(r chi.Router) {
			r.Use(auth, rateLimit)
			r.Post("/bids", bidHandler.PlaceBid)
			r.Post("/buy-now", bidHandler.BuyNow)
			r.Put("/watch", watchHandler.Add)
			r.Delete("/watch", watchHandler.Remove)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Get("/watchlist", watchHandler.List)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth, httpmw.RequireAdmin)
		r.Post("/lots/{lotID}/close", adminHandler.CloseLot)
		r.Post("/auctions/{auctionID}/close", adminHandler.CloseAuction)
		r.Post("/auctions/{auctionID}/invoices", adminHandler.GenerateInvoices)
		r.Post("/auctions/{auctionID}/import-lots", adminHandler.ImportLotsCSV)
		r.Post("/auctions/{auctionID}/match-images", adminHandler.MatchImages)
		r.Post("/image-mappings/{mappingID}/assign", adminHandler.ManualAssignImage)
	})

	return r
}
