// Package main is the entry point for the auctionhouse server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kartnagrale/auctionhouse/internal/api"
	"github.com/kartnagrale/auctionhouse/internal/closer"
	"github.com/kartnagrale/auctionhouse/internal/clock"
	"github.com/kartnagrale/auctionhouse/internal/engine"
	"github.com/kartnagrale/auctionhouse/internal/hub"
	"github.com/kartnagrale/auctionhouse/internal/importer"
	"github.com/kartnagrale/auctionhouse/internal/invoicer"
	"github.com/kartnagrale/auctionhouse/internal/logger"
	"github.com/kartnagrale/auctionhouse/internal/metrics"
	"github.com/kartnagrale/auctionhouse/internal/notifier"
	"github.com/kartnagrale/auctionhouse/internal/ratelimit"
	"github.com/kartnagrale/auctionhouse/internal/store"
	"github.com/kartnagrale/auctionhouse/internal/watchlist"
)

func main() {
	port := flag.String("port", "8080", "Server port")
	sweepInterval := flag.Duration("sweep-interval", 5*time.Second, "How often to sweep due lots and auctions")
	flag.Parse()

	logger.Init(logger.DefaultConfig())
	log := logger.Log

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL environment variable is not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal().Msg("JWT_SECRET environment variable is not set")
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to database")
	}
	log.Info().Msg("connected to postgres")
	db := store.New(pool)

	m := metrics.New("auctionhouse")

	appHub := hub.New(m)
	go appHub.Run()

	var n notifier.Notifier = notifier.Noop{}
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		amqpNotifier, err := notifier.NewAMQPNotifier(amqpURL, "auctionhouse.events")
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to AMQP, falling back to no-op notifier")
		} else {
			n = amqpNotifier
			defer amqpNotifier.Close()
		}
	}

	sysClock := clock.SystemClock{}
	eng := engine.New(db, sysClock, appHub, n, m)
	cl := closer.New(db, sysClock, appHub, n, m)
	inv := invoicer.New(db, sysClock, m)
	imp := importer.New(db)
	wl := watchlist.New(db)

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	defer limiter.Stop()

	allowedOrigins := []string{"*"}
	if origin := os.Getenv("FRONTEND_URL"); origin != "" {
		allowedOrigins = []string{origin}
	}

	router := api.NewRouter(api.Config{
		Store: db, Engine: eng, Closer: cl, Invoicer: inv, Importer: imp, Watchlist: wl,
		Hub: appHub, Metrics: m, RateLimiter: limiter, JWTSecret: jwtSecret, AllowOrigins: allowedOrigins,
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go runSweepLoop(sweepCtx, cl, db, sysClock, *sweepInterval)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	pool.Close()
	log.Info().Msg("server stopped gracefully")
}

// runSweepLoop periodically activates due auctions, closes due lots,
// and closes the auction of each lot it closed once all of that
// auction's lots have finished (§4.5), independent of any inbound
// request.
func runSweepLoop(ctx context.Context, cl *closer.Closer, db store.Store, c clock.Clock, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := db.ActivateDueAuctions(ctx, c.Now()); err != nil {
				logger.Closer().Error().Err(err).Msg("activate due auctions failed")
			}
			closed, err := cl.SweepDueLots(ctx)
			if err != nil {
				logger.Closer().Error().Err(err).Msg("sweep due lots failed")
			}
			checked := map[string]bool{}
			for _, l := range closed {
				if checked[l.AuctionID] {
					continue
				}
				checked[l.AuctionID] = true
				if _, err := cl.CloseAuction(ctx, l.AuctionID); err != nil {
					logger.Closer().Error().Err(err).Str("auction_id", l.AuctionID).Msg("close auction failed")
				}
			}
		}
	}
}
