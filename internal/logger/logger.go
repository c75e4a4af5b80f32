// Package logger provides structured logging for the auction engine,
// grounded on StreetsDigital/thenexusengine's pbs/pkg/logger: a global
// zerolog.Logger configured from the environment, with small
// component-scoped helpers instead of ad-hoc log.Printf calls.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance, initialized by Init.
var Log zerolog.Logger

// Config controls the global logger's verbosity and output shape.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// DefaultConfig reads LOG_LEVEL/LOG_FORMAT from the environment,
// defaulting to info/json for production.
func DefaultConfig() Config {
	return Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}
}

// Init sets up the global logger.
func Init(cfg Config) {
	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "auctionhouse").
		Logger()
}

// Engine returns a logger scoped to the bidding engine.
func Engine() zerolog.Logger { return Log.With().Str("component", "engine").Logger() }

// Closer returns a logger scoped to the lot/auction closer.
func Closer() zerolog.Logger { return Log.With().Str("component", "closer").Logger() }

// Invoicer returns a logger scoped to invoice generation.
func Invoicer() zerolog.Logger { return Log.With().Str("component", "invoicer").Logger() }

// Importer returns a logger scoped to CSV/image import.
func Importer() zerolog.Logger { return Log.With().Str("component", "importer").Logger() }

// Hub returns a logger scoped to the subscription hub.
func Hub() zerolog.Logger { return Log.With().Str("component", "hub").Logger() }

// HTTP returns a logger scoped to the API surface.
func HTTP() zerolog.Logger { return Log.With().Str("component", "http").Logger() }

// Lot returns a logger annotated with a lot id, for following a single
// lot's decisions across accept/reject/proxy/soft-close/close.
func Lot(lotID string) zerolog.Logger { return Log.With().Str("lot_id", lotID).Logger() }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func init() {
	// Safe default so packages that log before main calls Init (e.g. in
	// tests) don't panic on the zero-value logger.
	Init(DefaultConfig())
}
