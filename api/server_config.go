package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig configures the move daemon.
type HTTPServerConfig struct {
	ListenAddr string
	// MetricsAddr serves /metrics; empty disables the metrics server.
	MetricsAddr string

	EnablePprof bool
	// EnableAdmin mounts the key record administration routes.
	EnableAdmin bool

	Log *slog.Logger

	// DrainDuration is how long /drain keeps reporting not ready before the
	// operator may stop the process.
	DrainDuration time.Duration
	// GracefulShutdownDuration bounds Shutdown; moves in flight get this long
	// to settle.
	GracefulShutdownDuration time.Duration

	ReadTimeout time.Duration
	// WriteTimeout must exceed the move finalization timeout.
	WriteTimeout time.Duration
}
