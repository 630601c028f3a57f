// Package server builds the gateway's three stdlib http.Server instances
// (public traffic, internal liveness and service routes, observability
// with readiness and metrics) and their shared
// graceful-shutdown behavior, adapted from the donor's server package.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func newServer(config Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         config.Address,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		Handler:      handler,
	}
}

// NewGateway wraps handler in the given http.Server configuration for the
// public-facing listener, distinct from NewInternal/NewObservability which
// serve the process's own housekeeping endpoints.
func NewGateway(config Config, handler http.Handler) *http.Server {
	return newServer(config, handler)
}

// Shutdown stops srv gracefully within config.ShutdownTimeout, generalizing
// the donor main.go's inline signal-handling shutdown sequence into a
// reusable helper every listener uses the same way.
func Shutdown(ctx context.Context, srv *http.Server, config Config) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server at %s: %w", config.Address, err)
	}

	return nil
}
