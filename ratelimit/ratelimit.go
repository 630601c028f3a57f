// Package ratelimit enforces a sliding-window request budget per route,
// backed by a Redis sorted set, generalizing the donor's app/ratelimit
// package from an http.Handler middleware into a pre-proxy check the
// gateway handler runs the same way it runs authn.Scheme.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type (
	// Strategy decides whether one more request against Key may proceed.
	Strategy interface {
		Run(context.Context, Request) (Result, error)
	}

	State uint8

	// Request describes one rate-limit check: at most Limit requests per
	// Duration under Key.
	Request struct {
		Key      string
		Limit    uint64
		Duration time.Duration
	}

	Result struct {
		State         State
		ExpiresAt     time.Time
		TotalRequests uint64
	}

	// Config is a route's configured budget; zero Limit disables the
	// check entirely.
	Config struct {
		Limit    uint64
		Duration time.Duration
	}
)

const (
	Deny State = iota
	Allow
)

var stateStr = []string{"Deny", "Allow"}

func (s State) String() string { return stateStr[s] }

// Header names the gateway handler writes on every checked response, and
// a 429 body on denial, matching the donor's app/ratelimit/http.go naming.
const (
	HeaderState         = "Rate-Limiting-State"
	HeaderExpiresAt     = "Rate-Limiting-Expires-At"
	HeaderTotalRequests = "Rate-Limiting-Total-Requests"
)

// ErrLimited is wrapped by Check's returned error when a request is denied,
// so callers can distinguish it from a strategy failure.
var ErrLimited = fmt.Errorf("rate limit exceeded")

// Check runs strategy for a keyed request and returns the limiter result
// alongside a non-nil error (wrapping ErrLimited) when the request must be
// denied. Config with a zero Limit always allows.
func Check(ctx context.Context, strategy Strategy, key string, cfg Config) (Result, error) {
	if cfg.Limit == 0 {
		return Result{State: Allow}, nil
	}

	result, err := strategy.Run(ctx, Request{Key: key, Limit: cfg.Limit, Duration: cfg.Duration})
	if err != nil {
		return result, fmt.Errorf("failed to run rate limit strategy: %w", err)
	}

	if result.State == Deny {
		return result, fmt.Errorf("%w: key %q exceeded %d requests per %s", ErrLimited, key, cfg.Limit, cfg.Duration)
	}

	return result, nil
}
