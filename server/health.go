package server

import (
	"net/http"
	"sync/atomic"
)

// Health is a readiness gate the process flips once it has finished
// loading its ruleset, authn registry and secrets, and clears while
// shutting down, generalizing the donor main.go's package-level `healthy`
// int32 into a value main.go can own and pass to NewObservability.
type Health struct {
	ready int32
}

func (h *Health) MarkReady()    { atomic.StoreInt32(&h.ready, 1) }
func (h *Health) MarkNotReady() { atomic.StoreInt32(&h.ready, 0) }
func (h *Health) IsReady() bool { return atomic.LoadInt32(&h.ready) == 1 }

// Handler answers 204 while ready and 503 otherwise, matching the donor's
// Healthz().
func (h *Health) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if h.IsReady() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
}
