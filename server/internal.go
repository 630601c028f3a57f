package server

import (
	"net/http"
)

// NewInternal builds the process's private listener: a liveness probe at
// /internal plus whatever service-to-service endpoints routes supplies
// (e.g. the phantom-token exchange), none of which should be reachable
// from the public gateway listener.
func NewInternal(config Config, routes map[string]http.Handler) *http.Server {
	router := http.NewServeMux()
	router.Handle("/internal", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	}))
	for pattern, handler := range routes {
		router.Handle(pattern, handler)
	}

	return newServer(config, router)
}
