// Package router resolves an inbound request path to a destination target,
// matching the most specific configured prefix and picking the
// least-loaded among that route's replica targets, generalizing the
// donor's app/proxy/routes.go (which matched to a single static target)
// with in-process load balancing across replicas.
package router

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/dghubble/trie"
)

type (
	// Target is one replica a route may forward to. Inflight tracks the
	// number of requests currently being proxied to it so Router can pick
	// the least-loaded replica on each match.
	Target struct {
		URL      *url.URL
		inflight int64
	}

	// Route is everything a matched path needs to reach a destination:
	// the set of replica Targets to balance across and an optional path
	// rewrite applied to the remainder of the matched path.
	Route struct {
		Prefix  string
		Targets []*Target
		Rewrite string

		// Attributes carries whatever a higher-level package (ruleset)
		// wants attached to a matched route — CORS policy, an
		// authentication scheme name, a rate-limit budget — without this
		// package needing to know their shape.
		Attributes interface{}

		// next implements round-robin tie-breaking among equally-loaded
		// targets so a single lightly-loaded replica doesn't receive
		// every request in a burst.
		next uint64
	}

	// Match is the outcome of resolving one request path: the target
	// picked and the (possibly rewritten) path to send it.
	Match struct {
		Route  *Route
		Target *Target
		Path   string
	}

	Router struct {
		t *trie.PathTrie
	}
)

var ErrRouteAlreadyMapped = fmt.Errorf("route already mapped")

func NewRouter() *Router {
	return &Router{t: trie.NewPathTrie()}
}

// Add registers route under prefix. It is an error to register the same
// prefix twice.
func (r *Router) Add(prefix string, route *Route) error {
	if !r.t.Put(prefix, route) {
		return fmt.Errorf("%w: %q", ErrRouteAlreadyMapped, prefix)
	}
	return nil
}

// Resolve walks the trie for the longest prefix of path that has a
// registered route, picks a target, and returns the rewritten path to send.
func (r *Router) Resolve(path string) (Match, bool) {
	var (
		matchedLen int
		route      *Route
	)

	_ = r.t.WalkPath(path, func(key string, value interface{}) error {
		route = value.(*Route)
		matchedLen = len(key)
		return nil
	})

	if route == nil || len(route.Targets) == 0 {
		return Match{}, false
	}

	target := route.pick()

	resolvedPath := path
	if route.Rewrite != "" {
		resolvedPath = singleJoiningSlash(route.Rewrite, path[matchedLen:])
	}

	return Match{Route: route, Target: target, Path: resolvedPath}, true
}

// pick returns the replica with the fewest in-flight requests, breaking
// ties round-robin.
func (route *Route) pick() *Target {
	if len(route.Targets) == 1 {
		return route.Targets[0]
	}

	n := uint64(len(route.Targets))
	start := atomic.AddUint64(&route.next, 1)
	best := route.Targets[start%n]
	bestLoad := atomic.LoadInt64(&best.inflight)

	for i := uint64(1); i < n; i++ {
		t := route.Targets[(start+i)%n]
		if load := atomic.LoadInt64(&t.inflight); load < bestLoad {
			best, bestLoad = t, load
		}
	}

	return best
}

// Begin records that a request has started being proxied to t, returning a
// function that must be called when the request completes.
func (t *Target) Begin() func() {
	atomic.AddInt64(&t.inflight, 1)
	return func() { atomic.AddInt64(&t.inflight, -1) }
}

func (t *Target) Inflight() int64 { return atomic.LoadInt64(&t.inflight) }

func singleJoiningSlash(a, b string) string {
	aSlash := strings.HasSuffix(a, "/")
	bSlash := strings.HasPrefix(b, "/")

	switch {
	case b == "":
		return a
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	}

	return a + b
}
