// Package authn implements the per-route request-authentication schemes
// feeding a forwarder.Transforms.OnRequest hook: JWT verification, OAuth2
// token introspection, and phantom/reference token exchange, generalizing
// the donor gateway's app/authentication and authentication packages into
// one Scheme interface.
package authn

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/corvid-gateway/gateway/forwarder"
)

// Rejection is returned by Scheme.Authenticate when the caller could not be
// authenticated. Status is the response code the caller should see;
// Authenticate never returns a bare error for an authentication failure so
// callers never have to guess a status from an opaque cause.
type Rejection struct {
	Status int
	Cause  error
}

func (r *Rejection) Error() string { return r.Cause.Error() }
func (r *Rejection) Unwrap() error { return r.Cause }

func reject(status int, cause error) error {
	return &Rejection{Status: status, Cause: cause}
}

// Identity is what a successful Scheme run contributes to the outbound
// request: assertions about the caller to add, and request headers (the
// original, enforcement-only credential among them) to strip before the
// request reaches the destination.
type Identity struct {
	Set    forwarder.Headers
	Remove []string
}

// Hook turns an Identity into the forwarder.RequestTransformFunc that
// applies it, dropping removed headers from whatever CopyRequestHeaders
// already placed on outbound and appending the asserted ones.
func (id Identity) Hook() forwarder.RequestTransformFunc {
	return func(_ context.Context, _ forwarder.InboundContext, outbound *forwarder.OutboundRequest, _ string) error {
		id.apply(outbound)
		return nil
	}
}

func (id Identity) apply(outbound *forwarder.OutboundRequest) {
	if len(id.Remove) > 0 {
		filtered := outbound.Header[:0:0]
		for _, f := range outbound.Header {
			if !containsFold(id.Remove, f.Name) {
				filtered = append(filtered, f)
			}
		}
		outbound.Header = filtered
	}
	outbound.Header = append(outbound.Header, id.Set...)
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Scheme authenticates one inbound request, run by the gateway handler
// before the request ever reaches forwarder.ProxyEngine.Proxy: an
// authentication failure must choose its own status code (401, 403, ...),
// which a Transforms.OnRequest hook's error cannot do (the engine always
// maps it to 502).
type Scheme interface {
	Authenticate(ctx context.Context, req forwarder.InboundRequest) (Identity, error)
}

// None allows every request through unauthenticated.
type None struct{}

func (None) Authenticate(context.Context, forwarder.InboundRequest) (Identity, error) {
	return Identity{}, nil
}

var ErrBearerTokenMissing = errors.New("no bearer token presented")

// bearerToken extracts the token from a "Bearer <token>" Authorization
// header.
func bearerToken(req forwarder.InboundRequest) (string, bool) {
	v, ok := req.Headers().Get("Authorization")
	if !ok {
		return "", false
	}
	const prefix = "Bearer "
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	return v[len(prefix):], true
}

// Registry maps a route's configured scheme name to the Scheme that
// enforces it.
type Registry map[string]Scheme

var ErrUnknownScheme = errors.New("unknown authentication scheme")

func (r Registry) Lookup(name string) (Scheme, error) {
	if name == "" {
		return None{}, nil
	}
	s, ok := r[name]
	if !ok {
		return nil, ErrUnknownScheme
	}
	return s, nil
}

// WriteRejection renders a Rejection (or a generic error, treated as 500)
// to w, matching the plain text error bodies the donor's http.Error calls
// produce.
func WriteRejection(w http.ResponseWriter, err error) {
	var rej *Rejection
	if errors.As(err, &rej) {
		http.Error(w, http.StatusText(rej.Status), rej.Status)
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
