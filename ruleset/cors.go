package ruleset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/corvid-gateway/gateway/forwarder"
)

// Cors is a route's cross-origin policy, generalizing the donor's
// app/proxy/cors.go from an http.Handler middleware (which wrote directly
// to http.ResponseWriter) into preflight header computation plus a
// Transforms.OnResponse hook for actual requests.
type Cors struct {
	Enabled          bool
	OnlyPreflight    bool
	AllowCredentials bool
	AllowedOrigins   []string
	AllowedHeaders   []string
	AllowedMethods   []string
	ExposedHeaders   []string
}

var recognizedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

var (
	ErrNoAllowedHeaders = errors.New("no headers allowed in CORS")
	ErrNoAllowedOrigins = errors.New("no origins allowed in CORS")
	ErrNoAllowedMethods = errors.New("no methods allowed in CORS")
)

// HandlePreflight computes the response headers for an OPTIONS preflight
// request. ok is false when the request isn't a preflight this policy
// recognizes (including PATH when CORS is disabled), in which case the
// caller must proceed as a normal request rather than answering directly.
func (c Cors) HandlePreflight(req forwarder.InboundRequest) (headers forwarder.Headers, ok bool) {
	if !c.Enabled || req.Method() != http.MethodOptions {
		return nil, false
	}

	origin, _ := req.Headers().Get("Origin")

	headers = forwarder.Headers{
		{Name: "Vary", Value: "Origin"},
		{Name: "Vary", Value: "Access-Control-Request-Method"},
		{Name: "Vary", Value: "Access-Control-Request-Headers"},
	}

	if origin == "" || !c.isOriginAllowed(origin) {
		return headers, false
	}

	requestedMethod, _ := req.Headers().Get("Access-Control-Request-Method")
	if !c.isMethodAllowed(requestedMethod) {
		return headers, false
	}

	requestedHeaders, _ := req.Headers().Get("Access-Control-Request-Headers")
	parsedHeaders := parseHeaderList(requestedHeaders)
	if !c.areHeadersAllowed(parsedHeaders) {
		return headers, false
	}

	if c.areAllOriginsAllowed() {
		headers = append(headers, forwarder.HeaderField{Name: "Access-Control-Allow-Origin", Value: "*"})
	} else {
		headers = append(headers, forwarder.HeaderField{Name: "Access-Control-Allow-Origin", Value: origin})
	}

	headers = append(headers, forwarder.HeaderField{Name: "Access-Control-Allow-Methods", Value: strings.ToUpper(requestedMethod)})

	if len(parsedHeaders) > 0 {
		headers = append(headers, forwarder.HeaderField{Name: "Access-Control-Allow-Headers", Value: strings.Join(parsedHeaders, ", ")})
	}

	if c.AllowCredentials {
		headers = append(headers, forwarder.HeaderField{Name: "Access-Control-Allow-Credentials", Value: "true"})
	}

	return headers, true
}

// OnResponseHook returns the Transforms.OnResponse hook that adds actual-
// request CORS headers to a proxied response.
func (c Cors) OnResponseHook() forwarder.ResponseTransformFunc {
	return func(_ context.Context, inbound forwarder.InboundContext, outbound *forwarder.OutboundResponse) error {
		if !c.Enabled || c.OnlyPreflight {
			return nil
		}

		req := inbound.Request()
		origin, _ := req.Headers().Get("Origin")

		outbound.Header = append(outbound.Header, forwarder.HeaderField{Name: "Vary", Value: "Origin"})

		if origin == "" || !c.isOriginAllowed(origin) || !c.isMethodAllowed(req.Method()) {
			return nil
		}

		if c.areAllOriginsAllowed() {
			outbound.Header = append(outbound.Header, forwarder.HeaderField{Name: "Access-Control-Allow-Origin", Value: "*"})
		} else {
			outbound.Header = append(outbound.Header, forwarder.HeaderField{Name: "Access-Control-Allow-Origin", Value: origin})
		}

		if len(c.ExposedHeaders) > 0 {
			outbound.Header = append(outbound.Header, forwarder.HeaderField{Name: "Access-Control-Expose-Headers", Value: strings.Join(c.ExposedHeaders, ", ")})
		}

		if c.AllowCredentials {
			outbound.Header = append(outbound.Header, forwarder.HeaderField{Name: "Access-Control-Allow-Credentials", Value: "true"})
		}

		return nil
	}
}

func (c Cors) isOriginAllowed(o string) bool {
	if c.areAllOriginsAllowed() {
		return true
	}

	o = strings.ToLower(o)
	for _, allowed := range c.AllowedOrigins {
		if o == allowed {
			return true
		}
	}
	return false
}

func (c Cors) areAllOriginsAllowed() bool {
	return len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == "*"
}

func (c Cors) isMethodAllowed(m string) bool {
	if len(c.AllowedMethods) == 0 {
		return false
	}

	m = strings.ToUpper(m)
	if m == http.MethodOptions {
		return true
	}

	for _, allowed := range c.AllowedMethods {
		if m == allowed {
			return true
		}
	}
	return false
}

func (c Cors) areHeadersAllowed(hs []string) bool {
	if len(hs) == 0 {
		return true
	}

	for _, h := range hs {
		found := false
		for _, allowed := range c.AllowedHeaders {
			if allowed == http.CanonicalHeaderKey(h) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c Cors) validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.AllowedHeaders) == 0 {
		return ErrNoAllowedHeaders
	}
	if len(c.AllowedMethods) == 0 {
		return ErrNoAllowedMethods
	}
	if len(c.AllowedOrigins) == 0 {
		return ErrNoAllowedOrigins
	}
	return nil
}

func isMethodRecognized(m string) bool {
	for _, r := range recognizedMethods {
		if m == r {
			return true
		}
	}
	return false
}

func parseHeaderList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, http.CanonicalHeaderKey(strings.TrimSpace(p)))
	}
	return out
}

func parseCors(base Cors, cfg *configCors) (Cors, error) {
	if cfg == nil {
		return base, nil
	}

	c := base

	if cfg.Enabled != nil {
		c.Enabled = *cfg.Enabled
	}
	if cfg.OnlyPreflight != nil {
		c.OnlyPreflight = *cfg.OnlyPreflight
	}
	if c.OnlyPreflight {
		c.Enabled = false
	}
	if cfg.AllowCredentials != nil {
		c.AllowCredentials = *cfg.AllowCredentials
	}
	if cfg.AllowedOrigins != nil {
		c.AllowedOrigins = normalizeOrigins(*cfg.AllowedOrigins)
		if err := validateOrigins(c.AllowedOrigins); err != nil {
			return Cors{}, err
		}
	}
	if cfg.AllowedHeaders != nil {
		c.AllowedHeaders = canonicalizeAll(*cfg.AllowedHeaders)
	}
	if cfg.ExposedHeaders != nil {
		c.ExposedHeaders = canonicalizeAll(*cfg.ExposedHeaders)
	}
	if cfg.AllowedMethods != nil {
		c.AllowedMethods = uppercaseAll(*cfg.AllowedMethods)
		for _, m := range c.AllowedMethods {
			if !isMethodRecognized(m) {
				return Cors{}, fmt.Errorf("method %q is not valid", m)
			}
		}
	}

	return c, nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, len(origins))
	for i, o := range origins {
		out[i] = strings.TrimSpace(o)
	}
	return out
}

func validateOrigins(origins []string) error {
	for _, o := range origins {
		if o == "*" {
			continue
		}
		if _, err := url.Parse(o); err != nil {
			return fmt.Errorf("origin %q is not valid", o)
		}
	}
	return nil
}

func canonicalizeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = http.CanonicalHeaderKey(strings.TrimSpace(v))
	}
	return out
}

func uppercaseAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		out[i] = v
	}
	return out
}
