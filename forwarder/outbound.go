package forwarder

import (
	"context"
	"io"
	"net/url"
)

// OutboundRequest is the request the engine builds and hands to the
// OutboundClient. Transform hooks are free to mutate every field.
type OutboundRequest struct {
	Method string
	// Host is the authority the destination should see in the outbound
	// request line, independent of URI.Host: reverse proxies conventionally
	// forward the original inbound Host rather than rewriting it to the
	// destination's own host, so RequestBuilder defaults this to the
	// inbound request's Host and a transform hook may override it.
	Host          string
	Version       string
	VersionPolicy VersionPolicy
	URI           *url.URL
	// Header is the general header bag; ContentHeader holds the small set
	// of content-specific headers (Content-Type, Content-Length, ...) that
	// HTTP libraries often model separately from envelope headers.
	Header        Headers
	ContentHeader Headers
	// Body is nil for bodiless requests. When non-nil it is usually a
	// *StreamCopyContent, but a transform hook may replace it with any
	// io.Reader (spec §9 design note on hooks replacing the body producer).
	Body io.Reader
}

// OutboundResponse is what OutboundClient.Send returns on success.
type OutboundResponse struct {
	StatusCode   int
	ReasonPhrase string
	// Version is the protocol string the destination actually answered
	// with, e.g. "HTTP/1.1". Read only by the engine's downgrade check
	// (spec §4.7 step 6), which neither logs nor acts on the result; leave
	// empty if unknown.
	Version string
	Header  Headers
	Trailer Headers
	// Body is present on every response, including 101s where it carries
	// the raw tunnel byte stream.
	Body io.ReadCloser
}

// OutboundClient sends a built request and returns its response without
// buffering it. A client that reads the full response body before
// returning violates the concurrency model of spec §5 and must be
// rejected by ProxyEngine at call time (see IsBuffering).
type OutboundClient interface {
	Send(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error)
	// IsBuffering reports whether this client pre-buffers response bodies.
	// Implementations wrapping a genuine streaming transport must return
	// false.
	IsBuffering() bool
}
