package forwarder

import "context"

// RequestTransformFunc mutates the outbound request before it is sent. It
// may replace the URI, method, version, headers, or body producer outright.
type RequestTransformFunc func(ctx context.Context, inbound InboundContext, outbound *OutboundRequest, destinationPrefix string) error

// ResponseTransformFunc mutates the inbound response's status/headers
// before they are flushed to the client.
type ResponseTransformFunc func(ctx context.Context, inbound InboundContext, outbound *OutboundResponse) error

// TrailerTransformFunc mutates response trailers before they are flushed.
type TrailerTransformFunc func(ctx context.Context, inbound InboundContext, outbound *OutboundResponse) error

// Transforms is the externally-supplied pipeline configuration consumed by
// ProxyEngine at the fixed points named in spec §4.4. The zero value
// (Transforms{}) copies nothing and runs no hooks; use Empty() for the
// "copy everything, transform nothing" baseline used by round-trip tests.
type Transforms struct {
	CopyRequestHeaders   bool
	OnRequest            RequestTransformFunc
	CopyResponseHeaders  bool
	OnResponse           ResponseTransformFunc
	CopyResponseTrailers bool
	OnResponseTrailers   TrailerTransformFunc
}

// Empty returns the transform pipeline that copies every header and
// trailer and runs no hooks — used by law L2 (applying it must be
// indistinguishable from skipping the pipeline, modulo Host/pseudo-header
// normalization).
func Empty() Transforms {
	return Transforms{
		CopyRequestHeaders:   true,
		CopyResponseHeaders:  true,
		CopyResponseTrailers: true,
	}
}
