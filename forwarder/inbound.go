package forwarder

import (
	"context"
	"io"
)

// InboundRequest is the read side of the inbound HTTP exchange, as exposed
// by the hosting HTTP runtime.
type InboundRequest interface {
	Method() string
	// Protocol reports the negotiated protocol string, e.g. "HTTP/1.1" or
	// "HTTP/2".
	Protocol() string
	Scheme() string
	Host() string
	Path() string
	PathBase() string
	RawQuery() string
	Headers() Headers
	Body() io.Reader
	RemoteAddr() string
}

// InboundResponse is the write side of the inbound HTTP exchange.
type InboundResponse interface {
	StatusCode() int
	SetStatusCode(int)
	ReasonPhrase() string
	SetReasonPhrase(string)
	// Headers returns the live, mutable header bag; writes are visible to
	// the client only once the response has started.
	Headers() *Headers
	BodyWriter() io.Writer
	// HasStarted reports whether any byte of the response (status line or
	// headers) has already reached the client.
	HasStarted() bool
	// Clear discards any buffered-but-unsent status/headers. It is a
	// defect to call it once HasStarted is true.
	Clear()
	// Complete flushes status, headers, body and trailers, used for
	// streaming requests that would otherwise wait for an idle timeout and
	// to send a 101 response before the connection is upgraded.
	Complete() error
}

// InboundContext is the per-request facade the proxy engine is driven
// through; see spec §6 for the full capability set. Optional features are
// discovered with the Upgradeable / BodyDetector / Resettable /
// RequestBodyLimiter / TrailerCapable assertions below rather than always
// being present on the interface, mirroring how net/http exposes Hijacker,
// Flusher and Pusher as optional interfaces on ResponseWriter.
type InboundContext interface {
	Request() InboundRequest
	Response() InboundResponse
	// AbortToken is canceled when the client disconnects or otherwise
	// aborts the exchange.
	AbortToken() context.Context
	Abort()
}

// Upgradeable is implemented by an InboundContext whose runtime can hand
// over the raw connection for a protocol upgrade.
type Upgradeable interface {
	// CanUpgrade reports the runtime's upgrade-capability probe. It is not
	// sufficient proof of an upgrade request on its own — some runtimes
	// mark every request upgradeable — so RequestBuilder also inspects the
	// Upgrade header.
	CanUpgrade() bool
	// Upgrade hands back the raw bidirectional byte stream. Valid to call
	// at most once per request.
	Upgrade() (io.ReadWriteCloser, error)
}

// BodyDetector is implemented by an InboundContext whose runtime can state
// authoritatively whether the current request has a body, short-circuiting
// the header-based heuristics of spec §4.5 step 5.
type BodyDetector interface {
	// CanHaveBody returns (hasBody, present). present is false when the
	// runtime has no opinion and the caller must fall back to heuristics.
	CanHaveBody() (bool, bool)
}

// Resettable is implemented by an InboundContext whose runtime supports an
// HTTP/2-style stream reset in place of a hard connection abort.
type Resettable interface {
	Reset(errorCode int) error
}

const (
	// ResetCancel is the HTTP/2 error code used when a reset is caused by
	// cancellation (client or timeout abort).
	ResetCancel = 2
	// ResetInternalError is used for resets caused by an unexpected
	// destination or transport failure.
	ResetInternalError = 8
)

// RequestBodyLimiter is implemented by an InboundContext whose runtime
// enforces a minimum request body data rate and/or a maximum request body
// size, both of which a streaming request wants disabled.
type RequestBodyLimiter interface {
	DisableMinRequestBodyDataRate()
	// DisableMaxRequestBodySize may fail if the limit is read-only because
	// reads have already begun; per spec §9 this is logged, not fatal.
	DisableMaxRequestBodySize() error
}

// TrailerCapable is implemented by an InboundContext whose runtime
// supports writable response trailers.
type TrailerCapable interface {
	ResponseTrailers() (*Headers, bool)
}
