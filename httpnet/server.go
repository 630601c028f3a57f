package httpnet

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/corvid-gateway/gateway/forwarder"
)

// ServerContext adapts one http.ResponseWriter/*http.Request pair received
// by an http.Server handler into a forwarder.InboundContext. PathBase lets
// a caller mount the handler under a prefix that should be stripped from
// the path seen by routing but still forwarded ahead of it, mirroring the
// donor gateway's single mount point at "/".
type ServerContext struct {
	w        http.ResponseWriter
	r        *http.Request
	pathBase string

	req  requestAdapter
	resp responseAdapter

	abortCtx    context.Context
	abortCancel context.CancelFunc
}

// NewServerContext wraps w and r. Call Release when the handler returns to
// release the abort context derived from r's context.
func NewServerContext(w http.ResponseWriter, r *http.Request, pathBase string) *ServerContext {
	abortCtx, cancel := context.WithCancel(r.Context())
	c := &ServerContext{
		w:           w,
		r:           r,
		pathBase:    pathBase,
		abortCtx:    abortCtx,
		abortCancel: cancel,
	}
	c.req = requestAdapter{r: r, pathBase: pathBase, headers: toHeaders(r.Header)}
	c.resp = responseAdapter{w: w, status: http.StatusOK}
	return c
}

// Release cancels the abort context. Safe to call more than once.
func (c *ServerContext) Release() {
	c.abortCancel()
}

func (c *ServerContext) Request() forwarder.InboundRequest   { return &c.req }
func (c *ServerContext) Response() forwarder.InboundResponse { return &c.resp }
func (c *ServerContext) AbortToken() context.Context         { return c.abortCtx }
func (c *ServerContext) Abort()                              { c.abortCancel() }

// CanUpgrade reports whether the underlying ResponseWriter can be
// hijacked, the precondition net/http imposes on switching protocols.
func (c *ServerContext) CanUpgrade() bool {
	_, ok := c.w.(http.Hijacker)
	return ok
}

// Upgrade hijacks the connection, matching the donor's
// handleUpgradeResponse: once hijacked, the caller owns the raw socket and
// nothing further may be written through the http.ResponseWriter.
func (c *ServerContext) Upgrade() (io.ReadWriteCloser, error) {
	hj, ok := c.w.(http.Hijacker)
	if !ok {
		return nil, errUnhijackable
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return nil, err
	}
	c.resp.started = true
	return conn, nil
}

// CanHaveBody defers to Go's own Content-Length/Transfer-Encoding-derived
// accounting: net/http already resolves request-body presence for us, so
// there is nothing useful left for RequestBuilder's header heuristics to
// add. ok is always true.
func (c *ServerContext) CanHaveBody() (hasBody bool, ok bool) {
	if c.r.ContentLength > 0 {
		return true, true
	}
	if c.r.ContentLength == 0 {
		return false, true
	}
	return true, true // ContentLength == -1: unknown, assume present
}

// DisableMinRequestBodyDataRate and DisableMaxRequestBodySize are no-ops:
// net/http's server does not expose per-request body rate or size limits
// the way Kestrel does, so there is nothing to disable. Returning nil
// keeps RequestBuilder's best-effort probe from treating this as a
// failure.
func (c *ServerContext) DisableMinRequestBodyDataRate() {}
func (c *ServerContext) DisableMaxRequestBodySize() error { return nil }

// Reset implements forwarder.Resettable using net/http's documented
// escape hatch for abandoning a response mid-stream: panicking with
// http.ErrAbortHandler makes the server close the connection without
// logging the panic, which is the closest native equivalent to an HTTP/2
// RST_STREAM available through the standard library's server API.
func (c *ServerContext) Reset(_ int) error {
	panic(http.ErrAbortHandler)
}

// ResponseTrailers exposes Go's trailer mechanism. Names already present
// when the response commits are pre-declared in the "Trailer" header;
// trailer values reach the client only through Complete, which sets them
// with http.TrailerPrefix. Trailers added after the body has started are
// not sent unless Complete is called afterwards.
func (c *ServerContext) ResponseTrailers() (*forwarder.Headers, bool) {
	return &c.resp.trailer, true
}

var errUnhijackable = httpError("response writer does not support hijacking")

type httpError string

func (e httpError) Error() string { return string(e) }

type requestAdapter struct {
	r        *http.Request
	pathBase string
	headers  forwarder.Headers
}

func (a *requestAdapter) Method() string     { return a.r.Method }
func (a *requestAdapter) Protocol() string   { return a.r.Proto }
func (a *requestAdapter) Host() string       { return a.r.Host }
func (a *requestAdapter) PathBase() string   { return a.pathBase }
func (a *requestAdapter) RawQuery() string   { return a.r.URL.RawQuery }
func (a *requestAdapter) RemoteAddr() string { return a.r.RemoteAddr }

func (a *requestAdapter) Scheme() string {
	if a.r.TLS != nil {
		return "https"
	}
	if proto := a.r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}

func (a *requestAdapter) Path() string {
	return strings.TrimPrefix(a.r.URL.Path, a.pathBase)
}

func (a *requestAdapter) Headers() forwarder.Headers { return a.headers }
func (a *requestAdapter) Body() io.Reader            { return a.r.Body }

// responseAdapter buffers header writes until the first byte of body (or
// an explicit Complete) forces a commit, matching net/http's own
// write-on-first-use ResponseWriter semantics: headers set after the
// first Write are silently ignored by the standard library, so nothing
// here must reach c.w before that point.
type responseAdapter struct {
	w       http.ResponseWriter
	status  int
	reason  string
	headers forwarder.Headers
	trailer forwarder.Headers
	started bool
}

func (r *responseAdapter) StatusCode() int         { return r.status }
func (r *responseAdapter) SetStatusCode(code int)  { r.status = code }
func (r *responseAdapter) ReasonPhrase() string    { return r.reason }
func (r *responseAdapter) SetReasonPhrase(p string) { r.reason = p }
func (r *responseAdapter) Headers() *forwarder.Headers { return &r.headers }
func (r *responseAdapter) HasStarted() bool        { return r.started }

func (r *responseAdapter) Clear() {
	if r.started {
		return
	}
	r.status = http.StatusOK
	r.reason = ""
	r.headers = nil
}

// commit writes the status line once. net/http has no way to send a
// custom reason phrase over HTTP/1.1 through ResponseWriter (it always
// derives the phrase from http.StatusText), so ReasonPhrase is tracked
// for completeness but never reaches the wire here.
func (r *responseAdapter) commit() {
	if r.started {
		return
	}
	r.started = true
	dst := r.w.Header()
	for _, f := range r.headers {
		dst.Add(f.Name, f.Value)
	}
	if len(r.trailer) > 0 {
		names := make([]string, 0, len(r.trailer))
		for _, f := range r.trailer {
			names = append(names, f.Name)
		}
		dst.Set("Trailer", strings.Join(names, ", "))
	}
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	r.w.WriteHeader(status)
}

func (r *responseAdapter) BodyWriter() io.Writer {
	return &commitWriter{adapter: r}
}

func (r *responseAdapter) Complete() error {
	r.commit()
	for _, f := range r.trailer {
		r.w.Header().Set(http.TrailerPrefix+f.Name, f.Value)
	}
	if f, ok := r.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

type commitWriter struct {
	adapter *responseAdapter
}

func (c *commitWriter) Write(p []byte) (int, error) {
	c.adapter.commit()
	n, err := c.adapter.w.Write(p)
	if f, ok := c.adapter.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}
