package forwarder

import (
	"bytes"
	"context"
	"io"
)

// fakeRequest is a hand-written InboundRequest double, in the style of the
// donor pack's roundTripperFunc test fakes rather than a mocking framework.
type fakeRequest struct {
	method      string
	protocol    string
	scheme      string
	host        string
	path        string
	pathBase    string
	rawQuery    string
	remoteAddr  string
	headers     Headers
	body        io.Reader
}

func (r *fakeRequest) Method() string       { return r.method }
func (r *fakeRequest) Protocol() string     { return r.protocol }
func (r *fakeRequest) Scheme() string       { return r.scheme }
func (r *fakeRequest) Host() string         { return r.host }
func (r *fakeRequest) Path() string         { return r.path }
func (r *fakeRequest) PathBase() string     { return r.pathBase }
func (r *fakeRequest) RawQuery() string     { return r.rawQuery }
func (r *fakeRequest) Headers() Headers     { return r.headers }
func (r *fakeRequest) Body() io.Reader      { return r.body }
func (r *fakeRequest) RemoteAddr() string   { return r.remoteAddr }

type fakeResponse struct {
	statusCode   int
	reasonPhrase string
	headers      Headers
	body         bytes.Buffer
	started      bool
	cleared      bool
	completed    bool
	trailers     Headers
	trailersSupported bool
}

func (r *fakeResponse) StatusCode() int              { return r.statusCode }
func (r *fakeResponse) SetStatusCode(c int)          { r.statusCode = c }
func (r *fakeResponse) ReasonPhrase() string         { return r.reasonPhrase }
func (r *fakeResponse) SetReasonPhrase(p string)     { r.reasonPhrase = p }
func (r *fakeResponse) Headers() *Headers            { return &r.headers }
func (r *fakeResponse) BodyWriter() io.Writer        { r.started = true; return &r.body }
func (r *fakeResponse) HasStarted() bool             { return r.started }
func (r *fakeResponse) Clear()                       { r.cleared = true; r.started = false; r.headers = nil; r.body.Reset() }
func (r *fakeResponse) Complete() error              { r.completed = true; return nil }

type fakeInbound struct {
	req  *fakeRequest
	resp *fakeResponse

	ctx    context.Context
	cancel context.CancelFunc
	aborted bool

	canUpgrade  bool
	upgradeConn io.ReadWriteCloser
	upgradeErr  error

	bodyDetectPresent bool
	bodyDetectValue   bool

	resetCalls []int

	minRateDisabled      bool
	maxSizeDisableErr    error
	maxSizeDisableCalled bool
}

func newFakeInbound() *fakeInbound {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeInbound{
		req:    &fakeRequest{method: "GET", protocol: "HTTP/1.1", scheme: "http"},
		resp:   &fakeResponse{},
		ctx:    ctx,
		cancel: cancel,
	}
}

func (f *fakeInbound) Request() InboundRequest   { return f.req }
func (f *fakeInbound) Response() InboundResponse { return f.resp }
func (f *fakeInbound) AbortToken() context.Context { return f.ctx }
func (f *fakeInbound) Abort()                      { f.aborted = true; f.cancel() }

func (f *fakeInbound) CanUpgrade() bool { return f.canUpgrade }
func (f *fakeInbound) Upgrade() (io.ReadWriteCloser, error) {
	return f.upgradeConn, f.upgradeErr
}

func (f *fakeInbound) CanHaveBody() (bool, bool) { return f.bodyDetectValue, f.bodyDetectPresent }

func (f *fakeInbound) Reset(errorCode int) error {
	f.resetCalls = append(f.resetCalls, errorCode)
	return nil
}

func (f *fakeInbound) DisableMinRequestBodyDataRate() { f.minRateDisabled = true }
func (f *fakeInbound) DisableMaxRequestBodySize() error {
	f.maxSizeDisableCalled = true
	return f.maxSizeDisableErr
}

func (f *fakeInbound) ResponseTrailers() (*Headers, bool) {
	if !f.resp.trailersSupported {
		return nil, false
	}
	return &f.resp.trailers, true
}

type fakeOutboundClient struct {
	sendFunc  func(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error)
	buffering bool
}

func (c fakeOutboundClient) Send(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error) {
	return c.sendFunc(ctx, req)
}

func (c fakeOutboundClient) IsBuffering() bool { return c.buffering }

// rwc adapts separate reader/writer halves into an io.ReadWriteCloser for
// upgrade-tunnel tests.
type rwc struct {
	io.Reader
	io.Writer
	closed bool
}

func (p *rwc) Close() error { p.closed = true; return nil }

// readWriteCloser combines independently-sourced reader/writer/closer
// halves into a single io.ReadWriteCloser, for tests that already have a
// separate closer (e.g. the no-op one returned by io.NopCloser).
type readWriteCloser struct {
	io.Reader
	io.Writer
	io.Closer
}
