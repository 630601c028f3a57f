package httpnet

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/corvid-gateway/gateway/forwarder"
)

// Client sends forwarder.OutboundRequest values over a real *http.Transport
// and never buffers a response body, satisfying forwarder.OutboundClient.
type Client struct {
	transport *http.Transport
}

// NewClient wraps an already-tuned transport. Use NewTransport to build one
// with the donor gateway's pooling and timeout defaults.
func NewClient(transport *http.Transport) *Client {
	return &Client{transport: transport}
}

// IsBuffering always reports false: http.Transport.RoundTrip returns as
// soon as headers arrive and hands back a response whose Body streams.
func (c *Client) IsBuffering() bool {
	return false
}

// Send converts req into an *http.Request, performs the round trip, and
// converts the result back into a *forwarder.OutboundResponse. The request
// body, when present, is left at its zero ContentLength so the standard
// library frames it as chunked, matching the "no known length" body
// producer the engine hands us.
//
// req.Version and req.VersionPolicy are not applied here: net/http
// negotiates HTTP/2 per connection via ALPN rather than per request, so
// there is nothing for a client adapter to set on an individual
// *http.Request.
func (c *Client) Send(ctx context.Context, req *forwarder.OutboundRequest) (*forwarder.OutboundResponse, error) {
	var body io.ReadCloser
	if req.Body != nil {
		body = io.NopCloser(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URI.String(), body)
	if err != nil {
		return nil, err
	}
	if req.Host != "" {
		httpReq.Host = req.Host
	}
	applyOutboundHeader(httpReq.Header, req.Header, false)
	applyOutboundHeader(httpReq.Header, req.ContentHeader, req.Body != nil)

	resp, err := c.transport.RoundTrip(httpReq)
	if err != nil {
		return nil, err
	}

	out := &forwarder.OutboundResponse{
		StatusCode:   resp.StatusCode,
		ReasonPhrase: reasonPhrase(resp.Status, resp.StatusCode),
		Version:      resp.Proto,
		Header:       toHeaders(resp.Header),
		Trailer:      toHeaders(resp.Trailer),
		Body:         resp.Body,
	}
	return out, nil
}

// applyOutboundHeader copies h into dst. When skipContentLength is set,
// a Content-Length entry is dropped: the body is being sent chunked, and
// a stale length copied from the inbound request would contradict the
// framing the transport actually chooses.
func applyOutboundHeader(dst http.Header, h forwarder.Headers, skipContentLength bool) {
	for _, f := range h {
		if skipContentLength && strings.EqualFold(f.Name, "Content-Length") {
			continue
		}
		dst.Add(f.Name, f.Value)
	}
}

func toHeaders(h http.Header) forwarder.Headers {
	var out forwarder.Headers
	for name, values := range h {
		for _, v := range values {
			out = append(out, forwarder.HeaderField{Name: name, Value: v})
		}
	}
	return out
}

// reasonPhrase extracts the text following the status code in an HTTP
// status line, e.g. "234 Test Reason Phrase" -> "Test Reason Phrase",
// falling back to the standard library's table when the transport didn't
// preserve one (it usually does).
func reasonPhrase(status string, code int) string {
	prefix := strconv.Itoa(code) + " "
	if len(status) > len(prefix) && status[:len(prefix)] == prefix {
		return status[len(prefix):]
	}
	return http.StatusText(code)
}
