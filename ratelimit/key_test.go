package ratelimit

import (
	"io"
	"testing"

	"github.com/corvid-gateway/gateway/forwarder"
)

type keyTestRequest struct {
	headers forwarder.Headers
	addr    string
}

func (r keyTestRequest) Method() string           { return "GET" }
func (r keyTestRequest) Protocol() string          { return "HTTP/1.1" }
func (r keyTestRequest) Scheme() string            { return "https" }
func (r keyTestRequest) Host() string              { return "example.com" }
func (r keyTestRequest) Path() string              { return "/" }
func (r keyTestRequest) PathBase() string          { return "" }
func (r keyTestRequest) RawQuery() string          { return "" }
func (r keyTestRequest) Headers() forwarder.Headers { return r.headers }
func (r keyTestRequest) Body() io.Reader           { return nil }
func (r keyTestRequest) RemoteAddr() string        { return r.addr }

func TestKeyFromHeadersConcatenates(t *testing.T) {
	req := keyTestRequest{headers: forwarder.Headers{
		{Name: "X-Client-ID", Value: "abc"},
		{Name: "X-Tenant", Value: "  widgets  "},
	}}

	key := KeyFromHeaders("X-Client-ID", "X-Tenant")(req)
	if key != "abc-widgets-" {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestKeyFromRemoteAddrUsesAddr(t *testing.T) {
	req := keyTestRequest{addr: "10.0.0.1:9999"}
	if got := KeyFromRemoteAddr()(req); got != "10.0.0.1:9999" {
		t.Fatalf("unexpected key: %q", got)
	}
}
