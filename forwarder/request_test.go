package forwarder

import (
	"context"
	"net/url"
	"strings"
	"testing"
)

func TestRequestBuilderDefaultURI(t *testing.T) {
	inbound := newFakeInbound()
	inbound.req.method = "POST"
	inbound.req.protocol = "HTTP/2"
	inbound.req.host = "example.com:3456"
	inbound.req.path = "/api/test"
	inbound.req.rawQuery = "a=b&c=d"
	inbound.req.headers = Headers{
		{Name: "x-ms-request-test", Value: "request"},
		{Name: "Content-Language", Value: "requestLanguage"},
		{Name: "Content-Length", Value: "1"},
	}
	inbound.req.body = strings.NewReader("request content")

	out, content, err := RequestBuilder{}.Build(context.Background(), inbound,
		"https://localhost:123/a/b/", Empty(), RequestProxyOptions{}, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.URI.String() != "https://localhost:123/a/b/api/test?a=b&c=d" {
		t.Fatalf("unexpected URI: %s", out.URI.String())
	}
	if out.Method != "POST" {
		t.Fatalf("expected POST, got %s", out.Method)
	}
	if out.Host != "example.com:3456" {
		t.Fatalf("expected the inbound host to be forwarded by default, got %q", out.Host)
	}
	if out.Version != DefaultVersion {
		t.Fatalf("expected default version, got %s", out.Version)
	}
	if content == nil {
		t.Fatalf("expected a body producer for Content-Length: 1")
	}
	if v, ok := out.ContentHeader.Get("Content-Language"); !ok || v != "requestLanguage" {
		t.Fatalf("expected Content-Language routed to content headers, got %q ok=%v", v, ok)
	}
}

func TestRequestBuilderUpgradeUsesHTTP11(t *testing.T) {
	inbound := newFakeInbound()
	inbound.canUpgrade = true
	inbound.req.method = "GET"
	inbound.req.protocol = "HTTP/1.1"
	inbound.req.headers = Headers{{Name: "Upgrade", Value: "WebSocket"}}

	out, content, err := RequestBuilder{}.Build(context.Background(), inbound,
		"http://localhost/", Empty(), RequestProxyOptions{}, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Version != "1.1" {
		t.Fatalf("expected HTTP/1.1 for upgrade, got %s", out.Version)
	}
	if content != nil {
		t.Fatalf("GET upgrade request must not have a body producer")
	}
}

func TestRequestBuilderRejectsShortDestinationPrefix(t *testing.T) {
	inbound := newFakeInbound()
	_, _, err := RequestBuilder{}.Build(context.Background(), inbound,
		"http://", Empty(), RequestProxyOptions{}, false, nil)
	if err == nil {
		t.Fatalf("expected an error for a too-short destination prefix")
	}
}

func TestRequestBuilderHTTP2BodylessMethodsHaveNoBody(t *testing.T) {
	for _, method := range []string{"GET", "HEAD", "DELETE", "CONNECT", "TRACE"} {
		inbound := newFakeInbound()
		inbound.req.method = method
		inbound.req.protocol = "HTTP/2"

		_, content, err := RequestBuilder{}.Build(context.Background(), inbound,
			"http://localhost/", Empty(), RequestProxyOptions{}, false, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", method, err)
		}
		if content != nil {
			t.Fatalf("%s: expected no body producer over HTTP/2 with no length/TE", method)
		}
	}
}

func TestRequestBuilderHTTP2OtherMethodsHaveBody(t *testing.T) {
	inbound := newFakeInbound()
	inbound.req.method = "POST"
	inbound.req.protocol = "HTTP/2"
	inbound.req.body = strings.NewReader("x")

	_, content, err := RequestBuilder{}.Build(context.Background(), inbound,
		"http://localhost/", Empty(), RequestProxyOptions{}, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content == nil {
		t.Fatalf("expected a body producer for HTTP/2 POST with no length/TE")
	}
}

func TestRequestBuilderBodyDetectionFeatureWins(t *testing.T) {
	inbound := newFakeInbound()
	inbound.req.method = "POST"
	inbound.req.protocol = "HTTP/1.1"
	inbound.req.headers = Headers{{Name: "Content-Length", Value: "5"}}
	inbound.bodyDetectPresent = true
	inbound.bodyDetectValue = false

	_, content, err := RequestBuilder{}.Build(context.Background(), inbound,
		"http://localhost/", Empty(), RequestProxyOptions{}, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != nil {
		t.Fatalf("explicit body-detection feature must override header heuristics")
	}
}

func TestRequestBuilderNoCopyHeadersWithoutHook(t *testing.T) {
	inbound := newFakeInbound()
	inbound.req.headers = Headers{{Name: "X-Test", Value: "v"}}

	out, _, err := RequestBuilder{}.Build(context.Background(), inbound,
		"http://localhost/", Transforms{}, RequestProxyOptions{}, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Header) != 0 || len(out.ContentHeader) != 0 {
		t.Fatalf("expected no headers copied when CopyRequestHeaders is false")
	}
}

func TestRequestBuilderOnRequestHookURIWinsOverDefault(t *testing.T) {
	inbound := newFakeInbound()
	inbound.req.path = "/api/test"

	called := false
	transforms := Transforms{
		OnRequest: func(ctx context.Context, inbound InboundContext, outbound *OutboundRequest, destinationPrefix string) error {
			called = true
			custom, err := url.Parse("http://rewritten.example/custom")
			if err != nil {
				return err
			}
			outbound.URI = custom
			return nil
		},
	}
	out, _, err := RequestBuilder{}.Build(context.Background(), inbound,
		"http://localhost/", transforms, RequestProxyOptions{}, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected OnRequest to be invoked")
	}
	if out.URI.String() != "http://rewritten.example/custom" {
		t.Fatalf("expected hook-set URI to win, got %s", out.URI.String())
	}
}

func TestRequestBuilderDefaultURIFillsWhenHookLeavesItUnset(t *testing.T) {
	inbound := newFakeInbound()
	inbound.req.path = "/api/test"

	transforms := Transforms{
		OnRequest: func(ctx context.Context, inbound InboundContext, outbound *OutboundRequest, destinationPrefix string) error {
			return nil
		},
	}
	out, _, err := RequestBuilder{}.Build(context.Background(), inbound,
		"http://localhost/", transforms, RequestProxyOptions{}, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.URI == nil || out.URI.Path != "/api/test" {
		t.Fatalf("expected default URI to be filled in, got %v", out.URI)
	}
}
