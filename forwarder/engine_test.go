package forwarder

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type recordingSink struct {
	starts []string
	stages []ProxyStage
	fails  []ProxyError
	stops  []int
}

func (s *recordingSink) ProxyStart(dest string, _ time.Time)    { s.starts = append(s.starts, dest) }
func (s *recordingSink) ProxyStage(st ProxyStage, _ time.Time)  { s.stages = append(s.stages, st) }
func (s *recordingSink) ProxyFailed(e ProxyError, _ time.Time)  { s.fails = append(s.fails, e) }
func (s *recordingSink) ProxyStop(code int, _ time.Time)        { s.stops = append(s.stops, code) }

func TestProxyNormalPostHTTP2(t *testing.T) {
	inbound := newFakeInbound()
	inbound.req.method = "POST"
	inbound.req.protocol = "HTTP/2"
	inbound.req.host = "example.com:3456"
	inbound.req.path = "/api/test"
	inbound.req.rawQuery = "a=b&c=d"
	inbound.req.headers = Headers{
		{Name: "x-ms-request-test", Value: "request"},
		{Name: "Content-Length", Value: "16"},
	}
	inbound.req.body = strings.NewReader("request content")

	sink := &recordingSink{}
	engine := ProxyEngine{Telemetry: sink}

	client := fakeOutboundClient{sendFunc: func(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if string(body) != "request content" {
			t.Fatalf("unexpected outbound body: %q", body)
		}
		return &OutboundResponse{
			StatusCode:   234,
			ReasonPhrase: "Test Reason Phrase",
			Header: Headers{
				{Name: "x-ms-response-test", Value: "response"},
				{Name: "Content-Language", Value: "responseLanguage"},
			},
			Body: io.NopCloser(strings.NewReader("response content")),
		}, nil
	}}

	feature, err := engine.Proxy(context.Background(), inbound, "https://localhost:123/a/b/", client, Empty(), RequestProxyOptions{})
	if err != nil {
		t.Fatalf("unexpected synchronous error: %v", err)
	}
	if feature.IsSet() {
		t.Fatalf("expected no failure, got %v: %v", feature.Error, feature.Exception)
	}
	if inbound.resp.statusCode != 234 || inbound.resp.reasonPhrase != "Test Reason Phrase" {
		t.Fatalf("unexpected response status/reason: %d %q", inbound.resp.statusCode, inbound.resp.reasonPhrase)
	}
	if inbound.resp.body.String() != "response content" {
		t.Fatalf("unexpected response body: %q", inbound.resp.body.String())
	}
	if v, ok := inbound.resp.headers.Get("x-ms-response-test"); !ok || v != "response" {
		t.Fatalf("expected response header copied, got %q ok=%v", v, ok)
	}
	if len(sink.starts) != 1 || len(sink.stops) != 1 {
		t.Fatalf("expected exactly one start and one stop, got %d/%d", len(sink.starts), len(sink.stops))
	}
	if sink.stops[0] != 234 {
		t.Fatalf("expected stop status 234, got %d", sink.stops[0])
	}
}

func TestProxyUnableToConnectReportsRequest(t *testing.T) {
	inbound := newFakeInbound()
	sink := &recordingSink{}
	engine := ProxyEngine{Telemetry: sink}

	wantErr := errors.New("connection refused")
	client := fakeOutboundClient{sendFunc: func(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error) {
		return nil, wantErr
	}}

	feature, err := engine.Proxy(context.Background(), inbound, "http://localhost/", client, Empty(), RequestProxyOptions{})
	if err != nil {
		t.Fatalf("unexpected synchronous error: %v", err)
	}
	if feature.Error != ErrRequest {
		t.Fatalf("expected ErrRequest, got %v", feature.Error)
	}
	if inbound.resp.statusCode != 502 {
		t.Fatalf("expected 502, got %d", inbound.resp.statusCode)
	}
	if inbound.resp.body.Len() != 0 {
		t.Fatalf("expected no bytes written to inbound body, got %q", inbound.resp.body.String())
	}
	foundStart, foundStop := false, false
	for _, s := range sink.stages {
		if s == StageSendAsyncStart {
			foundStart = true
		}
		if s == StageSendAsyncStop {
			foundStop = true
		}
	}
	if !foundStart {
		t.Fatalf("expected SendAsyncStart to be emitted")
	}
	if foundStop {
		t.Fatalf("SendAsyncStop must not be emitted when send fails")
	}
}

func TestProxyRequestBodyFailsOnFirstRead(t *testing.T) {
	inbound := newFakeInbound()
	inbound.req.method = "POST"
	inbound.req.headers = Headers{{Name: "Content-Length", Value: "5"}}
	inbound.req.body = errReader{err: errors.New("client disconnected")}

	engine := ProxyEngine{}
	client := fakeOutboundClient{sendFunc: func(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error) {
		_, err := io.ReadAll(req.Body)
		return nil, err
	}}

	feature, err := engine.Proxy(context.Background(), inbound, "http://localhost/", client, Empty(), RequestProxyOptions{})
	if err != nil {
		t.Fatalf("unexpected synchronous error: %v", err)
	}
	if feature.Error != ErrRequestBodyClient {
		t.Fatalf("expected ErrRequestBodyClient, got %v", feature.Error)
	}
	if inbound.resp.statusCode != 400 {
		t.Fatalf("expected 400, got %d", inbound.resp.statusCode)
	}
	var agg *aggregateError
	if !errors.As(feature.Exception, &agg) {
		t.Fatalf("expected an aggregate exception, got %T: %v", feature.Exception, feature.Exception)
	}
}

func TestProxyResponseBodyFailsAfterHeadersSent(t *testing.T) {
	inbound := newFakeInbound()
	engine := ProxyEngine{}

	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("X"))
		_ = pw.CloseWithError(errors.New("destination dropped"))
	}()

	client := fakeOutboundClient{sendFunc: func(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error) {
		return &OutboundResponse{StatusCode: 200, Body: io.NopCloser(pr)}, nil
	}}

	feature, err := engine.Proxy(context.Background(), inbound, "http://localhost/", client, Empty(), RequestProxyOptions{})
	if err != nil {
		t.Fatalf("unexpected synchronous error: %v", err)
	}
	if inbound.resp.statusCode != 200 {
		t.Fatalf("expected already-sent status 200 to be preserved, got %d", inbound.resp.statusCode)
	}
	if feature.Error != ErrResponseBodyDestination {
		t.Fatalf("expected ErrResponseBodyDestination, got %v", feature.Error)
	}
	if len(inbound.resetCalls) != 1 {
		t.Fatalf("expected the connection to be reset once, got %v", inbound.resetCalls)
	}
}

func TestProxyRejectsBufferingClient(t *testing.T) {
	inbound := newFakeInbound()
	engine := ProxyEngine{}
	client := fakeOutboundClient{buffering: true}

	_, err := engine.Proxy(context.Background(), inbound, "http://localhost/", client, Empty(), RequestProxyOptions{})
	if !errors.Is(err, errInvalidArgument) {
		t.Fatalf("expected an invalid-argument error, got %v", err)
	}
}

func TestProxyTimeout(t *testing.T) {
	inbound := newFakeInbound()
	engine := ProxyEngine{}
	client := fakeOutboundClient{sendFunc: func(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	feature, err := engine.Proxy(context.Background(), inbound, "http://localhost/", client, Empty(), RequestProxyOptions{Timeout: time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected synchronous error: %v", err)
	}
	if feature.Error != ErrRequestTimedOut {
		t.Fatalf("expected ErrRequestTimedOut, got %v", feature.Error)
	}
	if inbound.resp.statusCode != 504 {
		t.Fatalf("expected 504, got %d", inbound.resp.statusCode)
	}
}

func TestProxyAbortBeforeSend(t *testing.T) {
	inbound := newFakeInbound()
	inbound.Abort()
	engine := ProxyEngine{}

	sendCalled := false
	client := fakeOutboundClient{sendFunc: func(ctx context.Context, req *OutboundRequest) (*OutboundResponse, error) {
		sendCalled = true
		return nil, ctx.Err()
	}}

	feature, err := engine.Proxy(context.Background(), inbound, "http://localhost/", client, Empty(), RequestProxyOptions{})
	if err != nil {
		t.Fatalf("unexpected synchronous error: %v", err)
	}
	if feature.Error != ErrRequestCanceled {
		t.Fatalf("expected ErrRequestCanceled, got %v", feature.Error)
	}
	if inbound.resp.statusCode != 502 {
		t.Fatalf("expected 502, got %d", inbound.resp.statusCode)
	}
	_ = sendCalled
}
