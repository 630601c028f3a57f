package httpnet

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/corvid-gateway/gateway/forwarder"
)

func TestClientSendRoundTripsHeadersAndBody(t *testing.T) {
	var gotHost, gotBody string
	var gotContentLanguage string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotContentLanguage = r.Header.Get("Content-Language")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Reply", "yes")
		w.WriteHeader(234)
		_, _ = w.Write([]byte("response body"))
	}))
	defer backend.Close()

	u, err := url.Parse(backend.URL)
	if err != nil {
		t.Fatalf("parse backend url: %v", err)
	}

	client := NewClient(http.DefaultTransport.(*http.Transport))
	req := &forwarder.OutboundRequest{
		Method: http.MethodPost,
		Host:   "example.com:3456",
		URI:    u,
		Header: forwarder.Headers{{Name: "X-Request", Value: "yes"}},
		ContentHeader: forwarder.Headers{
			{Name: "Content-Language", Value: "en"},
		},
		Body: strings.NewReader("request body"),
	}

	resp, err := client.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if gotHost != "example.com:3456" {
		t.Fatalf("expected forwarded host, got %q", gotHost)
	}
	if gotBody != "request body" {
		t.Fatalf("unexpected body received by backend: %q", gotBody)
	}
	if gotContentLanguage != "en" {
		t.Fatalf("expected content-specific header forwarded, got %q", gotContentLanguage)
	}
	if resp.StatusCode != 234 {
		t.Fatalf("expected 234, got %d", resp.StatusCode)
	}
	if v, ok := resp.Header.Get("X-Reply"); !ok || v != "yes" {
		t.Fatalf("expected response header copied, got %q ok=%v", v, ok)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if string(body) != "response body" {
		t.Fatalf("unexpected response body: %q", body)
	}
}

func TestClientSendDropsStaleContentLengthWhenBodyPresent(t *testing.T) {
	var gotTransferEncoding string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTransferEncoding = r.TransferEncoding[0]
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	u, _ := url.Parse(backend.URL)
	client := NewClient(http.DefaultTransport.(*http.Transport))
	req := &forwarder.OutboundRequest{
		Method:        http.MethodPost,
		URI:           u,
		ContentHeader: forwarder.Headers{{Name: "Content-Length", Value: "999"}},
		Body:          strings.NewReader("abc"),
	}

	resp, err := client.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if len(gotTransferEncoding) == 0 || gotTransferEncoding != "chunked" {
		t.Fatalf("expected chunked transfer encoding, backend saw %q", gotTransferEncoding)
	}
}

func TestClientIsBufferingReportsFalse(t *testing.T) {
	client := NewClient(http.DefaultTransport.(*http.Transport))
	if client.IsBuffering() {
		t.Fatalf("expected IsBuffering to be false")
	}
}
