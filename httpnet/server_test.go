package httpnet

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corvid-gateway/gateway/forwarder"
)

func TestServerContextExposesRequestFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/mounted/api/test?a=b", strings.NewReader("payload"))
	r.Header.Set("X-Test", "yes")
	w := httptest.NewRecorder()

	ctx := NewServerContext(w, r, "/mounted")
	defer ctx.Release()

	req := ctx.Request()
	if req.Method() != http.MethodPost {
		t.Fatalf("unexpected method: %s", req.Method())
	}
	if req.Path() != "/api/test" {
		t.Fatalf("expected path base stripped, got %q", req.Path())
	}
	if req.PathBase() != "/mounted" {
		t.Fatalf("unexpected path base: %q", req.PathBase())
	}
	if req.RawQuery() != "a=b" {
		t.Fatalf("unexpected raw query: %q", req.RawQuery())
	}
	if v, ok := req.Headers().Get("X-Test"); !ok || v != "yes" {
		t.Fatalf("expected header copied, got %q ok=%v", v, ok)
	}
	if req.Scheme() != "http" {
		t.Fatalf("expected http scheme for a non-TLS request, got %q", req.Scheme())
	}
}

func TestServerContextResponseCommitsOnlyOnFirstWrite(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	ctx := NewServerContext(w, r, "")
	defer ctx.Release()

	resp := ctx.Response()
	resp.SetStatusCode(234)
	forwarder.MapHeaderSink{Fields: resp.Headers()}.Add("X-Reply", "yes")

	if resp.HasStarted() {
		t.Fatalf("response must not start before the first body write")
	}
	if w.Header().Get("X-Reply") != "" {
		t.Fatalf("header must not reach the recorder before commit")
	}

	if _, err := resp.BodyWriter().Write([]byte("hi")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	if !resp.HasStarted() {
		t.Fatalf("response should have started after the first write")
	}
	if w.Code != 234 {
		t.Fatalf("expected status 234 to have been committed, got %d", w.Code)
	}
	if w.Header().Get("X-Reply") != "yes" {
		t.Fatalf("expected header committed, got %q", w.Header().Get("X-Reply"))
	}
	if w.Body.String() != "hi" {
		t.Fatalf("unexpected body: %q", w.Body.String())
	}
}

func TestServerContextClearIsNoopOnceStarted(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	ctx := NewServerContext(w, r, "")
	defer ctx.Release()

	resp := ctx.Response()
	resp.SetStatusCode(500)
	_, _ = resp.BodyWriter().Write([]byte("x"))

	resp.Clear()
	if resp.StatusCode() != 500 {
		t.Fatalf("Clear must not undo an already-started response, got status %d", resp.StatusCode())
	}
}

func TestServerContextUpgradeHijacksRealConnection(t *testing.T) {
	done := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		ctx := NewServerContext(w, r, "")
		defer ctx.Release()

		if !ctx.CanUpgrade() {
			t.Errorf("expected the real net/http server ResponseWriter to support hijacking")
			return
		}
		conn, err := ctx.Upgrade()
		if err != nil {
			t.Errorf("unexpected upgrade error: %v", err)
			return
		}
		defer conn.Close()

		if !ctx.Response().HasStarted() {
			t.Errorf("hijacking must mark the response as started")
		}
		_, _ = conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\n\r\n"))
	}))
	defer backend.Close()

	resp, err := http.Get(backend.URL)
	if err == nil {
		resp.Body.Close()
	}
	<-done
}

func TestServerContextResetAbortsHandler(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	ctx := NewServerContext(w, r, "")
	defer ctx.Release()

	defer func() {
		rec := recover()
		if rec != http.ErrAbortHandler {
			t.Fatalf("expected Reset to panic with http.ErrAbortHandler, got %v", rec)
		}
	}()
	_ = ctx.Reset(0)
}
