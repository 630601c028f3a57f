package httpnet

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Transport tuning defaults, carried over unchanged from the donor
// gateway's app/proxy/transport.go.
const (
	DefaultMaxIdleConns          = 100
	DefaultDialTimeout           = 30 * time.Second
	DefaultKeepalive             = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultExpectContinueTimeout = time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultIdleConnsPerHost      = 64
	DefaultIdleConnTimeout       = 90 * time.Second
	// keepaliveCycleInterval is how often the background goroutine below
	// forces the pool to drop idle connections, bounding how long a
	// half-dead destination can keep a connection marked healthy.
	keepaliveCycleInterval = time.Minute
)

// TransportOptions configures NewTransport. The zero value uses the
// defaults above and does not skip TLS verification.
type TransportOptions struct {
	InsecureSkipVerify bool
}

// NewTransport builds an *http.Transport tuned the way the donor gateway
// tunes its outbound transport, plus a background goroutine that
// periodically disables and re-enables keep-alives to force idle
// connections closed — the donor's way of bounding how long a connection
// to a since-recycled destination can be reused.
func NewTransport(opts TransportOptions) *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepalive,
		}).DialContext,
		MaxIdleConns:          DefaultMaxIdleConns,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ExpectContinueTimeout: DefaultExpectContinueTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConnsPerHost:   DefaultIdleConnsPerHost,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}, //nolint:gosec // operator opt-in only
	}

	ticker := time.NewTicker(keepaliveCycleInterval)
	go cycleKeepalives(t, ticker)

	return t
}

func cycleKeepalives(t *http.Transport, ticker *time.Ticker) {
	for range ticker.C {
		t.DisableKeepAlives = true
		t.CloseIdleConnections()
		t.DisableKeepAlives = false
	}
}
