package ratelimit

import (
	"strings"

	"github.com/corvid-gateway/gateway/forwarder"
)

// KeyFunc derives the sorted-set key a request's rate-limit budget is
// tracked under.
type KeyFunc func(forwarder.InboundRequest) string

// KeyFromHeaders concatenates the named inbound headers into one key,
// generalizing the donor's KeyFromHeader to the engine's own header type.
func KeyFromHeaders(names ...string) KeyFunc {
	return func(req forwarder.InboundRequest) string {
		var sb strings.Builder
		for _, name := range names {
			v, _ := req.Headers().Get(name)
			sb.WriteString(strings.TrimSpace(v))
			sb.WriteByte('-')
		}
		return sb.String()
	}
}

// KeyFromRemoteAddr keys solely on the caller's observed address, the
// fallback when no header reliably identifies the caller.
func KeyFromRemoteAddr() KeyFunc {
	return func(req forwarder.InboundRequest) string {
		return req.RemoteAddr()
	}
}
