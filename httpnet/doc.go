// Package httpnet adapts the standard library's net/http to the
// forwarder.InboundContext and forwarder.OutboundClient interfaces: it is
// the only place where the forwarder core meets a real socket.
//
// ServerContext wraps an http.ResponseWriter/*http.Request pair received by
// an http.Server handler. Client wraps a tuned *http.Transport for sending
// the built outbound request. Neither type owns destination selection,
// TLS configuration beyond the transport defaults, or connection pooling
// policy — those are configured once, at construction, the way the donor
// gateway's app/proxy package does it.
package httpnet
