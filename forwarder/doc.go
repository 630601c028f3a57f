// Package forwarder drives the end-to-end proxying of a single HTTP
// request/response exchange: it builds the outbound request, copies bodies
// concurrently with response reception, handles protocol upgrades, and maps
// failure modes to status codes through a small error taxonomy.
//
// The package owns none of the networking itself. It is handed an
// InboundContext (the already-routed inbound request/response pair) and an
// OutboundClient (a non-buffering HTTP client able to send the built
// request), and it drives the exchange between them.
package forwarder
