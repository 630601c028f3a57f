package forwarder

import (
	"errors"
	"fmt"
	"net/http"
)

// errInvalidArgument is returned synchronously (never via ProxyErrorFeature)
// when a caller misuses the engine's API contract — e.g. a malformed
// destination prefix or a buffering OutboundClient (spec §8 scenario 8).
var errInvalidArgument = errors.New("invalid argument")

// ProxyError classifies why a proxied exchange failed, so the engine can
// pick a meaningful status code and so telemetry can report a stable name.
// The zero value, ErrNone, means "no failure".
type ProxyError int

const (
	ErrNone ProxyError = iota
	ErrRequest
	ErrRequestTimedOut
	ErrRequestCanceled
	ErrRequestBodyCanceled
	ErrRequestBodyClient
	ErrRequestBodyDestination
	ErrResponseBodyCanceled
	ErrResponseBodyClient
	ErrResponseBodyDestination
	ErrUpgradeRequestCanceled
	ErrUpgradeRequestClient
	ErrUpgradeRequestDestination
	ErrUpgradeResponseCanceled
	ErrUpgradeResponseClient
	ErrUpgradeResponseDestination
	// ErrNoAvailableDestinations is reported by the external router, never
	// by this package; it is carried in the taxonomy so callers can share
	// one ProxyErrorFeature type end to end.
	ErrNoAvailableDestinations
)

var proxyErrorNames = [...]string{
	"none",
	"request",
	"request_timed_out",
	"request_canceled",
	"request_body_canceled",
	"request_body_client",
	"request_body_destination",
	"response_body_canceled",
	"response_body_client",
	"response_body_destination",
	"upgrade_request_canceled",
	"upgrade_request_client",
	"upgrade_request_destination",
	"upgrade_response_canceled",
	"upgrade_response_client",
	"upgrade_response_destination",
	"no_available_destinations",
}

func (e ProxyError) String() string {
	if int(e) < 0 || int(e) >= len(proxyErrorNames) {
		return "unknown"
	}
	return proxyErrorNames[e]
}

func (e ProxyError) Error() string { return e.String() }

// defaultStatus is the status policy of spec §7 for errors that still have
// a chance to set the response status (i.e. nothing has been written yet).
func (e ProxyError) defaultStatus() int {
	switch e {
	case ErrNone:
		return http.StatusOK
	case ErrRequest, ErrRequestCanceled:
		return http.StatusBadGateway
	case ErrRequestTimedOut:
		return http.StatusGatewayTimeout
	case ErrRequestBodyClient:
		return http.StatusBadRequest
	case ErrRequestBodyDestination, ErrRequestBodyCanceled:
		return http.StatusBadGateway
	case ErrResponseBodyDestination, ErrResponseBodyClient, ErrResponseBodyCanceled:
		return http.StatusBadGateway
	case ErrNoAvailableDestinations:
		return http.StatusServiceUnavailable
	default:
		// Upgrade-branch errors never change the status: 101 was already sent.
		return 0
	}
}

// ProxyErrorFeature is the per-request fact the engine leaves behind for
// inbound middleware to observe (spec §6 "Error feature").
type ProxyErrorFeature struct {
	Error     ProxyError
	Exception error
}

func (f *ProxyErrorFeature) set(err ProxyError, cause error) {
	f.Error = err
	f.Exception = cause
}

// IsSet reports whether a failure was recorded.
func (f *ProxyErrorFeature) IsSet() bool { return f != nil && f.Error != ErrNone }

// aggregateError bundles a root cause with the error that surfaced it to the
// orchestrator, so callers that inspect the error chain can reach both.
// Scenario 5 of spec §8 requires the exposed exception type be an aggregate.
type aggregateError struct {
	primary   error
	secondary error
}

func (e *aggregateError) Error() string {
	if e.secondary == nil {
		return e.primary.Error()
	}
	return fmt.Sprintf("%v (and: %v)", e.primary, e.secondary)
}

func (e *aggregateError) Unwrap() []error {
	if e.secondary == nil {
		return []error{e.primary}
	}
	return []error{e.primary, e.secondary}
}

func aggregate(primary, secondary error) error {
	if primary == nil {
		return secondary
	}
	if secondary == nil {
		return primary
	}
	return &aggregateError{primary: primary, secondary: secondary}
}
