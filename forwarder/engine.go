package forwarder

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"
)

// ProxyEngine orchestrates one proxied HTTP exchange end to end, per the
// nine-step sequence of spec §4.7.
type ProxyEngine struct {
	Telemetry TelemetrySink
	Now       func() time.Time
}

// grpcContentTypes are the content-type values that mark a request as
// streaming, generalizing the donor's SSE detection in
// app/proxy/proxy.go:getFlushInterval from "is this text/event-stream" to
// "is this gRPC".
var grpcContentTypes = map[string]struct{}{
	"application/grpc":       {},
	"application/grpc+proto": {},
	"application/grpc+json":  {},
}

// Proxy drives a single request/response exchange between inbound and the
// destination reached through outboundClient. It never returns an error
// for exchange-level failures — those are reported through
// ProxyErrorFeature and telemetry — except for programmer misuse, which is
// returned synchronously (spec §8 scenario 8).
func (e ProxyEngine) Proxy(
	ctx context.Context,
	inbound InboundContext,
	destinationPrefix string,
	outboundClient OutboundClient,
	transforms Transforms,
	options RequestProxyOptions,
) (*ProxyErrorFeature, error) {
	if inbound == nil || destinationPrefix == "" || outboundClient == nil {
		return nil, fmt.Errorf("%w: inbound, destinationPrefix and outboundClient are required", errInvalidArgument)
	}
	if outboundClient.IsBuffering() {
		return nil, fmt.Errorf("%w: outbound client must not buffer responses", errInvalidArgument)
	}

	rec := newRecorder(e.Telemetry, e.Now)
	feature := &ProxyErrorFeature{}

	// Step 1: ProxyStart / deferred ProxyStop.
	rec.start(destinationPrefix)
	defer func() {
		rec.stop(inbound.Response().StatusCode())
	}()

	// Step 2: abort token, streaming detection.
	abortCtx := inbound.AbortToken()
	req := inbound.Request()
	isClientHTTP2 := isHTTP2(req.Protocol())
	isStreamingRequest := isClientHTTP2 && isGRPCContentType(req.Headers())

	// Step 3: build outbound request. onBodyStarted fires when the body
	// producer's pipe is created, which happens before the underlying
	// StreamCopier moves any byte — satisfying §4.1's requirement that
	// RequestContentTransferStart precede the first byte leaving the
	// source on request copies.
	outReq, content, err := RequestBuilder{}.Build(ctx, inbound, destinationPrefix, transforms, options, isStreamingRequest,
		func() { rec.stage(StageRequestContentTransferStart) })
	if err != nil {
		if errors.Is(err, errInvalidArgument) {
			return nil, err
		}
		e.fail(rec, feature, inbound, ErrRequest, err)
		inbound.Response().SetStatusCode(ErrRequest.defaultStatus())
		return feature, nil
	}

	// Step 4: send, with a linked timeout.
	sendCtx, sendCancel := context.WithTimeout(abortCtx, options.timeout())
	defer sendCancel()

	rec.stage(StageSendAsyncStart)
	outResp, sendErr := outboundClient.Send(sendCtx, outReq)
	if sendErr != nil {
		if sendCtx.Err() != nil {
			if abortCtx.Err() != nil {
				e.fail(rec, feature, inbound, ErrRequestCanceled, sendErr)
				inbound.Response().SetStatusCode(ErrRequestCanceled.defaultStatus())
			} else {
				e.fail(rec, feature, inbound, ErrRequestTimedOut, sendErr)
				inbound.Response().SetStatusCode(ErrRequestTimedOut.defaultStatus())
			}
			return feature, nil
		}
		e.handleRequestFailure(rec, feature, inbound, content, sendErr)
		return feature, nil
	}
	rec.stage(StageSendAsyncStop)

	// Step 5: defect check.
	if content != nil && content.State() == ContentUnstarted {
		panic("forwarder: outbound client returned without ever pulling the request body")
	}

	// Step 6: downgrade detection. The core has no logging sink of its
	// own (spec §1 pushes logging out of scope); a host wires this
	// information through OnResponse if it wants to act on it.
	downgraded := isClientHTTP2 && outResp.Version != "" && !isHTTP2(outResp.Version)
	_ = downgraded

	// Step 7: response status/headers.
	resp := inbound.Response()
	resp.SetStatusCode(outResp.StatusCode)
	resp.SetReasonPhrase(outResp.ReasonPhrase)
	if transforms.CopyResponseHeaders {
		HeaderPipeline{}.CopyResponseHeaders(outResp.Header, MapHeaderSink{Fields: resp.Headers()})
	}
	if transforms.OnResponse != nil {
		if err := transforms.OnResponse(ctx, inbound, outResp); err != nil {
			e.applyRootCause(rec, feature, inbound, ErrResponseBodyDestination, err)
			return feature, nil
		}
	}

	// Step 8: upgrade branch.
	if outResp.StatusCode == 101 {
		// Flush the 101 status line and headers before the raw connection
		// is taken over, as UpgradeDriver.Run expects.
		_ = resp.Complete()
		upgradeErr := UpgradeDriver{}.Run(abortCtx, rec, inbound, outResp)
		if upgradeErr != ErrNone {
			e.fail(rec, feature, inbound, upgradeErr, nil)
		}
		return feature, nil
	}

	// Step 9: response body copy.
	copyResult := StreamCopier{}.Copy(abortCtx, false, outResp.Body, resp.BodyWriter())
	if outResp.Body != nil {
		defer outResp.Body.Close()
	}
	if copyResult.Kind != CopySuccess {
		e.handleResponseBodyFailure(rec, feature, inbound, content, copyResult)
		return feature, nil
	}

	// Step 10: trailers.
	if trailerCapable, ok := inbound.(TrailerCapable); ok {
		if dst, supported := trailerCapable.ResponseTrailers(); supported {
			if transforms.CopyResponseTrailers {
				HeaderPipeline{}.CopyResponseHeaders(outResp.Trailer, MapHeaderSink{Fields: dst})
			}
			if transforms.OnResponseTrailers != nil {
				if err := transforms.OnResponseTrailers(ctx, inbound, outResp); err != nil {
					e.applyRootCause(rec, feature, inbound, ErrResponseBodyDestination, err)
					return feature, nil
				}
			}
		}
	}

	// Step 11: flush early for streaming requests.
	if isStreamingRequest {
		_ = resp.Complete()
	}

	// Step 12: await request body completion; report but never overwrite
	// an already-sent status.
	if content != nil {
		if result, ok := content.ConsumptionTask().TryGet(); ok {
			e.reportPostResponseBodyResult(rec, feature, result)
		} else if result, ok := content.ConsumptionTask().Wait(abortCtx); ok {
			e.reportPostResponseBodyResult(rec, feature, result)
		}
	}

	return feature, nil
}

func (ProxyEngine) reportPostResponseBodyResult(rec *recorder, feature *ProxyErrorFeature, result StreamCopyResult) {
	if result.Kind == CopySuccess {
		return
	}
	var pe ProxyError
	switch result.Kind {
	case CopyInputError:
		pe = ErrRequestBodyClient
	case CopyOutputError:
		pe = ErrRequestBodyDestination
	case CopyCanceled:
		pe = ErrRequestBodyCanceled
	}
	feature.set(pe, result.Err)
	rec.failed(pe)
}

func (ProxyEngine) fail(rec *recorder, feature *ProxyErrorFeature, inbound InboundContext, pe ProxyError, cause error) {
	feature.set(pe, cause)
	rec.failed(pe)
}

// handleRequestFailure implements spec §4.7's request-failure handler.
func (e ProxyEngine) handleRequestFailure(rec *recorder, feature *ProxyErrorFeature, inbound InboundContext, content *StreamCopyContent, sendErr error) {
	if content != nil {
		if bodyResult, ok := content.ConsumptionTask().TryGet(); ok && bodyResult.Kind != CopySuccess {
			pe := mapBodyRootCause(bodyResult)
			e.applyRootCause(rec, feature, inbound, pe, aggregate(bodyResult.Err, sendErr))
			return
		}
	}
	e.fail(rec, feature, inbound, ErrRequest, sendErr)
	inbound.Response().SetStatusCode(ErrRequest.defaultStatus())
}

// handleResponseBodyFailure implements spec §4.7's response-body-error handler.
func (e ProxyEngine) handleResponseBodyFailure(rec *recorder, feature *ProxyErrorFeature, inbound InboundContext, content *StreamCopyContent, copyResult StreamCopyResult) {
	if content != nil {
		if bodyResult, ok := content.ConsumptionTask().TryGet(); ok && bodyResult.Kind != CopySuccess {
			pe := mapBodyRootCause(bodyResult)
			e.applyRootCause(rec, feature, inbound, pe, aggregate(bodyResult.Err, copyResult.Err))
			return
		}
	}

	var pe ProxyError
	switch copyResult.Kind {
	case CopyInputError:
		pe = ErrResponseBodyDestination
	case CopyOutputError:
		pe = ErrResponseBodyClient
	case CopyCanceled:
		pe = ErrResponseBodyCanceled
	}
	e.applyRootCause(rec, feature, inbound, pe, copyResult.Err)
}

// mapBodyRootCause maps a failed request-body copy to the ProxyError the
// spec's taxonomy assigns it when that body failure turns out to be the
// root cause of an otherwise-unexplained send or response-body failure.
func mapBodyRootCause(result StreamCopyResult) ProxyError {
	switch result.Kind {
	case CopyInputError:
		return ErrRequestBodyClient
	case CopyOutputError:
		return ErrRequestBodyDestination
	case CopyCanceled:
		return ErrRequestBodyCanceled
	default:
		return ErrNone
	}
}

// applyRootCause writes the error's default status (if the response has
// not started) or resets the connection (if it has), per the shared tail
// of both §4.7 error handlers.
func (e ProxyEngine) applyRootCause(rec *recorder, feature *ProxyErrorFeature, inbound InboundContext, pe ProxyError, cause error) {
	e.fail(rec, feature, inbound, pe, cause)

	resp := inbound.Response()
	if !resp.HasStarted() {
		resp.Clear()
		resp.SetStatusCode(pe.defaultStatus())
		return
	}
	if resetter, ok := inbound.(Resettable); ok {
		code := ResetInternalError
		if pe == ErrRequestBodyCanceled || pe == ErrResponseBodyCanceled {
			code = ResetCancel
		}
		_ = resetter.Reset(code)
		return
	}
	inbound.Abort()
}

func isGRPCContentType(h Headers) bool {
	ct, ok := h.Get("Content-Type")
	if !ok {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(ct))
	}
	_, isGRPC := grpcContentTypes[mediaType]
	return isGRPC
}
