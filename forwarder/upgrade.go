package forwarder

import (
	"context"
	"io"
)

// UpgradeDriver handles the 101 Switching Protocols branch of a proxied
// exchange: it hands the raw inbound connection and the raw outbound
// response body to two concurrent StreamCopiers and reports whichever
// direction fails first.
type UpgradeDriver struct{}

// Run implements spec §4.6. It assumes the 101 status line and headers
// have already been flushed to the inbound response by the caller.
func (UpgradeDriver) Run(parentCtx context.Context, rec *recorder, inbound InboundContext, outboundResp *OutboundResponse) ProxyError {
	rec.stage(StageResponseUpgrade)

	upgradeable, ok := inbound.(Upgradeable)
	if !ok {
		return ErrUpgradeResponseClient
	}
	inboundConn, err := upgradeable.Upgrade()
	if err != nil {
		return ErrUpgradeResponseClient
	}
	defer inboundConn.Close()

	// Precondition (spec §4.6): the outbound response carries a body
	// object that is the raw tunnel byte stream, readable and writable.
	outboundConn, ok := outboundResp.Body.(io.ReadWriter)
	if !ok {
		return ErrUpgradeResponseDestination
	}

	linked, cancel := context.WithCancel(parentCtx)
	defer cancel()

	type directionResult struct {
		isRequest bool
		result    StreamCopyResult
	}
	resultCh := make(chan directionResult, 2)

	copier := StreamCopier{}
	go func() {
		r := copier.Copy(linked, true, inboundConn, outboundConn)
		resultCh <- directionResult{isRequest: true, result: r}
	}()
	go func() {
		r := copier.Copy(linked, false, outboundConn, inboundConn)
		resultCh <- directionResult{isRequest: false, result: r}
	}()

	first := <-resultCh
	if first.result.Kind != CopySuccess {
		cancel()
		<-resultCh // drain the other direction for cleanup
		return mapUpgradeError(first.isRequest, first.result.Kind)
	}

	second := <-resultCh
	if second.result.Kind != CopySuccess {
		return mapUpgradeError(second.isRequest, second.result.Kind)
	}
	return ErrNone
}

// mapUpgradeError implements the direction/kind table of spec §4.6.
func mapUpgradeError(isRequest bool, kind StreamCopyResultKind) ProxyError {
	if isRequest {
		switch kind {
		case CopyInputError:
			return ErrUpgradeRequestClient
		case CopyOutputError:
			return ErrUpgradeRequestDestination
		case CopyCanceled:
			return ErrUpgradeRequestCanceled
		}
	} else {
		switch kind {
		case CopyInputError:
			return ErrUpgradeResponseDestination
		case CopyOutputError:
			return ErrUpgradeResponseClient
		case CopyCanceled:
			return ErrUpgradeResponseCanceled
		}
	}
	return ErrNone
}
