// Package telemetry turns the forwarder core's engine-level events and a
// gateway handler's own request lifecycle into log lines and Prometheus
// metrics, generalizing the donor's app/proxy/middleware.go (an
// http.Handler decorator) and app/proxy/proxy.go's Cloud Logging usage to
// also cover forwarder.TelemetrySink, the core's own notification point.
package telemetry

import (
	"net/http"
	"time"

	"cloud.google.com/go/logging"

	"github.com/corvid-gateway/gateway/forwarder"
)

// LogSink implements forwarder.TelemetrySink on top of a Cloud Logging
// logger, the same client the donor's app/proxy.Proxy threads through its
// body-copy error paths (proxy.go's p.logger.StandardLogger(logging.Error)
// calls). It holds no per-request state because the engine shares a single
// sink across every concurrently in-flight request; correlating a
// request's own events is the job of the per-request log line WithLogging
// already writes.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) ProxyStart(destinationPrefix string, at time.Time) {
	s.logger.StandardLogger(logging.Info).Printf("proxy start destination=%s at=%s", destinationPrefix, at.Format(time.RFC3339Nano))
}

func (s *LogSink) ProxyStage(stage forwarder.ProxyStage, at time.Time) {
	s.logger.StandardLogger(logging.Debug).Printf("proxy stage=%s at=%s", stage, at.Format(time.RFC3339Nano))
}

func (s *LogSink) ProxyFailed(err forwarder.ProxyError, at time.Time) {
	s.logger.StandardLogger(logging.Error).Printf("proxy failed error=%s at=%s", err, at.Format(time.RFC3339Nano))
}

func (s *LogSink) ProxyStop(statusCode int, at time.Time) {
	severity := logging.Info
	if statusCode >= http.StatusInternalServerError {
		severity = logging.Error
	}
	s.logger.StandardLogger(severity).Printf("proxy stop status=%d at=%s", statusCode, at.Format(time.RFC3339Nano))
}

var _ forwarder.TelemetrySink = (*LogSink)(nil)
