package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// loggingWriter persists the response status code, adapted unchanged from
// the donor's app/proxy/middleware.go.
type loggingWriter struct {
	http.ResponseWriter
	Code  int
	Bytes int64
}

const decimalBase = 10

// WithMetrics records one Prometheus counter increment per completed
// request, labeled by method/path/status, and observes its duration in
// histogram.
func WithMetrics(counter *prometheus.CounterVec, histogram prometheus.Histogram) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lw := newLoggingWriter(w)
			timer := prometheus.NewTimer(histogram)
			defer func() {
				timer.ObserveDuration()
				counter.WithLabelValues(
					r.Method,
					r.URL.Path,
					strconv.FormatInt(int64(lw.Code), decimalBase),
				).Inc()
			}()
			next.ServeHTTP(lw, r)
		})
	}
}

// WithLogging writes one Cloud Logging entry per completed request, its
// HTTPRequest populated the way the donor's proxy.logError and
// proxy.handleResponse populate logging.Entry.HTTPRequest (method, path,
// status, remote IP), plus latency and size since both are already on
// hand here.
func WithLogging(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lw := newLoggingWriter(w)
			start := time.Now()
			defer func() {
				severity := logging.Info
				if lw.Code >= http.StatusInternalServerError {
					severity = logging.Error
				}
				logger.Log(logging.Entry{
					Severity: severity,
					Payload:  r.Method + " " + r.URL.Path,
					HTTPRequest: &logging.HTTPRequest{
						Request:      r,
						RequestSize:  r.ContentLength,
						Status:       lw.Code,
						ResponseSize: int64(lw.Bytes),
						Latency:      time.Since(start),
						RemoteIP:     r.RemoteAddr,
					},
				})
			}()
			next.ServeHTTP(lw, r)
		})
	}
}

func newLoggingWriter(w http.ResponseWriter) *loggingWriter {
	if lw, ok := w.(*loggingWriter); ok {
		return lw
	}
	return &loggingWriter{ResponseWriter: w, Code: http.StatusOK}
}

func (w *loggingWriter) WriteHeader(code int) {
	w.Code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.Bytes += int64(n)
	return n, err
}
