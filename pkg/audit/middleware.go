package audit

import (
	"net/http"
	"sync"

	"github.com/platinummonkey/iam/pkg/observability"
)

// Recorder is HTTP middleware that writes one audit record per request.
// It never changes the response.
type Recorder struct {
	decoder  ClaimDecoder
	sink     Sink
	logger   *observability.Logger
	metrics  *observability.Metrics
	warnOnce sync.Once
}

// NewRecorder creates a recorder. metrics may be nil.
func NewRecorder(decoder ClaimDecoder, sink Sink, logger *observability.Logger, metrics *observability.Metrics) *Recorder {
	return &Recorder{
		decoder: decoder,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Handler wraps an HTTP handler with audit logging
func (rec *Recorder) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := NewRecord(r, rec.decoder)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		record.Status = wrapped.statusCode
		if err := rec.sink.Write(record); err != nil {
			if rec.metrics != nil {
				rec.metrics.AuditWriteFailures.Inc()
			}
			rec.warnOnce.Do(func() {
				rec.logger.WithError(err).Warn("Audit sink write failed; further failures are counted but not logged")
			})
		}
	})
}
