package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// requestLogger logs every handled request with a unique request id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			method := r.Method

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			logger.Info("request handled",
				"request_id", requestID,
				"method", method,
				"path", r.URL.Path,
				"status", sw.status(),
				"duration", time.Since(start),
			)
		})
	}
}

// statusWriter remembers the status code written to the response.
type statusWriter struct {
	http.ResponseWriter
	wroteStatus int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.wroteStatus == 0 {
		w.wroteStatus = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) status() int {
	if w.wroteStatus == 0 {
		return http.StatusOK
	}
	return w.wroteStatus
}
