package observability

import (
	"net/http"
	"strconv"
)

// MetricsMiddleware wraps an HTTP handler and counts requests by path and
// status class ("2xx", "4xx", "5xx").
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		HTTPRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(sw.status/100)+"xx").Inc()
	})
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
