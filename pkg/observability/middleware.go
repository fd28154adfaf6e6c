package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// InstrumentHandler records strom_requests_total and
// strom_request_duration_seconds for every request next serves. Routes
// are labelled by the ServeMux pattern that matched, so wildcard segments
// such as a Gemini model name do not create new series.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		RequestsTotal.WithLabelValues(r.Method, rec.statusClass(), route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		p := r.Pattern
		if _, path, ok := strings.Cut(p, " "); ok {
			p = path
		}
		return p
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// responseRecorder remembers the first status written. It forwards Flush
// so SSE handlers keep streaming through it.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (w *responseRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseRecorder) Flush() {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// statusClass returns "2xx", "4xx" and so on. A handler that wrote
// nothing counts as 200.
func (w *responseRecorder) statusClass() string {
	if w.status == 0 {
		return statusClass(http.StatusOK)
	}
	return statusClass(w.status)
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
