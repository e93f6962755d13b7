package web

import (
	"net/http"
	"time"

	"github.com/ghalamif/CityPulse/internal/ports"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the Flusher underneath.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.d.Obs.LogInfo("http_request",
			ports.Field{Key: "method", Value: r.Method},
			ports.Field{Key: "path", Value: r.URL.Path},
			ports.Field{Key: "status", Value: rec.status},
			ports.Field{Key: "duration", Value: time.Since(start)},
		)
	})
}
