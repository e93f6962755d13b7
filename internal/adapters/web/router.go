// Package web serves the dashboard's HTTP surface.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

const maxSubmitBytes = 1 << 20

// Subscription is a live stats feed, detached with Unsubscribe.
type Subscription interface {
	ID() string
	C() <-chan domain.StatsRecord
	Unsubscribe()
}

// Deps wires the handlers to the running dashboard. Readings, Compare and
// Submit may be nil; their endpoints then answer 503.
type Deps struct {
	Latest       func() (domain.StatsRecord, bool)
	Subscribe    func(buffer int) Subscription
	Readings     ports.ReadingSource
	Compare      ports.ComparisonSource
	Submit       func(ctx context.Context, r domain.SensorReading) error
	Obs          ports.Observability
	Metrics      http.Handler
	StreamBuffer int
	Now          func() time.Time
}

type server struct {
	d Deps
}

func NewRouter(d Deps) *mux.Router {
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}
	if d.StreamBuffer < 1 {
		d.StreamBuffer = 8
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &server{d: d}

	r := mux.NewRouter()
	if d.Obs != nil {
		r.Use(s.logRequests)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats/latest", s.latestStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/stream", s.streamStats).Methods(http.MethodGet)
	api.HandleFunc("/readings", s.listReadings).Methods(http.MethodGet)
	api.HandleFunc("/readings", s.submitReading).Methods(http.MethodPost)
	api.HandleFunc("/comparisons/day-to-day", s.compareDays).Methods(http.MethodGet)

	r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return r
}

func (s *server) latestStats(w http.ResponseWriter, _ *http.Request) {
	rec, ok := s.d.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) listReadings(w http.ResponseWriter, r *http.Request) {
	if s.d.Readings == nil {
		writeError(w, http.StatusServiceUnavailable, "no reading source configured")
		return
	}
	readings, err := s.d.Readings.FetchReadings(r.Context())
	if err != nil {
		s.logError("readings_fetch_failed", err)
		writeError(w, http.StatusBadGateway, "could not fetch readings")
		return
	}
	if readings == nil {
		readings = []domain.SensorReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *server) submitReading(w http.ResponseWriter, r *http.Request) {
	if s.d.Submit == nil {
		writeError(w, http.StatusServiceUnavailable, "submissions are disabled")
		return
	}

	var reading domain.SensorReading
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBytes)).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if reading.SensorID == "" || reading.SensorType == "" {
		writeError(w, http.StatusBadRequest, "sensorId and sensorType are required")
		return
	}
	if reading.Timestamp == "" {
		reading.Timestamp = s.d.Now().UTC().Format(time.RFC3339)
	} else if _, err := reading.Time(); err != nil {
		writeError(w, http.StatusBadRequest, "timestamp must be RFC 3339")
		return
	}

	if err := s.d.Submit(r.Context(), reading); err != nil {
		s.logError("reading_submit_refused", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *server) compareDays(w http.ResponseWriter, r *http.Request) {
	if s.d.Compare == nil {
		writeError(w, http.StatusServiceUnavailable, "no comparison source configured")
		return
	}
	q := r.URL.Query()
	date1, date2 := q.Get("date1"), q.Get("date2")
	if !validDate(date1) || !validDate(date2) {
		writeError(w, http.StatusBadRequest, "date1 and date2 are required as YYYY-MM-DD")
		return
	}

	cmp, err := s.d.Compare.CompareDayToDay(r.Context(), date1, date2)
	if err != nil {
		s.logError("comparison_failed", err)
		writeError(w, http.StatusBadGateway, "could not compare days")
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func validDate(v string) bool {
	_, err := time.Parse(time.DateOnly, v)
	return err == nil
}

func (s *server) logError(msg string, err error) {
	if s.d.Obs != nil {
		s.d.Obs.LogError(msg, err)
	}
}

// writeJSON encodes before writing the status so an unencodable value
// becomes a 500 instead of a 2xx with an empty body.
func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
