package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ghalamif/CityPulse/internal/domain"
)

type tokenAuth string

func (t tokenAuth) IsAuthenticated() bool { return t != "" }
func (t tokenAuth) Token() string         { return string(t) }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/api/", Timeout: time.Second}, tokenAuth("abc"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchStatsSendsBearerAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard/stats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("unexpected auth header %q", got)
		}
		_, _ = w.Write([]byte(`{"users":500,"orders":3,"revenue":10,"growth":1.5,"activeUsers":2,"totalSales":9,"conversionRate":0.5,"avgOrderValue":4}`))
	})

	rec, err := c.FetchStats(context.Background())
	if err != nil {
		t.Fatalf("fetch stats: %v", err)
	}
	if rec.Users != 500 || rec.Growth != 1.5 || rec.AvgOrderValue != 4 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestFetchStatsEmptyAndNullBodies(t *testing.T) {
	for _, body := range []string{"", "null", "  \n"} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		if _, err := c.FetchStats(context.Background()); !errors.Is(err, ErrEmptyBody) {
			t.Fatalf("body %q: expected ErrEmptyBody, got %v", body, err)
		}
	}
}

func TestFetchStatsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.FetchStats(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if !IsClientError(err) {
		t.Fatalf("404 should be a client error")
	}
}

func TestFetchStatsMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":`))
	})
	if _, err := c.FetchStats(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFetchReadings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sensor-data" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"sensorId":"a","sensorType":"light","value":3},{"sensor_id":"b","type":"motion"}]`))
	})

	readings, err := c.FetchReadings(context.Background())
	if err != nil {
		t.Fatalf("fetch readings: %v", err)
	}
	if len(readings) != 2 || readings[1].SensorID != "b" || readings[1].Value != 0 {
		t.Fatalf("unexpected readings %+v", readings)
	}
}

func TestSubmitReadingUsesBackendFormat(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sensor-data" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := c.SubmitReading(context.Background(), domain.SensorReading{
		SensorID:   "sensor010",
		SensorType: "noise",
		Value:      71.2,
		Timestamp:  "2024-05-01T08:30:00Z",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got["sensor_id"] != "sensor010" || got["type"] != "noise" || got["value"] != 71.2 {
		t.Fatalf("unexpected payload %v", got)
	}
	if got["timestamp"] != "2024-05-01T08:30:00Z" {
		t.Fatalf("unexpected timestamp %v", got["timestamp"])
	}
}

func TestSubmitReadingDefaultsTimestamp(t *testing.T) {
	var got backendReading
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	})

	before := time.Now().Add(-time.Second)
	if err := c.SubmitReading(context.Background(), domain.SensorReading{SensorID: "x"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Timestamp.Before(before) {
		t.Fatalf("expected timestamp to default to now, got %s", got.Timestamp)
	}
}

func TestSubmitReadingServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	err := c.SubmitReading(context.Background(), domain.SensorReading{SensorID: "x"})
	if err == nil || IsClientError(err) {
		t.Fatalf("expected retryable server error, got %v", err)
	}
}

func TestCompareDayToDay(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("date1") != "2024-05-01" || q.Get("date2") != "2024-05-02" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(MockComparison(q.Get("date1"), q.Get("date2")))
	})

	cmp, err := c.CompareDayToDay(context.Background(), "2024-05-01", "2024-05-02")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if cmp.Summary.Trend != "increasing" || len(cmp.BySensorType) != 3 {
		t.Fatalf("unexpected comparison %+v", cmp)
	}
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "operator" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"token":"jwt","expiration":"2030-01-01T00:00:00Z"}`))
	})

	resp, err := c.Login(context.Background(), "operator", "secret")
	if err != nil || resp.Token != "jwt" {
		t.Fatalf("login: %v %+v", err, resp)
	}
	if _, err := c.Login(context.Background(), "intruder", "x"); !IsClientError(err) {
		t.Fatalf("expected 401 client error, got %v", err)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "/api"}, nil); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

func TestStaticReadings(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	readings, err := StaticReadings{Now: func() time.Time { return fixed }}.FetchReadings(context.Background())
	if err != nil {
		t.Fatalf("static readings: %v", err)
	}
	if len(readings) != 7 || readings[0].Timestamp != "2024-05-01T09:00:00Z" {
		t.Fatalf("unexpected static readings %+v", readings)
	}
}
