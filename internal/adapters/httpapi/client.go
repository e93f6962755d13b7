// Package httpapi talks to the optional remote dashboard API. Every call is
// best effort: callers decide what to fall back to when it fails.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

const maxBodyBytes = 8 << 20

// ErrEmptyBody is returned when the API answers 2xx with no payload or `null`.
var ErrEmptyBody = errors.New("httpapi: empty response body")

// StatusError reports a non-2xx answer.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsClientError reports whether err is a 4xx answer, i.e. retrying the same
// request will not help.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient swaps the underlying *http.Client (tests, custom TLS).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

type Client struct {
	base string
	http *http.Client
	auth ports.Authenticator
}

func NewClient(cfg Config, auth ports.Authenticator, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	c := &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: cfg.Timeout},
		auth: auth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// FetchStats calls GET /dashboard/stats.
func (c *Client) FetchStats(ctx context.Context) (*domain.StatsRecord, error) {
	var rec domain.StatsRecord
	if err := c.do(ctx, http.MethodGet, "/dashboard/stats", nil, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FetchReadings calls GET /sensor-data.
func (c *Client) FetchReadings(ctx context.Context) ([]domain.SensorReading, error) {
	var readings []domain.SensorReading
	if err := c.do(ctx, http.MethodGet, "/sensor-data", nil, nil, &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// backendReading is the shape POST /sensor-data expects.
type backendReading struct {
	SensorID  string    `json:"sensor_id"`
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmitReading calls POST /sensor-data. A missing or unparseable timestamp
// is replaced by the current time.
func (c *Client) SubmitReading(ctx context.Context, r domain.SensorReading) error {
	ts, err := r.Time()
	if err != nil {
		ts = time.Now().UTC()
	}
	payload := backendReading{
		SensorID:  r.SensorID,
		Type:      r.SensorType,
		Value:     r.Value,
		Timestamp: ts,
	}
	return c.do(ctx, http.MethodPost, "/sensor-data", nil, payload, nil)
}

// CompareDayToDay calls GET /comparisons/day-to-day.
func (c *Client) CompareDayToDay(ctx context.Context, date1, date2 string) (*domain.DayComparison, error) {
	q := url.Values{}
	q.Set("date1", date1)
	q.Set("date2", date2)

	var cmp domain.DayComparison
	if err := c.do(ctx, http.MethodGet, "/comparisons/day-to-day", q, nil, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// LoginResponse is the token issued by POST /auth/login.
type LoginResponse struct {
	Token      string `json:"token"`
	Expiration string `json:"expiration"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	body := map[string]string{"username": username, "password": password}

	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login: response carried no token")
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.auth != nil {
		if tok := c.auth.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   truncate(strings.TrimSpace(string(raw)), 256),
		}
	}

	if out == nil {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
