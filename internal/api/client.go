package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"nlbwdash/internal/config"
	"nlbwdash/internal/daterange"
	"nlbwdash/internal/models"
	"nlbwdash/internal/telemetry"
)

var (
	// ErrNotFound is matched by StatusErrors carrying a 404.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned while the circuit breaker rejects requests.
	ErrUnavailable = errors.New("bandwidth api unavailable")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client is a read-only client for the bandwidth usage API.
type Client struct {
	config  config.APIConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
	metrics *telemetry.Metrics
}

func NewClient(cfg *config.Config, log *zap.Logger, metrics *telemetry.Metrics) *Client {
	c := &Client{
		config:  cfg.API,
		http:    &http.Client{Timeout: cfg.API.Timeout.Std()},
		log:     log.Named("api"),
		metrics: metrics,
	}

	bc := cfg.Breaker
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bandwidth-api",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval.Std(),
		Timeout:     bc.Timeout.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= bc.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			c.metrics.BreakerOpen(to == gobreaker.StateOpen)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return c
}

type rawResponse struct {
	code int
	body []byte
}

func (c *Client) createRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	return req, nil
}

// get performs one GET through the circuit breaker and returns the raw body of
// a 2xx response. 5xx and transport errors count against the breaker.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	req, err := c.createRequest(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.log.Debug("fetching",
		zap.String("endpoint", endpoint),
		zap.String("url", req.URL.String()),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("making request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		raw := &rawResponse{code: resp.StatusCode, body: body}
		if resp.StatusCode >= 500 {
			return raw, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
		}
		return raw, nil
	})

	code := 0
	raw, _ := result.(*rawResponse)
	if raw != nil {
		code = raw.code
	}
	c.metrics.ObserveRequest(endpoint, code, time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", endpoint, ErrUnavailable)
		}
		return nil, err
	}

	if raw.code < 200 || raw.code > 299 {
		return nil, &StatusError{Endpoint: endpoint, StatusCode: raw.code, Body: string(raw.body)}
	}

	return raw.body, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	body, err := c.get(ctx, endpoint, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", endpoint, err)
	}
	return nil
}

func rangeQuery(r daterange.Range) url.Values {
	q := url.Values{}
	q.Set("from", r.FromISO())
	q.Set("to", r.ToISO())
	return q
}

// Ping checks that the API answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "calendar", "/api/calendar", nil)
	return err
}

// Calendar fetches the per-day totals that drive the activity heatmap.
func (c *Client) Calendar(ctx context.Context) ([]models.CalendarEntry, error) {
	var entries []models.CalendarEntry
	if err := c.getJSON(ctx, "calendar", "/api/calendar", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Summary fetches range totals and the per-day device breakdown.
func (c *Client) Summary(ctx context.Context, r daterange.Range) (*models.Summary, error) {
	var summary models.Summary
	if err := c.getJSON(ctx, "summary", "/api/summary", rangeQuery(r), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Timeseries fetches per-day traffic, restricted to macs when non-empty.
func (c *Client) Timeseries(ctx context.Context, r daterange.Range, macs []string) ([]models.TimeseriesPoint, error) {
	q := rangeQuery(r)
	if len(macs) > 0 {
		q.Set("macs", strings.Join(macs, ","))
	}

	var points []models.TimeseriesPoint
	if err := c.getJSON(ctx, "timeseries", "/api/timeseries", q, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// DeviceProtocols fetches the protocol breakdown of one device on one day.
func (c *Client) DeviceProtocols(ctx context.Context, date, mac string) ([]models.ProtocolStat, error) {
	path := fmt.Sprintf("/api/device/%s/%s", url.PathEscape(date), url.PathEscape(mac))

	var stats []models.ProtocolStat
	if err := c.getJSON(ctx, "device", path, nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) Achievements(ctx context.Context) (*models.Achievements, error) {
	var a models.Achievements
	if err := c.getJSON(ctx, "achievements", "/api/achievements", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
