package upstream

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/metrics"
)

const vehicleFields = "current_status,bearing,latitude,longitude,speed,updated_at"

// Decoder turns a response body into snapshots for the requested routes
type Decoder interface {
	Decode(body []byte, routes []string) ([]*ctdf.VehicleSnapshot, error)
}

type Client struct {
	BaseURL     string
	APIKey      string
	MaxAttempts int
	MaxWait     time.Duration
	Format      string

	HTTPClient *http.Client
	Decoder    Decoder
	Metrics    *metrics.Metrics

	// Sleep blocks for the backoff between attempts, returning early if ctx ends
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg config.UpstreamConfig, m *metrics.Metrics) *Client {
	var decoder Decoder = JSONAPIDecoder{}
	if cfg.Format == config.UpstreamFormatGTFSRT {
		decoder = GTFSRTDecoder{}
	}

	return &Client{
		BaseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		APIKey:      cfg.APIKey,
		MaxAttempts: cfg.MaxAttempts,
		MaxWait:     cfg.MaxWait,
		Format:      cfg.Format,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		Decoder:     decoder,
		Metrics:     m,
		Sleep:       sleepContext,
	}
}

// FetchVehicles polls the upstream for the given routes. Transient failures are
// retried with backoff; every failure is returned as a *FetchError.
func (c *Client) FetchVehicles(ctx context.Context, routes []string) ([]*ctdf.VehicleSnapshot, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last attemptResult
	attempts := 0

	for attempt := 0; attempt < maxAttempts; attempt++ {
		attempts++
		last = c.attempt(ctx, routes)
		c.Metrics.ObserveUpstreamAttempt(last.kind.String())

		if last.kind == FailureNone {
			return last.vehicles, nil
		}

		if !last.kind.Retryable() {
			break
		}

		finalAttempt := attempt == maxAttempts-1
		if finalAttempt && last.kind != FailureRateLimited {
			break
		}

		wait := c.backoff(last.kind, attempt)

		log.Warn().
			Err(last.err).
			Str("kind", last.kind.String()).
			Int("attempt", attempt+1).
			Str("wait", wait.String()).
			Msg("Upstream fetch failed, backing off")

		if err := c.sleep(ctx, wait); err != nil {
			return nil, &FetchError{Kind: FailureCancelled, Attempts: attempts, Err: err}
		}
	}

	return nil, &FetchError{
		Kind:       last.kind,
		Attempts:   attempts,
		StatusCode: last.statusCode,
		Err:        last.err,
	}
}

// backoff returns the wait after a failed attempt (zero based), capped at MaxWait
func (c *Client) backoff(kind FailureKind, attempt int) time.Duration {
	var base time.Duration

	switch kind {
	case FailureRateLimited:
		base = 5 * time.Second
	case FailureServer:
		base = 2 * time.Second
	default:
		base = time.Second
	}

	wait := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	if c.MaxWait > 0 && wait > c.MaxWait {
		wait = c.MaxWait
	}

	return wait
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep == nil {
		return sleepContext(ctx, d)
	}

	return c.Sleep(ctx, d)
}

func (c *Client) attempt(ctx context.Context, routes []string) attemptResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(routes), nil)
	if err != nil {
		return failure(FailureClient, 0, err)
	}

	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}
	req.Header.Set("Accept", c.acceptHeader())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return failure(FailureCancelled, 0, ctx.Err())
		}

		return failure(FailureTransport, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return failure(FailureRateLimited, resp.StatusCode, ErrRateLimited)
	case resp.StatusCode >= http.StatusInternalServerError:
		return failure(FailureServer, resp.StatusCode, ErrServer)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return failure(FailureClient, resp.StatusCode, ErrClient)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(FailureTransport, resp.StatusCode, fmt.Errorf("reading response body: %w", err))
	}

	vehicles, err := c.Decoder.Decode(body, routes)
	if err != nil {
		return failure(FailureMalformed, resp.StatusCode, fmt.Errorf("%w: %w", ErrMalformed, err))
	}

	return success(vehicles)
}

func (c *Client) requestURL(routes []string) string {
	if c.Format == config.UpstreamFormatGTFSRT {
		return c.BaseURL
	}

	query := url.Values{}
	query.Set("include", "trip,route")
	query.Set("fields[vehicle]", vehicleFields)
	if len(routes) > 0 {
		query.Set("filter[route]", strings.Join(routes, ","))
	}

	return fmt.Sprintf("%s/vehicles?%s", c.BaseURL, query.Encode())
}

func (c *Client) acceptHeader() string {
	if c.Format == config.UpstreamFormatGTFSRT {
		return "application/x-protobuf"
	}

	return "application/vnd.api+json"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
