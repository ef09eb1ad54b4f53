package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transit-telemetry/pkg/config"
)

const vehiclesDocument = `{
  "data": [
    {
      "id": "R-5463",
      "type": "vehicle",
      "attributes": {
        "bearing": 134.6,
        "current_status": "IN_TRANSIT_TO",
        "latitude": 42.3601,
        "longitude": -71.0589,
        "speed": 12.5,
        "updated_at": "2024-03-01T08:15:02-05:00"
      },
      "relationships": {"route": {"data": {"id": "Red", "type": "route"}}}
    },
    {
      "id": "y1234",
      "type": "vehicle",
      "attributes": {"current_status": "STOPPED_AT", "latitude": null, "longitude": null, "bearing": null, "speed": null},
      "relationships": {"route": {"data": {"id": "39", "type": "route"}}}
    },
    {
      "id": "G-1001",
      "type": "vehicle",
      "attributes": {"current_status": "INCOMING_AT"},
      "relationships": {"route": {"data": {"id": "Green-B", "type": "route"}}}
    },
    {
      "id": "orphan",
      "type": "vehicle",
      "attributes": {},
      "relationships": {"route": {"data": null}}
    }
  ],
  "included": [
    {"id": "Red", "type": "route", "attributes": {"long_name": "Red Line", "short_name": ""}},
    {"id": "39", "type": "route", "attributes": {"long_name": "", "short_name": "39"}},
    {"id": "trip-1", "type": "trip", "attributes": {"headsign": "Ashmont"}}
  ]
}`

type recordedSleeps struct {
	waits []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordedSleeps) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default().Upstream
	cfg.BaseURL = server.URL
	cfg.APIKey = "secret"

	client := NewClient(cfg, nil)
	sleeps := &recordedSleeps{}
	client.Sleep = sleeps.sleep

	return client, sleeps
}

func TestFetchVehiclesParsesDocument(t *testing.T) {
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vehicles", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "trip,route", r.URL.Query().Get("include"))
		assert.Equal(t, "Red,39", r.URL.Query().Get("filter[route]"))
		assert.Equal(t, vehicleFields, r.URL.Query().Get("fields[vehicle]"))

		w.Write([]byte(vehiclesDocument))
	})

	vehicles, err := client.FetchVehicles(context.Background(), []string{"Red", "39"})
	require.NoError(t, err)
	require.Len(t, vehicles, 4)
	assert.Empty(t, sleeps.waits)

	red := vehicles[0]
	assert.Equal(t, "R-5463", red.VehicleID)
	assert.Equal(t, "Red", *red.RouteID)
	assert.Equal(t, "Red Line", *red.RouteName)
	assert.Equal(t, 135, *red.Bearing)
	assert.Equal(t, 12.5, *red.Speed)
	assert.Equal(t, "IN_TRANSIT_TO", string(red.CurrentStatus))
	assert.True(t, red.HasPosition())
	assert.Equal(t, time.Date(2024, 3, 1, 13, 15, 2, 0, time.UTC), *red.UpdatedAt)

	bus := vehicles[1]
	assert.Equal(t, "39", *bus.RouteName)
	assert.False(t, bus.HasPosition())
	assert.Nil(t, bus.Bearing)
	assert.Nil(t, bus.Speed)

	assert.Equal(t, "Green-B", *vehicles[2].RouteName)

	assert.Nil(t, vehicles[3].RouteID)
	assert.Nil(t, vehicles[3].RouteName)
}

func TestFetchVehiclesMissingDataIsEmpty(t *testing.T) {
	for name, body := range map[string]string{
		"no data key": `{"jsonapi": {"version": "1.0"}}`,
		"empty data":  `{"data": []}`,
		"null data":   `{"data": null}`,
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			vehicles, err := client.FetchVehicles(context.Background(), []string{"Red"})
			require.NoError(t, err)
			assert.NotNil(t, vehicles)
			assert.Empty(t, vehicles)
		})
	}
}

func TestFetchVehiclesRateLimited(t *testing.T) {
	var requests atomic.Int32
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	vehicles, err := client.FetchVehicles(context.Background(), []string{"Red"})
	assert.Nil(t, vehicles)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FailureRateLimited, fetchErr.Kind)
	assert.Equal(t, 3, fetchErr.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, fetchErr.StatusCode)
	assert.ErrorIs(t, err, ErrRateLimited)

	assert.EqualValues(t, 3, requests.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, sleeps.waits)
}

func TestFetchVehiclesRateLimitedCappedWait(t *testing.T) {
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client.MaxWait = 8 * time.Second

	_, err := client.FetchVehicles(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, []time.Duration{5 * time.Second, 8 * time.Second, 8 * time.Second}, sleeps.waits)
}

func TestFetchVehiclesServerErrorThenSuccess(t *testing.T) {
	var requests atomic.Int32
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.Write([]byte(vehiclesDocument))
	})

	vehicles, err := client.FetchVehicles(context.Background(), []string{"Red"})
	require.NoError(t, err)
	assert.Len(t, vehicles, 4)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeps.waits)
}

func TestFetchVehiclesServerErrorExhausted(t *testing.T) {
	client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchVehicles(context.Background(), []string{"Red"})

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FailureServer, fetchErr.Kind)
	assert.Equal(t, 3, fetchErr.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeps.waits)
}

func TestFetchVehiclesPermanentFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    FailureKind
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, kind: FailureClient, wantErr: ErrClient},
		{name: "forbidden", status: http.StatusForbidden, kind: FailureClient, wantErr: ErrClient},
		{name: "malformed json", status: http.StatusOK, body: `{"data": [`, kind: FailureMalformed, wantErr: ErrMalformed},
		{name: "data not a list", status: http.StatusOK, body: `{"data": {"id": "x"}}`, kind: FailureMalformed, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.FetchVehicles(context.Background(), []string{"Red"})

			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.kind, fetchErr.Kind)
			assert.Equal(t, 1, fetchErr.Attempts)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.EqualValues(t, 1, requests.Load())
			assert.Empty(t, sleeps.waits)
		})
	}
}

func TestFetchVehiclesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	cfg := config.Default().Upstream
	cfg.BaseURL = baseURL

	client := NewClient(cfg, nil)
	sleeps := &recordedSleeps{}
	client.Sleep = sleeps.sleep

	_, err := client.FetchVehicles(context.Background(), []string{"Red"})

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FailureTransport, fetchErr.Kind)
	assert.Equal(t, 3, fetchErr.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps.waits)
}

func TestFetchVehiclesCancelledDuringBackoff(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	ctx, cancel := context.WithCancel(context.Background())
	client.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := client.FetchVehicles(ctx, []string{"Red"})

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FailureCancelled, fetchErr.Kind)
	assert.Equal(t, 1, fetchErr.Attempts)
	assert.ErrorIs(t, err, context.Canceled)
}
