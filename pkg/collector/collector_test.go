package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/util"
)

var testNow = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

type fetcherFunc func(ctx context.Context, routes []string) ([]*ctdf.VehicleSnapshot, error)

func (f fetcherFunc) FetchVehicles(ctx context.Context, routes []string) ([]*ctdf.VehicleSnapshot, error) {
	return f(ctx, routes)
}

func staticFetcher(snapshots ...*ctdf.VehicleSnapshot) fetcherFunc {
	return func(context.Context, []string) ([]*ctdf.VehicleSnapshot, error) {
		return snapshots, nil
	}
}

type memoryStore struct {
	mutex sync.Mutex

	vehicles map[string]*ctdf.Vehicle
	events   []*ctdf.TelemetryEvent
	commits  int

	loadErr   error
	commitErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{vehicles: map[string]*ctdf.Vehicle{}}
}

func (s *memoryStore) LoadVehicles(_ context.Context, vehicleIDs []string) (map[string]*ctdf.Vehicle, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	found := map[string]*ctdf.Vehicle{}
	for _, id := range vehicleIDs {
		if vehicle, exists := s.vehicles[id]; exists {
			stored := *vehicle
			found[id] = &stored
		}
	}

	return found, nil
}

func (s *memoryStore) CommitCycle(_ context.Context, vehicles []*ctdf.Vehicle, events []*ctdf.TelemetryEvent) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.commitErr != nil {
		return s.commitErr
	}

	for _, vehicle := range vehicles {
		stored := *vehicle
		s.vehicles[vehicle.VehicleID] = &stored
	}
	s.events = append(s.events, events...)
	s.commits++

	return nil
}

type recordingPublisher struct {
	published []*ctdf.TelemetryEvent
	err       error
}

func (p *recordingPublisher) PublishEvents(_ context.Context, events []*ctdf.TelemetryEvent) error {
	p.published = append(p.published, events...)
	return p.err
}

func snapshot(id string, route string, speed float64) *ctdf.VehicleSnapshot {
	return &ctdf.VehicleSnapshot{
		VehicleID:     id,
		RouteID:       util.Ptr(route),
		Latitude:      util.Ptr(42.35),
		Longitude:     util.Ptr(-71.06),
		Speed:         util.Ptr(speed),
		CurrentStatus: ctdf.VehicleStatusInTransitTo,
	}
}

func newTestCollector(fetcher Fetcher, store Store) *Collector {
	collector := New(fetcher, store, []string{"Red"}, time.Hour)
	collector.Now = func() time.Time { return testNow }

	return collector
}

func TestRunOnce(t *testing.T) {
	t.Run("InsertsVehiclesAndEvents", func(t *testing.T) {
		store := newMemoryStore()
		collector := newTestCollector(staticFetcher(snapshot("v1", "Red", 10), snapshot("v2", "Red", 20)), store)

		result, err := collector.RunOnce(context.Background())
		require.NoError(t, err)

		assert.Equal(t, CycleOutcomeSuccess, result.Outcome)
		assert.Equal(t, 2, result.Snapshots)
		assert.Equal(t, 2, result.Inserted)
		assert.Equal(t, 0, result.Updated)
		assert.Equal(t, 2, result.Events)
		assert.NotEmpty(t, result.ID)

		assert.Len(t, store.vehicles, 2)
		assert.Len(t, store.events, 2)
		assert.Equal(t, testNow, store.vehicles["v1"].LastUpdated)

		for _, event := range store.events {
			assert.Equal(t, result.ID, event.CycleID)
			assert.Equal(t, testNow, event.Timestamp)
		}

		require.NotNil(t, collector.LastSuccess())
		assert.Equal(t, testNow, *collector.LastSuccess())
	})

	t.Run("UpdatesExistingVehicle", func(t *testing.T) {
		store := newMemoryStore()
		store.vehicles["v1"] = &ctdf.Vehicle{
			VehicleID:   "v1",
			RouteID:     util.Ptr("Red"),
			RouteName:   util.Ptr("Red Line"),
			Speed:       util.Ptr(5.0),
			LastUpdated: testNow.Add(-time.Minute),
		}

		collector := newTestCollector(staticFetcher(snapshot("v1", "Red", 42)), store)

		result, err := collector.RunOnce(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 1, result.Updated)

		stored := store.vehicles["v1"]
		require.NotNil(t, stored.Speed)
		assert.Equal(t, 42.0, *stored.Speed)
		assert.Equal(t, testNow, stored.LastUpdated)
		assert.Len(t, store.vehicles, 1)
	})

	t.Run("RepeatedCyclesKeepOneVehicle", func(t *testing.T) {
		store := newMemoryStore()
		collector := newTestCollector(staticFetcher(snapshot("v1", "Red", 10)), store)

		for i := 0; i < 3; i++ {
			_, err := collector.RunOnce(context.Background())
			require.NoError(t, err)
		}

		assert.Len(t, store.vehicles, 1)
		assert.Len(t, store.events, 3)
		assert.Equal(t, 3, store.commits)
	})

	t.Run("DuplicateVehicleInResponse", func(t *testing.T) {
		store := newMemoryStore()
		collector := newTestCollector(staticFetcher(snapshot("v1", "Red", 10), snapshot("v1", "Red", 30)), store)

		result, err := collector.RunOnce(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, result.Inserted)
		assert.Equal(t, 2, result.Events)
		require.Len(t, store.vehicles, 1)
		assert.Equal(t, 30.0, *store.vehicles["v1"].Speed)
	})

	t.Run("UpstreamFailureWritesNothing", func(t *testing.T) {
		store := newMemoryStore()
		upstreamErr := errors.New("upstream unavailable")
		collector := newTestCollector(fetcherFunc(func(context.Context, []string) ([]*ctdf.VehicleSnapshot, error) {
			return nil, upstreamErr
		}), store)

		result, err := collector.RunOnce(context.Background())
		assert.ErrorIs(t, err, upstreamErr)
		assert.Equal(t, CycleOutcomeUpstreamFailure, result.Outcome)
		assert.Equal(t, 0, store.commits)
		assert.Nil(t, collector.LastSuccess())
	})

	t.Run("EmptyResponseWritesNothing", func(t *testing.T) {
		store := newMemoryStore()
		collector := newTestCollector(staticFetcher(), store)

		result, err := collector.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, CycleOutcomeEmpty, result.Outcome)
		assert.Equal(t, 0, store.commits)
		assert.Nil(t, collector.LastSuccess())
	})

	t.Run("StorageFailure", func(t *testing.T) {
		store := newMemoryStore()
		store.commitErr = errors.New("transaction aborted")
		publisher := &recordingPublisher{}

		collector := newTestCollector(staticFetcher(snapshot("v1", "Red", 10)), store)
		collector.Publisher = publisher

		result, err := collector.RunOnce(context.Background())
		assert.Error(t, err)
		assert.Equal(t, CycleOutcomeStorageFailure, result.Outcome)
		assert.Empty(t, store.vehicles)
		assert.Empty(t, publisher.published)
		assert.Nil(t, collector.LastSuccess())
	})

	t.Run("LoadFailure", func(t *testing.T) {
		store := newMemoryStore()
		store.loadErr = errors.New("connection reset")

		collector := newTestCollector(staticFetcher(snapshot("v1", "Red", 10)), store)

		result, err := collector.RunOnce(context.Background())
		assert.Error(t, err)
		assert.Equal(t, CycleOutcomeStorageFailure, result.Outcome)
	})

	t.Run("PanicIsRecovered", func(t *testing.T) {
		collector := newTestCollector(fetcherFunc(func(context.Context, []string) ([]*ctdf.VehicleSnapshot, error) {
			panic("decoder exploded")
		}), newMemoryStore())

		result, err := collector.RunOnce(context.Background())
		assert.Error(t, err)
		assert.Equal(t, CycleOutcomePanic, result.Outcome)

		_, err = collector.RunOnce(context.Background())
		assert.NotErrorIs(t, err, ErrCycleInProgress)
	})

	t.Run("PublishesCommittedEvents", func(t *testing.T) {
		publisher := &recordingPublisher{err: errors.New("redis down")}
		collector := newTestCollector(staticFetcher(snapshot("v1", "Red", 10)), newMemoryStore())
		collector.Publisher = publisher

		result, err := collector.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, CycleOutcomeSuccess, result.Outcome)
		assert.Len(t, publisher.published, 1)
	})
}

func TestTickDropsWhileCycleRunning(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})

	store := newMemoryStore()
	collector := newTestCollector(fetcherFunc(func(context.Context, []string) ([]*ctdf.VehicleSnapshot, error) {
		close(started)
		<-unblock
		return []*ctdf.VehicleSnapshot{snapshot("v1", "Red", 10)}, nil
	}), store)

	ctx := context.Background()

	assert.True(t, collector.Tick(ctx))
	<-started

	assert.False(t, collector.Tick(ctx))
	assert.False(t, collector.Tick(ctx))
	assert.Equal(t, int64(2), collector.DroppedTicks())

	_, err := collector.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(unblock)
	collector.cycles.Wait()

	assert.Equal(t, 1, store.commits)
}

func TestStartStop(t *testing.T) {
	cycles := make(chan struct{}, 10)
	collector := newTestCollector(fetcherFunc(func(context.Context, []string) ([]*ctdf.VehicleSnapshot, error) {
		cycles <- struct{}{}
		return nil, nil
	}), newMemoryStore())

	require.NoError(t, collector.Start(context.Background()))
	assert.Equal(t, StateRunning, collector.State())
	assert.ErrorIs(t, collector.Start(context.Background()), ErrAlreadyRunning)

	select {
	case <-cycles:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle did not run on start")
	}

	collector.Stop()
	assert.Equal(t, StateStopped, collector.State())

	collector.Stop()

	require.NoError(t, collector.Start(context.Background()))
	collector.Stop()
}
