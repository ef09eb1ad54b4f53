package stats

import (
	"context"
	"math"
	"time"
)

type Store interface {
	CountTelemetryEvents(ctx context.Context, since time.Time) (int64, error)
	CountVehicles(ctx context.Context) (int64, error)
	DistinctRoutes(ctx context.Context) ([]string, error)
}

type RecordsStats struct {
	TotalTelemetryEvents int64
	RoutesMonitored      int64
	VehiclesTracked      int64

	EventsLastHour  int64
	EventsPerSecond float64

	CollectionIntervalSeconds float64
}

// Calculate counts the stored records as of now
func Calculate(ctx context.Context, store Store, collectionInterval time.Duration, now time.Time) (*RecordsStats, error) {
	totalEvents, err := store.CountTelemetryEvents(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	recentEvents, err := store.CountTelemetryEvents(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}

	routes, err := store.DistinctRoutes(ctx)
	if err != nil {
		return nil, err
	}

	vehicles, err := store.CountVehicles(ctx)
	if err != nil {
		return nil, err
	}

	return &RecordsStats{
		TotalTelemetryEvents:      totalEvents,
		RoutesMonitored:           int64(len(routes)),
		VehiclesTracked:           vehicles,
		EventsLastHour:            recentEvents,
		EventsPerSecond:           math.Round(float64(recentEvents)/36) / 100,
		CollectionIntervalSeconds: collectionInterval.Seconds(),
	}, nil
}
