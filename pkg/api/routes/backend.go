package routes

import (
	"context"
	"time"

	"github.com/travigo/transit-telemetry/pkg/alerts"
	"github.com/travigo/transit-telemetry/pkg/analytics"
	"github.com/travigo/transit-telemetry/pkg/cachedresults"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

type Store interface {
	Ping(ctx context.Context) error

	FindVehicles(ctx context.Context, query *ctdf.QueryVehicles, sortDirection int) ([]*ctdf.Vehicle, error)
	CountVehicles(ctx context.Context) (int64, error)
	DistinctRoutes(ctx context.Context) ([]string, error)
	LatestVehicleUpdate(ctx context.Context) (*time.Time, error)

	CountTelemetryEvents(ctx context.Context, since time.Time) (int64, error)
	EarliestEventTimestamp(ctx context.Context) (*time.Time, error)
}

// Backend holds everything the route handlers read from
type Backend struct {
	Store    Store
	Analyzer *analytics.Analyzer
	Detector *alerts.Detector
	Cache    *cachedresults.Cache

	Config *config.Config

	Now func() time.Time
}

func (b *Backend) now() time.Time {
	if b.Now == nil {
		return time.Now().UTC()
	}

	return b.Now().UTC()
}
