// Package analytics derives delay, headway and route efficiency figures from the
// stored telemetry events.
package analytics

import (
	"context"
	"time"

	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

type Store interface {
	FindTelemetryEvents(ctx context.Context, query *ctdf.QueryTelemetryEvents) ([]*ctdf.TelemetryEvent, error)
	ReplaceRouteDelays(ctx context.Context, delays []*ctdf.RouteDelay) error
	FindRouteDelays(ctx context.Context, query *ctdf.QueryRouteDelays) ([]*ctdf.RouteDelay, error)
}

type Analyzer struct {
	Store  Store
	Config config.AnalyticsConfig

	Now func() time.Time
}

func NewAnalyzer(store Store, cfg config.AnalyticsConfig) *Analyzer {
	return &Analyzer{
		Store:  store,
		Config: cfg,
		Now:    time.Now,
	}
}

func (a *Analyzer) now() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}

	return a.Now().UTC()
}
