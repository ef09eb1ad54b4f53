package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/util"
)

const maxReturnedHeadways = 100

type HeadwayStats struct {
	RouteID string

	SampleCount       int
	AvgHeadwayMinutes float64
	MinHeadwayMinutes float64
	MaxHeadwayMinutes float64

	// Headways holds at most the first 100 samples, the statistics use all of them
	Headways []float64
}

// AnalyzeHeadways computes live headway statistics over the trailing headway
// window, for one route or every route when routeID is empty. Routes without
// samples are left out.
func (a *Analyzer) AnalyzeHeadways(ctx context.Context, routeID string) (map[string]*HeadwayStats, error) {
	samples, err := a.headwaySamples(ctx, routeID)
	if err != nil {
		return nil, err
	}

	stats := map[string]*HeadwayStats{}
	for route, headways := range samples {
		stats[route] = summariseHeadways(route, headways)
	}

	return stats, nil
}

func (a *Analyzer) headwaySamples(ctx context.Context, routeID string) (map[string][]float64, error) {
	events, err := a.Store.FindTelemetryEvents(ctx, &ctdf.QueryTelemetryEvents{
		RouteID: routeID,
		Since:   a.now().Add(-a.Config.HeadwayWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("loading events for headway analysis: %w", err)
	}

	return HeadwaySamples(events), nil
}

// HeadwaySamples walks events ordered by route then time. Within a route the
// first sighting of a vehicle seeds its last seen time, every later sighting
// emits the gap from the previous one in minutes.
func HeadwaySamples(events []*ctdf.TelemetryEvent) map[string][]float64 {
	samples := map[string][]float64{}
	lastSeen := map[string]map[string]*ctdf.TelemetryEvent{}

	for _, event := range events {
		route := event.GetRouteID()
		if route == "" {
			continue
		}

		if lastSeen[route] == nil {
			lastSeen[route] = map[string]*ctdf.TelemetryEvent{}
		}

		if previous, ok := lastSeen[route][event.VehicleID]; ok {
			samples[route] = append(samples[route], util.MinutesBetween(previous.Timestamp, event.Timestamp))
		}

		lastSeen[route][event.VehicleID] = event
	}

	return samples
}

func summariseHeadways(routeID string, headways []float64) *HeadwayStats {
	stats := &HeadwayStats{
		RouteID:           routeID,
		SampleCount:       len(headways),
		MinHeadwayMinutes: math.Inf(1),
		MaxHeadwayMinutes: math.Inf(-1),
	}

	var total float64
	for _, headway := range headways {
		total += headway
		stats.MinHeadwayMinutes = math.Min(stats.MinHeadwayMinutes, headway)
		stats.MaxHeadwayMinutes = math.Max(stats.MaxHeadwayMinutes, headway)
	}
	stats.AvgHeadwayMinutes = total / float64(len(headways))

	returned := min(len(headways), maxReturnedHeadways)
	stats.Headways = append([]float64{}, headways[:returned]...)

	return stats
}
