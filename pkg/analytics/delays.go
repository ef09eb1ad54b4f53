package analytics

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/util"
)

// CalculateRouteDelays recomputes the per hour-of-day delay rows for a route
// from the events of the trailing hoursBack hours. Storage failures are
// returned and leave existing rows untouched.
func (a *Analyzer) CalculateRouteDelays(ctx context.Context, routeID string, hoursBack int) error {
	now := a.now()

	events, err := a.Store.FindTelemetryEvents(ctx, &ctdf.QueryTelemetryEvents{
		RouteID: routeID,
		Since:   now.Add(-time.Duration(hoursBack) * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("loading events for route %s: %w", routeID, err)
	}

	delays := ComputeRouteDelays(routeID, events, a.Config.ExpectedHeadway(routeID), now)

	if err := a.Store.ReplaceRouteDelays(ctx, delays); err != nil {
		return fmt.Errorf("storing delays for route %s: %w", routeID, err)
	}

	log.Info().
		Str("route", routeID).
		Int("events", len(events)).
		Int("hours", len(delays)).
		Msg("Calculated route delays")

	return nil
}

// GetDelayHistory returns the delay rows for a route calculated within the
// trailing window, ordered by hour of day
func (a *Analyzer) GetDelayHistory(ctx context.Context, routeID string, hoursBack int) ([]*ctdf.RouteDelay, error) {
	delays, err := a.Store.FindRouteDelays(ctx, &ctdf.QueryRouteDelays{
		RouteID:         routeID,
		CalculatedSince: a.now().Add(-time.Duration(hoursBack) * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("loading delay history for route %s: %w", routeID, err)
	}

	slices.SortStableFunc(delays, func(a, b *ctdf.RouteDelay) int {
		return a.HourOfDay - b.HourOfDay
	})

	return delays, nil
}

// ComputeRouteDelays groups events by UTC hour of day then vehicle. Every gap
// between consecutive sightings of a vehicle within an hour contributes one
// sample of gap minus the expected headway. Hours without samples are omitted.
func ComputeRouteDelays(routeID string, events []*ctdf.TelemetryEvent, expectedHeadway float64, calculatedAt time.Time) []*ctdf.RouteDelay {
	hourVehicles := map[int]map[string][]time.Time{}

	for _, event := range events {
		if event.GetRouteID() != routeID {
			continue
		}

		hour := util.HourOfDay(event.Timestamp)
		if hourVehicles[hour] == nil {
			hourVehicles[hour] = map[string][]time.Time{}
		}

		hourVehicles[hour][event.VehicleID] = append(hourVehicles[hour][event.VehicleID], event.Timestamp)
	}

	var delays []*ctdf.RouteDelay

	for hour := 0; hour < 24; hour++ {
		vehicles, ok := hourVehicles[hour]
		if !ok {
			continue
		}

		var total float64
		samples := 0

		// Fixed order keeps the floating point sum identical across recomputations
		vehicleIDs := slices.Sorted(maps.Keys(vehicles))

		for _, vehicleID := range vehicleIDs {
			timestamps := vehicles[vehicleID]
			if len(timestamps) < 2 {
				continue
			}

			slices.SortStableFunc(timestamps, func(a, b time.Time) int {
				return a.Compare(b)
			})

			for i := 1; i < len(timestamps); i++ {
				gap := util.MinutesBetween(timestamps[i-1], timestamps[i])
				total += gap - expectedHeadway
				samples++
			}
		}

		if samples == 0 {
			continue
		}

		delays = append(delays, &ctdf.RouteDelay{
			RouteID:         routeID,
			HourOfDay:       hour,
			AvgDelayMinutes: total / float64(samples),
			SampleCount:     samples,
			CalculatedAt:    calculatedAt,
		})
	}

	return delays
}
