package alerts

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

const maxRouteWorkers = 4

type Store interface {
	FindVehicles(ctx context.Context, query *ctdf.QueryVehicles, sortDirection int) ([]*ctdf.Vehicle, error)
	DistinctRoutes(ctx context.Context) ([]string, error)
}

// Detector scans current vehicle state for bunching, speed anomalies and
// stalled vehicles. It keeps no state between calls.
type Detector struct {
	Store  Store
	Config config.AnalyticsConfig

	Now func() time.Time
}

func NewDetector(store Store, cfg config.AnalyticsConfig) *Detector {
	return &Detector{
		Store:  store,
		Config: cfg,
		Now:    time.Now,
	}
}

func (d *Detector) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}

	return d.Now().UTC()
}

// DetectBunching flags adjacent recently updated vehicles on a route whose
// updates are less than the bunching threshold apart
func (d *Detector) DetectBunching(ctx context.Context, routeID string) ([]*ctdf.Alert, error) {
	now := d.now()

	vehicles, err := d.Store.FindVehicles(ctx, &ctdf.QueryVehicles{
		RouteID:      routeID,
		UpdatedSince: now.Add(-d.Config.RecentWindow),
		HasPosition:  true,
	}, 1)
	if err != nil {
		return nil, fmt.Errorf("loading vehicles for bunching on %s: %w", routeID, err)
	}

	alerts := []*ctdf.Alert{}

	for i := 0; i+1 < len(vehicles); i++ {
		first := vehicles[i]
		second := vehicles[i+1]

		if !first.HasPosition() || !second.HasPosition() {
			continue
		}

		gap := second.LastUpdated.Sub(first.LastUpdated)
		if gap <= 0 || gap >= d.Config.BunchingThreshold {
			continue
		}

		alerts = append(alerts, &ctdf.Alert{
			Type:               ctdf.AlertTypeBunching,
			Severity:           ctdf.AlertSeverityWarning,
			RouteID:            routeID,
			VehicleID1:         first.VehicleID,
			VehicleID2:         second.VehicleID,
			TimeBetweenSeconds: gap.Seconds(),
			Message:            fmt.Sprintf("Vehicles %s and %s are %.0fs apart", first.VehicleID, second.VehicleID, gap.Seconds()),
			Timestamp:          now,
		})
	}

	return alerts, nil
}

func (d *Detector) DetectSpeedAnomalies(ctx context.Context, routeID string) ([]*ctdf.Alert, error) {
	now := d.now()
	threshold := d.Config.SpeedThreshold

	vehicles, err := d.Store.FindVehicles(ctx, &ctdf.QueryVehicles{
		RouteID:      routeID,
		UpdatedSince: now.Add(-d.Config.RecentWindow),
		SpeedAbove:   &threshold,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("loading vehicles for speed anomalies on %s: %w", routeID, err)
	}

	alerts := []*ctdf.Alert{}

	for _, vehicle := range vehicles {
		if vehicle.Speed == nil || *vehicle.Speed <= threshold {
			continue
		}

		speed := *vehicle.Speed
		alerts = append(alerts, &ctdf.Alert{
			Type:      ctdf.AlertTypeSpeedAnomaly,
			Severity:  ctdf.AlertSeverityWarning,
			RouteID:   routeID,
			VehicleID: vehicle.VehicleID,
			Speed:     &speed,
			Message:   fmt.Sprintf("Vehicle %s reported speed %.1f", vehicle.VehicleID, speed),
			Timestamp: now,
		})
	}

	return alerts, nil
}

// DetectStalled is system wide, it flags in transit vehicles that have not
// been updated within the stalled window
func (d *Detector) DetectStalled(ctx context.Context) ([]*ctdf.Alert, error) {
	now := d.now()

	vehicles, err := d.Store.FindVehicles(ctx, &ctdf.QueryVehicles{
		UpdatedBefore: now.Add(-d.Config.StalledAfter),
		CurrentStatus: ctdf.VehicleStatusInTransitTo,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("loading stalled vehicles: %w", err)
	}

	alerts := []*ctdf.Alert{}

	for _, vehicle := range vehicles {
		lastUpdate := vehicle.LastUpdated.UTC()

		alerts = append(alerts, &ctdf.Alert{
			Type:       ctdf.AlertTypeStalled,
			Severity:   ctdf.AlertSeverityInfo,
			RouteID:    vehicle.GetRouteID(),
			VehicleID:  vehicle.VehicleID,
			LastUpdate: &lastUpdate,
			Message:    fmt.Sprintf("Vehicle %s has not reported since %s", vehicle.VehicleID, lastUpdate.Format(time.RFC3339)),
			Timestamp:  now,
		})
	}

	return alerts, nil
}

// GetAllAlerts runs the route detectors over one route, or every route with a
// vehicle when routeID is empty, then adds the stalled vehicles. Alerts are
// ordered by severity then timestamp.
func (d *Detector) GetAllAlerts(ctx context.Context, routeID string) ([]*ctdf.Alert, error) {
	routes := []string{routeID}
	if routeID == "" {
		var err error
		routes, err = d.Store.DistinctRoutes(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing routes: %w", err)
		}
		slices.Sort(routes)
	}

	type routeAlerts struct {
		index  int
		alerts []*ctdf.Alert
	}

	routePool := pool.NewWithResults[routeAlerts]().
		WithContext(ctx).
		WithMaxGoroutines(maxRouteWorkers)

	for index, route := range routes {
		routePool.Go(func(ctx context.Context) (routeAlerts, error) {
			bunching, err := d.DetectBunching(ctx, route)
			if err != nil {
				return routeAlerts{}, err
			}

			speed, err := d.DetectSpeedAnomalies(ctx, route)
			if err != nil {
				return routeAlerts{}, err
			}

			return routeAlerts{index: index, alerts: append(bunching, speed...)}, nil
		})
	}

	results, err := routePool.Wait()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b routeAlerts) int {
		return a.index - b.index
	})

	all := []*ctdf.Alert{}
	for _, result := range results {
		all = append(all, result.alerts...)
	}

	stalled, err := d.DetectStalled(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, stalled...)

	SortAlerts(all)

	return all, nil
}

// SortAlerts orders by severity rank then timestamp, keeping the detection order for ties
func SortAlerts(alerts []*ctdf.Alert) {
	slices.SortStableFunc(alerts, func(a, b *ctdf.Alert) int {
		if rankDifference := a.Severity.Rank() - b.Severity.Rank(); rankDifference != 0 {
			return rankDifference
		}

		return a.Timestamp.Compare(b.Timestamp)
	})
}
