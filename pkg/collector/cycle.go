package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

type CycleOutcome string

const (
	CycleOutcomeSuccess         CycleOutcome = "success"
	CycleOutcomeEmpty           CycleOutcome = "empty"
	CycleOutcomeUpstreamFailure CycleOutcome = "upstream_failure"
	CycleOutcomeStorageFailure  CycleOutcome = "storage_failure"
	CycleOutcomePanic           CycleOutcome = "panic"
)

type CycleResult struct {
	ID          string
	CollectedAt time.Time
	Outcome     CycleOutcome

	Snapshots int
	Inserted  int
	Updated   int
	Events    int

	Duration time.Duration
	Err      error
}

// safeCycle runs a cycle and turns any panic into a failed result
func (c *Collector) safeCycle(ctx context.Context) *CycleResult {
	startTime := time.Now()

	var result *CycleResult
	var catcher panics.Catcher
	catcher.Try(func() {
		result = c.runCycle(ctx)
	})

	if recovered := catcher.Recovered(); recovered != nil {
		log.Error().
			Str("panic", fmt.Sprint(recovered.Value)).
			Str("stack", string(recovered.Stack)).
			Msg("Collection cycle panicked")

		result = &CycleResult{
			Outcome: CycleOutcomePanic,
			Err:     recovered.AsError(),
		}
	}

	result.Duration = time.Since(startTime)
	c.Metrics.ObserveCycle(string(result.Outcome), result.Duration)

	return result
}

func (c *Collector) runCycle(ctx context.Context) *CycleResult {
	result := &CycleResult{
		ID:          uuid.NewString(),
		CollectedAt: c.now(),
	}
	cycleLog := log.With().Str("cycle", result.ID).Logger()

	snapshots, err := c.Fetcher.FetchVehicles(ctx, c.Routes)
	if err != nil {
		cycleLog.Warn().Err(err).Msg("Upstream fetch failed, skipping cycle")

		result.Outcome = CycleOutcomeUpstreamFailure
		result.Err = err
		return result
	}

	result.Snapshots = len(snapshots)
	if len(snapshots) == 0 {
		cycleLog.Info().Msg("No vehicles returned, skipping cycle")

		result.Outcome = CycleOutcomeEmpty
		return result
	}

	vehicleIDs := make([]string, 0, len(snapshots))
	for _, snapshot := range snapshots {
		vehicleIDs = append(vehicleIDs, snapshot.VehicleID)
	}

	existing, err := c.Store.LoadVehicles(ctx, vehicleIDs)
	if err != nil {
		cycleLog.Error().Err(err).Msg("Failed to load current vehicles")

		result.Outcome = CycleOutcomeStorageFailure
		result.Err = err
		return result
	}

	staged := map[string]*ctdf.Vehicle{}
	var vehicles []*ctdf.Vehicle
	events := make([]*ctdf.TelemetryEvent, 0, len(snapshots))

	for _, snapshot := range snapshots {
		previous, seen := staged[snapshot.VehicleID]
		if !seen {
			previous = existing[snapshot.VehicleID]
		}

		vehicle, err := applySnapshot(previous, snapshot, result.CollectedAt)
		if err != nil {
			cycleLog.Error().Err(err).Str("vehicle", snapshot.VehicleID).Msg("Failed to apply snapshot")

			result.Outcome = CycleOutcomeStorageFailure
			result.Err = err
			return result
		}

		switch {
		case seen:
			// Repeated id within one response, the later snapshot wins
			*previous = *vehicle
		case previous == nil:
			result.Inserted++
		default:
			result.Updated++
		}

		if !seen {
			staged[snapshot.VehicleID] = vehicle
			vehicles = append(vehicles, vehicle)
		}

		events = append(events, ctdf.NewTelemetryEvent(result.ID, snapshot, result.CollectedAt))
	}

	if err := c.Store.CommitCycle(ctx, vehicles, events); err != nil {
		cycleLog.Error().Err(err).Msg("Failed to commit cycle, rolled back")

		result.Outcome = CycleOutcomeStorageFailure
		result.Err = err
		return result
	}

	result.Outcome = CycleOutcomeSuccess
	result.Events = len(events)

	collectedAt := result.CollectedAt
	c.lastSuccess.Store(&collectedAt)
	c.Metrics.ObserveCommit(len(events), collectedAt)

	cycleLog.Info().
		Int("vehicles", len(vehicles)).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("events", result.Events).
		Msg("Collection cycle committed")

	if c.Publisher != nil {
		if err := c.Publisher.PublishEvents(ctx, events); err != nil {
			cycleLog.Error().Err(err).Msg("Failed to publish telemetry events")
		}
	}

	return result
}

// applySnapshot builds the next state of a vehicle from its previous state and
// a new snapshot. previous is never modified.
func applySnapshot(previous *ctdf.Vehicle, snapshot *ctdf.VehicleSnapshot, collectedAt time.Time) (*ctdf.Vehicle, error) {
	vehicle := &ctdf.Vehicle{}

	if previous != nil {
		if err := copier.CopyWithOption(vehicle, previous, copier.Option{DeepCopy: true}); err != nil {
			return nil, err
		}
	}

	if err := copier.Copy(vehicle, snapshot); err != nil {
		return nil, err
	}

	vehicle.LastUpdated = collectedAt

	return vehicle, nil
}
