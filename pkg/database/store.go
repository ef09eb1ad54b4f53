package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the MongoDB backed telemetry store shared by the collector and the
// analytics readers.
type Store struct {
	instance *Instance
}

func NewStore(instance *Instance) *Store {
	return &Store{instance: instance}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.instance.Ping(ctx)
}

// LoadVehicles returns the existing vehicles for the given ids keyed by VehicleID
func (s *Store) LoadVehicles(ctx context.Context, vehicleIDs []string) (map[string]*ctdf.Vehicle, error) {
	vehicles := map[string]*ctdf.Vehicle{}
	if len(vehicleIDs) == 0 {
		return vehicles, nil
	}

	query := ctdf.QueryVehicles{VehicleIDs: vehicleIDs}
	found, err := s.FindVehicles(ctx, &query, 0)
	if err != nil {
		return nil, err
	}

	for _, vehicle := range found {
		vehicles[vehicle.VehicleID] = vehicle
	}

	return vehicles, nil
}

// CommitCycle upserts the vehicles and appends the events in one transaction
func (s *Store) CommitCycle(ctx context.Context, vehicles []*ctdf.Vehicle, events []*ctdf.TelemetryEvent) error {
	vehicleModels := vehicleWriteModels(vehicles)
	eventDocuments := make([]interface{}, 0, len(events))
	for _, event := range events {
		eventDocuments = append(eventDocuments, event)
	}

	return s.instance.WithTransaction(ctx, func(sessionContext mongo.SessionContext) error {
		if len(vehicleModels) > 0 {
			_, err := s.instance.GetCollection(VehiclesCollection).BulkWrite(sessionContext, vehicleModels, options.BulkWrite().SetOrdered(true))
			if err != nil {
				return fmt.Errorf("upserting vehicles: %w", err)
			}
		}

		if len(eventDocuments) > 0 {
			_, err := s.instance.GetCollection(TelemetryEventsCollection).InsertMany(sessionContext, eventDocuments)
			if err != nil {
				return fmt.Errorf("appending telemetry events: %w", err)
			}
		}

		return nil
	})
}

// FindVehicles sorts by LastUpdated when sortDirection is 1 or -1
func (s *Store) FindVehicles(ctx context.Context, query *ctdf.QueryVehicles, sortDirection int) ([]*ctdf.Vehicle, error) {
	opts := options.Find()
	if sortDirection != 0 {
		opts.SetSort(bson.D{{Key: "lastupdated", Value: sortDirection}})
	}

	cursor, err := s.instance.GetCollection(VehiclesCollection).Find(ctx, query.ToBson(), opts)
	if err != nil {
		return nil, fmt.Errorf("finding vehicles: %w", err)
	}

	vehicles := []*ctdf.Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("decoding vehicles: %w", err)
	}

	return vehicles, nil
}

// DistinctRoutes lists every non empty route id that currently has a vehicle
func (s *Store) DistinctRoutes(ctx context.Context) ([]string, error) {
	values, err := s.instance.GetCollection(VehiclesCollection).Distinct(ctx, "routeid", bson.M{"routeid": bson.M{"$nin": bson.A{nil, ""}}})
	if err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}

	routes := make([]string, 0, len(values))
	for _, value := range values {
		if routeID, ok := value.(string); ok {
			routes = append(routes, routeID)
		}
	}

	return routes, nil
}

func (s *Store) CountVehicles(ctx context.Context) (int64, error) {
	return s.instance.GetCollection(VehiclesCollection).CountDocuments(ctx, bson.M{})
}

// LatestVehicleUpdate returns the newest LastUpdated or nil when no vehicle exists
func (s *Store) LatestVehicleUpdate(ctx context.Context) (*time.Time, error) {
	var vehicle ctdf.Vehicle
	err := s.instance.GetCollection(VehiclesCollection).FindOne(
		ctx,
		bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "lastupdated", Value: -1}}),
	).Decode(&vehicle)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	lastUpdated := vehicle.LastUpdated.UTC()
	return &lastUpdated, nil
}

// FindTelemetryEvents orders by route then timestamp
func (s *Store) FindTelemetryEvents(ctx context.Context, query *ctdf.QueryTelemetryEvents) ([]*ctdf.TelemetryEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "routeid", Value: 1}, {Key: "timestamp", Value: 1}})

	cursor, err := s.instance.GetCollection(TelemetryEventsCollection).Find(ctx, query.ToBson(), opts)
	if err != nil {
		return nil, fmt.Errorf("finding telemetry events: %w", err)
	}

	events := []*ctdf.TelemetryEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decoding telemetry events: %w", err)
	}

	return events, nil
}

func (s *Store) CountTelemetryEvents(ctx context.Context, since time.Time) (int64, error) {
	filter := bson.M{}
	if !since.IsZero() {
		filter["timestamp"] = bson.M{"$gte": since}
	}

	return s.instance.GetCollection(TelemetryEventsCollection).CountDocuments(ctx, filter)
}

// EarliestEventTimestamp returns the oldest event timestamp or nil when there are none
func (s *Store) EarliestEventTimestamp(ctx context.Context) (*time.Time, error) {
	var event ctdf.TelemetryEvent
	err := s.instance.GetCollection(TelemetryEventsCollection).FindOne(
		ctx,
		bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	).Decode(&event)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	timestamp := event.Timestamp.UTC()
	return &timestamp, nil
}

// StreamTelemetryEvents calls fn for every event older than before, ordered by
// route then timestamp. Events without a route come first.
func (s *Store) StreamTelemetryEvents(ctx context.Context, before time.Time, fn func(event *ctdf.TelemetryEvent) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "routeid", Value: 1}, {Key: "timestamp", Value: 1}})

	cursor, err := s.instance.GetCollection(TelemetryEventsCollection).Find(ctx, bson.M{"timestamp": bson.M{"$lt": before}}, opts)
	if err != nil {
		return fmt.Errorf("finding telemetry events: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var event ctdf.TelemetryEvent
		if err := cursor.Decode(&event); err != nil {
			return fmt.Errorf("decoding telemetry event: %w", err)
		}

		if err := fn(&event); err != nil {
			return err
		}
	}

	return cursor.Err()
}

func (s *Store) DeleteTelemetryEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.instance.GetCollection(TelemetryEventsCollection).DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("deleting telemetry events: %w", err)
	}

	return result.DeletedCount, nil
}

// ReplaceRouteDelays overwrites the route+hour rows in a single transaction
func (s *Store) ReplaceRouteDelays(ctx context.Context, delays []*ctdf.RouteDelay) error {
	if len(delays) == 0 {
		return nil
	}

	models := routeDelayWriteModels(delays)

	return s.instance.WithTransaction(ctx, func(sessionContext mongo.SessionContext) error {
		_, err := s.instance.GetCollection(RouteDelaysCollection).BulkWrite(sessionContext, models, options.BulkWrite().SetOrdered(true))
		if err != nil {
			return fmt.Errorf("writing route delays: %w", err)
		}

		return nil
	})
}

func (s *Store) FindRouteDelays(ctx context.Context, query *ctdf.QueryRouteDelays) ([]*ctdf.RouteDelay, error) {
	opts := options.Find().SetSort(bson.D{{Key: "hourofday", Value: 1}})

	cursor, err := s.instance.GetCollection(RouteDelaysCollection).Find(ctx, query.ToBson(), opts)
	if err != nil {
		return nil, fmt.Errorf("finding route delays: %w", err)
	}

	delays := []*ctdf.RouteDelay{}
	if err := cursor.All(ctx, &delays); err != nil {
		return nil, fmt.Errorf("decoding route delays: %w", err)
	}

	return delays, nil
}

func vehicleWriteModels(vehicles []*ctdf.Vehicle) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(vehicles))

	for _, vehicle := range vehicles {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"vehicleid": vehicle.VehicleID}).
			SetReplacement(vehicle).
			SetUpsert(true))
	}

	return models
}

func routeDelayWriteModels(delays []*ctdf.RouteDelay) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(delays))

	for _, delay := range delays {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"routeid": delay.RouteID, "hourofday": delay.HourOfDay}).
			SetReplacement(delay).
			SetUpsert(true))
	}

	return models
}
