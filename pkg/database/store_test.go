package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transit-telemetry/pkg/config"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestVehicleWriteModelsUpsertByVehicleID(t *testing.T) {
	vehicles := []*ctdf.Vehicle{{VehicleID: "R-1"}, {VehicleID: "R-2"}}

	models := vehicleWriteModels(vehicles)
	require.Len(t, models, 2)

	model, ok := models[1].(*mongo.ReplaceOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.M{"vehicleid": "R-2"}, model.Filter)
	assert.Same(t, vehicles[1], model.Replacement)
	require.NotNil(t, model.Upsert)
	assert.True(t, *model.Upsert)
}

func TestRouteDelayWriteModelsKeyedOnRouteHour(t *testing.T) {
	models := routeDelayWriteModels([]*ctdf.RouteDelay{{RouteID: "Red", HourOfDay: 7}})
	require.Len(t, models, 1)

	model := models[0].(*mongo.ReplaceOneModel)
	assert.Equal(t, bson.M{"routeid": "Red", "hourofday": 7}, model.Filter)
}

func TestCollectionIndexesUnique(t *testing.T) {
	indexes := collectionIndexes()

	vehicleIndex := indexes[VehiclesCollection][0]
	assert.Equal(t, bson.D{{Key: "vehicleid", Value: 1}}, vehicleIndex.Keys)
	assert.True(t, *vehicleIndex.Options.Unique)

	delayIndex := indexes[RouteDelaysCollection][0]
	assert.True(t, *delayIndex.Options.Unique)
}

// Runs against a real replica set when TELEMETRY_TEST_MONGODB_CONNECTION is set
func TestStoreCommitCycleIsIdempotent(t *testing.T) {
	connection := os.Getenv("TELEMETRY_TEST_MONGODB_CONNECTION")
	if connection == "" {
		t.Skip("TELEMETRY_TEST_MONGODB_CONNECTION not set")
	}

	ctx := context.Background()
	instance, err := Connect(ctx, config.MongoDBConfig{
		Connection: connection,
		Database:   "telemetry_test_" + time.Now().Format("20060102150405"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		instance.Database.Drop(ctx)
		instance.Disconnect(ctx)
	})

	store := NewStore(instance)
	route := "Red"
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := &ctdf.Vehicle{VehicleID: "R-1", RouteID: &route, CurrentStatus: ctdf.VehicleStatusStoppedAt, LastUpdated: now}
	require.NoError(t, store.CommitCycle(ctx, []*ctdf.Vehicle{first}, []*ctdf.TelemetryEvent{{VehicleID: "R-1", RouteID: &route, Timestamp: now}}))

	second := &ctdf.Vehicle{VehicleID: "R-1", RouteID: &route, CurrentStatus: ctdf.VehicleStatusInTransitTo, LastUpdated: now.Add(10 * time.Second)}
	require.NoError(t, store.CommitCycle(ctx, []*ctdf.Vehicle{second}, []*ctdf.TelemetryEvent{{VehicleID: "R-1", RouteID: &route, Timestamp: now.Add(10 * time.Second)}}))

	count, err := store.CountVehicles(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	loaded, err := store.LoadVehicles(ctx, []string{"R-1"})
	require.NoError(t, err)
	assert.Equal(t, ctdf.VehicleStatusInTransitTo, loaded["R-1"].CurrentStatus)
	assert.Equal(t, now.Add(10*time.Second), loaded["R-1"].LastUpdated)

	events, err := store.CountTelemetryEvents(ctx, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, events)
}
