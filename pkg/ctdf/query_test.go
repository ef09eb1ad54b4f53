package ctdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestQueryVehiclesToBson(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limit := 60.0

	query := QueryVehicles{
		RouteID:      "Red",
		UpdatedSince: since,
		HasPosition:  true,
		SpeedAbove:   &limit,
	}

	assert.Equal(t, bson.M{
		"routeid":     "Red",
		"lastupdated": bson.M{"$gte": since},
		"latitude":    bson.M{"$ne": nil},
		"longitude":   bson.M{"$ne": nil},
		"speed":       bson.M{"$ne": nil, "$gt": 60.0},
	}, query.ToBson())
}

func TestQueryVehiclesStalled(t *testing.T) {
	before := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	query := QueryVehicles{
		UpdatedBefore: before,
		CurrentStatus: VehicleStatusInTransitTo,
	}

	assert.Equal(t, bson.M{
		"lastupdated":   bson.M{"$lt": before},
		"currentstatus": VehicleStatusInTransitTo,
	}, query.ToBson())
}

func TestQueryTelemetryEventsAnyRoute(t *testing.T) {
	since := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)

	query := QueryTelemetryEvents{Since: since}

	assert.Equal(t, bson.M{
		"routeid":   bson.M{"$ne": nil},
		"timestamp": bson.M{"$gte": since},
	}, query.ToBson())
}

func TestAlertSeverityRank(t *testing.T) {
	assert.Less(t, AlertSeverityError.Rank(), AlertSeverityWarning.Rank())
	assert.Less(t, AlertSeverityWarning.Rank(), AlertSeverityInfo.Rank())
	assert.Less(t, AlertSeverityInfo.Rank(), AlertSeverity("unknown").Rank())
}
