package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	VehiclesCollection        = "vehicles"
	TelemetryEventsCollection = "telemetry_events"
	RouteDelaysCollection     = "route_delays"
)

func collectionIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		VehiclesCollection: {
			{
				Keys:    bson.D{{Key: "vehicleid", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "routeid", Value: 1}, {Key: "lastupdated", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "lastupdated", Value: 1}},
			},
		},
		TelemetryEventsCollection: {
			{
				Keys: bson.D{{Key: "vehicleid", Value: 1}, {Key: "timestamp", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "routeid", Value: 1}, {Key: "timestamp", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "timestamp", Value: 1}},
			},
		},
		RouteDelaysCollection: {
			{
				Keys:    bson.D{{Key: "routeid", Value: 1}, {Key: "hourofday", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "routeid", Value: 1}, {Key: "calculatedat", Value: 1}},
			},
		},
	}
}

func (i *Instance) createIndexes(ctx context.Context) {
	for collectionName, indexes := range collectionIndexes() {
		_, err := i.GetCollection(collectionName).Indexes().CreateMany(ctx, indexes, options.CreateIndexes())
		if err != nil {
			log.Error().Err(err).Str("collection", collectionName).Msg("Creating Index")
		}
	}
}
