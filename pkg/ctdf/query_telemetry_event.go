package ctdf

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

type QueryTelemetryEvents struct {
	RouteID string

	Since  time.Time
	Before time.Time
}

func (q *QueryTelemetryEvents) ToBson() bson.M {
	query := bson.M{}

	if q.RouteID != "" {
		query["routeid"] = q.RouteID
	} else {
		query["routeid"] = bson.M{"$ne": nil}
	}

	timestamp := bson.M{}
	if !q.Since.IsZero() {
		timestamp["$gte"] = q.Since
	}
	if !q.Before.IsZero() {
		timestamp["$lt"] = q.Before
	}
	if len(timestamp) > 0 {
		query["timestamp"] = timestamp
	}

	return query
}

type QueryRouteDelays struct {
	RouteID         string
	CalculatedSince time.Time
}

func (q *QueryRouteDelays) ToBson() bson.M {
	query := bson.M{"routeid": q.RouteID}

	if !q.CalculatedSince.IsZero() {
		query["calculatedat"] = bson.M{"$gte": q.CalculatedSince}
	}

	return query
}
