package ctdf

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

type QueryVehicles struct {
	VehicleIDs []string
	RouteID    string

	UpdatedSince  time.Time
	UpdatedBefore time.Time

	CurrentStatus VehicleStatus

	HasPosition bool

	SpeedAbove *float64
}

func (q *QueryVehicles) ToBson() bson.M {
	query := bson.M{}

	if len(q.VehicleIDs) > 0 {
		query["vehicleid"] = bson.M{"$in": q.VehicleIDs}
	}

	if q.RouteID != "" {
		query["routeid"] = q.RouteID
	}

	lastUpdated := bson.M{}
	if !q.UpdatedSince.IsZero() {
		lastUpdated["$gte"] = q.UpdatedSince
	}
	if !q.UpdatedBefore.IsZero() {
		lastUpdated["$lt"] = q.UpdatedBefore
	}
	if len(lastUpdated) > 0 {
		query["lastupdated"] = lastUpdated
	}

	if q.CurrentStatus != "" {
		query["currentstatus"] = q.CurrentStatus
	}

	if q.HasPosition {
		query["latitude"] = bson.M{"$ne": nil}
		query["longitude"] = bson.M{"$ne": nil}
	}

	if q.SpeedAbove != nil {
		query["speed"] = bson.M{"$ne": nil, "$gt": *q.SpeedAbove}
	}

	return query
}
