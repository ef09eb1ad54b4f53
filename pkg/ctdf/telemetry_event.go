package ctdf

import "time"

// TelemetryEvent is an append-only record of one vehicle sighting. Timestamp is
// the collection time of the cycle that observed it.
type TelemetryEvent struct {
	CycleID string `groups:"internal"`

	VehicleID string  `groups:"basic"`
	RouteID   *string `groups:"basic"`

	Latitude  *float64 `groups:"basic"`
	Longitude *float64 `groups:"basic"`
	Speed     *float64 `groups:"basic"`

	CurrentStatus VehicleStatus `groups:"basic"`

	Timestamp time.Time `groups:"basic"`
}

func NewTelemetryEvent(cycleID string, snapshot *VehicleSnapshot, timestamp time.Time) *TelemetryEvent {
	return &TelemetryEvent{
		CycleID:       cycleID,
		VehicleID:     snapshot.VehicleID,
		RouteID:       snapshot.RouteID,
		Latitude:      snapshot.Latitude,
		Longitude:     snapshot.Longitude,
		Speed:         snapshot.Speed,
		CurrentStatus: snapshot.CurrentStatus,
		Timestamp:     timestamp,
	}
}

func (e *TelemetryEvent) GetRouteID() string {
	if e.RouteID == nil {
		return ""
	}

	return *e.RouteID
}
