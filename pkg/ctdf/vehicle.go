package ctdf

import "time"

type VehicleStatus string

const (
	VehicleStatusStoppedAt   VehicleStatus = "STOPPED_AT"
	VehicleStatusInTransitTo VehicleStatus = "IN_TRANSIT_TO"
	VehicleStatusIncomingAt  VehicleStatus = "INCOMING_AT"
)

// VehicleSnapshot is a single vehicle as reported by one upstream poll. It is
// never stored directly.
type VehicleSnapshot struct {
	VehicleID string

	RouteID   *string
	RouteName *string

	Latitude  *float64
	Longitude *float64
	Bearing   *int
	Speed     *float64

	CurrentStatus VehicleStatus

	UpdatedAt *time.Time
}

func (s *VehicleSnapshot) HasPosition() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Vehicle is the current known state of a vehicle, one document per VehicleID.
type Vehicle struct {
	VehicleID string `groups:"basic"`

	RouteID   *string `groups:"basic"`
	RouteName *string `groups:"basic"`

	Latitude  *float64 `groups:"basic"`
	Longitude *float64 `groups:"basic"`
	Bearing   *int     `groups:"basic"`
	Speed     *float64 `groups:"basic"`

	CurrentStatus VehicleStatus `groups:"basic"`

	UpdatedAt   *time.Time `groups:"detailed"`
	LastUpdated time.Time  `groups:"basic"`
}

func (v *Vehicle) HasPosition() bool {
	return v.Latitude != nil && v.Longitude != nil
}

func (v *Vehicle) GetRouteID() string {
	if v.RouteID == nil {
		return ""
	}

	return *v.RouteID
}
