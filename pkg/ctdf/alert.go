package ctdf

import "time"

type AlertType string

const (
	AlertTypeBunching     AlertType = "bunching"
	AlertTypeSpeedAnomaly AlertType = "speed_anomaly"
	AlertTypeStalled      AlertType = "stalled"
)

type AlertSeverity string

const (
	AlertSeverityError   AlertSeverity = "error"
	AlertSeverityWarning AlertSeverity = "warning"
	AlertSeverityInfo    AlertSeverity = "info"
)

// Rank orders severities with the most severe first
func (s AlertSeverity) Rank() int {
	switch s {
	case AlertSeverityError:
		return 0
	case AlertSeverityWarning:
		return 1
	case AlertSeverityInfo:
		return 2
	default:
		return 3
	}
}

type Alert struct {
	Type     AlertType
	Severity AlertSeverity

	RouteID   string `json:",omitempty"`
	VehicleID string `json:",omitempty"`

	// Bunching
	VehicleID1         string  `json:",omitempty"`
	VehicleID2         string  `json:",omitempty"`
	TimeBetweenSeconds float64 `json:",omitempty"`

	// Speed anomaly
	Speed *float64 `json:",omitempty"`

	// Stalled
	LastUpdate *time.Time `json:",omitempty"`

	Message   string
	Timestamp time.Time
}
