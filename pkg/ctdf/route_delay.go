package ctdf

import "time"

type RouteDelay struct {
	RouteID   string `groups:"basic" csv:"route_id"`
	HourOfDay int    `groups:"basic" csv:"hour_of_day"`

	AvgDelayMinutes float64 `groups:"basic" csv:"avg_delay_minutes"`
	SampleCount     int     `groups:"basic" csv:"sample_count"`

	CalculatedAt time.Time `groups:"basic" csv:"calculated_at"`
}
