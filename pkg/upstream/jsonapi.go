package upstream

import (
	"encoding/json"
	"math"
	"time"

	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

type jsonAPIDocument struct {
	Data     []jsonAPIVehicle `json:"data"`
	Included []jsonAPIRoute   `json:"included"`
}

type jsonAPIVehicle struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		CurrentStatus *string  `json:"current_status"`
		Bearing       *float64 `json:"bearing"`
		Latitude      *float64 `json:"latitude"`
		Longitude     *float64 `json:"longitude"`
		Speed         *float64 `json:"speed"`
		UpdatedAt     *string  `json:"updated_at"`
	} `json:"attributes"`
	Relationships struct {
		Route struct {
			Data *jsonAPIReference `json:"data"`
		} `json:"route"`
	} `json:"relationships"`
}

type jsonAPIReference struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type jsonAPIRoute struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		LongName  string `json:"long_name"`
		ShortName string `json:"short_name"`
	} `json:"attributes"`
}

// JSONAPIDecoder reads the MBTA v3 style vehicles document. Routes are filtered
// server side so the route list is not used.
type JSONAPIDecoder struct{}

func (JSONAPIDecoder) Decode(body []byte, _ []string) ([]*ctdf.VehicleSnapshot, error) {
	var document jsonAPIDocument
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, err
	}

	routeNames := map[string]string{}
	for _, included := range document.Included {
		if included.Type != "route" {
			continue
		}

		switch {
		case included.Attributes.LongName != "":
			routeNames[included.ID] = included.Attributes.LongName
		case included.Attributes.ShortName != "":
			routeNames[included.ID] = included.Attributes.ShortName
		default:
			routeNames[included.ID] = included.ID
		}
	}

	vehicles := []*ctdf.VehicleSnapshot{}

	for _, item := range document.Data {
		if item.ID == "" {
			continue
		}

		snapshot := &ctdf.VehicleSnapshot{
			VehicleID: item.ID,
			Latitude:  item.Attributes.Latitude,
			Longitude: item.Attributes.Longitude,
			Speed:     item.Attributes.Speed,
		}

		if route := item.Relationships.Route.Data; route != nil && route.ID != "" {
			routeID := route.ID
			routeName, ok := routeNames[routeID]
			if !ok {
				routeName = routeID
			}

			snapshot.RouteID = &routeID
			snapshot.RouteName = &routeName
		}

		if item.Attributes.Bearing != nil {
			bearing := int(math.Round(*item.Attributes.Bearing))
			snapshot.Bearing = &bearing
		}

		if item.Attributes.CurrentStatus != nil {
			snapshot.CurrentStatus = ctdf.VehicleStatus(*item.Attributes.CurrentStatus)
		}

		if item.Attributes.UpdatedAt != nil {
			if updatedAt, err := time.Parse(time.RFC3339, *item.Attributes.UpdatedAt); err == nil {
				updatedAt = updatedAt.UTC()
				snapshot.UpdatedAt = &updatedAt
			}
		}

		vehicles = append(vehicles, snapshot)
	}

	return vehicles, nil
}
