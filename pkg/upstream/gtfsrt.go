package upstream

import (
	"slices"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"google.golang.org/protobuf/proto"
)

// GTFSRTDecoder reads a GTFS-Realtime VehiclePositions feed. The feed carries
// every route so filtering happens here.
type GTFSRTDecoder struct{}

func (GTFSRTDecoder) Decode(body []byte, routes []string) ([]*ctdf.VehicleSnapshot, error) {
	feed := gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, err
	}

	vehicles := []*ctdf.VehicleSnapshot{}

	for _, entity := range feed.GetEntity() {
		vehiclePosition := entity.GetVehicle()
		if vehiclePosition == nil {
			continue
		}

		vehicleID := vehiclePosition.GetVehicle().GetId()
		if vehicleID == "" {
			vehicleID = entity.GetId()
		}
		if vehicleID == "" {
			continue
		}

		snapshot := &ctdf.VehicleSnapshot{
			VehicleID: vehicleID,
		}

		if routeID := vehiclePosition.GetTrip().GetRouteId(); routeID != "" {
			routeName := routeID
			snapshot.RouteID = &routeID
			snapshot.RouteName = &routeName
		}

		if len(routes) > 0 && (snapshot.RouteID == nil || !slices.Contains(routes, *snapshot.RouteID)) {
			continue
		}

		if position := vehiclePosition.GetPosition(); position != nil {
			latitude := float64(position.GetLatitude())
			longitude := float64(position.GetLongitude())
			snapshot.Latitude = &latitude
			snapshot.Longitude = &longitude

			if position.Bearing != nil {
				bearing := int(position.GetBearing())
				snapshot.Bearing = &bearing
			}

			if position.Speed != nil {
				speed := float64(position.GetSpeed())
				snapshot.Speed = &speed
			}
		}

		if vehiclePosition.CurrentStatus != nil {
			snapshot.CurrentStatus = ctdf.VehicleStatus(vehiclePosition.GetCurrentStatus().String())
		}

		if vehiclePosition.Timestamp != nil {
			updatedAt := time.Unix(int64(vehiclePosition.GetTimestamp()), 0).UTC()
			snapshot.UpdatedAt = &updatedAt
		}

		vehicles = append(vehicles, snapshot)
	}

	return vehicles, nil
}
