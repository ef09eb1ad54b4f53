package upstream

import (
	"context"
	"net/http"
	"testing"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transit-telemetry/pkg/config"
	"google.golang.org/protobuf/proto"
)

func vehiclePositionsFeed(t *testing.T) []byte {
	t.Helper()

	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1709300000),
		},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("1"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:    &gtfs.TripDescriptor{RouteId: proto.String("Red")},
					Vehicle: &gtfs.VehicleDescriptor{Id: proto.String("R-5463")},
					Position: &gtfs.Position{
						Latitude:  proto.Float32(42.36),
						Longitude: proto.Float32(-71.05),
						Bearing:   proto.Float32(90),
						Speed:     proto.Float32(8),
					},
					CurrentStatus: gtfs.VehiclePosition_STOPPED_AT.Enum(),
					Timestamp:     proto.Uint64(1709300000),
				},
			},
			{
				Id: proto.String("2"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:    &gtfs.TripDescriptor{RouteId: proto.String("Mattapan")},
					Vehicle: &gtfs.VehicleDescriptor{Id: proto.String("M-3260")},
				},
			},
			{
				Id: proto.String("3"),
				Vehicle: &gtfs.VehiclePosition{
					Trip: &gtfs.TripDescriptor{RouteId: proto.String("Red")},
				},
			},
		},
	}

	body, err := proto.Marshal(feed)
	require.NoError(t, err)

	return body
}

func TestGTFSRTDecoderFiltersRoutes(t *testing.T) {
	vehicles, err := GTFSRTDecoder{}.Decode(vehiclePositionsFeed(t), []string{"Red"})
	require.NoError(t, err)
	require.Len(t, vehicles, 2)

	first := vehicles[0]
	assert.Equal(t, "R-5463", first.VehicleID)
	assert.Equal(t, "Red", *first.RouteID)
	assert.Equal(t, 90, *first.Bearing)
	assert.Equal(t, 8.0, *first.Speed)
	assert.Equal(t, "STOPPED_AT", string(first.CurrentStatus))
	assert.EqualValues(t, 1709300000, first.UpdatedAt.Unix())

	// Falls back to the entity id when the vehicle descriptor is missing
	assert.Equal(t, "3", vehicles[1].VehicleID)
	assert.False(t, vehicles[1].HasPosition())
}

func TestGTFSRTDecoderRejectsGarbage(t *testing.T) {
	_, err := GTFSRTDecoder{}.Decode([]byte("not a protobuf \xff\xff"), nil)
	assert.Error(t, err)
}

func TestFetchVehiclesGTFSRT(t *testing.T) {
	body := vehiclePositionsFeed(t)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		w.Write(body)
	})
	client.Format = config.UpstreamFormatGTFSRT
	client.Decoder = GTFSRTDecoder{}
	client.BaseURL += "/"

	vehicles, err := client.FetchVehicles(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, vehicles, 3)
}
