package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/events"
	"github.com/travigo/transit-telemetry/pkg/metrics"
)

type DocumentIndexer interface {
	IndexRequest(ctx context.Context, indexName string, document io.ReadSeeker) error
}

type TelemetryElasticEvent struct {
	Timestamp time.Time

	CycleID   string
	VehicleID string
	RouteID   string

	Location *ElasticGeoPoint `json:",omitempty"`
	Speed    *float64         `json:",omitempty"`

	CurrentStatus ctdf.VehicleStatus
}

type ElasticGeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IndexName returns the weekly index an event at t belongs to
func IndexName(t time.Time) string {
	yearNumber, weekNumber := t.UTC().ISOWeek()
	return fmt.Sprintf("telemetry-events-%d-%d", yearNumber, weekNumber)
}

// BatchConsumer indexes queued telemetry events into Elasticsearch
type BatchConsumer struct {
	Indexer DocumentIndexer
	Metrics *metrics.Metrics
}

func (c *BatchConsumer) Consume(batch rmq.Deliveries) {
	indexed := 0

	for _, delivery := range batch {
		if err := c.indexPayload(delivery.Payload()); err != nil {
			log.Error().Err(err).Msg("Failed to index telemetry event")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject delivery")
			}
			continue
		}

		indexed++

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack delivery")
		}
	}

	c.Metrics.EventsIndexed(indexed)
}

func (c *BatchConsumer) indexPayload(payload string) error {
	event, err := events.DecodeEvent(payload)
	if err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	elasticEvent := TelemetryElasticEvent{
		Timestamp:     event.Timestamp,
		CycleID:       event.CycleID,
		VehicleID:     event.VehicleID,
		RouteID:       event.GetRouteID(),
		Speed:         event.Speed,
		CurrentStatus: event.CurrentStatus,
	}
	if event.Latitude != nil && event.Longitude != nil {
		elasticEvent.Location = &ElasticGeoPoint{Lat: *event.Latitude, Lon: *event.Longitude}
	}

	document, err := json.Marshal(elasticEvent)
	if err != nil {
		return err
	}

	return c.Indexer.IndexRequest(context.Background(), IndexName(event.Timestamp), bytes.NewReader(document))
}
