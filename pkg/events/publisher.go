package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adjust/rmq/v5"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
	"github.com/travigo/transit-telemetry/pkg/metrics"
)

const TelemetryEventsQueue = "telemetry-events"

// Publisher pushes committed telemetry events onto the telemetry-events queue
type Publisher struct {
	queue   rmq.Queue
	metrics *metrics.Metrics
}

func NewPublisher(connection rmq.Connection, m *metrics.Metrics) (*Publisher, error) {
	queue, err := connection.OpenQueue(TelemetryEventsQueue)
	if err != nil {
		return nil, fmt.Errorf("opening %s queue: %w", TelemetryEventsQueue, err)
	}

	return &Publisher{queue: queue, metrics: m}, nil
}

func (p *Publisher) PublishEvents(_ context.Context, events []*ctdf.TelemetryEvent) error {
	if len(events) == 0 {
		return nil
	}

	payloads, err := EncodeEvents(events)
	if err != nil {
		return err
	}

	if err := p.queue.PublishBytes(payloads...); err != nil {
		return fmt.Errorf("publishing telemetry events: %w", err)
	}

	p.metrics.EventsPublished(len(payloads))

	return nil
}

func EncodeEvents(events []*ctdf.TelemetryEvent) ([][]byte, error) {
	payloads := make([][]byte, 0, len(events))

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("encoding telemetry event for %s: %w", event.VehicleID, err)
		}

		payloads = append(payloads, payload)
	}

	return payloads, nil
}

func DecodeEvent(payload string) (*ctdf.TelemetryEvent, error) {
	var event ctdf.TelemetryEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, err
	}

	return &event, nil
}
