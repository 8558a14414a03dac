// Package kafka publishes admitted events and alert decisions for downstream
// rendering/alerting collaborators. Publishing is optional; the pipeline runs
// unchanged without a broker configured.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/seismoguard/quake-ingest/internal/domain"
)

// Publisher produces event and alert messages to their respective topics.
// It implements the pipeline's Notifier.
type Publisher struct {
	events *kafkago.Writer
	alerts *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates writers for the event and alert topics.
func NewPublisher(brokers []string, eventTopic, alertTopic string, logger *slog.Logger) *Publisher {
	newWriter := func(topic string) *kafkago.Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireOne,
		}
	}
	return &Publisher{
		events: newWriter(eventTopic),
		alerts: newWriter(alertTopic),
		logger: logger,
	}
}

// NewEvents publishes a batch of newly admitted events. Failures are logged
// and dropped: delivery to observers is best effort and must never stall the
// merge path.
func (p *Publisher) NewEvents(ctx context.Context, events []domain.QuakeEvent) {
	if len(events) == 0 {
		return
	}
	msgs := make([]kafkago.Message, len(events))
	for i, ev := range events {
		msg, err := eventMessage(ev)
		if err != nil {
			p.logger.Warn("serialize event failed", "id", ev.ID, "error", err)
			return
		}
		msgs[i] = msg
	}
	if err := p.events.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Warn("publish events failed", "count", len(msgs), "error", err)
	}
}

// Alert publishes one alert decision carrying the event and its distance.
func (p *Publisher) Alert(ctx context.Context, ev domain.QuakeEvent, distanceKm float64) {
	payload := struct {
		Event      domain.QuakeEvent `json:"event"`
		DistanceKm float64           `json:"distance_km"`
		Arrival    domain.Arrival    `json:"arrival"`
	}{Event: ev, DistanceKm: distanceKm, Arrival: domain.EstimateArrival(distanceKm)}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("serialize alert failed", "id", ev.ID, "error", err)
		return
	}
	msg := kafkago.Message{
		Key:   []byte(ev.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(ev.Source)},
			{Key: "magnitude", Value: []byte(strconv.FormatFloat(ev.Magnitude, 'f', 1, 64))},
		},
	}
	if err := p.alerts.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("publish alert failed", "id", ev.ID, "error", err)
	}
}

func (p *Publisher) Close() error {
	if err := p.events.Close(); err != nil {
		return err
	}
	return p.alerts.Close()
}

// eventMessage marshals a QuakeEvent into a Kafka message keyed by event id.
func eventMessage(ev domain.QuakeEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize quake event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(ev.Source)},
			{Key: "occurred_at_ms", Value: []byte(strconv.FormatInt(ev.OccurredAt, 10))},
		},
	}, nil
}
