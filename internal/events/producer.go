// Package events publishes ride lifecycle events to Kafka. Publishing is
// best effort: a broker outage never blocks the wizard.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/viacar/internal/models"
)

const (
	TypeRidePublished   = "ride_published"
	TypeSearchTriggered = "search_triggered"
)

// Event is the envelope written to the ride-events topic, keyed by owner so
// one owner's events stay ordered within a partition.
type Event struct {
	Type  string            `json:"type"`
	Owner string            `json:"owner"`
	At    time.Time         `json:"at"`
	Ride  *models.RideDraft `json:"ride,omitempty"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

func (p *Producer) publish(ev Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(ev)
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.Owner), Value: b})
}

// RidePublished records a draft that made it upstream, stops and all; the
// consumer feeds these into the popular-places index.
func (p *Producer) RidePublished(owner string, draft models.RideDraft) error {
	return p.publish(Event{Type: TypeRidePublished, Owner: owner, At: time.Now().UTC(), Ride: &draft})
}

func (p *Producer) SearchTriggered(owner string) error {
	return p.publish(Event{Type: TypeSearchTriggered, Owner: owner, At: time.Now().UTC()})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
