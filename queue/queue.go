// Package queue carries domain events from request handlers to the
// notification fan-out worker. The in-memory implementation is the default;
// RabbitMQ is used when a broker URL is configured.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event is a serialized domain event.
type Event struct {
	Type          string `json:"type"`
	ReportID      string `json:"report_id,omitempty"`
	OwnerID       string `json:"owner_id,omitempty"`
	PlasticType   string `json:"plastic_type,omitempty"`
	QuantityGrams int64  `json:"quantity_grams,omitempty"`
	AccountID     string `json:"account_id,omitempty"`
	Decision      string `json:"decision,omitempty"`
	Message       string `json:"message,omitempty"`
}

const (
	EventReportCreated = "report_created"
	EventAgentDecision = "agent_decision"
)

// Handler processes one event from the queue.
type Handler func(ctx context.Context, ev Event) error

// Producer delivers events into the queue.
type Producer interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Consumer drains events from the queue.
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue combines both capabilities.
type Queue interface {
	Producer
	Consumer
}

func encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return payload, nil
}

func decode(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
