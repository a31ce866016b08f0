// Package events defines the bus contract the worker consumes jobs
// from and publishes results to, together with the event payloads.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is anything publishable on the bus. The topic travels inside
// the payload so dead-letter consumers can see where a message came
// from.
type Event interface {
	EventTopic() string
}

// BaseEvent carries the envelope fields shared by every event.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
}

func (e BaseEvent) EventTopic() string { return e.Topic }

// NewBaseEvent stamps a fresh envelope for a topic.
func NewBaseEvent(topic string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Topic:     topic,
	}
}

// IndexListingEvent announces that a listing became ACTIVE and should
// be (re)indexed downstream. Consumers must be idempotent: the publish
// happens after the DB commit and may repeat.
type IndexListingEvent struct {
	BaseEvent
	ListingID string `json:"listing_id"`
}

// NewIndexListingEvent builds the activation event for a listing.
func NewIndexListingEvent(topic, listingID string) IndexListingEvent {
	return IndexListingEvent{
		BaseEvent: NewBaseEvent(topic),
		ListingID: listingID,
	}
}

// DeadLetterEvent wraps a message that exhausted its delivery budget.
// OriginalEvent holds the decoded payload, or the raw body as a string
// when it did not decode.
type DeadLetterEvent struct {
	BaseEvent
	OriginalEvent any    `json:"original_event"`
	Reason        string `json:"reason"`
	LatestError   string `json:"latest_error"`
}

// DLQReasonExhausted is the reason recorded when a message ran out of
// delivery attempts.
const DLQReasonExhausted = "Exceeded max delivery attempts"

// DLQTopic returns the dead-letter subject for an origin topic.
func DLQTopic(topic string) string { return "dlq." + topic }

// IncomingMessage is one delivery from the bus.
type IncomingMessage interface {
	Data() []byte
	Ack() error
	Nak(delay time.Duration) error
}

// Handler processes one delivery. A nil return means the message is
// done (the adapter acks it unless the subscription is manual-ack). A
// non-nil return asks the adapter to retry: it naks with the configured
// delay, or dead-letters once the delivery budget is spent.
type Handler func(ctx context.Context, msg IncomingMessage) error

// FailureHook runs when a message exhausts its delivery budget, before
// the dead-letter publish.
type FailureHook func(ctx context.Context, msg IncomingMessage, lastErr error)

// SubscribeOptions tune one competing-consumer subscription.
type SubscribeOptions struct {
	// MaxInFlight bounds unacknowledged deliveries; it matches the
	// worker's concurrency limit.
	MaxInFlight int

	// ManualAck leaves acking of successful deliveries to the handler.
	ManualAck bool

	// NakDelay is the redelivery delay for handler errors. Zero means
	// the adapter default of 2 s.
	NakDelay time.Duration

	// OnFailure is invoked on delivery-budget exhaustion.
	OnFailure FailureHook
}

// EventBus is the durable messaging surface.
type EventBus interface {
	// Publish sends an event and does not return before the broker has
	// persisted it.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a competing-consumer handler on a durable
	// stream for the topic.
	Subscribe(ctx context.Context, topic string, handler Handler, opts SubscribeOptions) error
}
