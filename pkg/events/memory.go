package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryBus is an in-process EventBus for tests and benchmarks. It
// records every publish and simulates the broker's redelivery and
// dead-letter behavior for subscribed topics.
type MemoryBus struct {
	mu         sync.Mutex
	maxDeliver int
	nakDelay   time.Duration
	published  []PublishedEvent
	subs       map[string]*memSubscription
}

// PublishedEvent is one recorded publish.
type PublishedEvent struct {
	Topic string
	Event Event
}

type memSubscription struct {
	handler  Handler
	opts     SubscribeOptions
	nakDelay time.Duration
}

// NewMemoryBus builds a bus with the production delivery budget of 5.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		maxDeliver: 5,
		nakDelay:   2 * time.Second,
		subs:       make(map[string]*memSubscription),
	}
}

// SetMaxDeliver overrides the delivery budget.
func (b *MemoryBus) SetMaxDeliver(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxDeliver = n
}

func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, PublishedEvent{Topic: event.EventTopic(), Event: event})
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, handler Handler, opts SubscribeOptions) error {
	nakDelay := opts.NakDelay
	if nakDelay == 0 {
		nakDelay = b.nakDelay
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = &memSubscription{handler: handler, opts: opts, nakDelay: nakDelay}
	return nil
}

// Published returns every recorded publish.
func (b *MemoryBus) Published() []PublishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PublishedEvent, len(b.published))
	copy(out, b.published)
	return out
}

// PublishedOn returns the events recorded for one topic.
func (b *MemoryBus) PublishedOn(topic string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, p := range b.published {
		if p.Topic == topic {
			out = append(out, p.Event)
		}
	}
	return out
}

// DeliveryReport describes how one simulated message played out.
type DeliveryReport struct {
	// Deliveries is how many times the handler saw the message.
	Deliveries int

	// Acked reports whether the message ended acknowledged, either by
	// the handler or by the dead-letter path.
	Acked bool

	// DeadLettered reports whether a DeadLetterEvent was published.
	DeadLettered bool

	// NakDelays records the delay of every redelivery nak, in order.
	NakDelays []time.Duration
}

// SimulateIncoming drives one message through the subscription exactly
// the way the JetStream adapter would: redelivering on handler error
// until the budget is spent, then invoking the failure hook, publishing
// the dead-letter event, and acking the original.
func (b *MemoryBus) SimulateIncoming(ctx context.Context, topic string, payload []byte) (DeliveryReport, error) {
	b.mu.Lock()
	sub, ok := b.subs[topic]
	maxDeliver := b.maxDeliver
	b.mu.Unlock()
	if !ok {
		return DeliveryReport{}, fmt.Errorf("no subscription on topic %q", topic)
	}

	var report DeliveryReport
	for attempt := 1; ; attempt++ {
		report.Deliveries = attempt
		msg := &memMessage{data: payload}

		err := sub.handler(ctx, msg)
		if err == nil {
			if !sub.opts.ManualAck {
				msg.acked = true
			}
			report.Acked = msg.acked
			return report, nil
		}

		if attempt >= maxDeliver {
			if sub.opts.OnFailure != nil {
				sub.opts.OnFailure(ctx, msg, err)
			}
			var original any
			if uerr := json.Unmarshal(payload, &original); uerr != nil {
				original = string(payload)
			}
			dlq := DeadLetterEvent{
				BaseEvent:     NewBaseEvent(DLQTopic(topic)),
				OriginalEvent: original,
				Reason:        DLQReasonExhausted,
				LatestError:   err.Error(),
			}
			if perr := b.Publish(ctx, dlq); perr != nil {
				return report, perr
			}
			report.DeadLettered = true
			report.Acked = true
			return report, nil
		}

		report.NakDelays = append(report.NakDelays, sub.nakDelay)
	}
}

type memMessage struct {
	data     []byte
	acked    bool
	nakDelay time.Duration
}

func (m *memMessage) Data() []byte { return m.data }

func (m *memMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *memMessage) Nak(delay time.Duration) error {
	m.nakDelay = delay
	return nil
}
