package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/pkg/metrics"
)

// NATSConfig configures the JetStream bus adapter.
type NATSConfig struct {
	URL           string        `mapstructure:"url" validate:"required"`
	Name          string        `mapstructure:"name"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	MaxDeliver    int           `mapstructure:"max_deliver"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	NakDelay      time.Duration `mapstructure:"nak_delay"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// ApplyDefaults fills zero values with production defaults.
func (c *NATSConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "assetflow-worker"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "validation-workers"
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 5
	}
	if c.AckWait == 0 {
		c.AckWait = 60 * time.Second
	}
	if c.NakDelay == 0 {
		c.NakDelay = 2 * time.Second
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 3 * time.Second
	}
}

const dlqStreamName = "DLQ"
const dlqMaxAge = 14 * 24 * time.Hour

// NATSBus is the JetStream implementation of EventBus: durable push
// queue subscriptions with explicit acks, bounded redelivery, and a
// dead-letter stream for exhausted messages.
type NATSBus struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	cfg NATSConfig

	closing atomic.Bool

	mu      sync.Mutex
	subs    []*nats.Subscription
	ensured map[string]bool
}

// ConnectNATS dials the broker. The connection retries forever; a
// permanently closed connection outside shutdown kills the process,
// because a worker without a bus can only hold already-claimed
// messages until their ack-wait expires.
func ConnectNATS(ctx context.Context, cfg NATSConfig) (*NATSBus, error) {
	cfg.ApplyDefaults()

	b := &NATSBus{cfg: cfg, ensured: make(map[string]bool)}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", logger.KeyError, fmt.Sprint(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if b.closing.Load() {
				return
			}
			logger.Error("nats connection closed permanently")
			os.Exit(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %q: %w", cfg.URL, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	b.nc = nc
	b.js = js
	logger.Info("connected to nats", "url", nc.ConnectedUrl(), "client_name", cfg.Name)
	return b, nil
}

// Publish marshals the event and waits for the broker's persistence
// acknowledgement.
func (b *NATSBus) Publish(ctx context.Context, event Event) error {
	topic := event.EventTopic()
	if err := b.ensureTopicStream(topic); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %q: %w", topic, err)
	}
	if _, err := b.js.Publish(topic, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to %q: %w", topic, err)
	}
	return nil
}

// Subscribe registers a durable push queue consumer on the topic's
// stream. The queue group load-balances deliveries across worker
// processes.
func (b *NATSBus) Subscribe(ctx context.Context, topic string, handler Handler, opts SubscribeOptions) error {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 1
	}
	nakDelay := opts.NakDelay
	if nakDelay == 0 {
		nakDelay = b.cfg.NakDelay
	}

	if err := b.ensureTopicStream(topic); err != nil {
		return err
	}
	if err := b.ensureDLQStream(); err != nil {
		return err
	}

	durable := b.cfg.ConsumerGroup + "-" + sanitizeSubject(topic)
	sub, err := b.js.QueueSubscribe(topic, b.cfg.ConsumerGroup,
		func(m *nats.Msg) {
			msg := &jsMessage{m: m}
			if err := handler(ctx, msg); err != nil {
				b.handleFailure(ctx, topic, m, msg, err, opts, nakDelay)
				return
			}
			if !opts.ManualAck {
				if aerr := m.Ack(); aerr != nil {
					logger.Warn("ack failed", logger.KeyTopic, topic, logger.KeyError, aerr.Error())
				}
			}
		},
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(b.cfg.AckWait),
		nats.MaxAckPending(opts.MaxInFlight),
		nats.MaxDeliver(b.cfg.MaxDeliver),
		nats.Durable(durable),
	)
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", topic, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	logger.Info("subscribed",
		logger.KeyTopic, topic,
		logger.KeyConsumer, durable,
		"queue_group", b.cfg.ConsumerGroup,
		logger.KeyMaxDeliver, b.cfg.MaxDeliver,
		"max_in_flight", opts.MaxInFlight,
	)
	return nil
}

// handleFailure routes a failed delivery: nak with delay while the
// delivery budget lasts, dead-letter and ack once it is spent.
func (b *NATSBus) handleFailure(ctx context.Context, topic string, m *nats.Msg, msg IncomingMessage, handlerErr error, opts SubscribeOptions, nakDelay time.Duration) {
	meta, metaErr := m.Metadata()
	if metaErr == nil && int(meta.NumDelivered) >= b.cfg.MaxDeliver {
		logger.Error("delivery budget exhausted, dead-lettering",
			logger.KeyTopic, topic,
			logger.KeyNumDelivered, meta.NumDelivered,
			logger.KeyMaxDeliver, b.cfg.MaxDeliver,
			logger.KeyError, handlerErr.Error(),
		)
		if opts.OnFailure != nil {
			opts.OnFailure(ctx, msg, handlerErr)
		}
		if err := b.publishDeadLetter(ctx, topic, m.Data, handlerErr); err != nil {
			logger.Error("dead-letter publish failed", logger.KeyTopic, topic, logger.KeyError, err.Error())
		}
		metrics.DeadLetter(topic)
		if err := m.Ack(); err != nil {
			logger.Warn("ack of dead-lettered message failed", logger.KeyTopic, topic, logger.KeyError, err.Error())
		}
		return
	}

	if err := m.NakWithDelay(nakDelay); err != nil {
		logger.Warn("nak failed", logger.KeyTopic, topic, logger.KeyError, err.Error())
	}
}

func (b *NATSBus) publishDeadLetter(ctx context.Context, topic string, body []byte, handlerErr error) error {
	var original any
	if err := json.Unmarshal(body, &original); err != nil {
		original = string(body)
	}
	ev := DeadLetterEvent{
		BaseEvent:     NewBaseEvent(DLQTopic(topic)),
		OriginalEvent: original,
		Reason:        DLQReasonExhausted,
		LatestError:   handlerErr.Error(),
	}
	return b.Publish(ctx, ev)
}

// ensureTopicStream creates the stream backing a topic if it does not
// exist. Dead-letter subjects are covered by the DLQ stream.
func (b *NATSBus) ensureTopicStream(topic string) error {
	if strings.HasPrefix(topic, "dlq.") {
		return b.ensureDLQStream()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ensured[topic] {
		return nil
	}

	name := strings.ToUpper(sanitizeSubject(topic))
	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  []string{topic},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("ensure stream %q: %w", name, err)
	}
	b.ensured[topic] = true
	return nil
}

// ensureDLQStream idempotently creates the shared dead-letter stream.
func (b *NATSBus) ensureDLQStream() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ensured[dlqStreamName] {
		return nil
	}

	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:      dlqStreamName,
		Subjects:  []string{"dlq.*"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    dlqMaxAge,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("ensure dlq stream: %w", err)
	}
	b.ensured[dlqStreamName] = true
	return nil
}

// Close drains the subscriptions so in-flight acks and naks reach the
// broker before the connection drops.
func (b *NATSBus) Close() error {
	b.closing.Store(true)

	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			logger.Warn("subscription drain failed", logger.KeyError, err.Error())
		}
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

func sanitizeSubject(topic string) string {
	r := strings.NewReplacer(".", "-", "*", "all", ">", "all")
	return r.Replace(topic)
}

// jsMessage adapts a JetStream message to IncomingMessage.
type jsMessage struct {
	m *nats.Msg
}

func (m *jsMessage) Data() []byte { return m.m.Data }
func (m *jsMessage) Ack() error   { return m.m.Ack() }

func (m *jsMessage) Nak(delay time.Duration) error {
	if delay > 0 {
		return m.m.NakWithDelay(delay)
	}
	return m.m.Nak()
}
