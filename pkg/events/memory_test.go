package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusPublishRecords(t *testing.T) {
	b := NewMemoryBus()

	ev := NewIndexListingEvent("index_listing", "l1")
	require.NoError(t, b.Publish(context.Background(), ev))

	published := b.PublishedOn("index_listing")
	require.Len(t, published, 1)
	got, ok := published[0].(IndexListingEvent)
	require.True(t, ok)
	assert.Equal(t, "l1", got.ListingID)
	assert.NotEmpty(t, got.EventID)
	assert.Empty(t, b.PublishedOn("other"))
}

func TestSimulateIncomingSuccess(t *testing.T) {
	b := NewMemoryBus()

	var seen []byte
	err := b.Subscribe(context.Background(), "validate_file", func(ctx context.Context, msg IncomingMessage) error {
		seen = msg.Data()
		return nil
	}, SubscribeOptions{})
	require.NoError(t, err)

	report, err := b.SimulateIncoming(context.Background(), "validate_file", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deliveries)
	assert.True(t, report.Acked)
	assert.False(t, report.DeadLettered)
	assert.Equal(t, []byte(`{"ok":true}`), seen)
}

func TestSimulateIncomingManualAck(t *testing.T) {
	b := NewMemoryBus()

	t.Run("handler acks", func(t *testing.T) {
		require.NoError(t, b.Subscribe(context.Background(), "t1", func(ctx context.Context, msg IncomingMessage) error {
			return msg.Ack()
		}, SubscribeOptions{ManualAck: true}))

		report, err := b.SimulateIncoming(context.Background(), "t1", []byte(`{}`))
		require.NoError(t, err)
		assert.True(t, report.Acked)
	})

	t.Run("handler forgets to ack", func(t *testing.T) {
		require.NoError(t, b.Subscribe(context.Background(), "t2", func(ctx context.Context, msg IncomingMessage) error {
			return nil
		}, SubscribeOptions{ManualAck: true}))

		report, err := b.SimulateIncoming(context.Background(), "t2", []byte(`{}`))
		require.NoError(t, err)
		assert.False(t, report.Acked)
	})
}

func TestSimulateIncomingRedeliversUntilExhausted(t *testing.T) {
	b := NewMemoryBus()
	b.SetMaxDeliver(3)

	var failureHookRan bool
	attempts := 0
	require.NoError(t, b.Subscribe(context.Background(), "validate_file", func(ctx context.Context, msg IncomingMessage) error {
		attempts++
		return errors.New("upload timed out")
	}, SubscribeOptions{
		NakDelay: 5 * time.Second,
		OnFailure: func(ctx context.Context, msg IncomingMessage, lastErr error) {
			failureHookRan = true
			assert.EqualError(t, lastErr, "upload timed out")
		},
	}))

	report, err := b.SimulateIncoming(context.Background(), "validate_file", []byte(`{"file_id":"f1"}`))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Deliveries)
	assert.Equal(t, 3, attempts)
	assert.True(t, report.DeadLettered)
	assert.True(t, report.Acked)
	assert.True(t, failureHookRan)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, report.NakDelays)

	dlq := b.PublishedOn("dlq.validate_file")
	require.Len(t, dlq, 1)
	dle, ok := dlq[0].(DeadLetterEvent)
	require.True(t, ok)
	assert.Equal(t, DLQReasonExhausted, dle.Reason)
	assert.Equal(t, "upload timed out", dle.LatestError)
	assert.Equal(t, map[string]any{"file_id": "f1"}, dle.OriginalEvent)
}

func TestSimulateIncomingRecoversAfterRetry(t *testing.T) {
	b := NewMemoryBus()

	attempts := 0
	require.NoError(t, b.Subscribe(context.Background(), "validate_file", func(ctx context.Context, msg IncomingMessage) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	}, SubscribeOptions{}))

	report, err := b.SimulateIncoming(context.Background(), "validate_file", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deliveries)
	assert.True(t, report.Acked)
	assert.False(t, report.DeadLettered)
	require.Len(t, report.NakDelays, 1)
	assert.Equal(t, 2*time.Second, report.NakDelays[0])
}

func TestSimulateIncomingUndecodablePayloadDeadLettersRaw(t *testing.T) {
	b := NewMemoryBus()
	b.SetMaxDeliver(1)

	require.NoError(t, b.Subscribe(context.Background(), "t", func(ctx context.Context, msg IncomingMessage) error {
		return errors.New("nope")
	}, SubscribeOptions{}))

	_, err := b.SimulateIncoming(context.Background(), "t", []byte("not json"))
	require.NoError(t, err)

	dlq := b.PublishedOn("dlq.t")
	require.Len(t, dlq, 1)
	assert.Equal(t, "not json", dlq[0].(DeadLetterEvent).OriginalEvent)
}

func TestSimulateIncomingWithoutSubscription(t *testing.T) {
	b := NewMemoryBus()
	_, err := b.SimulateIncoming(context.Background(), "ghost", []byte(`{}`))
	require.Error(t, err)
}

func TestDLQTopic(t *testing.T) {
	assert.Equal(t, "dlq.validate_file", DLQTopic("validate_file"))
}
