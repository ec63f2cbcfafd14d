package bus

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const waitFor = time.Second

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		received := make(chan *domain.Message, 1)

		_, err := bus.Subscribe(ctx, tenantID, "test.topic", func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, tenantID, "test.topic", []byte("hello")))

		select {
		case msg := <-received:
			assert.Equal(t, "hello", string(msg.Payload))
			assert.Equal(t, tenantID, msg.TenantID)
			assert.Equal(t, "test.topic", msg.Topic)
			assert.NotEmpty(t, msg.ID)
		case <-time.After(waitFor):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		var received1, received2 atomic.Int32

		_, err := bus.Subscribe(ctx, "tenant-001", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received1.Add(1)
			return nil
		})
		require.NoError(t, err)
		_, err = bus.Subscribe(ctx, "tenant-002", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received2.Add(1)
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, "tenant-001", "isolation.topic", []byte("msg1")))

		require.Eventually(t, func() bool { return received1.Load() == 1 }, waitFor, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(0), received2.Load(), "tenant2 should receive no messages")
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		err := bus.Publish(ctx, "", "topic", []byte("data"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = bus.Subscribe(ctx, "", "topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, err := bus.Subscribe(ctx, tenantID, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "unsub.topic", sub.Topic())

		require.NoError(t, bus.Publish(ctx, tenantID, "unsub.topic", []byte("msg1")))
		require.Eventually(t, func() bool { return count.Load() == 1 }, waitFor, 5*time.Millisecond)

		require.NoError(t, sub.Unsubscribe())

		bus.mu.RLock()
		_, present := bus.subscriptions[makeKey(tenantID, "unsub.topic")]
		bus.mu.RUnlock()
		assert.False(t, present, "unsubscribed handler should be detached")

		require.NoError(t, bus.Publish(ctx, tenantID, "unsub.topic", []byte("msg2")))
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(1), count.Load())
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count1, count2 atomic.Int32

		_, err := bus.Subscribe(ctx, tenantID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count1.Add(1)
			return nil
		})
		require.NoError(t, err)
		_, err = bus.Subscribe(ctx, tenantID, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count2.Add(1)
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, tenantID, "multi.topic", []byte("fanout")))

		require.Eventually(t, func() bool {
			return count1.Load() == 1 && count2.Load() == 1
		}, waitFor, 5*time.Millisecond)
	})

	t.Run("HandlerErrorKeepsSubscription", func(t *testing.T) {
		var calls atomic.Int32

		_, err := bus.Subscribe(ctx, tenantID, "failing.topic", func(ctx context.Context, msg *domain.Message) error {
			calls.Add(1)
			return errors.New("boom")
		})
		require.NoError(t, err)

		require.NoError(t, bus.Publish(ctx, tenantID, "failing.topic", nil))
		require.NoError(t, bus.Publish(ctx, tenantID, "failing.topic", nil))

		require.Eventually(t, func() bool { return calls.Load() == 2 }, waitFor, 5*time.Millisecond)
	})

	t.Run("PublishJSON", func(t *testing.T) {
		received := make(chan domain.ResultEvent, 1)

		_, err := bus.Subscribe(ctx, tenantID, domain.TopicResultRecorded, func(ctx context.Context, msg *domain.Message) error {
			var ev domain.ResultEvent
			if err := Decode(msg, &ev); err != nil {
				return err
			}
			received <- ev
			return nil
		})
		require.NoError(t, err)

		err = PublishJSON(ctx, bus, tenantID, domain.TopicResultRecorded, domain.ResultEvent{
			ResultID: "result-1",
			CycleID:  "cycle-1",
			Value:    domain.Float(12.5),
			Outcome:  domain.OutcomeRed,
		})
		require.NoError(t, err)

		select {
		case ev := <-received:
			assert.Equal(t, "result-1", ev.ResultID)
			assert.Equal(t, domain.OutcomeRed, ev.Outcome)
			require.NotNil(t, ev.Value)
			assert.Equal(t, 12.5, *ev.Value)
		case <-time.After(waitFor):
			t.Fatal("timeout waiting for event")
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	ctx := context.Background()
	bus := NewChannelBus(10)

	require.NoError(t, bus.Ping(ctx))
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "second close is a no-op")

	assert.ErrorIs(t, bus.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, bus.Publish(ctx, "tenant-001", "topic", nil), ErrClosed)

	_, err := bus.Subscribe(ctx, "tenant-001", "topic", func(ctx context.Context, msg *domain.Message) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel"})
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &ChannelBus{}, b)

	_, err = New(domain.EventBusConfig{Type: "kafka"})
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "kestrel.tenant-001.kestrel.result.breach", Subject("tenant-001", domain.TopicResultBreach))
}

// TestNATSBus needs a reachable server; set KESTREL_TEST_NATS_URL to run it.
func TestNATSBus(t *testing.T) {
	url := os.Getenv("KESTREL_TEST_NATS_URL")
	if url == "" {
		t.Skip("KESTREL_TEST_NATS_URL not set")
	}

	b, err := NewNATSBus(domain.EventBusConfig{Type: "nats", NATSUrl: url, NATSMaxReconnects: 1, NATSReconnectWait: 1})
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	received := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, "tenant-001", domain.TopicCycleTransitioned, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Ping(ctx))
	require.NoError(t, b.Publish(ctx, "tenant-001", domain.TopicCycleTransitioned, []byte(`{"cycleId":"c1"}`)))

	select {
	case msg := <-received:
		assert.Equal(t, "tenant-001", msg.TenantID)
		assert.JSONEq(t, `{"cycleId":"c1"}`, string(msg.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for NATS message")
	}
}
