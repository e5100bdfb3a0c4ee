package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	h := NewHub()
	a := make(chan Event, 1)
	b := make(chan Event, 1)
	require.NoError(t, h.Subscribe("a", a))
	require.NoError(t, h.Subscribe("b", b))

	h.Publish(ConnectionLost, Disconnect{Reason: "refused"})

	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, ConnectionLost, ev.Type)
			assert.Equal(t, "refused", ev.Data.(Disconnect).Reason)
			assert.False(t, ev.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishDropsForFullSubscriber(t *testing.T) {
	h := NewHub()
	slow := make(chan Event, 1)
	require.NoError(t, h.Subscribe("slow", slow))

	done := make(chan struct{})
	go func() {
		h.Publish(OperationRejected, Rejection{Command: "stop"})
		h.Publish(OperationRejected, Rejection{Command: "resume"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Equal(t, "stop", (<-slow).Data.(Rejection).Command)
	st := h.Stats()
	assert.Equal(t, uint64(2), st.Published)
	assert.Equal(t, uint64(1), st.Sent)
	assert.Equal(t, uint64(1), st.Dropped)
}

func TestSubscribeRejectsDuplicateID(t *testing.T) {
	h := NewHub()
	require.NoError(t, h.Subscribe("ws", make(chan Event)))
	assert.ErrorIs(t, h.Subscribe("ws", make(chan Event)), ErrSubscriberExists)
	assert.ErrorIs(t, h.Unsubscribe("missing"), ErrSubscriberNotFound)
}

func TestClosedHubIgnoresPublish(t *testing.T) {
	h := NewHub()
	ch := make(chan Event, 1)
	require.NoError(t, h.Subscribe("x", ch))
	h.Close()
	h.Close()

	h.Publish(SystemInfoUpdated, Health{})
	assert.Empty(t, ch)
	assert.ErrorIs(t, h.Subscribe("y", make(chan Event)), ErrHubClosed)
}

func TestDurableSubscriberIsNeverSkipped(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan Event, 1)
	require.NoError(t, h.SubscribeDurable(ctx, "journal", ch))
	lossy := make(chan Event)
	require.NoError(t, h.Subscribe("ws", lossy))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			h.Publish(OperationCompleted, Completion{})
		}
		close(done)
	}()

	for i := 0; i < 50; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
	<-done

	st := h.Stats()
	assert.Equal(t, uint64(50), st.Published)
	assert.Equal(t, uint64(50), st.Sent)
	assert.Equal(t, uint64(50), st.Dropped, "only the lossy subscriber drops")
}

func TestDurableSubscriberReleasesPublisherOnCancel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan Event)
	require.NoError(t, h.SubscribeDurable(ctx, "journal", ch))

	done := make(chan struct{})
	go func() {
		h.Publish(OperationCompleted, Completion{})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("publish returned before the durable subscriber had room")
	case <-time.After(20 * time.Millisecond):
	}

	// a blocked publisher must not hold up Unsubscribe
	require.NoError(t, h.Unsubscribe("journal"))
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish still blocked after cancel")
	}
	assert.Empty(t, ch)
}
