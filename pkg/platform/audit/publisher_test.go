package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "askme/pkg/platform/audit"
	"askme/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	defer pub.Close()

	event := audit.Event{
		Subject: "alice.eth",
		Action:  string(audit.EventRequestCreated),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "alice.eth")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventRequestCreated), events[0].Action)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store, audit.WithAsyncBuffer(10))
	defer pub.Close()

	event := audit.Event{
		Subject: "alice.eth",
		Action:  string(audit.EventRequestApproved),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	// Wait for async processing
	time.Sleep(100 * time.Millisecond)

	events, err := pub.List(context.Background(), "alice.eth")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventRequestApproved), events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store, audit.WithAsyncBuffer(100))

	for range 10 {
		event := audit.Event{
			Subject: "alice.eth",
			Action:  string(audit.EventFieldRevealed),
		}
		err := pub.Emit(context.Background(), event)
		require.NoError(t, err)
	}

	// Close should drain all events
	pub.Close()

	events, err := store.ListBySubject(context.Background(), "alice.eth")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store, audit.WithAsyncBuffer(1))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := audit.Event{
				Subject: "alice.eth",
				Action:  string(audit.EventMatchAttempted),
			}
			_ = pub.Emit(context.Background(), event)
		}()
	}
	wg.Wait()

	// Some events may be dropped with a buffer of 1; the publisher must stay
	// usable and Close must not hang.
	pub.Close()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: "alice.eth",
		Action:  string(audit.EventRequestCreated),
	})
	require.NoError(t, err)

	events, err := store.ListBySubject(context.Background(), "alice.eth")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_CloseTwice(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store, audit.WithAsyncBuffer(4))

	pub.Close()
	pub.Close()
}
