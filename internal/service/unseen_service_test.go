package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForCount(t *testing.T, counts <-chan int, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case count, ok := <-counts:
			require.True(t, ok, "watcher channel closed while waiting for count %d", want)
			if count == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for unseen count %d", want)
		}
	}
}

func TestCurrentCountsConversationsNotMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Two unseen messages from u2, one from u3: two conversations, count 2.
	_, err := f.chat.Send(ctx, "u2", "Bob", "u1", "hey")
	require.NoError(t, err)
	_, err = f.chat.Send(ctx, "u2", "Bob", "u1", "you there?")
	require.NoError(t, err)
	_, err = f.chat.Send(ctx, "u3", "Cara", "u1", "viewing tomorrow?")
	require.NoError(t, err)

	count, err := f.unseen.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = f.unseen.Current(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "senders have nothing unseen")
}

func TestCurrentIsZeroForEmptyRoster(t *testing.T) {
	f := newFixture(t)

	count, err := f.unseen.Current(context.Background(), "lonely")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWatchFollowsSendsAndSeenSweeps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w, err := f.unseen.Watch(ctx, "u2")
	require.NoError(t, err)
	defer w.Close()

	waitForCount(t, w.C, 0)

	// A stranger's first message creates the friendship; the watcher must
	// pick the new conversation up through the roster feed alone.
	msg, err := f.chat.Send(ctx, "u1", "Alice", "u2", "hello")
	require.NoError(t, err)
	waitForCount(t, w.C, 1)

	// Displaying the conversation sweeps it seen and the badge clears.
	msgs, err := f.messages.List(ctx, msg.ConversationID)
	require.NoError(t, err)
	f.chat.MarkDeliveredSeen(ctx, "u2", msg.ConversationID, msgs)
	waitForCount(t, w.C, 0)
}

func TestWatchCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w, err := f.unseen.Watch(ctx, "u2")
	require.NoError(t, err)
	waitForCount(t, w.C, 0)

	w.Close()
	w.Close() // double close is safe

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-w.C:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "watcher channel should close after Close")
}
