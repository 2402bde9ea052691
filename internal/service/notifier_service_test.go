package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/service"
)

type presenceStub struct {
	mu   sync.Mutex
	open map[string]bool
}

func newPresenceStub() *presenceStub {
	return &presenceStub{open: make(map[string]bool)}
}

func (p *presenceStub) set(userID, conversationID string, open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open[userID+"|"+conversationID] = open
}

func (p *presenceStub) HasConversationOpen(userID, conversationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open[userID+"|"+conversationID]
}

func waitForNotice(t *testing.T, notices <-chan models.NotificationEvent) models.NotificationEvent {
	t.Helper()
	select {
	case event, ok := <-notices:
		require.True(t, ok, "watcher channel closed while waiting for a notice")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a notification")
		return models.NotificationEvent{}
	}
}

func assertNoNotice(t *testing.T, notices <-chan models.NotificationEvent) {
	t.Helper()
	select {
	case event, ok := <-notices:
		if ok {
			t.Fatalf("unexpected notification for message %+v", event.Message)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNotifierRaisesOncePerMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	notifier := service.NewNotifierService(f.notified, f.broker, f.feed, newPresenceStub())

	w, err := notifier.Watch(ctx, "u2")
	require.NoError(t, err)
	defer w.Close()

	msg, err := f.chat.Send(ctx, "u1", "Alice", "u2", "hello")
	require.NoError(t, err)

	event := waitForNotice(t, w.C)
	assert.Equal(t, "message", event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, msg.ID, event.Message.ID)
	assert.Equal(t, "u1", event.FriendID)

	// The id is now recorded durably.
	fresh, err := f.notified.MarkNotified(ctx, "u2", msg.ID)
	require.NoError(t, err)
	assert.False(t, fresh)

	// A fresh watcher (page reload, restart) replays the snapshot but stays
	// quiet about the already-notified message.
	w.Close()
	reloaded, err := notifier.Watch(ctx, "u2")
	require.NoError(t, err)
	defer reloaded.Close()
	assertNoNotice(t, reloaded.C)
}

func TestNotifierSuppressedWhileConversationOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	presence := newPresenceStub()
	notifier := service.NewNotifierService(f.notified, f.broker, f.feed, presence)

	conversationID, err := conversation.DeriveID("u1", "u2")
	require.NoError(t, err)
	presence.set("u2", conversationID, true)

	w, err := notifier.Watch(ctx, "u2")
	require.NoError(t, err)
	defer w.Close()

	_, err = f.chat.Send(ctx, "u1", "Alice", "u2", "knock knock")
	require.NoError(t, err)
	assertNoNotice(t, w.C)
}

func TestNotifierSuppressionDoesNotRecordTheMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	presence := newPresenceStub()
	notifier := service.NewNotifierService(f.notified, f.broker, f.feed, presence)

	// Friendship and open conversation exist before the watcher starts, so
	// the replayed snapshot is suppressed deterministically.
	msg, err := f.chat.Send(ctx, "u1", "Alice", "u2", "are you around?")
	require.NoError(t, err)
	presence.set("u2", msg.ConversationID, true)

	w, err := notifier.Watch(ctx, "u2")
	require.NoError(t, err)
	defer w.Close()
	assertNoNotice(t, w.C)

	// Suppression must not consume the id: once the chat view closes, the
	// still-unseen message notifies on the next snapshot.
	presence.set("u2", msg.ConversationID, false)
	f.broker.Publish(ctx, msg.ConversationID)

	event := waitForNotice(t, w.C)
	require.NotNil(t, event.Message)
	assert.Equal(t, msg.ID, event.Message.ID)
}
