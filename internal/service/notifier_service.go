package service

import (
	"context"
	"log"
	"sync"

	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/stream"
)

// Presence reports whether a viewer currently has a conversation open in a
// chat view. Implemented by the websocket hub.
type Presence interface {
	HasConversationOpen(userID, conversationID string) bool
}

// NotifierService raises one notification per unseen inbound message. Each
// message id is notified at most once ever per viewer: the dedup set is
// durable, so restarts and reloads stay quiet about old messages. Notices
// are suppressed while the viewer already has that conversation open.
type NotifierService struct {
	notified   repositories.NotificationRepository
	broker     *stream.Broker
	rosterFeed *stream.RosterFeed
	presence   Presence
}

func NewNotifierService(notified repositories.NotificationRepository, broker *stream.Broker, rosterFeed *stream.RosterFeed, presence Presence) *NotifierService {
	return &NotifierService{
		notified:   notified,
		broker:     broker,
		rosterFeed: rosterFeed,
		presence:   presence,
	}
}

// NotificationWatcher streams message notices for one viewer.
type NotificationWatcher struct {
	C chan models.NotificationEvent

	done      chan struct{}
	closeOnce sync.Once
}

// Close tears the watcher and its stream subscriptions down.
func (w *NotificationWatcher) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}

// Watch starts a live dispatcher for the viewer.
func (s *NotifierService) Watch(ctx context.Context, viewerID string) (*NotificationWatcher, error) {
	rosterSub, err := s.rosterFeed.Subscribe(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	w := &NotificationWatcher{
		C:    make(chan models.NotificationEvent, 16),
		done: make(chan struct{}),
	}
	go s.run(ctx, viewerID, rosterSub, w)
	return w, nil
}

func (s *NotifierService) run(ctx context.Context, viewerID string, rosterSub *stream.RosterSubscription, w *NotificationWatcher) {
	subs := make(map[string]*stream.Subscription)
	updates := make(chan convUpdate, 16)

	defer func() {
		rosterSub.Close()
		for _, sub := range subs {
			sub.Close()
		}
		close(w.C)
	}()

	for {
		select {
		case <-w.done:
			return
		case friends, ok := <-rosterSub.C:
			if !ok {
				return
			}
			s.reconcile(ctx, viewerID, friends, subs, updates, w.done)
		case upd := <-updates:
			s.dispatch(ctx, viewerID, upd, w)
		}
	}
}

func (s *NotifierService) reconcile(ctx context.Context, viewerID string, friends []string, subs map[string]*stream.Subscription, updates chan<- convUpdate, done <-chan struct{}) {
	wanted := make(map[string]bool, len(friends))
	for _, friendID := range friends {
		conversationID, err := conversation.DeriveID(viewerID, friendID)
		if err != nil {
			log.Printf("notifier: derive conversation for %s/%s: %v", viewerID, friendID, err)
			continue
		}
		wanted[conversationID] = true

		if _, ok := subs[conversationID]; ok {
			continue
		}
		sub, err := s.broker.Subscribe(ctx, conversationID)
		if err != nil {
			log.Printf("notifier: subscribe %s: %v", conversationID, err)
			continue
		}
		subs[conversationID] = sub

		go func(conversationID string, sub *stream.Subscription) {
			for msgs := range sub.C {
				select {
				case updates <- convUpdate{conversationID: conversationID, msgs: msgs}:
				case <-done:
					return
				}
			}
		}(conversationID, sub)
	}

	for conversationID, sub := range subs {
		if !wanted[conversationID] {
			sub.Close()
			delete(subs, conversationID)
		}
	}
}

func (s *NotifierService) dispatch(ctx context.Context, viewerID string, upd convUpdate, w *NotificationWatcher) {
	for i := range upd.msgs {
		msg := upd.msgs[i]
		if msg.ReceiverID != viewerID || msg.Seen {
			continue
		}
		if s.presence != nil && s.presence.HasConversationOpen(viewerID, upd.conversationID) {
			observability.IncNotification("suppressed")
			continue
		}

		fresh, err := s.notified.MarkNotified(ctx, viewerID, msg.ID)
		if err != nil {
			log.Printf("notifier: mark notified %s: %v", msg.ID, err)
			continue
		}
		if !fresh {
			observability.IncNotification("duplicate")
			continue
		}

		event := models.NotificationEvent{
			Type:     "message",
			Message:  &msg,
			FriendID: msg.SenderID,
		}
		select {
		case w.C <- event:
			observability.IncNotification("pushed")
		case <-w.done:
			return
		default:
			// Watcher backed up; the id stays recorded so the notice is
			// simply lost, matching at-most-once semantics.
			observability.IncNotification("dropped")
		}

		_ = observability.PublishEvent(ctx, "messaging_events.notifications", observability.EventEnvelope{
			EventType: "messaging_events",
			EventName: "notification_pushed",
			Payload: map[string]interface{}{
				"conversation_id": upd.conversationID,
				"message_id":      msg.ID,
				"receiver_id":     viewerID,
				"sender_id":       msg.SenderID,
			},
		}, nil)
	}
}
