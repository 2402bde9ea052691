package service

import (
	"context"
	"log"
	"sync"

	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/stream"
)

// UnseenService owns the live unseen-conversation count per viewer: how many
// conversations on the roster hold at least one unread inbound message. The
// count is derived state, rebuilt from the streams, never persisted.
type UnseenService struct {
	messages   repositories.MessageRepository
	roster     repositories.RosterRepository
	broker     *stream.Broker
	rosterFeed *stream.RosterFeed
}

func NewUnseenService(messages repositories.MessageRepository, roster repositories.RosterRepository, broker *stream.Broker, rosterFeed *stream.RosterFeed) *UnseenService {
	return &UnseenService{
		messages:   messages,
		roster:     roster,
		broker:     broker,
		rosterFeed: rosterFeed,
	}
}

// UnseenWatcher streams count updates for one viewer. The first value arrives
// shortly after Watch returns. Latest-wins delivery.
type UnseenWatcher struct {
	C chan int

	done      chan struct{}
	closeOnce sync.Once
}

// Close tears the watcher and all of its stream subscriptions down.
func (w *UnseenWatcher) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}

type convUpdate struct {
	conversationID string
	msgs           []models.Message
}

// Watch starts a live aggregator for the viewer.
func (s *UnseenService) Watch(ctx context.Context, viewerID string) (*UnseenWatcher, error) {
	rosterSub, err := s.rosterFeed.Subscribe(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	w := &UnseenWatcher{
		C:    make(chan int, 1),
		done: make(chan struct{}),
	}
	go s.run(ctx, viewerID, rosterSub, w)
	return w, nil
}

func (s *UnseenService) run(ctx context.Context, viewerID string, rosterSub *stream.RosterSubscription, w *UnseenWatcher) {
	subs := make(map[string]*stream.Subscription)
	hasUnseen := make(map[string]bool)
	updates := make(chan convUpdate, 16)

	defer func() {
		rosterSub.Close()
		for _, sub := range subs {
			sub.Close()
		}
		close(w.C)
	}()

	publish := func() {
		count := 0
		for _, unseen := range hasUnseen {
			if unseen {
				count++
			}
		}
		select {
		case w.C <- count:
		default:
			select {
			case <-w.C:
			default:
			}
			select {
			case w.C <- count:
			default:
			}
		}
	}

	for {
		select {
		case <-w.done:
			return
		case friends, ok := <-rosterSub.C:
			if !ok {
				return
			}
			s.reconcile(ctx, viewerID, friends, subs, hasUnseen, updates, w.done)
			publish()
		case upd := <-updates:
			unseen := false
			for _, msg := range upd.msgs {
				if msg.ReceiverID == viewerID && !msg.Seen {
					unseen = true
					break
				}
			}
			hasUnseen[upd.conversationID] = unseen
			publish()
		}
	}
}

// reconcile opens one broker subscription per roster conversation and closes
// subscriptions whose friend left the roster, so watchers never accumulate
// streams beyond the current roster.
func (s *UnseenService) reconcile(ctx context.Context, viewerID string, friends []string, subs map[string]*stream.Subscription, hasUnseen map[string]bool, updates chan<- convUpdate, done <-chan struct{}) {
	wanted := make(map[string]bool, len(friends))
	for _, friendID := range friends {
		conversationID, err := conversation.DeriveID(viewerID, friendID)
		if err != nil {
			log.Printf("unseen: derive conversation for %s/%s: %v", viewerID, friendID, err)
			continue
		}
		wanted[conversationID] = true

		if _, ok := subs[conversationID]; ok {
			continue
		}
		sub, err := s.broker.Subscribe(ctx, conversationID)
		if err != nil {
			log.Printf("unseen: subscribe %s: %v", conversationID, err)
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
			delete(hasUnseen, conversationID)
		}
	}
}

// Current recomputes the count once, for the REST endpoint. The live path is
// Watch.
func (s *UnseenService) Current(ctx context.Context, viewerID string) (int, error) {
	friends, err := s.roster.ListFriends(ctx, viewerID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, friendID := range friends {
		conversationID, err := conversation.DeriveID(viewerID, friendID)
		if err != nil {
			return 0, err
		}
		unseen, err := s.messages.HasUnseen(ctx, conversationID, viewerID)
		if err != nil {
			return 0, err
		}
		if unseen {
			count++
		}
	}
	return count, nil
}
