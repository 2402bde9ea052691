// Package stream fans conversation and roster changes out to in-process
// observers. All observers of a conversation share one stream, so the chat
// view, the unseen aggregator and the notification dispatcher never hold
// redundant store subscriptions.
package stream

import (
	"context"
	"log"
	"sync"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// Subscription delivers full ordered message snapshots for one conversation.
// The first snapshot arrives immediately after Subscribe. Delivery is
// latest-wins: a slow consumer only ever misses intermediate states, never
// the current one.
type Subscription struct {
	C chan []models.Message

	conversationID string
	broker         *Broker
	closed         bool
}

// Close detaches the subscription. Safe to call once per subscription.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}

// Broker multiplexes conversation snapshots to observers.
type Broker struct {
	messages repositories.MessageRepository

	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

// NewBroker constructs a Broker over the message store.
func NewBroker(messages repositories.MessageRepository) *Broker {
	return &Broker{
		messages: messages,
		topics:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe attaches an observer to a conversation and replays the current
// snapshot before returning.
func (b *Broker) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	msgs, err := b.messages.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		C:              make(chan []models.Message, 1),
		conversationID: conversationID,
		broker:         b,
	}
	sub.C <- msgs

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[conversationID]; !ok {
		b.topics[conversationID] = make(map[*Subscription]struct{})
	}
	b.topics[conversationID][sub] = struct{}{}
	return sub, nil
}

// Publish reloads the conversation and pushes the fresh snapshot to every
// observer. Called after each append, seen flip, and delete.
func (b *Broker) Publish(ctx context.Context, conversationID string) {
	msgs, err := b.messages.List(ctx, conversationID)
	if err != nil {
		log.Printf("stream: reload conversation %s: %v", conversationID, err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.topics[conversationID] {
		deliver(sub.C, msgs)
	}
	observability.IncStreamSnapshot(len(b.topics[conversationID]))
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	if subs, ok := b.topics[sub.conversationID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.conversationID)
		}
	}
	close(sub.C)
}

// deliver replaces any undrained snapshot with the newest one.
func deliver[T any](ch chan T, next T) {
	for {
		select {
		case ch <- next:
			return
		default:
			select {
			case <-ch:
				observability.IncStreamDropped()
			default:
			}
		}
	}
}
