package stream

import (
	"context"
	"log"
	"sync"

	"messaging-service/internal/repositories"
)

// RosterSubscription delivers the current friend-id set of one user whenever
// the roster changes. Latest-wins, same as conversation snapshots.
type RosterSubscription struct {
	C chan []string

	userID string
	feed   *RosterFeed
	closed bool
}

// Close detaches the subscription.
func (s *RosterSubscription) Close() {
	s.feed.unsubscribe(s)
}

// RosterFeed fans roster changes out to the per-user watchers.
type RosterFeed struct {
	roster repositories.RosterRepository

	mu     sync.Mutex
	topics map[string]map[*RosterSubscription]struct{}
}

// NewRosterFeed constructs a RosterFeed over the roster store.
func NewRosterFeed(roster repositories.RosterRepository) *RosterFeed {
	return &RosterFeed{
		roster: roster,
		topics: make(map[string]map[*RosterSubscription]struct{}),
	}
}

// Subscribe attaches a watcher to a user's roster and replays the current
// friend set before returning.
func (f *RosterFeed) Subscribe(ctx context.Context, userID string) (*RosterSubscription, error) {
	friends, err := f.roster.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub := &RosterSubscription{
		C:      make(chan []string, 1),
		userID: userID,
		feed:   f,
	}
	sub.C <- friends

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.topics[userID]; !ok {
		f.topics[userID] = make(map[*RosterSubscription]struct{})
	}
	f.topics[userID][sub] = struct{}{}
	return sub, nil
}

// Publish reloads and pushes the roster of both users touched by an edge
// write.
func (f *RosterFeed) Publish(ctx context.Context, userIDs ...string) {
	for _, userID := range userIDs {
		friends, err := f.roster.ListFriends(ctx, userID)
		if err != nil {
			log.Printf("stream: reload roster %s: %v", userID, err)
			continue
		}
		f.mu.Lock()
		for sub := range f.topics[userID] {
			deliver(sub.C, friends)
		}
		f.mu.Unlock()
	}
}

func (f *RosterFeed) unsubscribe(sub *RosterSubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	if subs, ok := f.topics[sub.userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(f.topics, sub.userID)
		}
	}
	close(sub.C)
}
