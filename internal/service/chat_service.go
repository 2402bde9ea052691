package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"messaging-service/internal/conversation"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/stream"
)

var (
	ErrBlankMessage     = errors.New("message body is blank")
	ErrSelfMessage      = errors.New("cannot message yourself")
	ErrNotMessageSender = errors.New("only the sender can delete a message")
)

// ChatService implements the conversation operations: history, send, delete,
// and the seen-sweep that runs when a snapshot is displayed.
type ChatService struct {
	messages   repositories.MessageRepository
	roster     repositories.RosterRepository
	users      repositories.UserRepository
	broker     *stream.Broker
	rosterFeed *stream.RosterFeed
}

func NewChatService(messages repositories.MessageRepository, roster repositories.RosterRepository, users repositories.UserRepository, broker *stream.Broker, rosterFeed *stream.RosterFeed) *ChatService {
	return &ChatService{
		messages:   messages,
		roster:     roster,
		users:      users,
		broker:     broker,
		rosterFeed: rosterFeed,
	}
}

// History returns the ordered message list between the viewer and a friend.
func (s *ChatService) History(ctx context.Context, viewerID, friendID string) ([]models.Message, error) {
	conversationID, err := conversation.DeriveID(viewerID, friendID)
	if err != nil {
		return nil, err
	}
	return s.messages.List(ctx, conversationID)
}

// Send validates and stores a message, then ensures the roster edge exists.
// A first message to a stranger is what establishes the friendship; the edge
// write is transactional but deliberately runs after the message insert, so
// a roster failure never loses the message.
func (s *ChatService) Send(ctx context.Context, senderID, senderName, friendID, body string) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, ErrBlankMessage
	}
	if senderID == friendID {
		return models.Message{}, ErrSelfMessage
	}

	conversationID, err := conversation.DeriveID(senderID, friendID)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.Append(ctx, conversationID, senderID, senderName, friendID, body)
	if err != nil {
		return models.Message{}, err
	}

	created, err := s.roster.EnsureFriendship(ctx, senderID, friendID)
	if err != nil {
		log.Printf("chat: ensure friendship %s<->%s: %v", senderID, friendID, err)
	} else if created {
		s.rosterFeed.Publish(ctx, senderID, friendID)
	}

	s.broker.Publish(ctx, conversationID)

	_ = observability.PublishEvent(ctx, "messaging_events.messages", observability.EventEnvelope{
		EventType: "messaging_events",
		EventName: "message_sent",
		Payload: map[string]interface{}{
			"conversation_id": conversationID,
			"message_id":      msg.ID,
			"sender_id":       senderID,
			"receiver_id":     friendID,
		},
	}, nil)

	return msg, nil
}

// Delete hard-deletes a message the viewer sent. Deleting an id that no
// longer exists is a no-op, so a double-click or a raced subscription update
// never surfaces an error.
func (s *ChatService) Delete(ctx context.Context, viewerID, friendID, messageID string) error {
	conversationID, err := conversation.DeriveID(viewerID, friendID)
	if err != nil {
		return err
	}

	msg, err := s.messages.Get(ctx, conversationID, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if msg.SenderID != viewerID {
		return ErrNotMessageSender
	}

	if err := s.messages.Remove(ctx, conversationID, messageID); err != nil {
		return err
	}
	s.broker.Publish(ctx, conversationID)

	_ = observability.PublishEvent(ctx, "messaging_events.messages", observability.EventEnvelope{
		EventType: "messaging_events",
		EventName: "message_deleted",
		Payload: map[string]interface{}{
			"conversation_id": conversationID,
			"message_id":      messageID,
			"sender_id":       viewerID,
		},
	}, nil)

	return nil
}

// MarkDeliveredSeen flips the seen flag on every unseen inbound message in a
// delivered snapshot. Failures are logged, not surfaced: the next snapshot
// retries naturally. Returns the number of messages marked.
func (s *ChatService) MarkDeliveredSeen(ctx context.Context, viewerID, conversationID string, msgs []models.Message) int {
	marked := 0
	for _, msg := range msgs {
		if msg.ReceiverID != viewerID || msg.Seen {
			continue
		}
		if err := s.messages.MarkSeen(ctx, conversationID, msg.ID); err != nil {
			log.Printf("chat: mark seen %s: %v", msg.ID, err)
			continue
		}
		marked++
	}
	if marked > 0 {
		s.broker.Publish(ctx, conversationID)
	}
	return marked
}

// RosterEntries builds the sidebar view: every friend with profile, last
// message preview and unseen flag.
func (s *ChatService) RosterEntries(ctx context.Context, viewerID string) ([]models.RosterEntry, error) {
	friendIDs, err := s.roster.ListFriends(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	profiles, err := s.users.GetBatch(ctx, friendIDs)
	if err != nil {
		return nil, err
	}
	profileByID := make(map[string]models.UserProfile, len(profiles))
	for _, p := range profiles {
		profileByID[p.ID] = p
	}

	entries := make([]models.RosterEntry, 0, len(friendIDs))
	for _, friendID := range friendIDs {
		conversationID, err := conversation.DeriveID(viewerID, friendID)
		if err != nil {
			return nil, err
		}

		entry := models.RosterEntry{FriendID: friendID, Name: "Friend"}
		if profile, ok := profileByID[friendID]; ok {
			entry.Name = profile.Name
			entry.PhotoURL = profile.PhotoURL
		}

		if last, ok, err := s.messages.Last(ctx, conversationID); err != nil {
			return nil, err
		} else if ok {
			entry.LastMessage = last.Body
		}

		unseen, err := s.messages.HasUnseen(ctx, conversationID, viewerID)
		if err != nil {
			return nil, err
		}
		entry.Unseen = unseen

		entries = append(entries, entry)
	}
	return entries, nil
}
