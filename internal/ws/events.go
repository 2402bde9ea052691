package ws

import "messaging-service/internal/models"

func snapshotEvent(msgs []models.Message) models.ConversationEvent {
	if msgs == nil {
		msgs = []models.Message{}
	}
	return models.ConversationEvent{Type: "snapshot", Messages: msgs}
}

func unseenCountEvent(count int) models.NotificationEvent {
	return models.NotificationEvent{Type: "unseen_count", UnseenCount: &count}
}
