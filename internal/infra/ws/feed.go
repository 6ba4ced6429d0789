package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"communityeats/internal/infra/broker/kafka"
)

// Feed consumes committed chat events from the broker and fans them out to
// the conversation's open websocket subscriptions.
type Feed struct {
	Hub    *Hub
	Logger *slog.Logger
}

func (f *Feed) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event kafka.MessageEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		if f.Logger != nil {
			f.Logger.Warn("chat event decode failed", "topic", msg.Topic, "error", err)
		}
		// malformed payloads are not retryable
		return nil
	}
	payload, err := json.Marshal(toEnvelope(event))
	if err != nil {
		return nil
	}
	f.Hub.Deliver(event.ConversationID, payload)
	return nil
}

type feedEnvelope struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	ListingID      string `json:"listing_id"`
	MessageID      string `json:"message_id"`
	AuthorID       string `json:"author_id"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
	CreatedAtMs    int64  `json:"created_at_ms"`
}

func toEnvelope(event kafka.MessageEvent) feedEnvelope {
	return feedEnvelope{
		Type:           "message",
		ConversationID: event.ConversationID,
		ListingID:      event.ListingID,
		MessageID:      event.MessageID,
		AuthorID:       event.AuthorID,
		Body:           event.Body,
		CreatedAt:      event.CreatedAt,
		CreatedAtMs:    event.CreatedAtMs,
	}
}
