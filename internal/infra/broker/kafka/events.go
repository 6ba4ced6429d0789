package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	domainchat "communityeats/internal/domain/chat"
	domainlistings "communityeats/internal/domain/listings"
)

const (
	ChatMessagesTopic  = "chat.messages"
	ListingEventsTopic = "listing.events"
)

// MessageEvent is the wire payload published after a message commit. It
// carries enough context for consumers to route without a database read.
type MessageEvent struct {
	ConversationID string   `json:"conversation_id"`
	ListingID      string   `json:"listing_id"`
	Participants   []string `json:"participants"`
	MessageID      string   `json:"message_id"`
	AuthorID       string   `json:"author_id"`
	Body           string   `json:"body"`
	CreatedAt      string   `json:"created_at"`
	CreatedAtMs    int64    `json:"created_at_ms"`
}

// ListingEvent is published after listing create/update/status changes.
type ListingEvent struct {
	Action    string `json:"action"`
	ListingID string `json:"listing_id"`
	OwnerID   string `json:"owner_id"`
	Status    string `json:"status"`
	Slug      string `json:"slug"`
	UpdatedAt int64  `json:"updated_at_ms"`
}

// EventPublisher fans committed facts out to Kafka. Publish failures are
// logged and swallowed: the commit already happened, consumers catch up from
// the store.
type EventPublisher struct {
	Producer    *Producer
	TopicPrefix string
	Logger      *slog.Logger
}

func (p *EventPublisher) MessageCreated(ctx context.Context, conversation *domainchat.Conversation, message *domainchat.Message) {
	if p == nil || p.Producer == nil {
		return
	}
	payload, err := json.Marshal(MessageEvent{
		ConversationID: conversation.ID,
		ListingID:      conversation.ListingID,
		Participants:   conversation.Participants,
		MessageID:      message.ID,
		AuthorID:       message.AuthorID,
		Body:           message.Body,
		CreatedAt:      message.CreatedAt,
		CreatedAtMs:    message.CreatedAtMs,
	})
	if err != nil {
		p.logWarn("message event marshal failed", "error", err)
		return
	}
	topic := p.TopicPrefix + ChatMessagesTopic
	if err := p.Producer.Publish(ctx, topic, conversation.ID, payload, nil); err != nil {
		p.logWarn("message event publish failed", "topic", topic, "conversation_id", conversation.ID, "error", err)
	}
}

func (p *EventPublisher) ListingChanged(ctx context.Context, listing *domainlistings.Listing, action string) {
	if p == nil || p.Producer == nil {
		return
	}
	payload, err := json.Marshal(ListingEvent{
		Action:    action,
		ListingID: string(listing.ID),
		OwnerID:   string(listing.Owner),
		Status:    string(listing.Status),
		Slug:      listing.Slug,
		UpdatedAt: listing.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		p.logWarn("listing event marshal failed", "error", err)
		return
	}
	topic := p.TopicPrefix + ListingEventsTopic
	if err := p.Producer.Publish(ctx, topic, string(listing.ID), payload, nil); err != nil {
		p.logWarn("listing event publish failed", "topic", topic, "listing_id", listing.ID, "error", err)
	}
}

func (p *EventPublisher) logWarn(msg string, attrs ...any) {
	if p.Logger != nil {
		p.Logger.Warn(msg, attrs...)
	}
}

// NoopEvents drops all events when no broker is configured.
type NoopEvents struct{}

func (NoopEvents) MessageCreated(context.Context, *domainchat.Conversation, *domainchat.Message) {}
func (NoopEvents) ListingChanged(context.Context, *domainlistings.Listing, string)               {}
