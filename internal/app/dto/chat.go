package dto

import (
	"time"

	domainchat "communityeats/internal/domain/chat"
)

// Conversation describes chat metadata for a participant.
type Conversation struct {
	ID                  string            `json:"id"`
	ListingID           string            `json:"listing_id"`
	OwnerID             string            `json:"listing_owner_id"`
	Participants        []string          `json:"participants"`
	ParticipantProfiles map[string]string `json:"participant_profiles"`
	LastMessagePreview  string            `json:"last_message_preview,omitempty"`
	LastMessageAtMs     int64             `json:"last_message_at_ms,omitempty"`
	LastMessageAuthorID string            `json:"last_message_author_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Message carries both timestamp representations; created_at_ms is the
// ordering and pagination key.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	AuthorID       string `json:"author_id"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
	CreatedAtMs    int64  `json:"created_at_ms"`
}

// MessagePage is one ascending-order page.
type MessagePage struct {
	Items               []Message         `json:"items"`
	NextCursor          int64             `json:"next_cursor_created_at_ms,omitempty"`
	HasMore             bool              `json:"has_more"`
	ParticipantProfiles map[string]string `json:"participant_profiles"`
}

func MapConversation(c *domainchat.Conversation) Conversation {
	names := make(map[string]string, len(c.Names))
	for id, name := range c.Names {
		names[id] = name
	}
	return Conversation{
		ID:                  c.ID,
		ListingID:           c.ListingID,
		OwnerID:             c.OwnerID,
		Participants:        append([]string(nil), c.Participants...),
		ParticipantProfiles: names,
		LastMessagePreview:  c.LastMessagePreview,
		LastMessageAtMs:     c.LastMessageAtMs,
		LastMessageAuthorID: c.LastMessageAuthorID,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func MapMessage(m *domainchat.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		AuthorID:       m.AuthorID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		CreatedAtMs:    m.CreatedAtMs,
	}
}
