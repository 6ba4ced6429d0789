package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	// MaxBodyRunes bounds a message body after trimming.
	MaxBodyRunes = 2000
	// PreviewRunes bounds the denormalized last-message preview.
	PreviewRunes = 200
)

var (
	ErrBodyRequired = errors.New("chat: message body is required")
	ErrBodyTooLong  = errors.New("chat: message body exceeds 2000 characters")
)

// Message is immutable once created. CreatedAtMs is the sole ordering and
// pagination key; CreatedAt carries the same instant as an RFC3339 string.
type Message struct {
	ID             string
	ConversationID string
	AuthorID       string
	Body           string
	CreatedAt      string
	CreatedAtMs    int64
}

func NewMessage(id, conversationID, authorID, body string, now time.Time) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrBodyRequired
	}
	if len([]rune(body)) > MaxBodyRunes {
		return nil, ErrBodyTooLong
	}
	now = now.UTC()
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		AuthorID:       authorID,
		Body:           body,
		CreatedAt:      now.Format(time.RFC3339Nano),
		CreatedAtMs:    now.UnixMilli(),
	}, nil
}

// TrimPreview truncates text to the preview budget.
func TrimPreview(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= PreviewRunes {
		return string(runes)
	}
	return string(runes[:PreviewRunes])
}

type MessageRepository interface {
	Append(ctx context.Context, message *Message) error
	// ListBefore returns messages for a conversation newest-first, strictly
	// older than beforeMs when beforeMs > 0, capped at limit. Ties on the
	// millisecond timestamp are broken by message id descending.
	ListBefore(ctx context.Context, conversationID string, beforeMs int64, limit int) ([]*Message, error)
}
