package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("chat: conversation not found")
	ErrNotParticipant    = errors.New("chat: not a conversation participant")
	ErrParticipantsEqual = errors.New("chat: a conversation needs two distinct participants")
	ErrListingRequired   = errors.New("chat: listing id is required")
)

// ConversationExistsError reports a lost race on the unique
// (listing id, pair key) index; the caller should re-read the winner.
type ConversationExistsError struct {
	ListingID string
	PairKey   string
}

func (e *ConversationExistsError) Error() string {
	return "chat: conversation already exists for listing " + e.ListingID
}

// PairKeySeparator joins the two sorted participant ids into the
// order-independent dedup key.
const PairKeySeparator = "_"

// PairKey derives the order-independent identifier for two participant ids.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + PairKeySeparator + b
}

type Conversation struct {
	ID        string
	ListingID string
	OwnerID   string
	// Participants is the exactly-two member set, stored sorted.
	Participants []string
	PairKey      string
	// Names caches participant display names keyed by participant id.
	Names map[string]string

	LastMessagePreview  string
	LastMessageAtMs     int64
	LastMessageAuthorID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type NewConversationParams struct {
	ID        string
	ListingID string
	OwnerID   string
	UserA     string
	UserB     string
	Names     map[string]string
	Now       time.Time
}

func NewConversation(params NewConversationParams) (*Conversation, error) {
	if strings.TrimSpace(params.ListingID) == "" {
		return nil, ErrListingRequired
	}
	a := strings.TrimSpace(params.UserA)
	b := strings.TrimSpace(params.UserB)
	if a == "" || b == "" || a == b {
		return nil, ErrParticipantsEqual
	}
	participants := []string{a, b}
	sort.Strings(participants)

	names := make(map[string]string, 2)
	for _, id := range participants {
		names[id] = strings.TrimSpace(params.Names[id])
	}
	now := params.Now.UTC()
	return &Conversation{
		ID:           params.ID,
		ListingID:    params.ListingID,
		OwnerID:      strings.TrimSpace(params.OwnerID),
		Participants: participants,
		PairKey:      PairKey(a, b),
		Names:        names,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// MergeNames fills missing or empty cached display names from fresh. Cached
// non-empty names are never overwritten with an empty value. Reports whether
// anything changed.
func (c *Conversation) MergeNames(fresh map[string]string) bool {
	changed := false
	if c.Names == nil {
		c.Names = make(map[string]string, len(c.Participants))
	}
	for _, id := range c.Participants {
		name := strings.TrimSpace(fresh[id])
		if name == "" {
			continue
		}
		if c.Names[id] != name {
			c.Names[id] = name
			changed = true
		}
	}
	return changed
}

// NamesIncomplete reports whether any participant lacks a cached display name.
func (c *Conversation) NamesIncomplete() bool {
	for _, id := range c.Participants {
		if strings.TrimSpace(c.Names[id]) == "" {
			return true
		}
	}
	return false
}

// ApplyMessage updates the denormalized last-message fields from m.
func (c *Conversation) ApplyMessage(m *Message) {
	c.LastMessagePreview = TrimPreview(m.Body)
	c.LastMessageAtMs = m.CreatedAtMs
	c.LastMessageAuthorID = m.AuthorID
	c.UpdatedAt = time.UnixMilli(m.CreatedAtMs).UTC()
}

// LastActivity orders conversation lists: last message when present, else
// creation time.
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessageAtMs > 0 {
		return time.UnixMilli(c.LastMessageAtMs).UTC()
	}
	return c.CreatedAt
}

type ConversationRepository interface {
	ByID(ctx context.Context, id string) (*Conversation, error)
	// ByListingPair resolves the unique conversation for (listing id, pair
	// key), returning ErrNotFound when absent.
	ByListingPair(ctx context.Context, listingID, pairKey string) (*Conversation, error)
	ForParticipant(ctx context.Context, userID string, limit int) ([]*Conversation, error)
	Save(ctx context.Context, conversation *Conversation) error
}
