package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainchat "communityeats/internal/domain/chat"
	domainidentity "communityeats/internal/domain/identity"
	domainlistings "communityeats/internal/domain/listings"
)

// ListingRepository is an in-memory implementation used as the no-database
// fallback and in tests.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]*domainlistings.Listing),
	}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return cloneListing(listing), nil
}

func (r *ListingRepository) BySlug(ctx context.Context, slug string) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, listing := range r.items {
		if listing.Slug == slug {
			return cloneListing(listing), nil
		}
	}
	return nil, domainlistings.ErrNotFound
}

func (r *ListingRepository) List(ctx context.Context, params domainlistings.ListParams) ([]*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*domainlistings.Listing, 0, len(r.items))
	for _, listing := range r.items {
		if params.Status != "" && listing.Status != params.Status {
			continue
		}
		if params.Owner != "" && listing.Owner != params.Owner {
			continue
		}
		if params.BeforeMs > 0 && listing.CreatedAt.UnixMilli() >= params.BeforeMs {
			continue
		}
		matches = append(matches, cloneListing(listing))
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})
	if params.Limit > 0 && len(matches) > params.Limit {
		matches = matches[:params.Limit]
	}
	return matches, nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[listing.ID] = cloneListing(listing)
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id domainlistings.ListingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domainlistings.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	out := *l
	out.ImageKeys = append([]string(nil), l.ImageKeys...)
	out.Interested = append([]string(nil), l.Interested...)
	return &out
}

// ConversationRepository keeps conversations in memory, enforcing the same
// unique (listing id, pair key) constraint the database index provides.
type ConversationRepository struct {
	mu     sync.RWMutex
	items  map[string]*domainchat.Conversation
	byPair map[string]string
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		items:  make(map[string]*domainchat.Conversation),
		byPair: make(map[string]string),
	}
}

func pairIndexKey(listingID, pairKey string) string {
	return listingID + "|" + pairKey
}

func (r *ConversationRepository) ByID(ctx context.Context, id string) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.items[id]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (r *ConversationRepository) ByListingPair(ctx context.Context, listingID, pairKey string) (*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[pairIndexKey(listingID, pairKey)]
	if !ok {
		return nil, domainchat.ErrNotFound
	}
	return cloneConversation(r.items[id]), nil
}

func (r *ConversationRepository) ForParticipant(ctx context.Context, userID string, limit int) ([]*domainchat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*domainchat.Conversation, 0, len(r.items))
	for _, conv := range r.items {
		if conv.HasParticipant(userID) {
			matches = append(matches, cloneConversation(conv))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].LastActivity().After(matches[j].LastActivity())
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *ConversationRepository) Save(ctx context.Context, conv *domainchat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairIndexKey(conv.ListingID, conv.PairKey)
	if existing, ok := r.byPair[key]; ok && existing != conv.ID {
		return &domainchat.ConversationExistsError{ListingID: conv.ListingID, PairKey: conv.PairKey}
	}
	r.items[conv.ID] = cloneConversation(conv)
	r.byPair[key] = conv.ID
	return nil
}

func cloneConversation(c *domainchat.Conversation) *domainchat.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.Names = make(map[string]string, len(c.Names))
	for k, v := range c.Names {
		out.Names[k] = v
	}
	return &out
}

// MessageRepository is an append-only in-memory message store.
type MessageRepository struct {
	mu    sync.RWMutex
	items map[string][]*domainchat.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{items: make(map[string][]*domainchat.Message)}
}

func (r *MessageRepository) Append(ctx context.Context, m *domainchat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *m
	r.items[m.ConversationID] = append(r.items[m.ConversationID], &copied)
	return nil
}

func (r *MessageRepository) ListBefore(ctx context.Context, conversationID string, beforeMs int64, limit int) ([]*domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*domainchat.Message, 0, len(r.items[conversationID]))
	for _, m := range r.items[conversationID] {
		if beforeMs > 0 && m.CreatedAtMs >= beforeMs {
			continue
		}
		copied := *m
		matches = append(matches, &copied)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAtMs != matches[j].CreatedAtMs {
			return matches[i].CreatedAtMs > matches[j].CreatedAtMs
		}
		return matches[i].ID > matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ProfileRepository caches display-name projections in memory.
type ProfileRepository struct {
	mu    sync.RWMutex
	items map[string]domainidentity.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{items: make(map[string]domainidentity.Profile)}
}

func (r *ProfileRepository) DisplayNames(ctx context.Context, subjects []string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make(map[string]string, len(subjects))
	for _, s := range subjects {
		if p, ok := r.items[s]; ok && p.DisplayName != "" {
			names[s] = p.DisplayName
		}
	}
	return names, nil
}

func (r *ProfileRepository) Save(ctx context.Context, p *domainidentity.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *p
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	r.items[p.Subject] = stored
	return nil
}
