package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"communityeats/internal/app/uow"
	domainchat "communityeats/internal/domain/chat"
	domainidentity "communityeats/internal/domain/identity"
	domainlistings "communityeats/internal/domain/listings"
)

var (
	ErrListingUnowned   = errors.New("chat: listing has no owner")
	ErrTargetRequired   = errors.New("chat: target user is required")
	ErrSelfConversation = errors.New("chat: cannot start a conversation with yourself")
	ErrInterestRequired = errors.New("chat: no interest registered for this listing")
)

const (
	defaultConversationLimit = 20
	maxConversationLimit     = 50
	defaultMessageLimit      = 50
	maxMessageLimit          = 100

	nameRepairTimeout = 5 * time.Second
)

// EventPublisher receives committed chat facts for fanout. Implementations
// must not fail the calling operation.
type EventPublisher interface {
	MessageCreated(ctx context.Context, conversation *domainchat.Conversation, message *domainchat.Message)
}

// Service is the conversation registry and message ledger. All observe-then-
// write sequences run inside a single unit of work so concurrent callers
// cannot create duplicate conversations or append past a revoked membership.
type Service struct {
	UoW    uow.UoWFactory
	Events EventPublisher
	Logger *slog.Logger
	Clock  func() time.Time
}

type EnsureConversationParams struct {
	ListingID   string
	RequesterID string
	// TargetID selects the interested party when the requester owns the
	// listing; ignored otherwise.
	TargetID string
	// RequesterName and RequesterEmail come from the verified credential and
	// upsert the requester's profile projection, which is what the
	// display-name repair reads from later.
	RequesterName  string
	RequesterEmail string
}

// EnsureConversation resolves or creates the single conversation between the
// listing owner and one interested party.
func (s *Service) EnsureConversation(ctx context.Context, params EnsureConversationParams) (*domainchat.Conversation, error) {
	if s.UoW == nil {
		return nil, errors.New("chat: unit of work factory required")
	}
	conversation, err := s.ensureConversationTx(ctx, params)
	if err == nil {
		return conversation, nil
	}
	// A concurrent first contact can win the unique (listing_id, pair_key)
	// index; the stored conversation is authoritative, re-read it.
	var existsErr *domainchat.ConversationExistsError
	if errors.As(err, &existsErr) {
		return s.lookupPair(ctx, existsErr.ListingID, existsErr.PairKey)
	}
	return nil, err
}

func (s *Service) ensureConversationTx(ctx context.Context, params EnsureConversationParams) (conversation *domainchat.Conversation, err error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	tctx := uow.InjectContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(tctx)
		}
	}()

	listing, err := unit.Listings().ByID(tctx, domainlistings.ListingID(strings.TrimSpace(params.ListingID)))
	if err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(string(listing.Owner))
	if owner == "" {
		return nil, ErrListingUnowned
	}

	requester := strings.TrimSpace(params.RequesterID)
	var other string
	if requester == owner {
		target := strings.TrimSpace(params.TargetID)
		if target == "" {
			return nil, ErrTargetRequired
		}
		if target == owner {
			return nil, ErrSelfConversation
		}
		if !listing.HasInterest(target) {
			return nil, ErrInterestRequired
		}
		other = target
	} else {
		if !listing.HasInterest(requester) {
			return nil, ErrInterestRequired
		}
		other = requester
	}
	if other == owner {
		return nil, ErrSelfConversation
	}

	names := s.resolveNames(tctx, unit, []string{owner, other})
	if name := strings.TrimSpace(params.RequesterName); name != "" && names[requester] != name {
		profile := &domainidentity.Profile{
			Subject:     requester,
			Email:       strings.TrimSpace(params.RequesterEmail),
			DisplayName: name,
			UpdatedAt:   s.now(),
		}
		if err := unit.Profiles().Save(tctx, profile); err != nil {
			return nil, err
		}
		names[requester] = name
	}

	pairKey := domainchat.PairKey(owner, other)
	conversation, err = unit.Conversations().ByListingPair(tctx, string(listing.ID), pairKey)
	switch {
	case err == nil:
		// Value-level diff: only write when the cache actually changed.
		if conversation.MergeNames(names) {
			if err := unit.Conversations().Save(tctx, conversation); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, domainchat.ErrNotFound):
		conversation, err = domainchat.NewConversation(domainchat.NewConversationParams{
			ID:        uuid.NewString(),
			ListingID: string(listing.ID),
			OwnerID:   owner,
			UserA:     owner,
			UserB:     other,
			Names:     names,
			Now:       s.now(),
		})
		if err != nil {
			return nil, err
		}
		if err := unit.Conversations().Save(tctx, conversation); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := unit.Commit(tctx); err != nil {
		return nil, err
	}
	committed = true
	return conversation, nil
}

func (s *Service) lookupPair(ctx context.Context, listingID, pairKey string) (*domainchat.Conversation, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	tctx := uow.InjectContext(ctx, unit)
	defer unit.Rollback(tctx)
	return unit.Conversations().ByListingPair(tctx, listingID, pairKey)
}

// Conversation resolves one conversation for a participant. Non-participants
// get ErrNotParticipant regardless of whether the conversation exists.
func (s *Service) Conversation(ctx context.Context, conversationID, requesterID string) (*domainchat.Conversation, error) {
	if s.UoW == nil {
		return nil, errors.New("chat: unit of work factory required")
	}
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	tctx := uow.InjectContext(ctx, unit)
	defer unit.Rollback(tctx)

	conversation, err := unit.Conversations().ByID(tctx, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(requesterID) {
		return nil, domainchat.ErrNotParticipant
	}
	return conversation, nil
}

// ListConversations returns the requester's conversations ordered by last
// activity descending. Conversations with incomplete display-name caches are
// repaired asynchronously; the repair never delays or fails the response.
func (s *Service) ListConversations(ctx context.Context, requesterID string, limit int) ([]*domainchat.Conversation, error) {
	if s.UoW == nil {
		return nil, errors.New("chat: unit of work factory required")
	}
	limit = clampLimit(limit, defaultConversationLimit, maxConversationLimit)

	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	tctx := uow.InjectContext(ctx, unit)
	defer unit.Rollback(tctx)

	conversations, err := unit.Conversations().ForParticipant(tctx, strings.TrimSpace(requesterID), limit)
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, conversation := range conversations {
		if conversation.NamesIncomplete() {
			stale = append(stale, conversation.ID)
		}
	}
	if len(stale) > 0 {
		go s.repairNames(stale)
	}
	return conversations, nil
}

// repairNames re-resolves display names for the given conversations outside
// the request path. Failures are logged and dropped.
func (s *Service) repairNames(conversationIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), nameRepairTimeout)
	defer cancel()

	unit, err := s.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		s.logDebug("name repair skipped", "error", err)
		return
	}
	tctx := uow.InjectContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(tctx)
		}
	}()

	for _, id := range conversationIDs {
		conversation, err := unit.Conversations().ByID(tctx, id)
		if err != nil {
			s.logDebug("name repair lookup failed", "conversation_id", id, "error", err)
			continue
		}
		fresh := s.resolveNames(tctx, unit, conversation.Participants)
		if !conversation.MergeNames(fresh) {
			continue
		}
		if err := unit.Conversations().Save(tctx, conversation); err != nil {
			s.logDebug("name repair save failed", "conversation_id", id, "error", err)
		}
	}
	if err := unit.Commit(tctx); err != nil {
		s.logDebug("name repair commit failed", "error", err)
		return
	}
	committed = true
}

// AppendMessage validates and appends a message, updating the parent
// conversation's denormalized last-message fields in the same transaction.
// Membership is re-checked against the in-transaction snapshot, closing the
// race between a membership change and the write.
func (s *Service) AppendMessage(ctx context.Context, conversationID, authorID, body string) (*domainchat.Message, error) {
	if s.UoW == nil {
		return nil, errors.New("chat: unit of work factory required")
	}
	// Reject malformed bodies before opening the transaction.
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, domainchat.ErrBodyRequired
	}
	if len([]rune(trimmed)) > domainchat.MaxBodyRunes {
		return nil, domainchat.ErrBodyTooLong
	}

	unit, err := s.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	tctx := uow.InjectContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(tctx)
		}
	}()

	conversation, err := unit.Conversations().ByID(tctx, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(authorID) {
		return nil, domainchat.ErrNotParticipant
	}

	message, err := domainchat.NewMessage(uuid.NewString(), conversation.ID, authorID, trimmed, s.now())
	if err != nil {
		return nil, err
	}
	if err := unit.Messages().Append(tctx, message); err != nil {
		return nil, err
	}
	conversation.ApplyMessage(message)
	if err := unit.Conversations().Save(tctx, conversation); err != nil {
		return nil, err
	}
	if err := unit.Commit(tctx); err != nil {
		return nil, err
	}
	committed = true

	if s.Events != nil {
		s.Events.MessageCreated(ctx, conversation, message)
	}
	return message, nil
}

// MessagesPage is one ascending-order page of a conversation's ledger.
type MessagesPage struct {
	Messages []*domainchat.Message
	// NextCursorMs is the oldest millisecond timestamp in the page, echoed
	// back by the client to fetch the preceding page. Zero when HasMore is
	// false.
	NextCursorMs int64
	// HasMore is asserted whenever the page is full. A page that exactly
	// matches the limit with nothing older behind it costs the client one
	// empty follow-up fetch; that is accepted rather than corrected.
	HasMore bool
	// ParticipantNames is the conversation's display-name cache.
	ParticipantNames map[string]string
}

// ListMessages reads a reverse-chronological page and presents it in
// ascending (chat-reading) order.
func (s *Service) ListMessages(ctx context.Context, conversationID, requesterID string, limit int, cursorMs int64) (*MessagesPage, error) {
	if s.UoW == nil {
		return nil, errors.New("chat: unit of work factory required")
	}
	limit = clampLimit(limit, defaultMessageLimit, maxMessageLimit)

	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	tctx := uow.InjectContext(ctx, unit)
	defer unit.Rollback(tctx)

	conversation, err := unit.Conversations().ByID(tctx, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(requesterID) {
		return nil, domainchat.ErrNotParticipant
	}

	messages, err := unit.Messages().ListBefore(tctx, conversation.ID, cursorMs, limit)
	if err != nil {
		return nil, err
	}

	page := &MessagesPage{
		Messages:         make([]*domainchat.Message, 0, len(messages)),
		ParticipantNames: conversation.Names,
	}
	// Fetched newest-first; reverse to ascending for the caller.
	for i := len(messages) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, messages[i])
	}
	if len(messages) == limit && len(messages) > 0 {
		page.HasMore = true
		page.NextCursorMs = messages[len(messages)-1].CreatedAtMs
	}
	return page, nil
}

func (s *Service) resolveNames(ctx context.Context, unit uow.UnitOfWork, subjects []string) map[string]string {
	names, err := unit.Profiles().DisplayNames(ctx, subjects)
	if err != nil {
		s.logDebug("display name lookup failed", "error", err)
		return map[string]string{}
	}
	return names
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Service) logDebug(msg string, attrs ...any) {
	if s.Logger != nil {
		s.Logger.Debug(msg, attrs...)
	}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
