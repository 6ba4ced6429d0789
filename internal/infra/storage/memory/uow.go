package memory

import (
	"context"
	"errors"

	"communityeats/internal/app/uow"
	domainchat "communityeats/internal/domain/chat"
	domainidentity "communityeats/internal/domain/identity"
	domainlistings "communityeats/internal/domain/listings"
)

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ListingsRepo      domainlistings.ListingRepository
	ConversationsRepo domainchat.ConversationRepository
	MessagesRepo      domainchat.MessageRepository
	ProfilesRepo      domainidentity.ProfileRepository
}

// NewFactory builds a factory over a fresh set of in-memory stores.
func NewFactory() Factory {
	return Factory{
		ListingsRepo:      NewListingRepository(),
		ConversationsRepo: NewConversationRepository(),
		MessagesRepo:      NewMessageRepository(),
		ProfilesRepo:      NewProfileRepository(),
	}
}

// Begin starts a lightweight transaction boundary. No isolation is provided but
// the abstraction matches the application ports.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ListingsRepo == nil || f.ConversationsRepo == nil || f.MessagesRepo == nil || f.ProfilesRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		listings:      f.ListingsRepo,
		conversations: f.ConversationsRepo,
		messages:      f.MessagesRepo,
		profiles:      f.ProfilesRepo,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	listings      domainlistings.ListingRepository
	conversations domainchat.ConversationRepository
	messages      domainchat.MessageRepository
	profiles      domainidentity.ProfileRepository
}

func (u *Unit) Listings() domainlistings.ListingRepository {
	return u.listings
}

func (u *Unit) Conversations() domainchat.ConversationRepository {
	return u.conversations
}

func (u *Unit) Messages() domainchat.MessageRepository {
	return u.messages
}

func (u *Unit) Profiles() domainidentity.ProfileRepository {
	return u.profiles
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}
