package uow

import (
	"context"

	domainchat "communityeats/internal/domain/chat"
	domainidentity "communityeats/internal/domain/identity"
	domainlistings "communityeats/internal/domain/listings"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.ListingRepository
	Conversations() domainchat.ConversationRepository
	Messages() domainchat.MessageRepository
	Profiles() domainidentity.ProfileRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// InjectContext lets a unit bind its session to the context when the backing
// store needs it (the Mongo implementation does); other units pass through.
func InjectContext(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		return injector.InjectContext(ctx)
	}
	return ctx
}
