package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"communityeats/internal/app/uow"
	domainchat "communityeats/internal/domain/chat"
	domainidentity "communityeats/internal/domain/identity"
	domainlistings "communityeats/internal/domain/listings"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ListingsRepo      domainlistings.ListingRepository
	ConversationsRepo domainchat.ConversationRepository
	MessagesRepo      domainchat.MessageRepository
	ProfilesRepo      domainidentity.ProfileRepository
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:            f.DB,
		session:       session,
		listings:      f.ListingsRepo,
		conversations: f.ConversationsRepo,
		messages:      f.MessagesRepo,
		profiles:      f.ProfilesRepo,
	}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session

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
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
