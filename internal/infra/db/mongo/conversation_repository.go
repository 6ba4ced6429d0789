package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"communityeats/internal/domain/chat"
)

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection("conversations")}
}

// EnsureIndexes creates the unique (listing_id, pair_key) index that backs
// conversation dedup, plus the participant lookup index.
func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "listing_id", Value: 1}, {Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_listing_pair"),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at_ms", Value: -1}},
			Options: options.Index().SetName("participant_activity"),
		},
	})
	return err
}

func (r *ConversationRepository) ByID(ctx context.Context, id string) (*chat.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ConversationRepository) ByListingPair(ctx context.Context, listingID, pairKey string) (*chat.Conversation, error) {
	var doc conversationDocument
	filter := bson.M{"listing_id": listingID, "pair_key": pairKey}
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ConversationRepository) ForParticipant(ctx context.Context, userID string, limit int) ([]*chat.Conversation, error) {
	filter := bson.M{"participants": userID}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at_ms", Value: -1}, {Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*chat.Conversation
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

// Save upserts the conversation. A duplicate-key violation on the unique
// (listing_id, pair_key) index means another request created the same
// conversation first; that race is surfaced as ConversationExistsError so the
// caller can re-read the winner.
func (r *ConversationRepository) Save(ctx context.Context, c *chat.Conversation) error {
	doc := newConversationDocument(c)
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &chat.ConversationExistsError{ListingID: c.ListingID, PairKey: c.PairKey}
		}
		return err
	}
	return nil
}

type conversationDocument struct {
	ID                  string            `bson:"_id"`
	ListingID           string            `bson:"listing_id"`
	OwnerID             string            `bson:"owner_id"`
	Participants        []string          `bson:"participants"`
	PairKey             string            `bson:"pair_key"`
	Names               map[string]string `bson:"names"`
	LastMessagePreview  string            `bson:"last_message_preview"`
	LastMessageAtMs     int64             `bson:"last_message_at_ms"`
	LastMessageAuthorID string            `bson:"last_message_author_id"`
	CreatedAt           int64             `bson:"created_at"`
	UpdatedAt           int64             `bson:"updated_at"`
}

func newConversationDocument(c *chat.Conversation) conversationDocument {
	return conversationDocument{
		ID:                  c.ID,
		ListingID:           c.ListingID,
		OwnerID:             c.OwnerID,
		Participants:        c.Participants,
		PairKey:             c.PairKey,
		Names:               c.Names,
		LastMessagePreview:  c.LastMessagePreview,
		LastMessageAtMs:     c.LastMessageAtMs,
		LastMessageAuthorID: c.LastMessageAuthorID,
		CreatedAt:           c.CreatedAt.UnixMilli(),
		UpdatedAt:           c.UpdatedAt.UnixMilli(),
	}
}

func (d conversationDocument) toAggregate() *chat.Conversation {
	names := d.Names
	if names == nil {
		names = map[string]string{}
	}
	return &chat.Conversation{
		ID:                  d.ID,
		ListingID:           d.ListingID,
		OwnerID:             d.OwnerID,
		Participants:        d.Participants,
		PairKey:             d.PairKey,
		Names:               names,
		LastMessagePreview:  d.LastMessagePreview,
		LastMessageAtMs:     d.LastMessageAtMs,
		LastMessageAuthorID: d.LastMessageAuthorID,
		CreatedAt:           timestampToTime(d.CreatedAt),
		UpdatedAt:           timestampToTime(d.UpdatedAt),
	}
}
