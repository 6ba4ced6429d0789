package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"communityeats/internal/domain/chat"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection("messages")}
}

func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at_ms", Value: -1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName("conversation_timeline"),
	})
	return err
}

func (r *MessageRepository) Append(ctx context.Context, m *chat.Message) error {
	_, err := r.col.InsertOne(ctx, newMessageDocument(m))
	return err
}

func (r *MessageRepository) ListBefore(ctx context.Context, conversationID string, beforeMs int64, limit int) ([]*chat.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if beforeMs > 0 {
		filter["created_at_ms"] = bson.M{"$lt": beforeMs}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at_ms", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*chat.Message
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	AuthorID       string `bson:"author_id"`
	Body           string `bson:"body"`
	CreatedAt      string `bson:"created_at"`
	CreatedAtMs    int64  `bson:"created_at_ms"`
}

func newMessageDocument(m *chat.Message) messageDocument {
	return messageDocument{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		AuthorID:       m.AuthorID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		CreatedAtMs:    m.CreatedAtMs,
	}
}

func (d messageDocument) toAggregate() *chat.Message {
	return &chat.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		AuthorID:       d.AuthorID,
		Body:           d.Body,
		CreatedAt:      d.CreatedAt,
		CreatedAtMs:    d.CreatedAtMs,
	}
}
