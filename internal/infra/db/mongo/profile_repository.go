package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"communityeats/internal/domain/identity"
)

type ProfileRepository struct {
	col *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection("profiles")}
}

func (r *ProfileRepository) DisplayNames(ctx context.Context, subjects []string) (map[string]string, error) {
	if len(subjects) == 0 {
		return map[string]string{}, nil
	}
	cursor, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": subjects}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	names := make(map[string]string, len(subjects))
	for cursor.Next(ctx) {
		var doc profileDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if doc.DisplayName != "" {
			names[doc.ID] = doc.DisplayName
		}
	}
	return names, cursor.Err()
}

func (r *ProfileRepository) Save(ctx context.Context, p *identity.Profile) error {
	doc := profileDocument{
		ID:          p.Subject,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		UpdatedAt:   p.UpdatedAt.UnixMilli(),
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	return err
}

type profileDocument struct {
	ID          string `bson:"_id"`
	Email       string `bson:"email"`
	DisplayName string `bson:"display_name"`
	UpdatedAt   int64  `bson:"updated_at"`
}
