package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"communityeats/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("listings")}
}

func (r *ListingRepository) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listings.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) BySlug(ctx context.Context, slug string) (*listings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"slug": slug}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listings.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) List(ctx context.Context, params listings.ListParams) ([]*listings.Listing, error) {
	filter := bson.M{}
	if params.Status != "" {
		filter["status"] = string(params.Status)
	}
	if params.Owner != "" {
		filter["owner_id"] = string(params.Owner)
	}
	if params.BeforeMs > 0 {
		filter["created_at"] = bson.M{"$lt": params.BeforeMs}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if params.Limit > 0 {
		opts = opts.SetLimit(int64(params.Limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*listings.Listing
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func (r *ListingRepository) Save(ctx context.Context, l *listings.Listing) error {
	doc := newListingDocument(l)
	opts := options.Update().SetUpsert(true)
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	return err
}

func (r *ListingRepository) Delete(ctx context.Context, id listings.ListingID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return listings.ErrNotFound
	}
	return nil
}

type listingDocument struct {
	ID           string           `bson:"_id"`
	OwnerID      string           `bson:"owner_id"`
	Title        string           `bson:"title"`
	Description  string           `bson:"description"`
	ExchangeType string           `bson:"exchange_type"`
	Status       string           `bson:"status"`
	Location     locationDocument `bson:"location"`
	ImageKeys    []string         `bson:"image_keys"`
	ThumbnailKey string           `bson:"thumbnail_key"`
	Interested   []string         `bson:"interested"`
	Slug         string           `bson:"slug"`
	CreatedAt    int64            `bson:"created_at"`
	UpdatedAt    int64            `bson:"updated_at"`
}

type locationDocument struct {
	Country  string  `bson:"country,omitempty"`
	State    string  `bson:"state,omitempty"`
	Suburb   string  `bson:"suburb,omitempty"`
	Postcode string  `bson:"postcode,omitempty"`
	Lat      float64 `bson:"lat,omitempty"`
	Lon      float64 `bson:"lon,omitempty"`
	PlaceID  string  `bson:"place_id,omitempty"`
}

func newListingDocument(l *listings.Listing) listingDocument {
	return listingDocument{
		ID:           string(l.ID),
		OwnerID:      string(l.Owner),
		Title:        l.Title,
		Description:  l.Description,
		ExchangeType: string(l.ExchangeType),
		Status:       string(l.Status),
		Location: locationDocument{
			Country:  l.Location.Country,
			State:    l.Location.State,
			Suburb:   l.Location.Suburb,
			Postcode: l.Location.Postcode,
			Lat:      l.Location.Lat,
			Lon:      l.Location.Lon,
			PlaceID:  l.Location.PlaceID,
		},
		ImageKeys:    l.ImageKeys,
		ThumbnailKey: l.ThumbnailKey,
		Interested:   l.Interested,
		Slug:         l.Slug,
		CreatedAt:    l.CreatedAt.UnixMilli(),
		UpdatedAt:    l.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toAggregate() *listings.Listing {
	interested := d.Interested
	if interested == nil {
		interested = []string{}
	}
	return &listings.Listing{
		ID:           listings.ListingID(d.ID),
		Owner:        listings.OwnerID(d.OwnerID),
		Title:        d.Title,
		Description:  d.Description,
		ExchangeType: listings.ExchangeType(d.ExchangeType),
		Status:       listings.Status(d.Status),
		Location: listings.Location{
			Country:  d.Location.Country,
			State:    d.Location.State,
			Suburb:   d.Location.Suburb,
			Postcode: d.Location.Postcode,
			Lat:      d.Location.Lat,
			Lon:      d.Location.Lon,
			PlaceID:  d.Location.PlaceID,
		},
		ImageKeys:    d.ImageKeys,
		ThumbnailKey: d.ThumbnailKey,
		Interested:   interested,
		Slug:         d.Slug,
		CreatedAt:    timestampToTime(d.CreatedAt),
		UpdatedAt:    timestampToTime(d.UpdatedAt),
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
