package dto

import (
	"time"

	domainlistings "communityeats/internal/domain/listings"
)

type Location struct {
	Country  string  `json:"country"`
	State    string  `json:"state,omitempty"`
	Suburb   string  `json:"suburb,omitempty"`
	Postcode string  `json:"postcode,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	PlaceID  string  `json:"place_id,omitempty"`
}

// Listing is the public view model. Owner-only fields are omitted unless the
// requester owns the listing; non-owners see only the interest count and
// their own interest flag.
type Listing struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ExchangeType    string    `json:"exchange_type"`
	Status          string    `json:"status"`
	Location        Location  `json:"location"`
	ImageURLs       []string  `json:"image_urls"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	InterestedCount int       `json:"interested_count"`
	HasInterest     bool      `json:"has_expressed_interest"`
	OwnerID         string    `json:"owner_id,omitempty"`
	Interested      []string  `json:"interested,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ListingList is a cursor-paginated collection.
type ListingList struct {
	Items      []Listing `json:"items"`
	NextCursor int64     `json:"next_cursor_created_at_ms,omitempty"`
}

// ImageURLResolver maps a stored object key to a servable URL.
type ImageURLResolver func(key string) string

func MapListing(l *domainlistings.Listing, requesterID string, resolve ImageURLResolver) Listing {
	if resolve == nil {
		resolve = func(key string) string { return key }
	}
	urls := make([]string, 0, len(l.ImageKeys))
	for _, key := range l.ImageKeys {
		urls = append(urls, resolve(key))
	}
	view := Listing{
		ID:              string(l.ID),
		Slug:            l.Slug,
		Title:           l.Title,
		Description:     l.Description,
		ExchangeType:    string(l.ExchangeType),
		Status:          string(l.Status),
		Location:        mapLocation(l.Location),
		ImageURLs:       urls,
		InterestedCount: len(l.Interested),
		HasInterest:     requesterID != "" && l.HasInterest(requesterID),
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if l.ThumbnailKey != "" {
		view.ThumbnailURL = resolve(l.ThumbnailKey)
	}
	if l.IsOwner(requesterID) {
		view.OwnerID = string(l.Owner)
		view.Interested = append([]string(nil), l.Interested...)
	}
	return view
}

func mapLocation(loc domainlistings.Location) Location {
	return Location{
		Country:  loc.Country,
		State:    loc.State,
		Suburb:   loc.Suburb,
		Postcode: loc.Postcode,
		Lat:      loc.Lat,
		Lon:      loc.Lon,
		PlaceID:  loc.PlaceID,
	}
}
