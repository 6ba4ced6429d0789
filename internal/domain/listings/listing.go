package listings

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrTitleRequired       = errors.New("listings: title is required")
	ErrDescriptionRequired = errors.New("listings: description is required")
	ErrInvalidExchangeType = errors.New("listings: exchange type must be swap, gift or pay")
	ErrInvalidStatus       = errors.New("listings: unknown status")
	ErrTermsNotAccepted    = errors.New("listings: terms must be acknowledged")
	ErrThumbnailNotMember  = errors.New("listings: thumbnail must be one of the submitted images")
	ErrOwnerRequired       = errors.New("listings: owner is required")
	ErrOwnerInterest       = errors.New("listings: owner cannot register interest in own listing")
	ErrNotFound            = errors.New("listings: not found")
)

type ListingID string
type OwnerID string

type ExchangeType string

const (
	ExchangeSwap ExchangeType = "swap"
	ExchangeGift ExchangeType = "gift"
	ExchangePay  ExchangeType = "pay"
)

func ParseExchangeType(raw string) (ExchangeType, error) {
	switch ExchangeType(strings.ToLower(strings.TrimSpace(raw))) {
	case ExchangeSwap:
		return ExchangeSwap, nil
	case ExchangeGift:
		return ExchangeGift, nil
	case ExchangePay:
		return ExchangePay, nil
	default:
		return "", ErrInvalidExchangeType
	}
}

type Status string

const (
	StatusAvailable Status = "available"
	StatusClaimed   Status = "claimed"
	StatusRemoved   Status = "removed"
)

func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusAvailable:
		return StatusAvailable, nil
	case StatusClaimed:
		return StatusClaimed, nil
	case StatusRemoved:
		return StatusRemoved, nil
	default:
		return "", ErrInvalidStatus
	}
}

type Location struct {
	Country  string
	State    string
	Suburb   string
	Postcode string
	Lat      float64
	Lon      float64
	PlaceID  string
}

// Merge overlays non-empty fields of other onto the location. A place id in
// other is treated as a full geocode replacement and carries its coordinates.
func (l Location) Merge(other Location) Location {
	out := l
	if strings.TrimSpace(other.Country) != "" {
		out.Country = strings.TrimSpace(other.Country)
	}
	if strings.TrimSpace(other.State) != "" {
		out.State = strings.TrimSpace(other.State)
	}
	if strings.TrimSpace(other.Suburb) != "" {
		out.Suburb = strings.TrimSpace(other.Suburb)
	}
	if strings.TrimSpace(other.Postcode) != "" {
		out.Postcode = strings.TrimSpace(other.Postcode)
	}
	if strings.TrimSpace(other.PlaceID) != "" {
		out.PlaceID = strings.TrimSpace(other.PlaceID)
		out.Lat = other.Lat
		out.Lon = other.Lon
	}
	return out
}

type Listing struct {
	ID           ListingID
	Owner        OwnerID
	Title        string
	Description  string
	ExchangeType ExchangeType
	Status       Status
	Location     Location
	ImageKeys    []string
	ThumbnailKey string
	Interested   []string
	Slug         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ListParams struct {
	Status   Status
	Owner    OwnerID
	Limit    int
	BeforeMs int64
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	BySlug(ctx context.Context, slug string) (*Listing, error)
	List(ctx context.Context, params ListParams) ([]*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id ListingID) error
}

type CreateListingParams struct {
	ID            ListingID
	Owner         OwnerID
	Title         string
	Description   string
	ExchangeType  ExchangeType
	Location      Location
	ImageKeys     []string
	ThumbnailKey  string
	TermsAccepted bool
	Now           time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Owner)) == "" {
		return nil, ErrOwnerRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(params.Description) == "" {
		return nil, ErrDescriptionRequired
	}
	if _, err := ParseExchangeType(string(params.ExchangeType)); err != nil {
		return nil, err
	}
	if !params.TermsAccepted {
		return nil, ErrTermsNotAccepted
	}
	images := normalizeKeys(params.ImageKeys)
	thumbnail := strings.TrimSpace(params.ThumbnailKey)
	if thumbnail == "" && len(images) > 0 {
		thumbnail = images[0]
	}
	if thumbnail != "" && !containsKey(images, thumbnail) {
		return nil, ErrThumbnailNotMember
	}
	now := params.Now.UTC()

	return &Listing{
		ID:           params.ID,
		Owner:        params.Owner,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		ExchangeType: params.ExchangeType,
		Status:       StatusAvailable,
		Location:     params.Location,
		ImageKeys:    images,
		ThumbnailKey: thumbnail,
		Interested:   []string{},
		Slug:         DeriveSlug(title, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

type UpdateListingParams struct {
	Title        *string
	Description  *string
	ExchangeType *ExchangeType
	Location     *Location
	ImageKeys    []string
	ThumbnailKey *string
	Now          time.Time
}

// ApplyUpdate merges the provided fields onto the listing. Nil pointers leave
// the current value untouched; the thumbnail membership invariant is
// re-checked against the resulting image set.
func (l *Listing) ApplyUpdate(params UpdateListingParams) error {
	images := l.ImageKeys
	if params.ImageKeys != nil {
		images = normalizeKeys(params.ImageKeys)
	}
	thumbnail := l.ThumbnailKey
	if params.ThumbnailKey != nil {
		thumbnail = strings.TrimSpace(*params.ThumbnailKey)
	}
	if thumbnail == "" && len(images) > 0 {
		thumbnail = images[0]
	}
	if thumbnail != "" && !containsKey(images, thumbnail) {
		return ErrThumbnailNotMember
	}
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return ErrTitleRequired
		}
		l.Title = title
	}
	if params.Description != nil {
		desc := strings.TrimSpace(*params.Description)
		if desc == "" {
			return ErrDescriptionRequired
		}
		l.Description = desc
	}
	if params.ExchangeType != nil {
		parsed, err := ParseExchangeType(string(*params.ExchangeType))
		if err != nil {
			return err
		}
		l.ExchangeType = parsed
	}
	if params.Location != nil {
		l.Location = l.Location.Merge(*params.Location)
	}
	l.ImageKeys = images
	l.ThumbnailKey = thumbnail
	l.UpdatedAt = params.Now.UTC()
	return nil
}

func (l *Listing) SetStatus(status Status, now time.Time) error {
	parsed, err := ParseStatus(string(status))
	if err != nil {
		return err
	}
	l.Status = parsed
	l.UpdatedAt = now.UTC()
	return nil
}

func (l *Listing) IsOwner(userID string) bool {
	return string(l.Owner) != "" && string(l.Owner) == userID
}

func (l *Listing) HasInterest(userID string) bool {
	return containsKey(l.Interested, userID)
}

// RegisterInterest adds userID to the interested set. The owner can never be
// a member of its own set.
func (l *Listing) RegisterInterest(userID string, now time.Time) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("listings: user id is required")
	}
	if l.IsOwner(userID) {
		return false, ErrOwnerInterest
	}
	if containsKey(l.Interested, userID) {
		return false, nil
	}
	l.Interested = append(l.Interested, userID)
	l.UpdatedAt = now.UTC()
	return true, nil
}

func (l *Listing) WithdrawInterest(userID string, now time.Time) bool {
	for i, id := range l.Interested {
		if id == userID {
			l.Interested = append(l.Interested[:i], l.Interested[i+1:]...)
			l.UpdatedAt = now.UTC()
			return true
		}
	}
	return false
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func containsKey(keys []string, target string) bool {
	for _, k := range keys {
		if k == target {
			return true
		}
	}
	return false
}
