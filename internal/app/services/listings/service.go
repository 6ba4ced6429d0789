package listings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"communityeats/internal/app/uow"
	domainlistings "communityeats/internal/domain/listings"
)

var ErrNotOwner = errors.New("listings: requester does not own this listing")

const (
	defaultListLimit = 20
	maxListLimit     = 50
)

// ImageRemover deletes a stored listing image. Removal is best-effort during
// listing deletion; failures are logged, never propagated.
type ImageRemover interface {
	Remove(ctx context.Context, key string) error
}

// EventPublisher receives committed listing facts. Implementations must not
// fail the calling operation.
type EventPublisher interface {
	ListingChanged(ctx context.Context, listing *domainlistings.Listing, action string)
}

// Service is the listing directory: CRUD with ownership gates, interest
// registration and moderation status changes.
type Service struct {
	UoW    uow.UoWFactory
	Images ImageRemover
	Events EventPublisher
	Logger *slog.Logger
	Clock  func() time.Time
}

type CreateParams struct {
	Owner         string
	Title         string
	Description   string
	ExchangeType  string
	Location      domainlistings.Location
	ImageKeys     []string
	ThumbnailKey  string
	TermsAccepted bool
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*domainlistings.Listing, error) {
	exchangeType, err := domainlistings.ParseExchangeType(params.ExchangeType)
	if err != nil {
		return nil, err
	}
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:            domainlistings.ListingID(uuid.NewString()),
		Owner:         domainlistings.OwnerID(strings.TrimSpace(params.Owner)),
		Title:         params.Title,
		Description:   params.Description,
		ExchangeType:  exchangeType,
		Location:      params.Location,
		ImageKeys:     params.ImageKeys,
		ThumbnailKey:  params.ThumbnailKey,
		TermsAccepted: params.TermsAccepted,
		Now:           s.now(),
	})
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tctx context.Context, unit uow.UnitOfWork) error {
		// Slug collisions are possible for same-title-same-day listings; a
		// short discriminator keeps the slug unique without a retry loop.
		if _, slugErr := unit.Listings().BySlug(tctx, listing.Slug); slugErr == nil {
			listing.Slug = listing.Slug + "-" + shortID(listing.ID)
		}
		return unit.Listings().Save(tctx, listing)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, listing, "created")
	return listing, nil
}

// Get resolves a listing by id, falling back to slug lookup so canonical
// short-link URLs resolve with the same endpoint.
func (s *Service) Get(ctx context.Context, idOrSlug string) (*domainlistings.Listing, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	tctx := uow.InjectContext(ctx, unit)
	defer unit.Rollback(tctx)

	idOrSlug = strings.TrimSpace(idOrSlug)
	listing, err := unit.Listings().ByID(tctx, domainlistings.ListingID(idOrSlug))
	if errors.Is(err, domainlistings.ErrNotFound) {
		return unit.Listings().BySlug(tctx, idOrSlug)
	}
	return listing, err
}

func (s *Service) List(ctx context.Context, params domainlistings.ListParams) ([]*domainlistings.Listing, error) {
	params.Limit = clampLimit(params.Limit, defaultListLimit, maxListLimit)
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	tctx := uow.InjectContext(ctx, unit)
	defer unit.Rollback(tctx)
	return unit.Listings().List(tctx, params)
}

type UpdateParams struct {
	Title        *string
	Description  *string
	ExchangeType *string
	Location     *domainlistings.Location
	ImageKeys    []string
	ThumbnailKey *string
}

// Update applies a partial merge. Owner-gated.
func (s *Service) Update(ctx context.Context, id, requesterID string, params UpdateParams) (*domainlistings.Listing, error) {
	var listing *domainlistings.Listing
	err := s.inTx(ctx, func(tctx context.Context, unit uow.UnitOfWork) error {
		var err error
		listing, err = unit.Listings().ByID(tctx, domainlistings.ListingID(strings.TrimSpace(id)))
		if err != nil {
			return err
		}
		if !listing.IsOwner(requesterID) {
			return ErrNotOwner
		}
		var exchangeType *domainlistings.ExchangeType
		if params.ExchangeType != nil {
			parsed, err := domainlistings.ParseExchangeType(*params.ExchangeType)
			if err != nil {
				return err
			}
			exchangeType = &parsed
		}
		if err := listing.ApplyUpdate(domainlistings.UpdateListingParams{
			Title:        params.Title,
			Description:  params.Description,
			ExchangeType: exchangeType,
			Location:     params.Location,
			ImageKeys:    params.ImageKeys,
			ThumbnailKey: params.ThumbnailKey,
			Now:          s.now(),
		}); err != nil {
			return err
		}
		return unit.Listings().Save(tctx, listing)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, listing, "updated")
	return listing, nil
}

// Delete removes the listing document, then best-effort deletes its stored
// images. Image failures never roll back the document deletion.
func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	var imageKeys []string
	err := s.inTx(ctx, func(tctx context.Context, unit uow.UnitOfWork) error {
		listing, err := unit.Listings().ByID(tctx, domainlistings.ListingID(strings.TrimSpace(id)))
		if err != nil {
			return err
		}
		if !listing.IsOwner(requesterID) {
			return ErrNotOwner
		}
		imageKeys = append([]string(nil), listing.ImageKeys...)
		return unit.Listings().Delete(tctx, listing.ID)
	})
	if err != nil {
		return err
	}
	if s.Images != nil {
		for _, key := range imageKeys {
			if err := s.Images.Remove(ctx, key); err != nil && s.Logger != nil {
				s.Logger.Warn("listing image removal failed", "key", key, "error", err)
			}
		}
	}
	return nil
}

// RegisterInterest adds the requester to the listing's interested set inside
// one transaction so concurrent registrations cannot double-count.
func (s *Service) RegisterInterest(ctx context.Context, id, requesterID string) (*domainlistings.Listing, error) {
	var listing *domainlistings.Listing
	err := s.inTx(ctx, func(tctx context.Context, unit uow.UnitOfWork) error {
		var err error
		listing, err = unit.Listings().ByID(tctx, domainlistings.ListingID(strings.TrimSpace(id)))
		if err != nil {
			return err
		}
		changed, err := listing.RegisterInterest(requesterID, s.now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return unit.Listings().Save(tctx, listing)
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Service) WithdrawInterest(ctx context.Context, id, requesterID string) (*domainlistings.Listing, error) {
	var listing *domainlistings.Listing
	err := s.inTx(ctx, func(tctx context.Context, unit uow.UnitOfWork) error {
		var err error
		listing, err = unit.Listings().ByID(tctx, domainlistings.ListingID(strings.TrimSpace(id)))
		if err != nil {
			return err
		}
		if !listing.WithdrawInterest(strings.TrimSpace(requesterID), s.now()) {
			return nil
		}
		return unit.Listings().Save(tctx, listing)
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// SetStatus transitions a listing's status. Owners may change their own
// listings; moderators may change any.
func (s *Service) SetStatus(ctx context.Context, id, requesterID string, asAdmin bool, status string) (*domainlistings.Listing, error) {
	parsed, err := domainlistings.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	var listing *domainlistings.Listing
	err = s.inTx(ctx, func(tctx context.Context, unit uow.UnitOfWork) error {
		var err error
		listing, err = unit.Listings().ByID(tctx, domainlistings.ListingID(strings.TrimSpace(id)))
		if err != nil {
			return err
		}
		if !asAdmin && !listing.IsOwner(requesterID) {
			return ErrNotOwner
		}
		if err := listing.SetStatus(parsed, s.now()); err != nil {
			return err
		}
		return unit.Listings().Save(tctx, listing)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, listing, "status_changed")
	return listing, nil
}

// ResolveShortLink maps a raw listing id to its canonical slug, falling back
// to the raw id when the listing is unknown.
func (s *Service) ResolveShortLink(ctx context.Context, raw string) string {
	raw = strings.TrimSpace(raw)
	listing, err := s.Get(ctx, raw)
	if err != nil || listing.Slug == "" {
		return raw
	}
	return listing.Slug
}

func (s *Service) inTx(ctx context.Context, fn func(context.Context, uow.UnitOfWork) error) error {
	if s.UoW == nil {
		return errors.New("listings: unit of work factory required")
	}
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	tctx := uow.InjectContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(tctx)
		}
	}()
	if err := fn(tctx, unit); err != nil {
		return err
	}
	if err := unit.Commit(tctx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Service) publish(ctx context.Context, listing *domainlistings.Listing, action string) {
	if s.Events != nil && listing != nil {
		s.Events.ListingChanged(ctx, listing, action)
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func shortID(id domainlistings.ListingID) string {
	raw := strings.ReplaceAll(string(id), "-", "")
	if len(raw) > 6 {
		raw = raw[:6]
	}
	return raw
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
