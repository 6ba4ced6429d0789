package listings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainlistings "communityeats/internal/domain/listings"
	"communityeats/internal/infra/storage/memory"
)

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

type removerRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *removerRecorder) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

type listingEventRecorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *listingEventRecorder) ListingChanged(_ context.Context, _ *domainlistings.Listing, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

type fixture struct {
	svc     *Service
	factory memory.Factory
	images  *removerRecorder
	events  *listingEventRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	factory := memory.NewFactory()
	images := &removerRecorder{}
	events := &listingEventRecorder{}
	current := testNow
	svc := &Service{
		UoW:    factory,
		Images: images,
		Events: events,
		Clock: func() time.Time {
			current = current.Add(time.Millisecond)
			return current
		},
	}
	return &fixture{svc: svc, factory: factory, images: images, events: events}
}

func validCreateParams(owner string) CreateParams {
	return CreateParams{
		Owner:         owner,
		Title:         "Surplus lemons",
		Description:   "A bag of backyard lemons.",
		ExchangeType:  "gift",
		ImageKeys:     []string{"img-a", "img-b"},
		TermsAccepted: true,
	}
}

func TestCreateListing(t *testing.T) {
	f := newFixture(t)

	listing, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)

	assert.NotEmpty(t, listing.ID)
	assert.Equal(t, domainlistings.StatusAvailable, listing.Status)
	assert.Equal(t, "img-a", listing.ThumbnailKey)
	assert.Contains(t, listing.Slug, "surplus-lemons-")
	assert.Equal(t, []string{"created"}, f.events.actions)

	stored, err := f.factory.ListingsRepo.ByID(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.Slug, stored.Slug)
}

func TestCreateListingSlugCollision(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), validCreateParams("owner-2"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Slug, second.Slug, "same-title-same-day listings get distinct slugs")
	assert.Contains(t, second.Slug, first.Slug+"-", "collision appends a discriminator")
}

func TestCreateListingValidation(t *testing.T) {
	f := newFixture(t)

	params := validCreateParams("owner-1")
	params.ExchangeType = "barter"
	_, err := f.svc.Create(context.Background(), params)
	assert.ErrorIs(t, err, domainlistings.ErrInvalidExchangeType)

	params = validCreateParams("owner-1")
	params.TermsAccepted = false
	_, err = f.svc.Create(context.Background(), params)
	assert.ErrorIs(t, err, domainlistings.ErrTermsNotAccepted)
}

func TestGetFallsBackToSlug(t *testing.T) {
	f := newFixture(t)
	listing, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)

	byID, err := f.svc.Get(context.Background(), string(listing.ID))
	require.NoError(t, err)
	assert.Equal(t, listing.ID, byID.ID)

	bySlug, err := f.svc.Get(context.Background(), listing.Slug)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, bySlug.ID)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domainlistings.ErrNotFound)
}

func TestUpdateOwnerGate(t *testing.T) {
	f := newFixture(t)
	listing, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)

	title := "Surplus lemons, ripe"
	_, err = f.svc.Update(context.Background(), string(listing.ID), "intruder", UpdateParams{Title: &title})
	assert.ErrorIs(t, err, ErrNotOwner)

	updated, err := f.svc.Update(context.Background(), string(listing.ID), "owner-1", UpdateParams{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, listing.Description, updated.Description, "partial merge keeps other fields")
}

func TestDeleteRemovesImages(t *testing.T) {
	f := newFixture(t)
	listing, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), string(listing.ID), "intruder")
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, f.svc.Delete(context.Background(), string(listing.ID), "owner-1"))
	assert.ElementsMatch(t, []string{"img-a", "img-b"}, f.images.keys)

	_, err = f.factory.ListingsRepo.ByID(context.Background(), listing.ID)
	assert.ErrorIs(t, err, domainlistings.ErrNotFound)
}

func TestRegisterAndWithdrawInterest(t *testing.T) {
	f := newFixture(t)
	listing, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)

	updated, err := f.svc.RegisterInterest(context.Background(), string(listing.ID), "guest-1")
	require.NoError(t, err)
	assert.True(t, updated.HasInterest("guest-1"))

	_, err = f.svc.RegisterInterest(context.Background(), string(listing.ID), "owner-1")
	assert.ErrorIs(t, err, domainlistings.ErrOwnerInterest)

	// Idempotent re-registration.
	again, err := f.svc.RegisterInterest(context.Background(), string(listing.ID), "guest-1")
	require.NoError(t, err)
	assert.Len(t, again.Interested, 1)

	withdrawn, err := f.svc.WithdrawInterest(context.Background(), string(listing.ID), "guest-1")
	require.NoError(t, err)
	assert.False(t, withdrawn.HasInterest("guest-1"))
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	listing, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)

	_, err = f.svc.SetStatus(context.Background(), string(listing.ID), "intruder", false, "claimed")
	assert.ErrorIs(t, err, ErrNotOwner)

	claimed, err := f.svc.SetStatus(context.Background(), string(listing.ID), "owner-1", false, "claimed")
	require.NoError(t, err)
	assert.Equal(t, domainlistings.StatusClaimed, claimed.Status)

	// Moderators bypass the owner gate.
	removed, err := f.svc.SetStatus(context.Background(), string(listing.ID), "moderator", true, "removed")
	require.NoError(t, err)
	assert.Equal(t, domainlistings.StatusRemoved, removed.Status)

	_, err = f.svc.SetStatus(context.Background(), string(listing.ID), "owner-1", false, "archived")
	assert.ErrorIs(t, err, domainlistings.ErrInvalidStatus)
}

func TestListFiltersAndPagination(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)
	b, err := f.svc.Create(context.Background(), validCreateParams("owner-2"))
	require.NoError(t, err)
	_, err = f.svc.SetStatus(context.Background(), string(b.ID), "owner-2", false, "claimed")
	require.NoError(t, err)

	available, err := f.svc.List(context.Background(), domainlistings.ListParams{Status: domainlistings.StatusAvailable})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, a.ID, available[0].ID)

	mine, err := f.svc.List(context.Background(), domainlistings.ListParams{Owner: "owner-2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)

	// Cursor excludes everything at or after the given timestamp.
	all, err := f.svc.List(context.Background(), domainlistings.ListParams{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	older, err := f.svc.List(context.Background(), domainlistings.ListParams{
		BeforeMs: all[0].CreatedAt.UnixMilli(),
	})
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, all[1].ID, older[0].ID)
}

func TestResolveShortLink(t *testing.T) {
	f := newFixture(t)
	listing, err := f.svc.Create(context.Background(), validCreateParams("owner-1"))
	require.NoError(t, err)

	assert.Equal(t, listing.Slug, f.svc.ResolveShortLink(context.Background(), string(listing.ID)))
	assert.Equal(t, "unknown-id", f.svc.ResolveShortLink(context.Background(), "unknown-id"))
}
