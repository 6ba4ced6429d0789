package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communityeats/internal/app/uow"
	domainchat "communityeats/internal/domain/chat"
	domainidentity "communityeats/internal/domain/identity"
	domainlistings "communityeats/internal/domain/listings"
	"communityeats/internal/infra/storage/memory"
)

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

type eventRecorder struct {
	mu       sync.Mutex
	messages []*domainchat.Message
}

func (r *eventRecorder) MessageCreated(_ context.Context, _ *domainchat.Conversation, m *domainchat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

type fixture struct {
	svc     *Service
	factory memory.Factory
	events  *eventRecorder
}

// newFixture builds a chat service over in-memory stores with a clock that
// advances one millisecond per reading, so message timestamps never collide.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	factory := memory.NewFactory()
	events := &eventRecorder{}
	current := testNow
	svc := &Service{
		UoW:    factory,
		Events: events,
		Clock: func() time.Time {
			current = current.Add(time.Millisecond)
			return current
		},
	}
	return &fixture{svc: svc, factory: factory, events: events}
}

func (f *fixture) seedListing(t *testing.T, owner string, interested ...string) *domainlistings.Listing {
	t.Helper()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:            domainlistings.ListingID("listing-" + owner),
		Owner:         domainlistings.OwnerID(owner),
		Title:         "Surplus lemons",
		Description:   "A bag of backyard lemons.",
		ExchangeType:  domainlistings.ExchangeGift,
		TermsAccepted: true,
		Now:           testNow,
	})
	require.NoError(t, err)
	for _, userID := range interested {
		_, err := listing.RegisterInterest(userID, testNow)
		require.NoError(t, err)
	}
	require.NoError(t, f.factory.ListingsRepo.Save(context.Background(), listing))
	return listing
}

func (f *fixture) seedProfile(t *testing.T, subject, name string) {
	t.Helper()
	require.NoError(t, f.factory.ProfilesRepo.Save(context.Background(), &domainidentity.Profile{
		Subject:     subject,
		DisplayName: name,
		UpdatedAt:   testNow,
	}))
}

func TestEnsureConversationRequiresInterest(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1")

	_, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	assert.ErrorIs(t, err, ErrInterestRequired)
}

func TestEnsureConversationOwnerNeedsTarget(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	_, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "owner-1",
	})
	assert.ErrorIs(t, err, ErrTargetRequired)

	_, err = f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "owner-1",
		TargetID:    "owner-1",
	})
	assert.ErrorIs(t, err, ErrSelfConversation)

	_, err = f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "owner-1",
		TargetID:    "guest-2",
	})
	assert.ErrorIs(t, err, ErrInterestRequired, "target must have registered interest")
}

func TestEnsureConversationDedupBothDirections(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	first, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, domainchat.PairKey("owner-1", "guest-1"), first.PairKey)
	assert.Equal(t, "owner-1", first.OwnerID)

	// The owner reaching out to the same guest lands in the same thread.
	second, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "owner-1",
		TargetID:    "guest-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// And the guest retrying gets it too.
	third, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
}

func TestEnsureConversationSeparateGuestsSeparateThreads(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1", "guest-2")

	a, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)
	b, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-2",
	})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestEnsureConversationCachesDisplayNames(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")
	f.seedProfile(t, "owner-1", "Olive")

	conv, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:     string(listing.ID),
		RequesterID:   "guest-1",
		RequesterName: "Gus",
	})
	require.NoError(t, err)

	assert.Equal(t, "Olive", conv.Names["owner-1"], "profile cache feeds the name")
	assert.Equal(t, "Gus", conv.Names["guest-1"], "verified credential seeds the requester name")
}

func TestEnsureConversationRereadsAfterLostRace(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	winner, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)

	// Simulate losing the unique-index race: the conflicting save inside the
	// service must resolve to the stored winner.
	conv, err := f.svc.lookupPair(context.Background(), string(listing.ID), winner.PairKey)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, conv.ID)
}

func TestAppendMessageUpdatesConversation(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	conv, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)

	msg, err := f.svc.AppendMessage(context.Background(), conv.ID, "guest-1", "  Is this still available?  ")
	require.NoError(t, err)
	assert.Equal(t, "Is this still available?", msg.Body, "body is trimmed")
	assert.NotZero(t, msg.CreatedAtMs)

	stored, err := f.factory.ConversationsRepo.ByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.Body, stored.LastMessagePreview)
	assert.Equal(t, msg.CreatedAtMs, stored.LastMessageAtMs)
	assert.Equal(t, "guest-1", stored.LastMessageAuthorID)

	require.Len(t, f.events.messages, 1, "committed message is published")
	assert.Equal(t, msg.ID, f.events.messages[0].ID)
}

func TestAppendMessageRejectsNonParticipant(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	conv, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(context.Background(), conv.ID, "stranger", "hello")
	assert.ErrorIs(t, err, domainchat.ErrNotParticipant)
	assert.Empty(t, f.events.messages)
}

func TestAppendMessageValidatesBody(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AppendMessage(context.Background(), "conv", "user", "   ")
	assert.ErrorIs(t, err, domainchat.ErrBodyRequired)

	long := make([]rune, domainchat.MaxBodyRunes+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.svc.AppendMessage(context.Background(), "conv", "user", string(long))
	assert.ErrorIs(t, err, domainchat.ErrBodyTooLong)
}

func TestListMessagesPagination(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	conv, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.svc.AppendMessage(context.Background(), conv.ID, "guest-1", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	// Newest page first, presented ascending.
	page1, err := f.svc.ListMessages(context.Background(), conv.ID, "owner-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page1.Messages, 2)
	assert.Equal(t, "message 3", page1.Messages[0].Body)
	assert.Equal(t, "message 4", page1.Messages[1].Body)
	assert.True(t, page1.HasMore)
	assert.Equal(t, page1.Messages[0].CreatedAtMs, page1.NextCursorMs, "cursor is the oldest timestamp in the page")

	page2, err := f.svc.ListMessages(context.Background(), conv.ID, "owner-1", 2, page1.NextCursorMs)
	require.NoError(t, err)
	require.Len(t, page2.Messages, 2)
	assert.Equal(t, "message 1", page2.Messages[0].Body)
	assert.Equal(t, "message 2", page2.Messages[1].Body)
	assert.True(t, page2.HasMore)

	page3, err := f.svc.ListMessages(context.Background(), conv.ID, "owner-1", 2, page2.NextCursorMs)
	require.NoError(t, err)
	require.Len(t, page3.Messages, 1)
	assert.Equal(t, "message 0", page3.Messages[0].Body)
	assert.False(t, page3.HasMore)
	assert.Zero(t, page3.NextCursorMs)
}

func TestListMessagesFullFinalPageReportsMore(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	conv, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(context.Background(), conv.ID, "guest-1", "only one")
	require.NoError(t, err)

	// A page that exactly fills the limit claims more even when nothing older
	// exists; the follow-up fetch comes back empty.
	page, err := f.svc.ListMessages(context.Background(), conv.ID, "guest-1", 1, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.True(t, page.HasMore)

	empty, err := f.svc.ListMessages(context.Background(), conv.ID, "guest-1", 1, page.NextCursorMs)
	require.NoError(t, err)
	assert.Empty(t, empty.Messages)
	assert.False(t, empty.HasMore)
}

func TestListMessagesRejectsNonParticipant(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	conv, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)

	_, err = f.svc.ListMessages(context.Background(), conv.ID, "stranger", 10, 0)
	assert.ErrorIs(t, err, domainchat.ErrNotParticipant)
}

func TestListConversationsOrdering(t *testing.T) {
	f := newFixture(t)
	first := f.seedListing(t, "owner-1", "guest-1")
	second, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:            "listing-2",
		Owner:         "owner-2",
		Title:         "Bread flour",
		Description:   "Unopened 5kg bag.",
		ExchangeType:  domainlistings.ExchangeSwap,
		TermsAccepted: true,
		Now:           testNow,
	})
	require.NoError(t, err)
	_, err = second.RegisterInterest("guest-1", testNow)
	require.NoError(t, err)
	require.NoError(t, f.factory.ListingsRepo.Save(context.Background(), second))

	convA, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(first.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)
	convB, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(second.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)

	// Activity in the older thread bumps it to the top.
	_, err = f.svc.AppendMessage(context.Background(), convA.ID, "guest-1", "still around?")
	require.NoError(t, err)

	conversations, err := f.svc.ListConversations(context.Background(), "guest-1", 10)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, convA.ID, conversations[0].ID)
	assert.Equal(t, convB.ID, conversations[1].ID)
}

func TestListConversationsRepairsStaleNames(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	conv, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)
	require.True(t, conv.NamesIncomplete())

	// Profiles appear after the conversation was created.
	f.seedProfile(t, "owner-1", "Olive")
	f.seedProfile(t, "guest-1", "Gus")

	_, err = f.svc.ListConversations(context.Background(), "guest-1", 10)
	require.NoError(t, err)

	// The repair runs off the request path.
	require.Eventually(t, func() bool {
		stored, err := f.factory.ConversationsRepo.ByID(context.Background(), conv.ID)
		return err == nil && !stored.NamesIncomplete()
	}, time.Second, 10*time.Millisecond)
}

func TestEnsureConversationPersistsRequesterProfile(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	_, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:      string(listing.ID),
		RequesterID:    "guest-1",
		RequesterName:  "Gus",
		RequesterEmail: "gus@example.com",
	})
	require.NoError(t, err)

	// The credential's name lands in the profile projection, which is what
	// the display-name repair reads from.
	names, err := f.factory.ProfilesRepo.DisplayNames(context.Background(), []string{"guest-1"})
	require.NoError(t, err)
	assert.Equal(t, "Gus", names["guest-1"])

	// A changed credential name updates the projection on the next ensure.
	_, err = f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:     string(listing.ID),
		RequesterID:   "guest-1",
		RequesterName: "Gustavo",
	})
	require.NoError(t, err)
	names, err = f.factory.ProfilesRepo.DisplayNames(context.Background(), []string{"guest-1"})
	require.NoError(t, err)
	assert.Equal(t, "Gustavo", names["guest-1"])
}

func TestConversationParticipantGate(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, "owner-1", "guest-1")

	conv, err := f.svc.EnsureConversation(context.Background(), EnsureConversationParams{
		ListingID:   string(listing.ID),
		RequesterID: "guest-1",
	})
	require.NoError(t, err)

	found, err := f.svc.Conversation(context.Background(), conv.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	_, err = f.svc.Conversation(context.Background(), conv.ID, "stranger")
	assert.ErrorIs(t, err, domainchat.ErrNotParticipant)

	_, err = f.svc.Conversation(context.Background(), "missing", "owner-1")
	assert.ErrorIs(t, err, domainchat.ErrNotFound)
}

var _ uow.UoWFactory = memory.Factory{}
