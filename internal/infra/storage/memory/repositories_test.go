package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "communityeats/internal/domain/chat"
)

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func newConversation(t *testing.T, id, listingID, a, b string) *domainchat.Conversation {
	t.Helper()
	conv, err := domainchat.NewConversation(domainchat.NewConversationParams{
		ID:        id,
		ListingID: listingID,
		OwnerID:   a,
		UserA:     a,
		UserB:     b,
		Now:       testNow,
	})
	require.NoError(t, err)
	return conv
}

func TestConversationRepositoryUniquePair(t *testing.T) {
	repo := NewConversationRepository()
	ctx := context.Background()

	first := newConversation(t, "conv-1", "listing-1", "owner", "guest")
	require.NoError(t, repo.Save(ctx, first))

	// Same pair under a different id loses the race.
	duplicate := newConversation(t, "conv-2", "listing-1", "guest", "owner")
	err := repo.Save(ctx, duplicate)
	var existsErr *domainchat.ConversationExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, "listing-1", existsErr.ListingID)
	assert.Equal(t, first.PairKey, existsErr.PairKey)

	// Re-saving the winner is an update, not a conflict.
	require.NoError(t, repo.Save(ctx, first))

	// Same pair on another listing is a separate thread.
	other := newConversation(t, "conv-3", "listing-2", "owner", "guest")
	require.NoError(t, repo.Save(ctx, other))

	found, err := repo.ByListingPair(ctx, "listing-1", first.PairKey)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", found.ID)
}

func TestMessageRepositoryListBefore(t *testing.T) {
	repo := NewMessageRepository()
	ctx := context.Background()

	for i, body := range []string{"one", "two", "three"} {
		msg, err := domainchat.NewMessage(
			string(rune('a'+i)), "conv-1", "author", body,
			testNow.Add(time.Duration(i)*time.Millisecond),
		)
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, msg))
	}

	newest, err := repo.ListBefore(ctx, "conv-1", 0, 2)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "three", newest[0].Body, "newest first")
	assert.Equal(t, "two", newest[1].Body)

	older, err := repo.ListBefore(ctx, "conv-1", newest[1].CreatedAtMs, 2)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "one", older[0].Body, "cursor is exclusive")

	none, err := repo.ListBefore(ctx, "conv-missing", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMessageRepositoryTieBreakOnID(t *testing.T) {
	repo := NewMessageRepository()
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		msg, err := domainchat.NewMessage(id, "conv-1", "author", "same instant", testNow)
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, msg))
	}

	all, err := repo.ListBefore(ctx, "conv-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, "a", all[2].ID)
}
