package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybot/tally/internal/reaction"
)

func TestKeeperAdjustAppliesToPublishedStore(t *testing.T) {
	k := NewKeeper()
	k.Adjust("g", "u", reaction.Upvote, +1)

	got, err := k.UserKarma("g", "u")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Upvotes)
}

func TestKeeperReplaysLiveDeltasAcrossPublish(t *testing.T) {
	k := NewKeeper()
	k.Current().IngestBulk("g", "u", 10, 0)

	// A rescan stages a replacement built from history while live events
	// keep arriving.
	k.BeginRebuild()

	k.Adjust("g", "u", reaction.Upvote, +1)
	k.Adjust("g", "other", reaction.Downvote, +1)

	// The live deltas are visible immediately on the published store.
	got, err := k.UserKarma("g", "u")
	require.NoError(t, err)
	assert.EqualValues(t, 11, got.Upvotes)

	next := New()
	next.IngestBulk("g", "u", 10, 0)
	k.Publish(next)

	// And they survive the swap: the new generation has history plus the
	// journaled deltas.
	got, err = k.UserKarma("g", "u")
	require.NoError(t, err)
	assert.EqualValues(t, 11, got.Upvotes)

	got, err = k.UserKarma("g", "other")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Downvotes)
}

func TestKeeperAbortLeavesPublishedStoreUntouched(t *testing.T) {
	k := NewKeeper()
	k.Current().IngestBulk("g", "u", 3, 1)

	k.BeginRebuild()
	k.Adjust("g", "u", reaction.Upvote, +1)
	k.AbortRebuild()

	got, err := k.UserKarma("g", "u")
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.Upvotes, "live delta stays applied to the prior generation")

	// A later publish must not replay the discarded journal.
	next := New()
	k.Publish(next)
	_, err = k.UserKarma("g", "u")
	assert.ErrorIs(t, err, ErrUnknownGuild)
}

func TestKeeperDeltasOutsideRebuildAreNotJournaled(t *testing.T) {
	k := NewKeeper()
	k.Adjust("g", "u", reaction.Upvote, +1)

	next := New()
	k.Publish(next)

	// The pre-rebuild delta belongs to the old generation only.
	_, err := k.UserKarma("g", "u")
	assert.ErrorIs(t, err, ErrUnknownGuild)
}
