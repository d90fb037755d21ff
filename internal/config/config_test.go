package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybot/tally/internal/reaction"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCreatesDefaultsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.LeaderboardReturnLimit())
	assert.Equal(t, 1000, cfg.ScanMessageLimit())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "leaderboard_return_limit=10")
}

func TestLoadWellDefinedConfig(t *testing.T) {
	path := write(t, strings.Join([]string{
		"leaderboard_return_limit=5",
		"upvote_reaction=👍",
		"downvote_reaction=👎",
		"scan_message_limit=200",
		"scan_concurrency=8",
	}, "\n"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.LeaderboardReturnLimit())
	assert.Equal(t, 200, cfg.ScanMessageLimit())
	assert.Equal(t, 8, cfg.ScanConcurrency())

	up, down := cfg.ReactionNames()
	assert.Equal(t, "👍", up)
	assert.Equal(t, "👎", down)
}

func TestLoadSkipsMalformedLinesAndKeepsGoing(t *testing.T) {
	path := write(t, strings.Join([]string{
		"not a key value line",
		"mystery_key=42",
		"leaderboard_return_limit=abc",
		"scan_message_limit=250",
	}, "\n"))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Unknown keys and unparsable ints retain defaults; the rest of the
	// file still loads.
	assert.Equal(t, 10, cfg.LeaderboardReturnLimit())
	assert.Equal(t, 250, cfg.ScanMessageLimit())
}

func TestSetRejectsNonIntegerValue(t *testing.T) {
	path := write(t, "leaderboard_return_limit=7\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	err = cfg.Set("leaderboard_return_limit", "abc")
	var badValue ErrBadValue
	require.ErrorAs(t, err, &badValue)
	assert.Equal(t, "leaderboard_return_limit", badValue.Key)

	// Prior value retained, in memory and on disk.
	assert.Equal(t, 7, cfg.LeaderboardReturnLimit())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "leaderboard_return_limit=7")
}

func TestSetRejectsUnknownKey(t *testing.T) {
	cfg := defaults("")
	err := cfg.Set("mystery_key", "1")
	var unknown ErrUnknownKey
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "mystery_key", unknown.Key)
}

func TestSetRevalidatesPolicyOnReactionChange(t *testing.T) {
	cfg := defaults("")
	err := cfg.Set("upvote_reaction", "⬇️")
	var bad ErrBadPolicy
	require.ErrorAs(t, err, &bad)

	up, down := cfg.ReactionNames()
	assert.Equal(t, "⬆️", up)
	assert.Equal(t, "⬇️", down)
}

func TestSetRewritesFileInFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("leaderboard_return_limit", "3"))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.LeaderboardReturnLimit())
}

func TestResolvedEmojiIsRuntimeOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("upvote_reaction", "upkarma"))
	cfg.SetResolvedEmoji(KeyUpvoteReaction, "12345")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "12345", "resolved handles are excluded from persistence")
	assert.Contains(t, string(data), "upvote_reaction=upkarma")
}

func TestPolicyAndDisplay(t *testing.T) {
	cfg := defaults("")

	t.Run("standard reactions", func(t *testing.T) {
		assert.Equal(t, reaction.Upvote, cfg.Classify(reaction.Standard("⬆️")))
		assert.Equal(t, reaction.Downvote, cfg.Classify(reaction.Standard("⬇️")))
		assert.Equal(t, reaction.Neutral, cfg.Classify(reaction.Standard("🎉")))

		d := cfg.Display()
		assert.Equal(t, "⬆️", d.Upvote)
		assert.Equal(t, "⬇️", d.Downvote)
	})

	t.Run("resolved custom reaction", func(t *testing.T) {
		require.NoError(t, cfg.Set("upvote_reaction", "upkarma"))
		cfg.SetResolvedEmoji(KeyUpvoteReaction, "12345")

		assert.Equal(t, reaction.Upvote, cfg.Classify(reaction.Custom("upkarma", "12345")))
		assert.Equal(t, reaction.Upvote, cfg.Classify(reaction.Standard("upkarma")))

		d := cfg.Display()
		assert.Equal(t, "<:upkarma:12345>", d.Upvote)
	})

	t.Run("changing a reaction drops its stale handle", func(t *testing.T) {
		require.NoError(t, cfg.Set("upvote_reaction", "⬆️"))
		d := cfg.Display()
		assert.Equal(t, "⬆️", d.Upvote)
	})
}
