package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybot/tally/internal/command"
	"github.com/tallybot/tally/internal/config"
	"github.com/tallybot/tally/internal/discord"
	"github.com/tallybot/tally/internal/scan"
	"github.com/tallybot/tally/internal/store"
)

type sentMessage struct {
	ChannelID string
	Contents  string
}

type sentReaction struct {
	ChannelID string
	MessageID string
	EmojiID   string
}

type recorder struct {
	mu        sync.Mutex
	messages  chan discord.Message
	sent      []sentMessage
	reactions []sentReaction
}

func newRecorder(buffered int) *recorder {
	return &recorder{messages: make(chan discord.Message, buffered)}
}

func (r *recorder) SendMessageToChannel(channelID, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{ChannelID: channelID, Contents: msg})
	return nil
}

func (r *recorder) ReactToMessageWithEmoji(channelID, messageID, emojiID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, sentReaction{ChannelID: channelID, MessageID: messageID, EmojiID: emojiID})
	return nil
}

func (r *recorder) MessageEvents() <-chan discord.Message {
	return r.messages
}

func (r *recorder) snapshot() ([]sentMessage, []sentReaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMessage(nil), r.sent...), append([]sentReaction(nil), r.reactions...)
}

type fakeResolver struct {
	names map[string]string
}

func (f *fakeResolver) DisplayName(ctx context.Context, userID string) (string, error) {
	name, ok := f.names[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return name, nil
}

type fakeEmojis struct {
	ids map[string]string
}

func (f *fakeEmojis) ResolveEmoji(name string) (string, bool) {
	id, ok := f.ids[name]
	return id, ok
}

type fakeScanner struct {
	err error
}

func (f *fakeScanner) Run(ctx context.Context, classifier scan.Classifier, messageLimit int) error {
	return f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.txt"))
	require.NoError(t, err)
	return cfg
}

func runBot(t *testing.T, rec *recorder, keeper *store.Keeper, cfg *config.Config, scanner Scanner, resolver *fakeResolver, msgs ...discord.Message) {
	t.Helper()
	for _, m := range msgs {
		rec.messages <- m
	}
	close(rec.messages)

	b := New(rec, keeper, cfg, scanner, resolver, &fakeEmojis{}, command.NewRouter("!"))
	err := b.Listen(context.Background())
	require.Error(t, err, "listen returns once the stream closes")
}

func TestLeaderboardCommand(t *testing.T) {
	keeper := store.NewKeeper()
	keeper.Current().IngestBulk("g", "1", 5, 1)
	keeper.Current().IngestBulk("g", "2", 2, 0)

	rec := newRecorder(1)
	resolver := &fakeResolver{names: map[string]string{"1": "alice", "2": "bob"}}
	runBot(t, rec, keeper, testConfig(t), &fakeScanner{}, resolver, discord.Message{
		ID:        "m1",
		GuildID:   "g",
		ChannelID: "c",
		AuthorID:  "1",
		Content:   "!leaderboard",
	})

	sent, _ := rec.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "c", sent[0].ChannelID)
	assert.Equal(t, "alice: 4 (⬆️ 5, ⬇️ 1)\nbob: 2 (⬆️ 2, ⬇️ 0)", sent[0].Contents)
}

func TestLeaderboardCommandEmptyGuild(t *testing.T) {
	rec := newRecorder(1)
	runBot(t, rec, store.NewKeeper(), testConfig(t), &fakeScanner{}, &fakeResolver{}, discord.Message{
		ID:        "m1",
		GuildID:   "g",
		ChannelID: "c",
		AuthorID:  "1",
		Content:   "!leaderboard",
	})

	sent, _ := rec.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "No one has any karma yet.", sent[0].Contents)
}

func TestLeaderboardCommandRejectsBadLimit(t *testing.T) {
	rec := newRecorder(1)
	runBot(t, rec, store.NewKeeper(), testConfig(t), &fakeScanner{}, &fakeResolver{}, discord.Message{
		ID:        "m1",
		GuildID:   "g",
		ChannelID: "c",
		AuthorID:  "1",
		Content:   "!leaderboard zero",
	})

	sent, _ := rec.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "Board size must be a positive, non-zero number", sent[0].Contents)
}

func TestKarmaCommand(t *testing.T) {
	keeper := store.NewKeeper()
	keeper.Current().IngestBulk("g", "1", 3, 1)

	t.Run("own karma", func(t *testing.T) {
		rec := newRecorder(1)
		resolver := &fakeResolver{names: map[string]string{"1": "alice"}}
		runBot(t, rec, keeper, testConfig(t), &fakeScanner{}, resolver, discord.Message{
			ID:        "m1",
			GuildID:   "g",
			ChannelID: "c",
			AuthorID:  "1",
			Content:   "!karma",
		})

		sent, _ := rec.snapshot()
		require.Len(t, sent, 1)
		assert.Equal(t, "alice: 2 (⬆️ 3, ⬇️ 1)", sent[0].Contents)
	})

	t.Run("mentioned user with no karma", func(t *testing.T) {
		rec := newRecorder(1)
		resolver := &fakeResolver{names: map[string]string{"1": "alice", "2": "bob"}}
		runBot(t, rec, keeper, testConfig(t), &fakeScanner{}, resolver, discord.Message{
			ID:         "m1",
			GuildID:    "g",
			ChannelID:  "c",
			AuthorID:   "1",
			Content:    "!karma <@2>",
			MentionIDs: []string{"2"},
		})

		sent, _ := rec.snapshot()
		require.Len(t, sent, 1)
		assert.Equal(t, "bob has no karma yet.", sent[0].Contents)
	})
}

func TestConfigCommand(t *testing.T) {
	t.Run("accepted change is acknowledged with a reaction", func(t *testing.T) {
		rec := newRecorder(1)
		runBot(t, rec, store.NewKeeper(), testConfig(t), &fakeScanner{}, &fakeResolver{}, discord.Message{
			ID:        "m1",
			GuildID:   "g",
			ChannelID: "c",
			AuthorID:  "1",
			Content:   "!config leaderboard_return_limit 5",
		})

		sent, reactions := rec.snapshot()
		assert.Empty(t, sent)
		require.Len(t, reactions, 1)
		assert.Equal(t, sentReaction{ChannelID: "c", MessageID: "m1", EmojiID: "✅"}, reactions[0])
	})

	t.Run("rejected change reports the error", func(t *testing.T) {
		cfg := testConfig(t)
		rec := newRecorder(1)
		runBot(t, rec, store.NewKeeper(), cfg, &fakeScanner{}, &fakeResolver{}, discord.Message{
			ID:        "m1",
			GuildID:   "g",
			ChannelID: "c",
			AuthorID:  "1",
			Content:   "!config leaderboard_return_limit abc",
		})

		sent, reactions := rec.snapshot()
		assert.Empty(t, reactions)
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].Contents, "invalid config value")
		assert.Equal(t, 10, cfg.LeaderboardReturnLimit())
	})
}

func TestRescanCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", err: nil, want: "History scan complete."},
		{name: "failure", err: errors.New("boom"), want: "History scan failed; standings are unchanged."},
		{name: "already running", err: scan.ErrScanInProgress, want: "A history scan is already running."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder(1)
			runBot(t, rec, store.NewKeeper(), testConfig(t), &fakeScanner{err: tt.err}, &fakeResolver{}, discord.Message{
				ID:        "m1",
				GuildID:   "g",
				ChannelID: "c",
				AuthorID:  "1",
				Content:   "!rescan",
			})

			// The scan notification is sent from a goroutine.
			assert.Eventually(t, func() bool {
				sent, _ := rec.snapshot()
				return len(sent) == 1 && sent[0].Contents == tt.want
			}, time.Second, 10*time.Millisecond)
		})
	}
}

func TestResolveEmojis(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Set(config.KeyUpvoteReaction, "upkarma"))

	ResolveEmojis(cfg, &fakeEmojis{ids: map[string]string{"upkarma": "12345"}})

	d := cfg.Display()
	assert.Equal(t, "<:upkarma:12345>", d.Upvote)
	assert.Equal(t, "⬇️", d.Downvote)
}
