// Package bot is the operator command surface: it consumes inbound guild
// messages and serves leaderboard, karma, config, and rescan commands.
package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tallybot/tally/internal/board"
	"github.com/tallybot/tally/internal/command"
	"github.com/tallybot/tally/internal/config"
	"github.com/tallybot/tally/internal/discord"
	"github.com/tallybot/tally/internal/metrics"
	"github.com/tallybot/tally/internal/scan"
	"github.com/tallybot/tally/internal/store"
)

var log = logrus.StandardLogger().WithFields(logrus.Fields{
	"component": "bot",
})

type Session interface {
	SendMessageToChannel(channelID, msg string) error
	ReactToMessageWithEmoji(channelID, messageID, emojiID string) error
	MessageEvents() <-chan discord.Message
}

type Scanner interface {
	Run(ctx context.Context, classifier scan.Classifier, messageLimit int) error
}

// EmojiSource resolves a custom emoji name to its guild emoji ID.
type EmojiSource interface {
	ResolveEmoji(name string) (string, bool)
}

type Bot struct {
	session  Session
	keeper   *store.Keeper
	cfg      *config.Config
	scanner  Scanner
	resolver board.NameResolver
	emojis   EmojiSource
	router   *command.Router
}

func New(session Session, keeper *store.Keeper, cfg *config.Config, scanner Scanner, resolver board.NameResolver, emojis EmojiSource, router *command.Router) *Bot {
	return &Bot{
		session:  session,
		keeper:   keeper,
		cfg:      cfg,
		scanner:  scanner,
		resolver: resolver,
		emojis:   emojis,
		router:   router,
	}
}

// ResolveEmojis attaches guild emoji IDs to the configured reaction names.
// Names that match no guild emoji stay standard unicode identities.
func ResolveEmojis(cfg *config.Config, emojis EmojiSource) {
	up, down := cfg.ReactionNames()
	if id, ok := emojis.ResolveEmoji(up); ok {
		cfg.SetResolvedEmoji(config.KeyUpvoteReaction, id)
	}
	if id, ok := emojis.ResolveEmoji(down); ok {
		cfg.SetResolvedEmoji(config.KeyDownvoteReaction, id)
	}
}

// Listen serves commands until ctx is canceled or the message stream closes.
func (b *Bot) Listen(ctx context.Context) error {
	messages := b.session.MessageEvents()
	log.Info("ready to process commands")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("discord message stream closed")
			}

			args, remainder := b.router.Route(msg.Content)

			switch a := args.(type) {
			case *command.LeaderboardArgs:
				b.handleLeaderboard(ctx, a, msg, remainder)

			case *command.CheckKarmaArgs:
				b.handleCheckKarma(ctx, a, msg, remainder)

			case *command.SetConfigArgs:
				b.handleSetConfig(ctx, a, msg, remainder)

			case *command.RescanArgs:
				b.handleRescan(ctx, msg)
			}
		}
	}
}

func (b *Bot) handleLeaderboard(ctx context.Context, args *command.LeaderboardArgs, msg discord.Message, content string) {
	metrics.Commands.WithLabelValues("leaderboard").Inc()
	logger := log.WithFields(logrus.Fields{
		"guild_id":   msg.GuildID,
		"channel_id": msg.ChannelID,
		"handler":    "leaderboard",
	})

	err := args.ParseArg(content)
	if errors.Is(err, command.ErrInvalidArgument) {
		b.send(logger, msg.ChannelID, `Board size must be a positive, non-zero number`)
		return
	}
	if err != nil {
		logger.WithError(err).Error("unexpected error from arg parser")
		return
	}

	limit := args.Limit
	if limit == 0 {
		limit = b.cfg.LeaderboardReturnLimit()
	}

	entries, err := b.keeper.Leaderboard(msg.GuildID, limit)
	if errors.Is(err, store.ErrUnknownGuild) || (err == nil && len(entries) == 0) {
		b.send(logger, msg.ChannelID, `No one has any karma yet.`)
		return
	}
	if err != nil {
		logger.WithError(err).Error("leaderboard query failed")
		return
	}

	lines := board.Format(ctx, entries, b.cfg.Display(), b.resolver)
	b.send(logger, msg.ChannelID, strings.Join(lines, "\n"))
}

func (b *Bot) handleCheckKarma(ctx context.Context, args *command.CheckKarmaArgs, msg discord.Message, content string) {
	metrics.Commands.WithLabelValues("karma").Inc()
	logger := log.WithFields(logrus.Fields{
		"guild_id":   msg.GuildID,
		"channel_id": msg.ChannelID,
		"handler":    "karma",
	})

	_ = args.ParseArg(content)

	target := msg.AuthorID
	if len(msg.MentionIDs) > 0 {
		target = msg.MentionIDs[0]
	}

	name, err := b.resolver.DisplayName(ctx, target)
	if err != nil {
		logger.WithError(err).WithField("user_id", target).Warn("could not resolve display name")
		name = board.UnknownName
	}

	counter, err := b.keeper.UserKarma(msg.GuildID, target)
	if errors.Is(err, store.ErrUnknownGuild) || errors.Is(err, store.ErrNotFound) {
		b.send(logger, msg.ChannelID, name+` has no karma yet.`)
		return
	}
	if err != nil {
		logger.WithError(err).Error("karma query failed")
		return
	}

	b.send(logger, msg.ChannelID, name+": "+board.FormatCounter(counter, b.cfg.Display()))
}

func (b *Bot) handleSetConfig(ctx context.Context, args *command.SetConfigArgs, msg discord.Message, content string) {
	metrics.Commands.WithLabelValues("config").Inc()
	logger := log.WithFields(logrus.Fields{
		"guild_id":   msg.GuildID,
		"channel_id": msg.ChannelID,
		"handler":    "config",
	})

	err := args.ParseArg(content)
	if errors.Is(err, command.ErrMissingArgument) {
		b.send(logger, msg.ChannelID, `Usage: config <key> <value>`)
		return
	}
	if err != nil {
		logger.WithError(err).Error("unexpected error from arg parser")
		return
	}

	if err := b.cfg.Set(args.Key, args.Value); err != nil {
		b.send(logger, msg.ChannelID, err.Error())
		return
	}

	// A changed reaction name may now refer to a guild emoji.
	if args.Key == config.KeyUpvoteReaction || args.Key == config.KeyDownvoteReaction {
		ResolveEmojis(b.cfg, b.emojis)
	}

	if err := b.session.ReactToMessageWithEmoji(msg.ChannelID, msg.ID, "✅"); err != nil {
		logger.WithError(err).Error("failed to react to message")
	}
}

func (b *Bot) handleRescan(ctx context.Context, msg discord.Message) {
	metrics.Commands.WithLabelValues("rescan").Inc()
	logger := log.WithFields(logrus.Fields{
		"guild_id":   msg.GuildID,
		"channel_id": msg.ChannelID,
		"handler":    "rescan",
	})

	go func() {
		err := b.scanner.Run(ctx, b.cfg, b.cfg.ScanMessageLimit())
		switch {
		case errors.Is(err, scan.ErrScanInProgress):
			b.send(logger, msg.ChannelID, `A history scan is already running.`)
		case err != nil:
			b.send(logger, msg.ChannelID, `History scan failed; standings are unchanged.`)
		default:
			b.send(logger, msg.ChannelID, `History scan complete.`)
		}
	}()
}

func (b *Bot) send(logger *logrus.Entry, channelID, msg string) {
	if err := b.session.SendMessageToChannel(channelID, msg); err != nil {
		logger.WithError(err).Error("failed to send message to Discord channel")
	}
}
