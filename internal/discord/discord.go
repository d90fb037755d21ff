// Package discord adapts a discordgo session to the interfaces the karma
// engine consumes: channel enumeration, bounded history retrieval, live
// reaction events, and user lookups.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tallybot/tally/internal/live"
	"github.com/tallybot/tally/internal/reaction"
	"github.com/tallybot/tally/internal/scan"
)

// historyPageSize is the most messages Discord returns per history request.
const historyPageSize = 100

type Token string

// Dialer opens authenticated Discord sessions.
type Dialer struct {
	token Token
}

func NewDialer(token Token) *Dialer {
	return &Dialer{token: token}
}

func (d *Dialer) Dial() (*Session, error) {
	s, err := discordgo.New("Bot " + string(d.token))
	if err != nil {
		return nil, err
	}

	s.Identify.Intents |= discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentGuildEmojis |
		discordgo.IntentMessageContent

	if err := s.Open(); err != nil {
		return nil, err
	}

	return &Session{s: s}, nil
}

// Message is an inbound guild message, stripped down to what the command
// loop needs.
type Message struct {
	ID         string
	GuildID    string
	ChannelID  string
	AuthorID   string
	Content    string
	MentionIDs []string
}

// Session wraps a connected discordgo session.
type Session struct {
	s         *discordgo.Session
	messages  chan Message
	reactions chan live.Event
}

// NewSession dials Discord and begins streaming guild messages and reaction
// events. The returned detach function unhooks the handlers and closes the
// underlying session.
func NewSession(dialer *Dialer) (*Session, func(), error) {
	s, err := dialer.Dial()
	if err != nil {
		return nil, nil, err
	}

	s.messages = make(chan Message)
	s.reactions = make(chan live.Event)
	messages, reactions := s.messages, s.reactions

	detachMessage := s.s.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageCreate) {
		// Ignore messages from self.
		if ds.State.User.ID == m.Author.ID {
			return
		}

		// No DMs.
		if len(m.GuildID) == 0 {
			return
		}

		msg := Message{
			ID:        m.ID,
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			AuthorID:  m.Author.ID,
			Content:   m.Content,
		}
		for _, u := range m.Mentions {
			msg.MentionIDs = append(msg.MentionIDs, u.ID)
		}

		messages <- msg
	})

	detachAdd := s.s.AddHandler(func(ds *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if ev, ok := reactionEvent(ds, r.MessageReaction, true); ok {
			reactions <- ev
		}
	})

	detachRemove := s.s.AddHandler(func(ds *discordgo.Session, r *discordgo.MessageReactionRemove) {
		if ev, ok := reactionEvent(ds, r.MessageReaction, false); ok {
			reactions <- ev
		}
	})

	detach := func() {
		detachMessage()
		detachAdd()
		detachRemove()
		_ = s.s.Close()
	}
	return s, detach, nil
}

func reactionEvent(ds *discordgo.Session, r *discordgo.MessageReaction, added bool) (live.Event, bool) {
	if ds.State.User.ID == r.UserID {
		return live.Event{}, false
	}
	if len(r.GuildID) == 0 {
		return live.Event{}, false
	}

	return live.Event{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		ReactorID: r.UserID,
		Identity:  identityOf(&r.Emoji),
		Added:     added,
	}, true
}

// MessageEvents streams inbound guild messages.
func (s *Session) MessageEvents() <-chan Message {
	return s.messages
}

// ReactionEvents streams reaction add/remove events.
func (s *Session) ReactionEvents() <-chan live.Event {
	return s.reactions
}

// SendMessageToChannel posts msg to a channel.
func (s *Session) SendMessageToChannel(channelID, msg string) error {
	_, err := s.s.ChannelMessageSend(channelID, msg)
	return err
}

// ReactToMessageWithEmoji acknowledges a message with an emoji reaction.
func (s *Session) ReactToMessageWithEmoji(channelID, messageID, emojiID string) error {
	return s.s.MessageReactionAdd(channelID, messageID, emojiID)
}

// HeartbeatLatency is the round trip time of the last gateway heartbeat.
func (s *Session) HeartbeatLatency() time.Duration {
	return s.s.HeartbeatLatency()
}

// Username is the bot's own account name.
func (s *Session) Username() string {
	return s.s.State.User.Username
}

// Channels lists every accessible guild text channel known to the session
// state.
func (s *Session) Channels(ctx context.Context) ([]scan.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var channels []scan.Channel
	s.s.State.RLock()
	defer s.s.State.RUnlock()
	for _, guild := range s.s.State.Guilds {
		for _, ch := range guild.Channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			channels = append(channels, scan.Channel{ID: ch.ID, GuildID: guild.ID})
		}
	}
	return channels, nil
}

// Messages pages backwards through a channel's history, newest first, up to
// limit messages.
func (s *Session) Messages(ctx context.Context, channelID string, limit int) ([]scan.Message, error) {
	var out []scan.Message

	before := ""
	for limit > 0 {
		n := limit
		if n > historyPageSize {
			n = historyPageSize
		}

		batch, err := s.s.ChannelMessages(channelID, n, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("channel %s history: %w", channelID, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, m := range batch {
			if m.Author == nil {
				continue
			}
			msg := scan.Message{ID: m.ID, AuthorID: m.Author.ID}
			for _, r := range m.Reactions {
				msg.Reactions = append(msg.Reactions, scan.MessageReaction{
					Identity: identityOf(r.Emoji),
					Count:    int64(r.Count),
				})
			}
			out = append(out, msg)
		}

		before = batch[len(batch)-1].ID
		limit -= len(batch)
	}

	return out, nil
}

// MessageAuthor resolves the author of a message; reaction event payloads
// do not carry it.
func (s *Session) MessageAuthor(ctx context.Context, channelID, messageID string) (string, error) {
	if m, err := s.s.State.Message(channelID, messageID); err == nil && m.Author != nil {
		return m.Author.ID, nil
	}

	m, err := s.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if m.Author == nil {
		return "", fmt.Errorf("message %s has no author", messageID)
	}
	return m.Author.ID, nil
}

// DisplayName resolves a user's display name.
func (s *Session) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := s.s.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if u.GlobalName != "" {
		return u.GlobalName, nil
	}
	return u.Username, nil
}

// ResolveEmoji searches the connected guilds for a custom emoji with the
// given name and returns its ID.
func (s *Session) ResolveEmoji(name string) (string, bool) {
	s.s.State.RLock()
	defer s.s.State.RUnlock()
	for _, guild := range s.s.State.Guilds {
		for _, e := range guild.Emojis {
			if e.Name == name {
				return e.ID, true
			}
		}
	}
	return "", false
}

func identityOf(e *discordgo.Emoji) reaction.Identity {
	if e == nil {
		return reaction.Identity{}
	}
	if e.ID != "" {
		return reaction.Custom(e.Name, e.ID)
	}
	return reaction.Standard(e.Name)
}
