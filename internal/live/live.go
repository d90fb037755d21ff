// Package live applies individual reaction add/remove events to the
// published karma store.
package live

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tallybot/tally/internal/metrics"
	"github.com/tallybot/tally/internal/reaction"
	"github.com/tallybot/tally/internal/store"
)

var log = logrus.StandardLogger().WithFields(logrus.Fields{
	"component": "live",
})

// Event is a single reaction added to or removed from a message. The
// payload does not carry the message author; that has to be looked up.
type Event struct {
	GuildID   string
	ChannelID string
	MessageID string
	ReactorID string
	Identity  reaction.Identity
	Added     bool
}

// AuthorLookup resolves the author of a message. The message may no longer
// exist, in which case the lookup fails and the event is dropped.
type AuthorLookup interface {
	MessageAuthor(ctx context.Context, channelID, messageID string) (string, error)
}

// Classifier maps reaction identities to karma roles.
type Classifier interface {
	Classify(reaction.Identity) reaction.Role
}

// Processor turns reaction events into ±1 adjustments on the keeper.
type Processor struct {
	keeper  *store.Keeper
	authors AuthorLookup
}

func NewProcessor(keeper *store.Keeper, authors AuthorLookup) *Processor {
	return &Processor{
		keeper:  keeper,
		authors: authors,
	}
}

// HandleReactionChange classifies the event and adjusts the message
// author's counter. Neutral reactions and events whose author cannot be
// resolved are dropped whole; no partial adjustment is ever applied.
func (p *Processor) HandleReactionChange(ctx context.Context, classifier Classifier, ev Event) {
	role := classifier.Classify(ev.Identity)
	if role == reaction.Neutral {
		metrics.DroppedEvents.WithLabelValues("neutral").Inc()
		return
	}

	logger := log.WithFields(logrus.Fields{
		"guild_id":   ev.GuildID,
		"channel_id": ev.ChannelID,
		"message_id": ev.MessageID,
		"role":       role.String(),
		"added":      ev.Added,
	})

	authorID, err := p.authors.MessageAuthor(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		metrics.DroppedEvents.WithLabelValues("author_lookup").Inc()
		logger.WithError(err).Warn("dropping reaction event, author lookup failed")
		return
	}

	delta := int64(1)
	action := "add"
	if !ev.Added {
		delta = -1
		action = "remove"
	}

	p.keeper.Adjust(ev.GuildID, authorID, role, delta)
	metrics.ReactionEvents.WithLabelValues(action, role.String()).Inc()
}
