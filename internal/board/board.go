// Package board renders ranked karma entries into display lines.
package board

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tallybot/tally/internal/karma"
	"github.com/tallybot/tally/internal/store"
)

// UnknownName stands in for users whose display name cannot be resolved.
const UnknownName = "<unknown>"

var log = logrus.StandardLogger().WithFields(logrus.Fields{
	"component": "board",
})

// Display supplies the rendered upvote/downvote symbols. Custom emoji need
// Discord's <:name:id> markup to show up in a message.
type Display struct {
	Upvote   string
	Downvote string
}

// NameResolver looks up a user's display name.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// FormatCounter renders one counter in the canonical display shape:
// net first, then the per-symbol breakdown.
func FormatCounter(c karma.Counter, d Display) string {
	return fmt.Sprintf("%d (%s %d, %s %d)", c.Net(), d.Upvote, c.Upvotes, d.Downvote, c.Downvotes)
}

// Format renders leaderboard entries into one line per entry. A failed name
// lookup substitutes UnknownName for that entry and keeps going; one broken
// lookup never discards the rest of the board.
func Format(ctx context.Context, entries []store.Entry, d Display, resolver NameResolver) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name, err := resolver.DisplayName(ctx, e.UserID)
		if err != nil {
			log.WithError(err).WithField("user_id", e.UserID).Warn("could not resolve display name")
			name = UnknownName
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, FormatCounter(e.Karma, d)))
	}
	return lines
}
