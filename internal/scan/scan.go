// Package scan rebuilds karma state from a bounded window of channel history.
package scan

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tallybot/tally/internal/metrics"
	"github.com/tallybot/tally/internal/reaction"
	"github.com/tallybot/tally/internal/store"
)

// ErrScanInProgress means a rescan is already running; rescans are
// single-flight because each one wants to publish a whole generation.
var ErrScanInProgress = errors.New("scan already in progress")

var log = logrus.StandardLogger().WithFields(logrus.Fields{
	"component": "scan",
})

// Channel is one text channel eligible for history replay.
type Channel struct {
	ID      string
	GuildID string
}

// MessageReaction is the current total for one emoji on one message.
type MessageReaction struct {
	Identity reaction.Identity
	Count    int64
}

// Message is the slice of a platform message the scanner needs: who wrote
// it, where, and what reactions it carries right now.
type Message struct {
	ID        string
	AuthorID  string
	Reactions []MessageReaction
}

// Source enumerates channels and pages through their recent history.
// Implementations are expected to honor ctx cancellation and deadlines.
type Source interface {
	Channels(ctx context.Context) ([]Channel, error)
	Messages(ctx context.Context, channelID string, limit int) ([]Message, error)
}

// Classifier maps reaction identities to karma roles.
type Classifier interface {
	Classify(reaction.Identity) reaction.Role
}

// Scanner rebuilds a fresh Store generation from history and publishes it
// through the Keeper on success. A failure or cancellation anywhere aborts
// without publishing, leaving the prior generation authoritative.
type Scanner struct {
	keeper      *store.Keeper
	source      Source
	concurrency int

	running atomic.Bool
}

// New returns a Scanner. Concurrency bounds the per-channel fan-out; values
// below 1 are treated as 1.
func New(keeper *store.Keeper, source Source, concurrency int) *Scanner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scanner{
		keeper:      keeper,
		source:      source,
		concurrency: concurrency,
	}
}

// Run fetches up to messageLimit recent messages from every accessible text
// channel, tallies each message's current upvote/downvote reaction totals
// against a fresh Store, and publishes it. Cost is bounded by
// channels × messageLimit.
func (s *Scanner) Run(ctx context.Context, classifier Classifier, messageLimit int) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	defer s.running.Store(false)

	scanID := uuid.NewString()
	logger := log.WithField("scan_id", scanID)

	start := time.Now()
	logger.WithField("message_limit", messageLimit).Info("starting history scan")

	s.keeper.BeginRebuild()
	next := store.New()

	channels, err := s.source.Channels(ctx)
	if err != nil {
		s.keeper.AbortRebuild()
		metrics.ScansTotal.WithLabelValues("failed").Inc()
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, ch := range channels {
		ch := ch
		g.Go(func() error {
			return s.scanChannel(ctx, next, classifier, ch, messageLimit)
		})
	}

	if err := g.Wait(); err != nil {
		s.keeper.AbortRebuild()
		metrics.ScansTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("history scan aborted without publishing")
		return err
	}

	s.keeper.Publish(next)
	metrics.ScansTotal.WithLabelValues("ok").Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	logger.WithFields(logrus.Fields{
		"channels": len(channels),
		"took":     time.Since(start),
	}).Info("history scan published")
	return nil
}

func (s *Scanner) scanChannel(ctx context.Context, dst *store.Store, classifier Classifier, ch Channel, messageLimit int) error {
	messages, err := s.source.Messages(ctx, ch.ID, messageLimit)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		var up, down int64
		for _, r := range msg.Reactions {
			switch classifier.Classify(r.Identity) {
			case reaction.Upvote:
				up += r.Count
			case reaction.Downvote:
				down += r.Count
			}
		}
		if up == 0 && down == 0 {
			continue
		}
		dst.IngestBulk(ch.GuildID, msg.AuthorID, up, down)
	}

	metrics.ScannedMessages.Add(float64(len(messages)))
	return nil
}
