// Package store is the in-memory karma state: per-guild ledgers of per-user
// counters, plus the Keeper that owns the currently published generation.
package store

import (
	"errors"
	"sync"

	"github.com/tallybot/tally/internal/karma"
	"github.com/tallybot/tally/internal/reaction"
)

var (
	// ErrNotFound means the user has no recorded karma in that guild.
	ErrNotFound = errors.New("no karma recorded")

	// ErrUnknownGuild means the guild has never been seen at all, as
	// opposed to a guild that exists with no data yet.
	ErrUnknownGuild = errors.New("unknown guild")
)

// Store maps guilds to ledgers. One Store is one generation of karma state:
// a rescan builds a fresh Store off to the side and the Keeper swaps it in
// wholesale. The top-level map lock is held only for routing and lazy guild
// creation; all tallying happens under the per-guild ledger lock.
type Store struct {
	mu     sync.RWMutex
	guilds map[string]*Ledger
}

// New returns an empty Store.
func New() *Store {
	return &Store{guilds: make(map[string]*Ledger)}
}

// IngestBulk routes a bulk message tally to the guild's ledger, creating the
// ledger if this is the first touch.
func (s *Store) IngestBulk(guildID, userID string, up, down int64) {
	s.ledger(guildID).IngestBulk(userID, up, down)
}

// Adjust routes a single ±1 live delta to the guild's ledger. A negative
// delta for a guild that has never been seen is a no-op, for the same reason
// the ledger refuses to materialize phantom entries.
func (s *Store) Adjust(guildID, userID string, role reaction.Role, delta int64) {
	if delta < 0 {
		l, ok := s.peek(guildID)
		if !ok {
			return
		}
		l.Adjust(userID, role, delta)
		return
	}
	s.ledger(guildID).Adjust(userID, role, delta)
}

// UserKarma returns the recorded counter for a user in a guild.
func (s *Store) UserKarma(guildID, userID string) (karma.Counter, error) {
	l, ok := s.peek(guildID)
	if !ok {
		return karma.Counter{}, ErrUnknownGuild
	}
	return l.Get(userID)
}

// Leaderboard returns the ranked entries for a guild. An empty slice with a
// nil error means the guild exists but nobody has karma yet.
func (s *Store) Leaderboard(guildID string, limit int) ([]Entry, error) {
	l, ok := s.peek(guildID)
	if !ok {
		return nil, ErrUnknownGuild
	}
	return l.Leaderboard(limit), nil
}

func (s *Store) ledger(guildID string) *Ledger {
	s.mu.RLock()
	l, ok := s.guilds[guildID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok = s.guilds[guildID]
	if !ok {
		l = newLedger()
		s.guilds[guildID] = l
	}
	return l
}

func (s *Store) peek(guildID string) (*Ledger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.guilds[guildID]
	return l, ok
}
