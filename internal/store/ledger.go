package store

import (
	"sort"
	"sync"

	"github.com/tallybot/tally/internal/karma"
	"github.com/tallybot/tally/internal/reaction"
)

// Entry is one leaderboard row.
type Entry struct {
	UserID string
	Karma  karma.Counter
}

// Ledger maps users to karma counters within a single guild. Entries are
// created lazily on first touch. A Ledger has its own lock so mutations in
// one guild never block another guild's.
type Ledger struct {
	mu    sync.Mutex
	users map[string]*karma.Counter
}

func newLedger() *Ledger {
	return &Ledger{users: make(map[string]*karma.Counter)}
}

// IngestBulk adds the final observed reaction tally for one message.
func (l *Ledger) IngestBulk(userID string, up, down int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counter(userID).Apply(up, down)
}

// Adjust applies a single ±1 delta to the counter field named by role.
// A negative delta for a user with no recorded entry is a no-op so that
// reaction removals never materialize phantom negative entries.
func (l *Ledger) Adjust(userID string, role reaction.Role, delta int64) {
	if role == reaction.Neutral || delta == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if delta < 0 {
		if _, ok := l.users[userID]; !ok {
			return
		}
	}

	c := l.counter(userID)
	switch role {
	case reaction.Upvote:
		c.Apply(delta, 0)
	case reaction.Downvote:
		c.Apply(0, delta)
	}
}

// Get returns the recorded counter for a user, or ErrNotFound if the user
// has never been tallied in this guild.
func (l *Ledger) Get(userID string) (karma.Counter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.users[userID]
	if !ok {
		return karma.Counter{}, ErrNotFound
	}
	return *c, nil
}

// Leaderboard returns up to limit entries ordered by net karma descending,
// ties broken by user ID ascending.
func (l *Ledger) Leaderboard(limit int) []Entry {
	l.mu.Lock()
	entries := make([]Entry, 0, len(l.users))
	for id, c := range l.users {
		entries = append(entries, Entry{UserID: id, Karma: *c})
	}
	l.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		ni, nj := entries[i].Karma.Net(), entries[j].Karma.Net()
		if ni != nj {
			return ni > nj
		}
		return entries[i].UserID < entries[j].UserID
	})

	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (l *Ledger) counter(userID string) *karma.Counter {
	c, ok := l.users[userID]
	if !ok {
		c = &karma.Counter{}
		l.users[userID] = c
	}
	return c
}
