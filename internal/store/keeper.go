package store

import (
	"sync"

	"github.com/tallybot/tally/internal/karma"
	"github.com/tallybot/tally/internal/reaction"
)

type delta struct {
	guildID string
	userID  string
	role    reaction.Role
	amount  int64
}

// Keeper owns the published Store generation. Readers and live adjustments
// always see a fully built generation; a rescan stages its replacement off to
// the side and Publish swaps it in atomically.
//
// While a rebuild is staging, live deltas keep landing on the published store
// for responsiveness and are journaled in arrival order. Publish replays the
// journal against the incoming store before it becomes visible, so no live
// update is lost across the swap. Abort throws the journal away along with
// the staged store.
type Keeper struct {
	mu      sync.RWMutex
	current *Store

	jmu     sync.Mutex
	journal []delta
	staging bool
}

// NewKeeper returns a Keeper holding an empty first generation.
func NewKeeper() *Keeper {
	return &Keeper{current: New()}
}

// Current returns the published generation.
func (k *Keeper) Current() *Store {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// Adjust applies a live ±1 delta to the published generation, journaling it
// if a rebuild is in flight. Adjustments to different guilds run
// concurrently; only the brief journal append is shared.
func (k *Keeper) Adjust(guildID, userID string, role reaction.Role, amount int64) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	k.current.Adjust(guildID, userID, role, amount)

	k.jmu.Lock()
	if k.staging {
		k.journal = append(k.journal, delta{guildID, userID, role, amount})
	}
	k.jmu.Unlock()
}

// UserKarma queries the published generation.
func (k *Keeper) UserKarma(guildID, userID string) (karma.Counter, error) {
	return k.Current().UserKarma(guildID, userID)
}

// Leaderboard queries the published generation.
func (k *Keeper) Leaderboard(guildID string, limit int) ([]Entry, error) {
	return k.Current().Leaderboard(guildID, limit)
}

// BeginRebuild starts journaling live deltas for a staging rebuild.
func (k *Keeper) BeginRebuild() {
	k.jmu.Lock()
	k.staging = true
	k.journal = nil
	k.jmu.Unlock()
}

// AbortRebuild discards the journal; the published generation is untouched.
func (k *Keeper) AbortRebuild() {
	k.jmu.Lock()
	k.staging = false
	k.journal = nil
	k.jmu.Unlock()
}

// Publish replays the journaled deltas onto next and swaps it in as the
// published generation. The exclusive lock holds off concurrent Adjust calls
// for the duration of the replay, which closes the window where a delta
// could land on the old generation and miss the new one.
func (k *Keeper) Publish(next *Store) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.jmu.Lock()
	journal := k.journal
	k.staging = false
	k.journal = nil
	k.jmu.Unlock()

	for _, d := range journal {
		next.Adjust(d.guildID, d.userID, d.role, d.amount)
	}
	k.current = next
}
