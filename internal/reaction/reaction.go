// Package reaction classifies reaction emoji into karma roles.
package reaction

import "errors"

var (
	ErrEmptyIdentity     = errors.New("reaction identity has no name")
	ErrIdentitiesCollide = errors.New("upvote and downvote identities are the same")
)

// Identity is a single reaction emoji. Standard (unicode) emoji carry only
// their symbol; custom guild emoji carry a name and a snowflake ID. Discord
// delivers customs bare-named during history replay and fully qualified in
// live gateway events, so comparisons always go through Key.
type Identity struct {
	Name string
	ID   string
}

// Standard returns the identity of a built-in unicode emoji.
func Standard(symbol string) Identity {
	return Identity{Name: symbol}
}

// Custom returns the identity of a guild-specific emoji.
func Custom(name, id string) Identity {
	return Identity{Name: name, ID: id}
}

// IsCustom reports whether the identity refers to a guild emoji.
func (i Identity) IsCustom() bool {
	return i.ID != ""
}

// Key is the canonical comparison key. Customs compare by name because the
// configured policy only knows the name; the snowflake is a per-guild detail.
func (i Identity) Key() string {
	return i.Name
}

// Role is what a reaction means for karma.
type Role int

const (
	Neutral Role = iota
	Upvote
	Downvote
)

func (r Role) String() string {
	switch r {
	case Upvote:
		return "upvote"
	case Downvote:
		return "downvote"
	default:
		return "neutral"
	}
}

// Policy maps exactly one identity to Upvote and one to Downvote. Everything
// else is Neutral.
type Policy struct {
	Up   Identity
	Down Identity
}

// NewPolicy validates and returns a classification policy.
func NewPolicy(up, down Identity) (Policy, error) {
	if up.Key() == "" || down.Key() == "" {
		return Policy{}, ErrEmptyIdentity
	}
	if up.Key() == down.Key() {
		return Policy{}, ErrIdentitiesCollide
	}
	return Policy{Up: up, Down: down}, nil
}

// Classify maps an identity to its role under this policy.
func (p Policy) Classify(i Identity) Role {
	switch i.Key() {
	case p.Up.Key():
		return Upvote
	case p.Down.Key():
		return Downvote
	default:
		return Neutral
	}
}
