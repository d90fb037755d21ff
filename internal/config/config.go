// Package config is the bot's persisted runtime configuration: a UTF-8 text
// file of key=value lines, rewritten in full on every accepted change.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tallybot/tally/internal/board"
	"github.com/tallybot/tally/internal/reaction"
)

var log = logrus.StandardLogger().WithFields(logrus.Fields{
	"component": "config",
})

// ErrUnknownKey indicates a key outside the recognized schema.
type ErrUnknownKey struct {
	Key string
}

func (e ErrUnknownKey) Error() string {
	return fmt.Sprintf("invalid config key: %s", e.Key)
}

// ErrBadValue indicates a value that does not parse as the key's type.
type ErrBadValue struct {
	Key   string
	Value string
}

func (e ErrBadValue) Error() string {
	return fmt.Sprintf("invalid config value: %s=%s, %s should be a number", e.Key, e.Value, e.Value)
}

// ErrBadPolicy indicates a reaction change that would break the
// classification policy.
type ErrBadPolicy struct {
	Key   string
	Value string
}

func (e ErrBadPolicy) Error() string {
	return fmt.Sprintf("invalid config value: %s=%s, upvote and downvote reactions must differ", e.Key, e.Value)
}

const (
	KeyLeaderboardReturnLimit = "leaderboard_return_limit"
	KeyUpvoteReaction         = "upvote_reaction"
	KeyDownvoteReaction       = "downvote_reaction"
	KeyScanMessageLimit       = "scan_message_limit"
	KeyScanConcurrency        = "scan_concurrency"
)

// persistOrder fixes the on-disk layout. Resolved emoji handles are
// runtime-only and never written.
var persistOrder = []string{
	KeyLeaderboardReturnLimit,
	KeyUpvoteReaction,
	KeyDownvoteReaction,
	KeyScanMessageLimit,
	KeyScanConcurrency,
}

// Config holds the runtime settings. All accessors are safe for concurrent
// use; operator commands mutate it while scans and live events read it.
type Config struct {
	mu   sync.RWMutex
	path string

	leaderboardReturnLimit int
	upvoteReaction         string
	downvoteReaction       string
	scanMessageLimit       int
	scanConcurrency        int

	// Custom emoji handles resolved against the connected guilds.
	// Excluded from persistence.
	upvoteEmojiID   string
	downvoteEmojiID string
}

func defaults(path string) *Config {
	return &Config{
		path:                   path,
		leaderboardReturnLimit: 10,
		upvoteReaction:         "⬆️",
		downvoteReaction:       "⬇️",
		scanMessageLimit:       1000,
		scanConcurrency:        4,
	}
}

// Load reads the config file at path, creating it with defaults when it does
// not exist. Malformed lines, unknown keys, and unparsable values are logged
// and skipped; they never abort the rest of the load. The file is rewritten
// after loading so defaults for missing keys end up on disk.
func Load(path string) (*Config, error) {
	cfg := defaults(path)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, cfg.save()
	}
	if err != nil {
		return nil, err
	}

	cfg.read(f)
	if err := f.Close(); err != nil {
		return nil, err
	}

	return cfg, cfg.save()
}

func (c *Config) read(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			log.WithField("line", line).Warn("invalid config file line")
			continue
		}

		if err := c.set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			log.WithError(err).Warn("skipping config line, keeping default")
		}
	}
}

// Set validates and applies a single change and, when accepted, rewrites the
// config file in full. Rejected changes leave both memory and disk untouched.
func (c *Config) Set(key, value string) error {
	c.mu.Lock()
	err := c.setLocked(key, value)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.save()
}

func (c *Config) set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(key, value)
}

func (c *Config) setLocked(key, value string) error {
	switch key {
	case KeyLeaderboardReturnLimit:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ErrBadValue{Key: key, Value: value}
		}
		c.leaderboardReturnLimit = n
	case KeyScanMessageLimit:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ErrBadValue{Key: key, Value: value}
		}
		c.scanMessageLimit = n
	case KeyScanConcurrency:
		n, err := strconv.Atoi(value)
		if err != nil {
			return ErrBadValue{Key: key, Value: value}
		}
		c.scanConcurrency = n
	case KeyUpvoteReaction:
		if value == c.downvoteReaction {
			return ErrBadPolicy{Key: key, Value: value}
		}
		c.upvoteReaction = value
		c.upvoteEmojiID = ""
	case KeyDownvoteReaction:
		if value == c.upvoteReaction {
			return ErrBadPolicy{Key: key, Value: value}
		}
		c.downvoteReaction = value
		c.downvoteEmojiID = ""
	default:
		return ErrUnknownKey{Key: key}
	}
	return nil
}

func (c *Config) save() error {
	c.mu.RLock()
	values := map[string]string{
		KeyLeaderboardReturnLimit: strconv.Itoa(c.leaderboardReturnLimit),
		KeyUpvoteReaction:         c.upvoteReaction,
		KeyDownvoteReaction:       c.downvoteReaction,
		KeyScanMessageLimit:       strconv.Itoa(c.scanMessageLimit),
		KeyScanConcurrency:        strconv.Itoa(c.scanConcurrency),
	}
	path := c.path
	c.mu.RUnlock()

	if path == "" {
		return nil
	}

	var sb strings.Builder
	for _, key := range persistOrder {
		fmt.Fprintf(&sb, "%s=%s\n", key, values[key])
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// SetResolvedEmoji attaches the guild emoji ID resolved for a configured
// reaction name. Runtime-only; never persisted.
func (c *Config) SetResolvedEmoji(key, emojiID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch key {
	case KeyUpvoteReaction:
		c.upvoteEmojiID = emojiID
	case KeyDownvoteReaction:
		c.downvoteEmojiID = emojiID
	}
}

// ReactionNames returns the configured upvote and downvote reaction names.
func (c *Config) ReactionNames() (up, down string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.upvoteReaction, c.downvoteReaction
}

// LeaderboardReturnLimit is the default leaderboard size.
func (c *Config) LeaderboardReturnLimit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.leaderboardReturnLimit
}

// ScanMessageLimit bounds how many recent messages a scan reads per channel.
func (c *Config) ScanMessageLimit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanMessageLimit
}

// ScanConcurrency bounds the scanner's per-channel fan-out.
func (c *Config) ScanConcurrency() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanConcurrency
}

// Policy builds the classification policy from the configured reactions,
// qualified with resolved custom emoji IDs when present.
func (c *Config) Policy() reaction.Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	up := reaction.Standard(c.upvoteReaction)
	if c.upvoteEmojiID != "" {
		up = reaction.Custom(c.upvoteReaction, c.upvoteEmojiID)
	}
	down := reaction.Standard(c.downvoteReaction)
	if c.downvoteEmojiID != "" {
		down = reaction.Custom(c.downvoteReaction, c.downvoteEmojiID)
	}
	return reaction.Policy{Up: up, Down: down}
}

// Classify implements the classifier interface over the current policy.
func (c *Config) Classify(i reaction.Identity) reaction.Role {
	return c.Policy().Classify(i)
}

// Display renders the configured reactions for message output. Custom emoji
// get Discord's <:name:id> markup.
func (c *Config) Display() board.Display {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := board.Display{
		Upvote:   c.upvoteReaction,
		Downvote: c.downvoteReaction,
	}
	if c.upvoteEmojiID != "" {
		d.Upvote = fmt.Sprintf("<:%s:%s>", c.upvoteReaction, c.upvoteEmojiID)
	}
	if c.downvoteEmojiID != "" {
		d.Downvote = fmt.Sprintf("<:%s:%s>", c.downvoteReaction, c.downvoteEmojiID)
	}
	return d
}
