// Package karma holds the per-user vote accumulator.
package karma

// Counter accumulates upvotes and downvotes for one user in one guild.
// Neither field is clamped; a removal delta assumes a matching prior
// addition was recorded.
type Counter struct {
	Upvotes   int64
	Downvotes int64
}

// Apply adds signed deltas to the counter.
func (c *Counter) Apply(up, down int64) {
	c.Upvotes += up
	c.Downvotes += down
}

// Net is upvotes minus downvotes.
func (c Counter) Net() int64 {
	return c.Upvotes - c.Downvotes
}
