package transcript

import "sync/atomic"

// Cursor tracks the oldest and newest ids of the synced window. Both bounds
// only move outward; stale updates are ignored. Zero means unset.
type Cursor struct {
	oldest atomic.Uint64
	newest atomic.Uint64
}

func NewCursor() *Cursor {
	return &Cursor{}
}

func (c *Cursor) Oldest() (Snowflake, bool) {
	v := c.oldest.Load()
	return Snowflake(v), v != 0
}

func (c *Cursor) Newest() (Snowflake, bool) {
	v := c.newest.Load()
	return Snowflake(v), v != 0
}

// Seed sets both bounds from a page's extremes, widening whatever is already set.
func (c *Cursor) Seed(min, max Snowflake) {
	c.AdvanceOldest(min)
	c.AdvanceNewest(max)
}

// AdvanceOldest moves the oldest bound back to id. It reports whether the
// bound changed.
func (c *Cursor) AdvanceOldest(id Snowflake) bool {
	if id == 0 {
		return false
	}
	for {
		cur := c.oldest.Load()
		if cur != 0 && uint64(id) >= cur {
			return false
		}
		if c.oldest.CompareAndSwap(cur, uint64(id)) {
			return true
		}
	}
}

// AdvanceNewest moves the newest bound forward to id. It reports whether the
// bound changed.
func (c *Cursor) AdvanceNewest(id Snowflake) bool {
	if id == 0 {
		return false
	}
	for {
		cur := c.newest.Load()
		if uint64(id) <= cur {
			return false
		}
		if c.newest.CompareAndSwap(cur, uint64(id)) {
			return true
		}
	}
}
