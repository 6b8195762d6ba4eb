// Package queue implements the two pagination strategies used over sets
// that mutate while a moderator works through them.
//
// Single-item moderation queues use the anchor strategy: any decision
// removes the current item from the underlying set, so the cursor re-anchors
// at the queue head instead of preserving a numeric offset. The oldest
// unresolved item is always surfaced next; "resume where I was" is
// deliberately sacrificed for FIFO fairness.
//
// Multi-item list views use the stable-key strategy (see
// store.ListVisibleEvents): pages are requested as "N items after id X",
// immune to concurrent removals shifting offsets.
package queue

import "sync"

// HeadCursor tracks a moderator's position in a destructive queue. Skip
// advances past items the moderator declines to decide; Reset (called after
// every decision) returns to the head so decided items never leave holes.
type HeadCursor struct {
	mu     sync.Mutex
	offset int
}

func NewHeadCursor() *HeadCursor { return &HeadCursor{} }

// Offset is the current read position. It counts only skipped items, never
// decided ones.
func (c *HeadCursor) Offset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Skip moves past the currently shown item without deciding it.
func (c *HeadCursor) Skip() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset++
	return c.offset
}

// Reset re-anchors at the queue head. Called after any decision, and when a
// read past the end of the queue comes back empty.
func (c *HeadCursor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

// Cursors holds one head cursor per moderation session key (admin id). A
// session that goes quiet is simply never advanced again; there is nothing
// to clean up.
type Cursors struct {
	mu sync.Mutex
	m  map[string]*HeadCursor
}

func NewCursors() *Cursors {
	return &Cursors{m: map[string]*HeadCursor{}}
}

func (cs *Cursors) For(key string) *HeadCursor {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c, ok := cs.m[key]
	if !ok {
		c = NewHeadCursor()
		cs.m[key] = c
	}
	return c
}
