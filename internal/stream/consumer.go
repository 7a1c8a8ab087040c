// Package stream implements the cursor-based incremental consumer used to
// follow the backend's append-only log and frame windows without loss or
// duplication over a pull transport.
package stream

import (
	"context"
	"fmt"
	"sort"
)

// CursorStart is the cursor sentinel before any entry has been consumed.
// Backend stream ids start at 0.
const CursorStart = -1

// Fetch retrieves the backend's full current window for one stream.
type Fetch[T any] func(ctx context.Context) ([]T, error)

// Sink receives each batch of newly observed entries, in arrival order.
// The batch is handed over before previously retained material so that
// rendering is newest-first.
type Sink[T any] func(batch []T)

// Consumer follows a single monotonically-increasing stream. One instance
// per stream; the cursor survives view toggles so no history is lost.
type Consumer[T any] struct {
	fetch  Fetch[T]
	id     func(T) uint64
	sink   Sink[T]
	maxLen int

	cursor  int64
	history []T // newest first
}

// New creates a consumer. maxLen bounds the retained history; entries
// beyond the cap are evicted oldest-first.
func New[T any](fetch Fetch[T], id func(T) uint64, sink Sink[T], maxLen int) *Consumer[T] {
	return &Consumer[T]{
		fetch:  fetch,
		id:     id,
		sink:   sink,
		maxLen: maxLen,
		cursor: CursorStart,
	}
}

// Cursor returns the highest id consumed so far, or CursorStart.
func (c *Consumer[T]) Cursor() int64 { return c.cursor }

// History returns the retained entries, newest first.
func (c *Consumer[T]) History() []T { return c.history }

// Poll fetches the current window and delivers entries newer than the
// cursor. An empty delta is a strict no-op: cursor, history and sink are
// all left untouched. Fetch errors are swallowed so the next successful
// poll resumes from the correct point.
func (c *Consumer[T]) Poll(ctx context.Context) {
	window, err := c.fetch(ctx)
	if err != nil {
		fmt.Printf("[stream] poll failed: %v\n", err)
		return
	}

	var fresh []T
	maxID := c.cursor
	for _, e := range window {
		id := int64(c.id(e))
		if id <= c.cursor {
			continue
		}
		fresh = append(fresh, e)
		if id > maxID {
			maxID = id
		}
	}
	if len(fresh) == 0 {
		return
	}

	c.cursor = maxID
	if c.sink != nil {
		c.sink(fresh)
	}

	c.history = append(append([]T{}, fresh...), c.history...)
	c.evict()
}

// evict drops the lowest-id entries beyond the cap. Batches are prepended
// newest-first but kept in arrival order internally, so the oldest entries
// sit at the front of the tail batch, not at the end of the slice.
func (c *Consumer[T]) evict() {
	overflow := len(c.history) - c.maxLen
	if overflow <= 0 {
		return
	}
	ids := make([]uint64, len(c.history))
	for i, e := range c.history {
		ids[i] = c.id(e)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	cutoff := ids[overflow-1]

	kept := c.history[:0]
	for _, e := range c.history {
		if c.id(e) > cutoff {
			kept = append(kept, e)
		}
	}
	c.history = kept
}
