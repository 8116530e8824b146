// Package snapshot holds the latest published model.Snapshot. Reads never
// block and never observe a partially built value.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

// Store is safe for concurrent use.
type Store struct {
	cur atomic.Pointer[model.Snapshot]
}

// New creates a Store holding initial, which should be the pre-first-cycle
// value from model.EmptySnapshot.
func New(initial *model.Snapshot) *Store {
	if initial == nil {
		initial = model.EmptySnapshot(model.Categories)
	}
	s := &Store{}
	s.cur.Store(initial)
	return s
}

// Current returns the latest snapshot. The result must not be modified.
func (s *Store) Current() *model.Snapshot {
	return s.cur.Load()
}

// Replace publishes next unconditionally.
func (s *Store) Replace(next *model.Snapshot) {
	if next == nil {
		return
	}
	for {
		prev := s.cur.Load()
		next.Sequence = prev.Sequence + 1
		if s.cur.CompareAndSwap(prev, next) {
			return
		}
	}
}

// Update derives a new snapshot from the current one and publishes it with a
// compare-and-swap, retrying if another writer published first. fn must not
// modify prev; it returns false to leave the store untouched. Update reports
// whether a snapshot was published.
func (s *Store) Update(fn func(prev *model.Snapshot) (*model.Snapshot, bool)) bool {
	for {
		prev := s.cur.Load()
		next, ok := fn(prev)
		if !ok || next == nil {
			return false
		}
		next.Sequence = prev.Sequence + 1
		if next.GeneratedAt.IsZero() {
			next.GeneratedAt = time.Now().UTC()
		}
		if s.cur.CompareAndSwap(prev, next) {
			return true
		}
	}
}
