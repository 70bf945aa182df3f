package replay

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Buffer is a fixed-capacity FIFO of transitions. Pushing at capacity
// overwrites the oldest entry. It is not safe for concurrent use; the agent
// owns it exclusively.
type Buffer struct {
	items    []Transition
	head     int // index of the oldest entry once full
	capacity int
	pushed   uint64
	evicted  uint64
	sampled  uint64
	rng      *rand.Rand
	now      func() time.Time
}

// NewBuffer creates a buffer holding at most capacity transitions.
func NewBuffer(capacity int, rng *rand.Rand) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("replay: capacity must be positive, got %d", capacity))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Buffer{
		items:    make([]Transition, 0, capacity),
		capacity: capacity,
		rng:      rng,
		now:      time.Now,
	}
}

// Push appends t, evicting the oldest transition when full.
func (b *Buffer) Push(t Transition) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = b.now()
	}
	b.pushed++

	if len(b.items) < b.capacity {
		b.items = append(b.items, t)
		return
	}
	b.items[b.head] = t
	b.head = (b.head + 1) % b.capacity
	b.evicted++
}

func (b *Buffer) Len() int { return len(b.items) }

func (b *Buffer) Cap() int { return b.capacity }

// Sample draws n distinct transitions uniformly at random.
func (b *Buffer) Sample(n int) ([]Transition, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > len(b.items) {
		return nil, fmt.Errorf("%w: requested %d, have %d", ErrInsufficientSamples, n, len(b.items))
	}

	// Floyd's algorithm: n distinct indices in O(n) without touching the
	// whole buffer.
	size := len(b.items)
	chosen := make(map[int]struct{}, n)
	out := make([]Transition, 0, n)
	for j := size - n; j < size; j++ {
		idx := b.rng.Intn(j + 1)
		if _, dup := chosen[idx]; dup {
			idx = j
		}
		chosen[idx] = struct{}{}
		out = append(out, b.items[idx])
	}
	b.sampled += uint64(n)
	return out, nil
}

// Snapshot returns the stored transitions from oldest to newest.
func (b *Buffer) Snapshot() []Transition {
	out := make([]Transition, 0, len(b.items))
	out = append(out, b.items[b.head:]...)
	out = append(out, b.items[:b.head]...)
	return out
}

// Stats reports buffer occupancy and lifetime counters.
func (b *Buffer) Stats() Stats {
	s := Stats{
		Size:         len(b.items),
		Capacity:     b.capacity,
		TotalPushed:  b.pushed,
		TotalEvicted: b.evicted,
		TotalSampled: b.sampled,
	}
	if len(b.items) > 0 {
		oldest := b.items[b.head].Timestamp
		newest := b.items[(b.head+len(b.items)-1)%len(b.items)].Timestamp
		s.OldestTimestamp = &oldest
		s.NewestTimestamp = &newest
	}
	return s
}
