// Package replay stores landlord transitions for off-policy training.
package replay

import (
	"errors"
	"time"

	"github.com/cartridge/landlord/internal/cards"
)

// ErrInsufficientSamples is returned when a sample larger than the buffer is
// requested. Callers must wait for at least one full batch.
var ErrInsufficientSamples = errors.New("replay: not enough transitions to sample")

// Transition represents a single landlord decision and its outcome.
type Transition struct {
	ID         string
	EpisodeID  string
	StepNumber uint32
	State      cards.State
	Action     cards.OneHot
	Reward     float64
	NextState  cards.State
	NextAction cards.OneHot
	Done       bool
	Timestamp  time.Time
}

// Stats represents replay buffer statistics
type Stats struct {
	Size            int
	Capacity        int
	TotalPushed     uint64
	TotalEvicted    uint64
	TotalSampled    uint64
	OldestTimestamp *time.Time
	NewestTimestamp *time.Time
}
