package policy

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cartridge/landlord/internal/landlord"
)

// RandomPolicy selects uniformly among the legal moves
type RandomPolicy struct {
	rng *rand.Rand
}

// NewRandom creates a new random policy. A nil rng is seeded from the clock.
func NewRandom(rng *rand.Rand) *RandomPolicy {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomPolicy{rng: rng}
}

// SelectMove implements Policy interface
func (p *RandomPolicy) SelectMove(view landlord.View, moves []landlord.Move) (int, error) {
	if len(moves) == 0 {
		return 0, fmt.Errorf("no legal moves for %s", view.Seat)
	}
	return p.rng.Intn(len(moves)), nil
}
