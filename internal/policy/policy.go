// Package policy provides move selection strategies for the scripted seats
package policy

import (
	"fmt"
	"math/rand"

	"github.com/cartridge/landlord/internal/landlord"
)

// Policy interface for move selection
type Policy interface {
	// SelectMove chooses one of the legal moves for the seat in view.
	// Returns the index into moves.
	SelectMove(view landlord.View, moves []landlord.Move) (int, error)
}

// New returns the policy registered under name.
func New(name string, rng *rand.Rand) (Policy, error) {
	switch name {
	case "heuristic", "":
		return NewHeuristic(), nil
	case "random":
		return NewRandom(rng), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}
