package actor

import (
	"context"
	"fmt"

	"github.com/cartridge/landlord/internal/agent"
	"github.com/cartridge/landlord/internal/cards"
	"github.com/cartridge/landlord/internal/landlord"
	"github.com/cartridge/landlord/internal/network"
)

// Evaluation is the outcome of greedy play with a frozen network.
type Evaluation struct {
	Games   int     `json:"games"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}

// Evaluator plays the landlord greedily without exploring or learning.
type Evaluator struct {
	env   Environment
	net   *network.Network
	taken cards.Vector
}

func NewEvaluator(env Environment, net *network.Network) *Evaluator {
	return &Evaluator{env: env, net: net}
}

// Evaluate plays games until n are finished or ctx is cancelled.
func (e *Evaluator) Evaluate(ctx context.Context, n int) (Evaluation, error) {
	var ev Evaluation
	for ev.Games < n {
		if err := ctx.Err(); err != nil {
			return ev, err
		}
		result, err := e.playGame()
		if err != nil {
			return ev, fmt.Errorf("game %d: %w", ev.Games+1, err)
		}
		ev.Games++
		if result == landlord.LandlordWins {
			ev.Wins++
		}
	}
	if ev.Games > 0 {
		ev.WinRate = float64(ev.Wins) / float64(ev.Games)
	}
	return ev, nil
}

func (e *Evaluator) playGame() (landlord.Result, error) {
	e.env.Reset()
	e.taken = cards.Vector{}
	for {
		state := cards.NewState(e.env.Hand(landlord.Landlord), e.taken)
		legal := e.env.LegalActions()
		best := agent.Greedy(e.net, state, cards.BatchVectorsToOneHot(legal))

		result, err := landlordTurn(e.env, legal[best], &e.taken)
		if err != nil {
			return landlord.Undecided, err
		}
		if result != landlord.Undecided {
			return result, nil
		}
	}
}
