package policy

import (
	"fmt"

	"github.com/cartridge/landlord/internal/landlord"
)

// dangerLeft is the hand size at which a farmer starts spending bombs to
// stop the landlord.
const dangerLeft = 4

// HeuristicPolicy plays like a cautious human farmer: lead with the cheapest
// shape that sheds the most cards, follow with the cheapest move that beats
// the table, never over-take a partner and keep bombs for emergencies.
type HeuristicPolicy struct{}

func NewHeuristic() *HeuristicPolicy { return &HeuristicPolicy{} }

// SelectMove implements Policy interface
func (p *HeuristicPolicy) SelectMove(view landlord.View, moves []landlord.Move) (int, error) {
	if len(moves) == 0 {
		return 0, fmt.Errorf("no legal moves for %s", view.Seat)
	}
	if view.Last == nil {
		return p.lead(moves), nil
	}

	// moves[0] is the pass when following.
	partnerLed := view.Seat != landlord.Landlord && view.LastSeat != landlord.Landlord
	if partnerLed {
		return 0, nil
	}

	landlordClose := view.Left[landlord.Landlord] <= dangerLeft
	best := -1
	for i, m := range moves {
		if m.Kind == landlord.KindPass {
			continue
		}
		if isBomb(m) && !landlordClose && view.Seat != landlord.Landlord {
			continue
		}
		if best < 0 || cheaper(m, moves[best]) {
			best = i
		}
	}
	if best < 0 {
		return 0, nil
	}
	return best, nil
}

func (p *HeuristicPolicy) lead(moves []landlord.Move) int {
	best := 0
	for i, m := range moves {
		b := moves[best]
		if isBomb(b) && !isBomb(m) {
			best = i
			continue
		}
		if isBomb(m) && !isBomb(b) {
			continue
		}
		if m.Rank < b.Rank || (m.Rank == b.Rank && m.Cards.Len() > b.Cards.Len()) {
			best = i
		}
	}
	return best
}

func isBomb(m landlord.Move) bool {
	return m.Kind == landlord.KindBomb || m.Kind == landlord.KindRocket
}

// cheaper prefers non-bombs, then lower body ranks, then fewer cards.
func cheaper(a, b landlord.Move) bool {
	if isBomb(a) != isBomb(b) {
		return !isBomb(a)
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Cards.Len() < b.Cards.Len()
}
