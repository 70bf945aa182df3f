// Package landlord implements the three-seat landlord card game rules: the
// deal, move enumeration, move validation and turn order.
package landlord

import (
	"fmt"

	"github.com/cartridge/landlord/internal/cards"
)

const (
	minChain     = 5
	minPairChain = 3
	minPlane     = 2
	highestChain = cards.RankA
)

// Kind is the shape of a play.
type Kind int

const (
	KindPass Kind = iota
	KindSingle
	KindPair
	KindTrio
	KindTrioSingle
	KindTrioPair
	KindChain
	KindPairChain
	KindPlane
	KindPlaneSingles
	KindPlanePairs
	KindFourSingles
	KindFourPairs
	KindBomb
	KindRocket
)

var kindNames = [...]string{
	"pass", "single", "pair", "trio", "trio+single", "trio+pair", "chain",
	"pair-chain", "plane", "plane+singles", "plane+pairs", "four+singles",
	"four+pairs", "bomb", "rocket",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Move is a classified play. Rank is the lowest rank of the body and Length
// the number of consecutive body ranks.
type Move struct {
	Kind   Kind
	Rank   cards.Card
	Length int
	Cards  cards.Vector
}

// Pass is the empty play.
var Pass = Move{Kind: KindPass}

func (m Move) String() string {
	return fmt.Sprintf("%s%v", m.Kind, m.Cards)
}

// Beats reports whether m may be played on top of prev.
func (m Move) Beats(prev Move) bool {
	switch m.Kind {
	case KindPass:
		return false
	case KindRocket:
		return prev.Kind != KindRocket
	case KindBomb:
		if prev.Kind == KindRocket {
			return false
		}
		if prev.Kind == KindBomb {
			return m.Rank > prev.Rank
		}
		return true
	}
	return m.Kind == prev.Kind && m.Length == prev.Length && m.Rank > prev.Rank
}

// Moves enumerates every non-pass play the hand can make, in a fixed order.
func Moves(hand cards.Vector) []Move {
	var out []Move
	add := func(kind Kind, rank cards.Card, length int, v cards.Vector) {
		out = append(out, Move{Kind: kind, Rank: rank, Length: length, Cards: v})
	}

	for r := cards.Card(0); r < cards.NumRanks; r++ {
		if hand[r] >= 1 {
			add(KindSingle, r, 1, single(r, 1))
		}
	}
	for r := cards.Card(0); r < cards.NumRanks; r++ {
		if hand[r] >= 2 {
			add(KindPair, r, 1, single(r, 2))
		}
	}
	for r := cards.Card(0); r < cards.NumRanks; r++ {
		if hand[r] < 3 {
			continue
		}
		body := single(r, 3)
		add(KindTrio, r, 1, body)
		for _, k := range kickers(hand, body, 1, 1) {
			add(KindTrioSingle, r, 1, body.Add(k))
		}
		for _, k := range kickers(hand, body, 2, 1) {
			add(KindTrioPair, r, 1, body.Add(k))
		}
	}

	for _, c := range chains(hand, 1, minChain) {
		add(KindChain, c.start, c.length, c.body)
	}
	for _, c := range chains(hand, 2, minPairChain) {
		add(KindPairChain, c.start, c.length, c.body)
	}
	for _, c := range chains(hand, 3, minPlane) {
		add(KindPlane, c.start, c.length, c.body)
		for _, k := range kickers(hand, c.body, 1, c.length) {
			add(KindPlaneSingles, c.start, c.length, c.body.Add(k))
		}
		for _, k := range kickers(hand, c.body, 2, c.length) {
			add(KindPlanePairs, c.start, c.length, c.body.Add(k))
		}
	}

	for r := cards.Card(0); r < cards.NumRanks; r++ {
		if hand[r] < 4 {
			continue
		}
		body := single(r, 4)
		for _, k := range kickers(hand, body, 1, 2) {
			add(KindFourSingles, r, 1, body.Add(k))
		}
		for _, k := range kickers(hand, body, 2, 2) {
			add(KindFourPairs, r, 1, body.Add(k))
		}
	}
	for r := cards.Card(0); r < cards.NumRanks; r++ {
		if hand[r] == 4 {
			add(KindBomb, r, 1, single(r, 4))
		}
	}
	if hand[cards.BlackJoker] == 1 && hand[cards.RedJoker] == 1 {
		var v cards.Vector
		v[cards.BlackJoker], v[cards.RedJoker] = 1, 1
		add(KindRocket, cards.BlackJoker, 1, v)
	}
	return out
}

// LegalMoves returns the plays available on top of last. A nil last means
// the seat leads and must play something; otherwise passing is the first
// option.
func LegalMoves(hand cards.Vector, last *Move) []Move {
	all := Moves(hand)
	if last == nil {
		return all
	}
	out := []Move{Pass}
	for _, m := range all {
		if m.Beats(*last) {
			out = append(out, m)
		}
	}
	return out
}

func single(r cards.Card, n int) cards.Vector {
	var v cards.Vector
	v[r] = n
	return v
}

type chain struct {
	start  cards.Card
	length int
	body   cards.Vector
}

// chains finds every run of at least minLen consecutive ranks up to the ace
// where the hand holds width copies of each rank.
func chains(hand cards.Vector, width, minLen int) []chain {
	var out []chain
	for start := cards.Card(0); start <= highestChain; start++ {
		var body cards.Vector
		for end := start; end <= highestChain && hand[end] >= width; end++ {
			body[end] = width
			if length := int(end-start) + 1; length >= minLen {
				out = append(out, chain{start: start, length: length, body: body})
			}
		}
	}
	return out
}

// kickers lists the ways to attach count distinct ranks of width copies each,
// drawn from the cards not used by body. Both jokers never go together.
func kickers(hand, body cards.Vector, width, count int) []cards.Vector {
	rest := hand.Sub(body)
	var pool []cards.Card
	for r := cards.Card(0); r < cards.NumRanks; r++ {
		if body[r] == 0 && rest[r] >= width {
			pool = append(pool, r)
		}
	}
	var out []cards.Vector
	pick := make([]cards.Card, 0, count)
	var walk func(from int)
	walk = func(from int) {
		if len(pick) == count {
			var v cards.Vector
			for _, r := range pick {
				v[r] = width
			}
			if v[cards.BlackJoker] == 1 && v[cards.RedJoker] == 1 {
				return
			}
			out = append(out, v)
			return
		}
		for i := from; i < len(pool); i++ {
			pick = append(pick, pool[i])
			walk(i + 1)
			pick = pick[:len(pick)-1]
		}
	}
	walk(0)
	return out
}
