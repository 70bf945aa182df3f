// Package cards encodes landlord hands and plays as rank counts and the
// monotone one-hot tensors consumed by the value network.
package cards

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// NumRanks is the number of distinct ranks: 3..A, 2, and the two jokers.
	NumRanks = 15
	// NumSlots is the maximum number of copies a rank can hold.
	NumSlots = 4
	// DeckSize is the number of cards in a full deck.
	DeckSize = 54
)

// Card is a rank index in [0, NumRanks). Suits do not matter in this game.
type Card int

const (
	Rank3 Card = iota
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
	Rank9
	Rank10
	RankJ
	RankQ
	RankK
	RankA
	Rank2
	BlackJoker
	RedJoker
)

var rankNames = [NumRanks]string{"3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A", "2", "BJ", "RJ"}

func (c Card) String() string {
	if c < 0 || int(c) >= NumRanks {
		return fmt.Sprintf("Card(%d)", int(c))
	}
	return rankNames[c]
}

// IsJoker reports whether the card is one of the two jokers.
func (c Card) IsJoker() bool { return c == BlackJoker || c == RedJoker }

// MaxCount returns how many copies of the rank exist in a deck.
func (c Card) MaxCount() int {
	if c.IsJoker() {
		return 1
	}
	return NumSlots
}

// ParseCard parses a rank name such as "10", "j", or "RJ".
func ParseCard(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range rankNames {
		if name == s {
			return Card(i), nil
		}
	}
	return 0, fmt.Errorf("unknown card rank %q", s)
}

// ParseCards parses a whitespace or comma separated list of ranks.
func ParseCards(s string) ([]Card, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// FullDeck returns all 54 cards in rank order.
func FullDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for r := Card(0); r < NumRanks; r++ {
		for i := 0; i < r.MaxCount(); i++ {
			deck = append(deck, r)
		}
	}
	return deck
}

// Vector holds per-rank card counts. Index is the rank.
type Vector [NumRanks]int

// Valid reports whether every count is within the deck limits.
func (v Vector) Valid() bool {
	for r, n := range v {
		if n < 0 || n > Card(r).MaxCount() {
			return false
		}
	}
	return true
}

// Len returns the total number of cards.
func (v Vector) Len() int {
	n := 0
	for _, c := range v {
		n += c
	}
	return n
}

func (v Vector) IsZero() bool { return v == Vector{} }

func (v Vector) Add(o Vector) Vector {
	for r := range v {
		v[r] += o[r]
	}
	return v
}

func (v Vector) Sub(o Vector) Vector {
	for r := range v {
		v[r] -= o[r]
	}
	return v
}

// Contains reports whether o is a sub-multiset of v.
func (v Vector) Contains(o Vector) bool {
	for r := range v {
		if o[r] > v[r] {
			return false
		}
	}
	return true
}

func (v Vector) String() string {
	if v.IsZero() {
		return "[pass]"
	}
	parts := make([]string, 0, v.Len())
	for _, c := range VectorToCards(v) {
		parts = append(parts, c.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// CardsToVector counts the cards per rank. Out of range ranks and counts
// above the deck limit are contract violations and panic.
func CardsToVector(cs []Card) Vector {
	var v Vector
	for _, c := range cs {
		if c < 0 || int(c) >= NumRanks {
			panic(fmt.Sprintf("cards: rank %d out of range", int(c)))
		}
		v[c]++
	}
	if !v.Valid() {
		panic(fmt.Sprintf("cards: malformed multiset %v", [NumRanks]int(v)))
	}
	return v
}

// VectorToCards expands counts back into a rank-sorted card list.
func VectorToCards(v Vector) []Card {
	out := make([]Card, 0, v.Len())
	for r, n := range v {
		for i := 0; i < n; i++ {
			out = append(out, Card(r))
		}
	}
	return out
}

// SortCards orders cards by rank ascending in place.
func SortCards(cs []Card) {
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
}
