package cards

import "fmt"

// OneHot is the unary encoding of a Vector: slot k of rank r is 1 iff the
// count of r is greater than k, so active slots always form a prefix.
type OneHot [NumRanks][NumSlots]float64

// State is what the landlord sees before acting: its own hand and every
// card taken out of play so far this game.
type State struct {
	Hand  OneHot
	Taken OneHot
}

// NewState encodes a hand and the cumulative played cards.
func NewState(hand, taken Vector) State {
	return State{Hand: VectorToOneHot(hand), Taken: VectorToOneHot(taken)}
}

// VectorToOneHot encodes counts as a monotone unary tensor.
func VectorToOneHot(v Vector) OneHot {
	if !v.Valid() {
		panic(fmt.Sprintf("cards: malformed vector %v", [NumRanks]int(v)))
	}
	var h OneHot
	for r, n := range v {
		for k := 0; k < n; k++ {
			h[r][k] = 1
		}
	}
	return h
}

// OneHotToVector decodes a tensor by counting the active slots per rank.
func OneHotToVector(h OneHot) Vector {
	var v Vector
	for r := range h {
		for _, x := range h[r] {
			if x > 0.5 {
				v[r]++
			}
		}
	}
	return v
}

// BatchVectorsToOneHot encodes every candidate move at once.
func BatchVectorsToOneHot(vs []Vector) []OneHot {
	out := make([]OneHot, len(vs))
	for i, v := range vs {
		out[i] = VectorToOneHot(v)
	}
	return out
}

// IsMonotone reports whether every rank's active slots form a prefix.
func (h OneHot) IsMonotone() bool {
	for r := range h {
		for k := 1; k < NumSlots; k++ {
			if h[r][k] > 0.5 && h[r][k-1] <= 0.5 {
				return false
			}
		}
	}
	return true
}
