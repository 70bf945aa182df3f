package cards

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVector(rng *rand.Rand) Vector {
	var v Vector
	for r := range v {
		v[r] = rng.Intn(Card(r).MaxCount() + 1)
	}
	return v
}

func TestOneHotRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		v := randomVector(rng)
		h := VectorToOneHot(v)
		assert.True(t, h.IsMonotone(), "vector %v produced a gapped encoding", v)
		assert.Equal(t, v, OneHotToVector(h))
	}
}

func TestEncodeThreeThreesTwoFours(t *testing.T) {
	hand := []Card{Rank3, Rank3, Rank3, Rank4, Rank4}
	v := CardsToVector(hand)
	assert.Equal(t, 3, v[0])
	assert.Equal(t, 2, v[1])

	h := VectorToOneHot(v)
	var want OneHot
	want[0] = [NumSlots]float64{1, 1, 1, 0}
	want[1] = [NumSlots]float64{1, 1, 0, 0}
	assert.Equal(t, want, h)

	assert.Equal(t, hand, VectorToCards(OneHotToVector(h)))
}

func TestBatchVectorsToOneHot(t *testing.T) {
	moves := []Vector{{}, {0: 1}, {12: 4}, {13: 1, 14: 1}}
	batch := BatchVectorsToOneHot(moves)
	require.Len(t, batch, len(moves))
	for i, h := range batch {
		assert.Equal(t, moves[i], OneHotToVector(h))
	}
	assert.Equal(t, OneHot{}, batch[0])
}

func TestMalformedVectorPanics(t *testing.T) {
	assert.Panics(t, func() { VectorToOneHot(Vector{0: 5}) })
	assert.Panics(t, func() { VectorToOneHot(Vector{BlackJoker: 2}) })
	assert.Panics(t, func() { CardsToVector([]Card{RedJoker, RedJoker}) })
	assert.Panics(t, func() { CardsToVector([]Card{Card(15)}) })
}

func TestIsMonotoneDetectsGap(t *testing.T) {
	var h OneHot
	h[3] = [NumSlots]float64{1, 0, 1, 0}
	assert.False(t, h.IsMonotone())
}

func TestParseCards(t *testing.T) {
	cs, err := ParseCards("3, 3 10 j RJ")
	require.NoError(t, err)
	assert.Equal(t, []Card{Rank3, Rank3, Rank10, RankJ, RedJoker}, cs)

	_, err = ParseCards("3 1")
	assert.Error(t, err)
}

func TestFullDeck(t *testing.T) {
	deck := FullDeck()
	require.Len(t, deck, DeckSize)
	v := CardsToVector(deck)
	assert.True(t, v.Valid())
	assert.Equal(t, 4, v[Rank2])
	assert.Equal(t, 1, v[RedJoker])
}

func TestVectorArithmetic(t *testing.T) {
	hand := CardsToVector([]Card{Rank3, Rank3, RankK})
	play := CardsToVector([]Card{Rank3})
	assert.True(t, hand.Contains(play))
	assert.False(t, play.Contains(hand))
	assert.Equal(t, 2, hand.Sub(play).Len())
	assert.Equal(t, hand, hand.Sub(play).Add(play))
	assert.Equal(t, "[pass]", Vector{}.String())
	assert.Equal(t, "[3 3 K]", hand.String())
}
