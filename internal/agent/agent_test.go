package agent

import (
	"encoding/binary"
	"io"
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/landlord/internal/cards"
	"github.com/cartridge/landlord/internal/network"
	"github.com/cartridge/landlord/internal/replay"
)

func testConfig() Config {
	return Config{
		ReplayCapacity:  50,
		BatchSize:       4,
		Gamma:           0.9,
		EpsilonHigh:     0.5,
		EpsilonLow:      0.01,
		EpsilonDecay:    100,
		TargetSyncEvery: 3,
		LearningRate:    1e-3,
		Network:         network.Config{Filters: 2, Hidden: 4},
	}
}

func newTestAgent(t *testing.T, cfg Config) *Agent {
	t.Helper()
	a, err := New(cfg, rand.New(rand.NewSource(1)), zerolog.New(io.Discard))
	require.NoError(t, err)
	return a
}

func randomTransition(rng *rand.Rand, done bool) replay.Transition {
	vec := func() cards.Vector {
		var v cards.Vector
		for r := range v {
			v[r] = rng.Intn(cards.Card(r).MaxCount() + 1)
		}
		return v
	}
	tr := replay.Transition{
		State:     cards.NewState(vec(), vec()),
		Action:    cards.VectorToOneHot(vec()),
		NextState: cards.NewState(vec(), vec()),
		Done:      done,
	}
	if !done {
		tr.NextAction = cards.VectorToOneHot(vec())
	} else {
		tr.Reward = 1
	}
	return tr
}

func TestEpsilonDecay(t *testing.T) {
	cfg := testConfig()
	assert.InDelta(t, cfg.EpsilonHigh, cfg.EpsilonAt(0), 1e-12)

	prev := cfg.EpsilonAt(0)
	for step := 1; step < 2000; step++ {
		eps := cfg.EpsilonAt(step)
		assert.LessOrEqual(t, eps, prev)
		assert.Greater(t, eps, cfg.EpsilonLow)
		prev = eps
	}
	assert.InDelta(t, cfg.EpsilonLow, cfg.EpsilonAt(1_000_000), 1e-9)
}

func TestSelectActionAdvancesSchedule(t *testing.T) {
	a := newTestAgent(t, testConfig())
	rng := rand.New(rand.NewSource(2))
	tr := randomTransition(rng, false)
	actions := []cards.OneHot{tr.Action, tr.NextAction}

	assert.Equal(t, a.cfg.EpsilonHigh, a.Epsilon())
	for i := 0; i < 10; i++ {
		idx := a.SelectAction(tr.State, actions)
		assert.True(t, idx == 0 || idx == 1)
	}
	assert.Equal(t, 10, a.Steps())
	assert.InDelta(t, a.cfg.EpsilonAt(10), a.Epsilon(), 1e-12)
}

func TestSelectActionWithoutExplorationIsGreedy(t *testing.T) {
	cfg := testConfig()
	cfg.EpsilonHigh, cfg.EpsilonLow = 0, 0
	a := newTestAgent(t, cfg)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 20; i++ {
		state := randomTransition(rng, false).State
		actions := make([]cards.OneHot, 5)
		for j := range actions {
			actions[j] = randomTransition(rng, false).Action
		}
		assert.Equal(t, a.GreedyAction(state, actions), a.SelectAction(state, actions))
	}
}

func TestSelectActionFullExplorationCoversAll(t *testing.T) {
	cfg := testConfig()
	cfg.EpsilonHigh, cfg.EpsilonLow = 1, 1
	a := newTestAgent(t, cfg)
	state := cards.State{}
	actions := make([]cards.OneHot, 4)

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[a.SelectAction(state, actions)] = true
	}
	assert.Len(t, seen, 4)
}

func TestArgmaxFirstMaximal(t *testing.T) {
	assert.Equal(t, 1, argmax([]float64{1, 3, 3, 2}))
	assert.Equal(t, 0, argmax([]float64{5}))
	assert.Equal(t, 0, argmax([]float64{2, 2, 2}))
}

func TestNoBootstrapOnTerminal(t *testing.T) {
	assert.Equal(t, 1.0, TDTarget(1, true, 0.9, 0.75))
	assert.Equal(t, -1.0, TDTarget(-1, true, 0.9, -0.3))
	assert.InDelta(t, 0.9*0.5, TDTarget(0, false, 0.9, 0.5), 1e-12)

	a := newTestAgent(t, testConfig())
	rng := rand.New(rand.NewSource(4))
	terminal := randomTransition(rng, true)
	terminal.NextAction = cards.VectorToOneHot(cards.Vector{0: 4})
	open := randomTransition(rng, false)

	ys := a.targets([]replay.Transition{terminal, open})
	assert.Equal(t, 1.0, ys[0])
	assert.InDelta(t, 0.9*a.Target().Score(open.NextState, open.NextAction), ys[1], 1e-12)
}

func TestObserveWaitsForFullBatch(t *testing.T) {
	a := newTestAgent(t, testConfig())
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 3; i++ {
		up, err := a.Observe(randomTransition(rng, false))
		require.NoError(t, err)
		assert.False(t, up.Trained)
	}
	up, err := a.Observe(randomTransition(rng, true))
	require.NoError(t, err)
	assert.True(t, up.Trained)
	assert.Equal(t, 1, a.Updates())
}

func TestTargetSyncEveryK(t *testing.T) {
	cfg := testConfig()
	a := newTestAgent(t, cfg)
	rng := rand.New(rand.NewSource(6))

	for i := 0; i < cfg.BatchSize-1; i++ {
		_, err := a.Observe(randomTransition(rng, i%2 == 0))
		require.NoError(t, err)
	}
	assert.True(t, a.Target().Equal(a.Policy()))

	for k := 1; k <= 2*cfg.TargetSyncEvery; k++ {
		up, err := a.Observe(randomTransition(rng, k%2 == 0))
		require.NoError(t, err)
		require.True(t, up.Trained)
		if k%cfg.TargetSyncEvery == 0 {
			assert.Truef(t, a.Target().Equal(a.Policy()), "target should match policy after %d updates", k)
		} else {
			assert.Falsef(t, a.Target().Equal(a.Policy()), "target synced early at update %d", k)
		}
	}
}

func TestDivergenceIsFatal(t *testing.T) {
	cfg := testConfig()
	a := newTestAgent(t, cfg)
	rng := rand.New(rand.NewSource(7))

	blob, err := a.Policy().MarshalBinary()
	require.NoError(t, err)
	// Poison the output bias, the last parameter in the snapshot.
	binary.LittleEndian.PutUint64(blob[len(blob)-8:], math.Float64bits(math.NaN()))
	require.NoError(t, a.LoadPolicy(blob))

	var lastErr error
	for i := 0; i < cfg.BatchSize; i++ {
		_, lastErr = a.Observe(randomTransition(rng, false))
	}
	require.ErrorIs(t, lastErr, ErrDiverged)
	assert.Equal(t, 0, a.Updates())
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Gamma = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.BatchSize = bad.ReplayCapacity + 1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.EpsilonLow = 0.9
	assert.Error(t, bad.Validate())

	_, err := New(bad, rand.New(rand.NewSource(1)), zerolog.New(io.Discard))
	assert.Error(t, err)
}

func TestSaveLoadPolicy(t *testing.T) {
	cfg := testConfig()
	a := newTestAgent(t, cfg)
	b, err := New(cfg, rand.New(rand.NewSource(2)), zerolog.New(io.Discard))
	require.NoError(t, err)
	require.True(t, a.TargetInSync())
	require.False(t, a.Policy().Equal(b.Policy()))

	blob, err := a.SavePolicy()
	require.NoError(t, err)
	require.NoError(t, b.LoadPolicy(blob))
	assert.True(t, a.Policy().Equal(b.Policy()))
	assert.True(t, b.TargetInSync())

	require.Error(t, b.LoadPolicy(blob[:len(blob)-1]))
}
