// Package agent implements the landlord's value-based learner: epsilon-greedy
// exploration over the legal moves, an experience replay buffer and a hard
// synced target network.
package agent

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/cartridge/landlord/internal/cards"
	"github.com/cartridge/landlord/internal/network"
	"github.com/cartridge/landlord/internal/replay"
)

// ErrDiverged is returned when a training step produces a non-finite loss or
// gradient. The policy parameters are no longer usable and training must
// stop.
var ErrDiverged = errors.New("agent: training diverged")

// Config holds the learner hyper-parameters.
type Config struct {
	ReplayCapacity  int
	BatchSize       int
	Gamma           float64
	EpsilonHigh     float64
	EpsilonLow      float64
	EpsilonDecay    float64
	TargetSyncEvery int
	LearningRate    float64
	Network         network.Config
}

// Validate checks the hyper-parameters for obvious mistakes.
func (c Config) Validate() error {
	switch {
	case c.ReplayCapacity <= 0:
		return fmt.Errorf("replay capacity must be positive")
	case c.BatchSize <= 0 || c.BatchSize > c.ReplayCapacity:
		return fmt.Errorf("batch size must be in [1, replay capacity]")
	case c.Gamma <= 0 || c.Gamma > 1:
		return fmt.Errorf("gamma must be in (0, 1]")
	case c.EpsilonLow < 0 || c.EpsilonHigh > 1 || c.EpsilonLow > c.EpsilonHigh:
		return fmt.Errorf("epsilon bounds must satisfy 0 <= low <= high <= 1")
	case c.EpsilonDecay <= 0:
		return fmt.Errorf("epsilon decay must be positive")
	case c.TargetSyncEvery <= 0:
		return fmt.Errorf("target sync interval must be positive")
	case c.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive")
	case c.Network.Filters <= 0 || c.Network.Hidden <= 0:
		return fmt.Errorf("network sizes must be positive")
	}
	return nil
}

// Update describes the outcome of one Observe call.
type Update struct {
	Trained bool
	Loss    float64
}

// Agent owns the policy and target networks and the replay buffer. It is
// single-threaded: every method must be called from the training loop.
type Agent struct {
	cfg    Config
	policy *network.Network
	target *network.Network
	opt    *network.Adam
	memory *replay.Buffer
	rng    *rand.Rand
	logger zerolog.Logger

	steps   int // exploration decisions, drives epsilon
	updates int // gradient steps, drives target sync
	epsilon float64
}

// New builds an agent whose target network starts as an exact copy of the
// policy network.
func New(cfg Config, rng *rand.Rand, logger zerolog.Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy := network.New(cfg.Network, rng)
	a := &Agent{
		cfg:     cfg,
		policy:  policy,
		target:  policy.Clone(),
		opt:     network.NewAdam(policy, cfg.LearningRate),
		memory:  replay.NewBuffer(cfg.ReplayCapacity, rand.New(rand.NewSource(rng.Int63()))),
		rng:     rng,
		logger:  logger.With().Str("component", "agent").Logger(),
		epsilon: cfg.EpsilonHigh,
	}
	a.logger.Info().
		Int("params", policy.NumParams()).
		Int("replay_capacity", cfg.ReplayCapacity).
		Int("batch_size", cfg.BatchSize).
		Msg("agent initialized")
	return a, nil
}

// EpsilonAt returns the exploration rate after step decisions.
func (c Config) EpsilonAt(step int) float64 {
	return c.EpsilonLow + (c.EpsilonHigh-c.EpsilonLow)*math.Exp(-float64(step)/c.EpsilonDecay)
}

// Epsilon returns the current exploration rate.
func (a *Agent) Epsilon() float64 { return a.epsilon }

// Steps returns the number of exploratory decisions taken so far.
func (a *Agent) Steps() int { return a.steps }

// Updates returns the number of gradient steps applied so far.
func (a *Agent) Updates() int { return a.updates }

// Policy exposes the online network, for checkpoints and evaluation.
func (a *Agent) Policy() *network.Network { return a.policy }

// Target exposes the frozen bootstrap network.
func (a *Agent) Target() *network.Network { return a.target }

// Memory exposes the replay buffer.
func (a *Agent) Memory() *replay.Buffer { return a.memory }

// SelectAction picks a move with epsilon-greedy exploration and advances
// the exploration schedule.
func (a *Agent) SelectAction(state cards.State, actions []cards.OneHot) int {
	if len(actions) == 0 {
		panic("agent: no candidate actions")
	}
	var idx int
	if a.rng.Float64() < a.epsilon {
		idx = a.rng.Intn(len(actions))
	} else {
		idx = argmax(a.policy.ScoreBatch(state, actions))
	}
	a.steps++
	a.epsilon = a.cfg.EpsilonAt(a.steps)
	return idx
}

// GreedyAction picks the highest scoring move, ignoring epsilon.
func (a *Agent) GreedyAction(state cards.State, actions []cards.OneHot) int {
	return Greedy(a.policy, state, actions)
}

// Greedy returns the index of the move net scores highest.
func Greedy(net *network.Network, state cards.State, actions []cards.OneHot) int {
	if len(actions) == 0 {
		panic("agent: no candidate actions")
	}
	return argmax(net.ScoreBatch(state, actions))
}

// argmax returns the first index holding the maximum.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// TDTarget is the one-step bootstrap target. Terminal transitions use only
// the reward.
func TDTarget(reward float64, done bool, gamma, nextValue float64) float64 {
	if done {
		return reward
	}
	return reward + gamma*nextValue
}

// Observe records a transition and, once the buffer holds a full batch,
// performs one gradient step on the policy network.
func (a *Agent) Observe(t replay.Transition) (Update, error) {
	a.memory.Push(t)
	if a.memory.Len() < a.cfg.BatchSize {
		return Update{}, nil
	}

	batch, err := a.memory.Sample(a.cfg.BatchSize)
	if err != nil {
		return Update{}, err
	}
	loss, err := a.train(batch)
	if err != nil {
		return Update{Loss: loss}, err
	}

	a.updates++
	if a.updates%a.cfg.TargetSyncEvery == 0 {
		a.target.CopyFrom(a.policy)
		a.logger.Debug().Int("updates", a.updates).Msg("target network synced")
	}
	return Update{Trained: true, Loss: loss}, nil
}

func (a *Agent) targets(batch []replay.Transition) []float64 {
	ys := make([]float64, len(batch))
	var (
		idx     []int
		states  []cards.State
		actions []cards.OneHot
	)
	for i, t := range batch {
		if t.Done {
			ys[i] = TDTarget(t.Reward, true, a.cfg.Gamma, 0)
			continue
		}
		idx = append(idx, i)
		states = append(states, t.NextState)
		actions = append(actions, t.NextAction)
	}
	next := a.target.Predict(states, actions)
	for k, i := range idx {
		ys[i] = TDTarget(batch[i].Reward, false, a.cfg.Gamma, next[k])
	}
	return ys
}

func (a *Agent) train(batch []replay.Transition) (float64, error) {
	ys := a.targets(batch)
	states := make([]cards.State, len(batch))
	actions := make([]cards.OneHot, len(batch))
	for i, t := range batch {
		states[i] = t.State
		actions[i] = t.Action
	}

	step, err := a.opt.Step(states, actions, ys)
	if err != nil {
		return 0, err
	}
	if !network.Finite([]float64{step.Loss, step.GradNorm}) {
		a.logger.Error().
			Float64("loss", step.Loss).
			Float64("grad_norm", step.GradNorm).
			Int("updates", a.updates).
			Msg("non-finite training step")
		return step.Loss, fmt.Errorf("%w: loss %v after %d updates", ErrDiverged, step.Loss, a.updates)
	}
	return step.Loss, nil
}

// LoadPolicy restores the policy network from a snapshot and syncs the
// target network to it.
func (a *Agent) LoadPolicy(blob []byte) error {
	if err := a.policy.UnmarshalBinary(blob); err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	a.target.CopyFrom(a.policy)
	return nil
}

// SavePolicy snapshots the policy network.
func (a *Agent) SavePolicy() ([]byte, error) {
	return a.policy.MarshalBinary()
}

// TargetInSync reports whether the target network currently equals the
// policy network bit for bit.
func (a *Agent) TargetInSync() bool { return a.target.Equal(a.policy) }
