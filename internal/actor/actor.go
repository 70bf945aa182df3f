// Package actor drives landlord games against the scripted farmers, feeding
// every landlord decision to the learning agent and reporting progress.
package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cartridge/landlord/internal/agent"
	"github.com/cartridge/landlord/internal/cards"
	"github.com/cartridge/landlord/internal/events"
	"github.com/cartridge/landlord/internal/landlord"
	"github.com/cartridge/landlord/internal/metrics"
	"github.com/cartridge/landlord/internal/replay"
	"github.com/cartridge/landlord/internal/report"
	"github.com/cartridge/landlord/internal/storage"
)

// Environment is the rule engine as seen by the actor. *landlord.Game
// satisfies it.
type Environment interface {
	Reset()
	Hand(seat landlord.Seat) cards.Vector
	LegalActions() []cards.Vector
	ApplyMove(v cards.Vector) (landlord.Play, error)
	PlayScripted() (landlord.Play, error)
	History() []landlord.Play
}

// Options bound the training run.
type Options struct {
	Episodes    int
	ReportEvery int
}

// Deps are the collaborators of an Actor. Store is required; the sinks
// default to no-ops.
type Deps struct {
	Env       Environment
	Agent     *agent.Agent
	Run       *RunContext
	Store     storage.CheckpointStore
	History   report.Sink
	Publisher events.Publisher
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Actor plays the landlord seat with a learning agent
type Actor struct {
	opts      Options
	env       Environment
	agent     *agent.Agent
	run       *RunContext
	store     storage.CheckpointStore
	history   report.Sink
	publisher events.Publisher
	metrics   *metrics.Collector
	logger    zerolog.Logger
	now       func() time.Time

	// cards removed from play this game, by any seat
	taken    cards.Vector
	lastLoss float64
}

// New creates a new actor instance
func New(opts Options, deps Deps) (*Actor, error) {
	if deps.Env == nil || deps.Agent == nil || deps.Run == nil || deps.Store == nil {
		return nil, errors.New("actor: environment, agent, run context and store are required")
	}
	if opts.Episodes < 0 || opts.ReportEvery <= 0 {
		return nil, fmt.Errorf("actor: invalid options %+v", opts)
	}
	a := &Actor{
		opts:      opts,
		env:       deps.Env,
		agent:     deps.Agent,
		run:       deps.Run,
		store:     deps.Store,
		history:   deps.History,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "actor").Str("run_id", deps.Run.ID()).Logger(),
		now:       deps.Now,
	}
	if a.history == nil {
		a.history = report.Discard{}
	}
	if a.publisher == nil {
		a.publisher = events.NoopPublisher{}
	}
	if a.metrics == nil {
		a.metrics = metrics.NewCollector(zerolog.Nop())
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Run plays episodes until the configured count is reached or ctx is
// cancelled. Divergence and illegal moves end the run with an error.
func (a *Actor) Run(ctx context.Context) error {
	a.logger.Info().
		Int("episodes", a.opts.Episodes).
		Int("report_every", a.opts.ReportEvery).
		Str("tag", a.run.Tag()).
		Msg("Actor starting main loop")

	for a.run.Episodes() < a.opts.Episodes {
		select {
		case <-ctx.Done():
			a.logger.Info().Int("episodes", a.run.Episodes()).Msg("Context cancelled, stopping actor")
			return ctx.Err()
		default:
		}

		episode := a.run.Episodes() + 1
		start := a.now()
		result, decisions, err := a.runEpisode(episode)
		if err != nil {
			if errors.Is(err, agent.ErrDiverged) {
				a.metrics.TrainingDiverged(a.run.ID(), episode, a.agent.Updates(), a.lastLoss)
			}
			return fmt.Errorf("episode %d: %w", episode, err)
		}

		a.run.Record(result == landlord.LandlordWins)
		a.run.Observe(a.agent.Epsilon(), a.agent.Updates(), a.lastLoss, a.agent.Memory().Len())
		a.metrics.EpisodeCompleted(a.run.ID(), episode, result.String(), decisions, a.now().Sub(start))

		if a.run.Due() {
			if err := a.report(ctx); err != nil {
				return err
			}
		}
	}

	a.logger.Info().Int("episodes", a.run.Episodes()).Msg("Reached configured episodes, stopping")
	return nil
}

// runEpisode plays one game. Each landlord decision becomes one transition:
// the landlord moves, the farmers answer, and the reward is +1 if the
// landlord emptied their hand, -1 if a farmer did, 0 otherwise.
func (a *Actor) runEpisode(episode int) (landlord.Result, int, error) {
	a.env.Reset()
	a.taken = cards.Vector{}
	episodeID := uuid.New().String()

	var step uint32
	for {
		state := a.state()
		legal := a.env.LegalActions()
		actions := cards.BatchVectorsToOneHot(legal)
		idx := a.agent.SelectAction(state, actions)

		result, err := landlordTurn(a.env, legal[idx], &a.taken)
		if err != nil {
			return landlord.Undecided, int(step), err
		}

		var reward float64
		switch result {
		case landlord.LandlordWins:
			reward = 1
		case landlord.LandlordLoses:
			reward = -1
		}
		done := result != landlord.Undecided

		next := a.state()
		var nextAction cards.OneHot
		if !done {
			nextActions := cards.BatchVectorsToOneHot(a.env.LegalActions())
			nextAction = nextActions[a.agent.GreedyAction(next, nextActions)]
		}

		update, err := a.agent.Observe(replay.Transition{
			EpisodeID:  episodeID,
			StepNumber: step,
			State:      state,
			Action:     actions[idx],
			Reward:     reward,
			NextState:  next,
			NextAction: nextAction,
			Done:       done,
		})
		if err != nil {
			a.lastLoss = update.Loss
			return landlord.Undecided, int(step) + 1, err
		}
		if update.Trained {
			a.lastLoss = update.Loss
		}
		step++

		if done {
			a.logPlays(episode)
			a.logger.Debug().
				Int("episode", episode).
				Str("result", result.String()).
				Uint32("decisions", step).
				Msg("Episode completed")
			return result, int(step), nil
		}
	}
}

// landlordTurn submits the landlord's move, then lets the scripted seats act
// until it is the landlord's turn again or the game is decided. Every card
// played is added to taken.
func landlordTurn(env Environment, move cards.Vector, taken *cards.Vector) (landlord.Result, error) {
	p, err := env.ApplyMove(move)
	if err != nil {
		return landlord.Undecided, fmt.Errorf("landlord move %v: %w", move, err)
	}
	*taken = taken.Add(p.Move.Cards)
	for p.Result == landlord.Undecided && p.Next != landlord.Landlord {
		if p, err = env.PlayScripted(); err != nil {
			return landlord.Undecided, err
		}
		*taken = taken.Add(p.Move.Cards)
	}
	return p.Result, nil
}

// logPlays writes the finished game's plays at debug level, each with the
// number of cards every seat still held after it.
func (a *Actor) logPlays(episode int) {
	if a.logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	plays := a.env.History()
	var left [landlord.NumSeats]int
	for s := range left {
		left[s] = a.env.Hand(landlord.Seat(s)).Len()
	}
	for _, p := range plays {
		left[p.Seat] += p.Move.Cards.Len()
	}
	for i, p := range plays {
		left[p.Seat] -= p.Move.Cards.Len()
		remaining := zerolog.Dict()
		for s, n := range left {
			remaining.Int(landlord.Seat(s).String(), n)
		}
		a.logger.Debug().
			Int("episode", episode).
			Int("turn", i+1).
			Str("seat", p.Seat.String()).
			Str("cards", p.Move.Cards.String()).
			Dict("remaining", remaining).
			Msg("Episode play")
	}
}

func (a *Actor) state() cards.State {
	return cards.NewState(a.env.Hand(landlord.Landlord), a.taken)
}

// report emits the window aggregate and persists the policy when the
// window beat every earlier one.
func (a *Actor) report(ctx context.Context) error {
	r := a.run.Report(a.now())
	epsilon := a.agent.Epsilon()

	a.logger.Info().
		Int("episode", r.Episode).
		Float64("seconds", r.Elapsed.Seconds()).
		Float64("recent_win_rate", r.RecentWinRate).
		Float64("total_win_rate", r.TotalWinRate).
		Float64("epsilon", epsilon).
		Msgf("Last %d rounds took %.2fs", r.RecentGames, r.Elapsed.Seconds())
	a.metrics.Report(a.run.ID(), r.Episode, r.Elapsed, r.RecentWinRate, r.TotalWinRate, epsilon)

	var checkpoint string
	if r.NewBest {
		name, err := a.saveCheckpoint(ctx, r)
		if err != nil {
			return err
		}
		checkpoint = name
	}

	row := report.Row{
		RunID:         a.run.ID(),
		Tag:           a.run.Tag(),
		Episode:       int64(r.Episode),
		UnixMillis:    a.now().UnixMilli(),
		Seconds:       r.Elapsed.Seconds(),
		RecentGames:   int32(r.RecentGames),
		RecentWins:    int32(r.RecentWins),
		RecentWinRate: r.RecentWinRate,
		TotalWinRate:  r.TotalWinRate,
		Epsilon:       epsilon,
		Updates:       int64(a.agent.Updates()),
		Loss:          a.lastLoss,
		ReplaySize:    int32(a.agent.Memory().Len()),
		Checkpoint:    checkpoint,
	}
	if err := a.history.Append(row); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to append report history")
	}

	event := events.ReportEvent{
		RunID:         a.run.ID(),
		Tag:           a.run.Tag(),
		Episode:       r.Episode,
		Seconds:       r.Elapsed.Seconds(),
		RecentWins:    r.RecentWins,
		RecentGames:   r.RecentGames,
		RecentWinRate: r.RecentWinRate,
		TotalWinRate:  r.TotalWinRate,
		Epsilon:       epsilon,
		Loss:          a.lastLoss,
		Updates:       a.agent.Updates(),
	}
	if err := a.publisher.PublishReport(ctx, event); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to publish report")
	}
	return nil
}

func (a *Actor) saveCheckpoint(ctx context.Context, r Report) (string, error) {
	start := a.now()
	blob, err := a.agent.SavePolicy()
	if err != nil {
		return "", fmt.Errorf("snapshot policy: %w", err)
	}
	cp := storage.Checkpoint{
		Name:      storage.CheckpointName(a.run.Tag(), r.Episode, r.RecentWins),
		Tag:       a.run.Tag(),
		Episode:   r.Episode,
		Wins:      r.RecentWins,
		Data:      blob,
		CreatedAt: start.UTC(),
	}
	if err := a.store.Save(ctx, cp); err != nil {
		return "", fmt.Errorf("save checkpoint %s: %w", cp.Name, err)
	}
	a.run.SetCheckpoint(cp.Name)
	a.metrics.CheckpointSaved(a.run.ID(), cp.Name, len(blob), a.now().Sub(start))

	event := events.CheckpointEvent{
		RunID:   a.run.ID(),
		Name:    cp.Name,
		Episode: cp.Episode,
		Wins:    cp.Wins,
		Bytes:   len(blob),
	}
	if err := a.publisher.PublishCheckpoint(ctx, event); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to publish checkpoint")
	}
	return cp.Name, nil
}
