package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/landlord/internal/actor"
)

// State is the coarse health of a training run.
type State string

const (
	StateStarting State = "starting"
	StateHealthy  State = "healthy"
	StateStalled  State = "stalled"
)

// Config holds health monitoring configuration
type Config struct {
	CheckInterval time.Duration
	// StallAfter is how long the episode counter may stay flat before the
	// run is reported as stalled.
	StallAfter time.Duration
}

// RunSource exposes the live counters of a training run.
type RunSource interface {
	Snapshot() actor.Status
}

// Monitor watches a run for progress in the background
type Monitor struct {
	run    RunSource
	config Config
	logger zerolog.Logger

	mu           sync.RWMutex
	state        State
	lastEpisodes int
	lastProgress time.Time
}

// NewMonitor creates a new health monitor
func NewMonitor(run RunSource, config Config, logger zerolog.Logger) *Monitor {
	return &Monitor{
		run:          run,
		config:       config,
		logger:       logger.With().Str("component", "health").Logger(),
		state:        StateStarting,
		lastProgress: time.Now(),
	}
}

// Start begins the health monitoring loop
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	m.logger.Info().
		Dur("check_interval", m.config.CheckInterval).
		Dur("stall_after", m.config.StallAfter).
		Msg("Starting health monitor")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Health monitor stopped")
			return
		case now := <-ticker.C:
			m.Check(now)
		}
	}
}

// Check compares the episode counter with the previous check.
func (m *Monitor) Check(now time.Time) State {
	status := m.run.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	if status.Episodes > m.lastEpisodes {
		if m.state == StateStalled {
			m.logger.Info().Int("episodes", status.Episodes).Msg("Run progressing again")
		}
		m.lastEpisodes = status.Episodes
		m.lastProgress = now
		m.state = StateHealthy
		return m.state
	}

	if now.Sub(m.lastProgress) >= m.config.StallAfter && m.state != StateStalled {
		m.state = StateStalled
		m.logger.Warn().
			Str("run_id", status.RunID).
			Int("episodes", status.Episodes).
			Time("last_progress", m.lastProgress).
			Msg("Marking run as stalled")
	}
	return m.state
}

// State returns the result of the latest check.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
