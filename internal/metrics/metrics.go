package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// Metrics collector for training operations
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track finished episodes
func (c *Collector) EpisodeCompleted(runID string, episode int, result string, decisions int, duration time.Duration) {
	c.logger.Debug().
		Str("metric", "episode_completed").
		Str("run_id", runID).
		Int("episode", episode).
		Str("result", result).
		Int("decisions", decisions).
		Dur("duration", duration).
		Msg("Episode metric")
}

// Track aggregate reports
func (c *Collector) Report(runID string, episode int, elapsed time.Duration, recentWinRate, totalWinRate, epsilon float64) {
	c.logger.Info().
		Str("metric", "report").
		Str("run_id", runID).
		Int("episode", episode).
		Dur("elapsed", elapsed).
		Float64("recent_win_rate", recentWinRate).
		Float64("total_win_rate", totalWinRate).
		Float64("epsilon", epsilon).
		Msg("Report metric")
}

// Track persisted checkpoints
func (c *Collector) CheckpointSaved(runID, name string, size int, duration time.Duration) {
	c.logger.Info().
		Str("metric", "checkpoint_saved").
		Str("run_id", runID).
		Str("name", name).
		Int("bytes", size).
		Dur("duration", duration).
		Msg("Checkpoint metric")
}

// Track numeric divergence
func (c *Collector) TrainingDiverged(runID string, episode, updates int, loss float64) {
	c.logger.Error().
		Str("metric", "training_diverged").
		Str("run_id", runID).
		Int("episode", episode).
		Int("updates", updates).
		Float64("loss", loss).
		Msg("Training diverged")
}

// Track API request metrics
func (c *Collector) APIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.logger.Info().
		Str("metric", "api_request").
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("API request metric")
}
