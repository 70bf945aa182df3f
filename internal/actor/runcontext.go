package actor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const tagLayout = "0102_1504"

// Tag formats a run start time as MMDD_HHMM, the prefix of every
// checkpoint the run saves.
func Tag(t time.Time) string { return t.Format(tagLayout) }

// Report is the aggregate emitted every report interval.
type Report struct {
	Episode       int
	Elapsed       time.Duration
	RecentGames   int
	RecentWins    int
	RecentWinRate float64
	TotalWinRate  float64
	// NewBest is set when RecentWins beats every earlier window.
	NewBest bool
}

// Status is a point-in-time copy of the run counters.
type Status struct {
	RunID          string    `json:"run_id"`
	Tag            string    `json:"tag"`
	StartedAt      time.Time `json:"started_at"`
	Episodes       int       `json:"episodes"`
	Wins           int       `json:"wins"`
	TotalWinRate   float64   `json:"total_win_rate"`
	RecentGames    int       `json:"recent_games"`
	RecentWins     int       `json:"recent_wins"`
	BestRecentWins int       `json:"best_recent_wins"`
	Epsilon        float64   `json:"epsilon"`
	Updates        int       `json:"updates"`
	LastLoss       float64   `json:"last_loss"`
	ReplaySize     int       `json:"replay_size"`
	LastCheckpoint string    `json:"last_checkpoint,omitempty"`
	LastReport     time.Time `json:"last_report,omitempty"`
}

// RunContext holds the rolling statistics of one training run, from start
// to teardown. The training loop is its only writer; Snapshot may be called
// from other goroutines.
type RunContext struct {
	mu sync.RWMutex

	id          string
	tag         string
	started     time.Time
	reportEvery int

	episodes    int
	wins        int
	recentGames int
	recentWins  int
	bestWins    int
	windowStart time.Time
	lastReport  time.Time

	epsilon        float64
	updates        int
	lastLoss       float64
	replaySize     int
	lastCheckpoint string
}

// NewRunContext starts a run at now.
func NewRunContext(reportEvery int, now time.Time) *RunContext {
	return &RunContext{
		id:          uuid.New().String(),
		tag:         Tag(now),
		started:     now,
		reportEvery: reportEvery,
		bestWins:    -1,
		windowStart: now,
	}
}

func (rc *RunContext) ID() string { return rc.id }

func (rc *RunContext) Tag() string { return rc.tag }

// Episodes returns the number of finished games.
func (rc *RunContext) Episodes() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.episodes
}

// Record counts one finished game.
func (rc *RunContext) Record(landlordWon bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.episodes++
	rc.recentGames++
	if landlordWon {
		rc.wins++
		rc.recentWins++
	}
}

// Due reports whether the last recorded game closes a report window.
func (rc *RunContext) Due() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.reportEvery > 0 && rc.episodes > 0 && rc.episodes%rc.reportEvery == 0
}

// Report closes the current window at now and opens the next one.
func (rc *RunContext) Report(now time.Time) Report {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	r := Report{
		Episode:     rc.episodes,
		Elapsed:     now.Sub(rc.windowStart),
		RecentGames: rc.recentGames,
		RecentWins:  rc.recentWins,
	}
	if rc.recentGames > 0 {
		r.RecentWinRate = float64(rc.recentWins) / float64(rc.recentGames)
	}
	if rc.episodes > 0 {
		r.TotalWinRate = float64(rc.wins) / float64(rc.episodes)
	}
	if rc.recentWins > rc.bestWins {
		rc.bestWins = rc.recentWins
		r.NewBest = true
	}

	rc.recentGames, rc.recentWins = 0, 0
	rc.windowStart = now
	rc.lastReport = now
	return r
}

// Observe stores the learner counters shown by Snapshot.
func (rc *RunContext) Observe(epsilon float64, updates int, loss float64, replaySize int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.epsilon = epsilon
	rc.updates = updates
	rc.lastLoss = loss
	rc.replaySize = replaySize
}

// SetCheckpoint records the name of the latest saved checkpoint.
func (rc *RunContext) SetCheckpoint(name string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.lastCheckpoint = name
}

// Snapshot returns a copy of the counters.
func (rc *RunContext) Snapshot() Status {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	s := Status{
		RunID:          rc.id,
		Tag:            rc.tag,
		StartedAt:      rc.started,
		Episodes:       rc.episodes,
		Wins:           rc.wins,
		RecentGames:    rc.recentGames,
		RecentWins:     rc.recentWins,
		BestRecentWins: rc.bestWins,
		Epsilon:        rc.epsilon,
		Updates:        rc.updates,
		LastLoss:       rc.lastLoss,
		ReplaySize:     rc.replaySize,
		LastCheckpoint: rc.lastCheckpoint,
		LastReport:     rc.lastReport,
	}
	if rc.episodes > 0 {
		s.TotalWinRate = float64(rc.wins) / float64(rc.episodes)
	}
	return s
}
