package events

import "context"

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishReport(ctx context.Context, payload ReportEvent) error
	PublishCheckpoint(ctx context.Context, payload CheckpointEvent) error
}

// ReportEvent is emitted every report interval.
type ReportEvent struct {
	RunID         string  `json:"run_id"`
	Tag           string  `json:"tag"`
	Episode       int     `json:"episode"`
	Seconds       float64 `json:"seconds"`
	RecentWins    int     `json:"recent_wins"`
	RecentGames   int     `json:"recent_games"`
	RecentWinRate float64 `json:"recent_win_rate"`
	TotalWinRate  float64 `json:"total_win_rate"`
	Epsilon       float64 `json:"epsilon"`
	Loss          float64 `json:"loss"`
	Updates       int     `json:"updates"`
}

// CheckpointEvent announces a newly persisted policy network.
type CheckpointEvent struct {
	RunID   string `json:"run_id"`
	Name    string `json:"name"`
	Episode int    `json:"episode"`
	Wins    int    `json:"wins"`
	Bytes   int    `json:"bytes"`
}

// NoopPublisher drops every event; useful for tests.
type NoopPublisher struct{}

// PublishReport satisfies Publisher.
func (NoopPublisher) PublishReport(context.Context, ReportEvent) error { return nil }

// PublishCheckpoint satisfies Publisher.
func (NoopPublisher) PublishCheckpoint(context.Context, CheckpointEvent) error { return nil }
