package events

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishReport(context.Background(), ReportEvent{RunID: "r"}))
	assert.NoError(t, p.PublishCheckpoint(context.Background(), CheckpointEvent{RunID: "r"}))
}

func TestNATSPublisher_ConnectFailure(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "landlord", zerolog.New(io.Discard))
	assert.Error(t, err)
}

func TestReportEventJSON(t *testing.T) {
	data, err := json.Marshal(ReportEvent{RunID: "r", Episode: 200, RecentWinRate: 0.55})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "r", got["run_id"])
	assert.Equal(t, float64(200), got["episode"])
	assert.Equal(t, 0.55, got["recent_win_rate"])
}
