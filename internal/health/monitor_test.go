package health

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/cartridge/landlord/internal/actor"
)

type fakeRun struct{ episodes int }

func (f *fakeRun) Snapshot() actor.Status { return actor.Status{RunID: "r", Episodes: f.episodes} }

func TestMonitor_Transitions(t *testing.T) {
	run := &fakeRun{}
	m := NewMonitor(run, Config{CheckInterval: time.Second, StallAfter: time.Minute}, zerolog.New(io.Discard))
	assert.Equal(t, StateStarting, m.State())

	now := time.Now()
	run.episodes = 3
	assert.Equal(t, StateHealthy, m.Check(now))

	assert.Equal(t, StateHealthy, m.Check(now.Add(30*time.Second)))
	assert.Equal(t, StateStalled, m.Check(now.Add(61*time.Second)))
	assert.Equal(t, StateStalled, m.State())

	run.episodes = 4
	assert.Equal(t, StateHealthy, m.Check(now.Add(62*time.Second)))
}

func TestMonitor_StartStopsOnCancel(t *testing.T) {
	m := NewMonitor(&fakeRun{episodes: 1}, Config{CheckInterval: 5 * time.Millisecond, StallAfter: time.Hour}, zerolog.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.State() == StateHealthy }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
