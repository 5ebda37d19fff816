package pointer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func at(ms int, x, y float64) pipeline.Estimate {
	return pipeline.Estimate{
		X: x, Y: y,
		Valid:      true,
		Calibrated: true,
		Timestamp:  t0.Add(time.Duration(ms) * time.Millisecond),
	}
}

func newSink(cfg Config) (*Sink, *testPort) {
	port := newTestPort()
	return NewSink(port, cfg, timeutil.NewMockClock(t0), monitoring.Nop()), port
}

func TestMoveAndClickProtocol(t *testing.T) {
	s, port := newSink(DefaultConfig())
	require.NoError(t, s.Move(10, 20))
	require.NoError(t, s.Click())
	assert.Equal(t, []string{"M 10 20", "C"}, port.lines())
}

func TestSendRoundsAndClamps(t *testing.T) {
	s, port := newSink(DefaultConfig())
	require.NoError(t, s.Send(at(0, 100.6, -3)))
	assert.Equal(t, []string{"M 101 0"}, port.lines())
}

func TestSendSkipsUnusableEstimates(t *testing.T) {
	tests := []struct {
		name string
		edit func(*pipeline.Estimate)
	}{
		{"invalid", func(e *pipeline.Estimate) { e.Valid = false }},
		{"held", func(e *pipeline.Estimate) { e.Held = true }},
		{"uncalibrated", func(e *pipeline.Estimate) { e.Calibrated = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, port := newSink(DefaultConfig())
			est := at(0, 500, 500)
			tt.edit(&est)
			require.NoError(t, s.Send(est))
			assert.Empty(t, port.lines())
			assert.Equal(t, int64(1), s.Stats().Skipped)
		})
	}
}

func TestSendRateLimitAndDeadband(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = 20 * time.Millisecond
	cfg.Deadband = 5
	s, port := newSink(cfg)

	require.NoError(t, s.Send(at(0, 100, 100)))
	require.NoError(t, s.Send(at(10, 200, 200))) // too soon
	require.NoError(t, s.Send(at(30, 103, 103))) // inside deadband
	require.NoError(t, s.Send(at(40, 200, 200)))

	assert.Equal(t, []string{"M 100 100", "M 200 200"}, port.lines())
	st := s.Stats()
	assert.Equal(t, int64(2), st.Moves)
	assert.Equal(t, int64(2), st.Skipped)
}

func TestDwellClick(t *testing.T) {
	cfg := Config{DwellClick: 500 * time.Millisecond, DwellRadius: 30}
	s, port := newSink(cfg)

	for ms := 0; ms <= 1000; ms += 100 {
		require.NoError(t, s.Send(at(ms, 400+float64(ms%20), 300)))
	}
	// Exactly one click per dwell.
	assert.Equal(t, int64(1), s.Stats().Clicks)

	// Leaving the radius re-arms; a blink breaks the dwell.
	require.NoError(t, s.Send(at(1100, 900, 300)))
	require.NoError(t, s.Send(at(1400, 900, 300)))
	blink := at(1500, 900, 300)
	blink.Held = true
	require.NoError(t, s.Send(blink))
	require.NoError(t, s.Send(at(1700, 900, 300)))
	assert.Equal(t, int64(1), s.Stats().Clicks)

	require.NoError(t, s.Send(at(2200, 900, 300)))
	assert.Equal(t, int64(2), s.Stats().Clicks)

	var clicks int
	for _, l := range port.lines() {
		if l == "C" {
			clicks++
		}
	}
	assert.Equal(t, 2, clicks)
}

func TestDwellDisabledByDefault(t *testing.T) {
	s, _ := newSink(DefaultConfig())
	for ms := 0; ms <= 5000; ms += 100 {
		require.NoError(t, s.Send(at(ms, 400, 300)))
	}
	assert.Zero(t, s.Stats().Clicks)
}

func TestSendWriteErrors(t *testing.T) {
	s, port := newSink(DefaultConfig())

	port.writeErr = errors.New("unplugged")
	err := s.Send(at(0, 1, 1))
	assert.ErrorContains(t, err, "unplugged")

	port.short = true
	assert.ErrorIs(t, s.Send(at(100, 50, 50)), ErrWriteFailed)

	// A failed move is retried on the next estimate.
	require.NoError(t, s.Send(at(200, 50, 50)))
	st := s.Stats()
	assert.Equal(t, int64(2), st.Errors)
	assert.Equal(t, int64(1), st.Moves)

	// Handle logs instead of returning.
	port.writeErr = errors.New("unplugged")
	s.Handle(at(300, 900, 900))
	assert.Equal(t, int64(3), s.Stats().Errors)
}

func TestSendUsesClockWithoutTimestamp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = time.Second
	port := newTestPort()
	clock := timeutil.NewMockClock(t0)
	s := NewSink(port, cfg, clock, monitoring.Nop())

	est := at(0, 10, 10)
	est.Timestamp = time.Time{}
	require.NoError(t, s.Send(est))
	est.X = 500
	require.NoError(t, s.Send(est))
	assert.Len(t, port.lines(), 1)

	clock.Advance(2 * time.Second)
	require.NoError(t, s.Send(est))
	assert.Len(t, port.lines(), 2)
}

func TestMonitorReadsUntilCancelled(t *testing.T) {
	s, port := newSink(DefaultConfig())
	port.feed("READY\nOK\n")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Monitor(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, s.Close())
}

func TestMonitorReturnsWhenPortCloses(t *testing.T) {
	s, port := newSink(DefaultConfig())
	done := make(chan error, 1)
	go func() { done <- s.Monitor(context.Background()) }()

	port.feed("READY\n")
	require.NoError(t, s.Close())
	select {
	case err := <-done:
		assert.ErrorContains(t, err, "closed")
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after close")
	}
}
