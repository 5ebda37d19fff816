package monitor

import (
	"sync"
	"time"

	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
)

// DefaultTraceSize keeps about twenty seconds at 30 fps.
const DefaultTraceSize = 600

// TracePoint is the part of an estimate the charts need.
type TracePoint struct {
	Timestamp  time.Time `json:"timestamp"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	RawX       float64   `json:"raw_x"`
	RawY       float64   `json:"raw_y"`
	Yaw        float64   `json:"yaw"`
	Pitch      float64   `json:"pitch"`
	Calibrated bool      `json:"calibrated"`
	Held       bool      `json:"held"`
	Fixation   bool      `json:"fixation"`
}

func pointOf(est pipeline.Estimate) TracePoint {
	pose := est.Gaze.HeadPose()
	return TracePoint{
		Timestamp:  est.Timestamp,
		X:          est.X,
		Y:          est.Y,
		RawX:       est.Raw.X,
		RawY:       est.Raw.Y,
		Yaw:        pose.Yaw,
		Pitch:      pose.Pitch,
		Calibrated: est.Calibrated,
		Held:       est.Held,
		Fixation:   est.Fixation,
	}
}

// Trace is a fixed-size ring of recent valid estimates.
type Trace struct {
	mu     sync.Mutex
	points []TracePoint
	next   int
	full   bool
}

// NewTrace returns a ring holding size points. Sizes below one use
// DefaultTraceSize.
func NewTrace(size int) *Trace {
	if size < 1 {
		size = DefaultTraceSize
	}
	return &Trace{points: make([]TracePoint, size)}
}

// Record stores est if it is valid. It can be passed to Tracker.Run.
func (t *Trace) Record(est pipeline.Estimate) {
	if !est.Valid {
		return
	}
	p := pointOf(est)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.points[t.next] = p
	t.next = (t.next + 1) % len(t.points)
	if t.next == 0 {
		t.full = true
	}
}

// Points returns up to limit of the most recent points, oldest first. A
// limit of zero or less returns everything held.
func (t *Trace) Points(limit int) []TracePoint {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []TracePoint
	if t.full {
		out = append(out, t.points[t.next:]...)
	}
	out = append(out, t.points[:t.next]...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Len returns the number of points held.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		return len(t.points)
	}
	return t.next
}
