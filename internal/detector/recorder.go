package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

// Detector is the method set a Recorder wraps.
type Detector interface {
	Initialize(ctx context.Context, useGPU bool) error
	DetectLandmarks(ctx context.Context) (*gaze.FaceLandmarkResult, error)
	IsReady() bool
	IsUsingGPU() bool
	Close() error
}

// Recorder passes calls through to a Detector and writes every detection,
// including "no face" results, to w as JSON lines.
type Recorder struct {
	Detector
	clock timeutil.Clock

	mu  sync.Mutex
	w   io.WriteCloser
	enc *json.Encoder
	n   int
}

// NewRecorder wraps d. Close closes both d and w.
func NewRecorder(d Detector, w io.WriteCloser, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{Detector: d, clock: clock, w: w, enc: json.NewEncoder(w)}
}

// DetectLandmarks records the wrapped detector's result. Detector errors are
// returned unrecorded.
func (r *Recorder) DetectLandmarks(ctx context.Context) (*gaze.FaceLandmarkResult, error) {
	face, err := r.Detector.DetectLandmarks(ctx)
	if err != nil {
		return nil, err
	}

	ts := r.clock.Now()
	if face != nil && !face.Timestamp.IsZero() {
		ts = face.Timestamp
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(Frame{Timestamp: ts, Face: face}); err != nil {
		return face, fmt.Errorf("record frame %d: %w", r.n, err)
	}
	r.n++
	return face, nil
}

// Frames returns the number of frames written.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Close closes the wrapped detector and the output.
func (r *Recorder) Close() error {
	derr := r.Detector.Close()
	r.mu.Lock()
	werr := r.w.Close()
	r.mu.Unlock()
	if derr != nil {
		return derr
	}
	return werr
}
