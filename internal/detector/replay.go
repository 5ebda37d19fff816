package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

// maxLineBytes bounds a single recorded frame; a 478-point frame is ~30KB.
const maxLineBytes = 4 << 20

// Frame is one recorded detection.
type Frame struct {
	Timestamp time.Time                `json:"t"`
	Face      *gaze.FaceLandmarkResult `json:"face"`
}

// ReadFrames decodes a JSON-lines recording. Blank lines are skipped.
func ReadFrames(r io.Reader) ([]Frame, error) {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var frames []Frame
	line := 0
	for scan.Scan() {
		line++
		b := scan.Bytes()
		if len(b) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return frames, nil
}

// ReplayConfig configures a Replay detector.
type ReplayConfig struct {
	Loop     bool // Restart at the end instead of returning io.EOF
	Realtime bool // Sleep between frames by their recorded spacing
}

// Replay serves recorded frames in order.
type Replay struct {
	cfg   ReplayConfig
	clock timeutil.Clock
	path  string

	mu     sync.Mutex
	frames []Frame
	next   int
	ready  bool
}

// NewReplay returns a detector that loads path on Initialize.
func NewReplay(path string, cfg ReplayConfig, clock timeutil.Clock) *Replay {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Replay{cfg: cfg, clock: clock, path: path}
}

// NewReplayFrames returns a ready detector over in-memory frames.
func NewReplayFrames(frames []Frame, cfg ReplayConfig, clock timeutil.Clock) *Replay {
	r := NewReplay("", cfg, clock)
	r.frames = frames
	r.ready = true
	return r
}

// Initialize loads the recording. useGPU is ignored.
func (r *Replay) Initialize(ctx context.Context, useGPU bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: %v", gaze.ErrInitialization, err)
	}
	defer f.Close()

	frames, err := ReadFrames(f)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", gaze.ErrInitialization, r.path, err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("%w: %s holds no frames", gaze.ErrInitialization, r.path)
	}
	r.frames = frames
	r.next = 0
	r.ready = true
	return nil
}

// DetectLandmarks returns the next recorded face. At the end of a
// non-looping recording it returns io.EOF.
func (r *Replay) DetectLandmarks(ctx context.Context) (*gaze.FaceLandmarkResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		return nil, fmt.Errorf("%w: replay not initialised", gaze.ErrInitialization)
	}
	if len(r.frames) == 0 {
		return nil, io.EOF
	}
	if r.next >= len(r.frames) {
		if !r.cfg.Loop {
			return nil, io.EOF
		}
		r.next = 0
	}

	if r.cfg.Realtime && r.next > 0 {
		gap := r.frames[r.next].Timestamp.Sub(r.frames[r.next-1].Timestamp)
		if gap > 0 {
			r.clock.Sleep(gap)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := r.frames[r.next]
	r.next++
	return f.Face, nil
}

// IsReady reports whether frames are loaded.
func (r *Replay) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// IsUsingGPU is always false.
func (r *Replay) IsUsingGPU() bool { return false }

// Close releases the loaded frames.
func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.ready = false
	return nil
}

// IsEndOfStream reports whether err marks the end of a recording.
func IsEndOfStream(err error) bool { return errors.Is(err, io.EOF) }
