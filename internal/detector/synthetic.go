package detector

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

// Script chooses the face for a frame. Returning false reports no face.
type Script func(frame uint64, elapsed time.Duration) (FaceParams, bool)

// DwellScript looks at each gaze position for dwell, in order, repeating
// forever. The first blinkFrames frames of every dwell have both eyes
// closed, mimicking the blink that often accompanies a saccade.
func DwellScript(base FaceParams, positions []gaze.Vec2, dwell time.Duration, blinkFrames uint64) Script {
	var (
		mu       sync.Mutex
		lastStep = -1
		sinceHop uint64
	)
	return func(_ uint64, elapsed time.Duration) (FaceParams, bool) {
		p := base
		if len(positions) == 0 || dwell <= 0 {
			return p, true
		}
		step := int(elapsed / dwell)

		mu.Lock()
		if step != lastStep {
			lastStep = step
			sinceHop = 0
		}
		sinceHop++
		closed := sinceHop <= blinkFrames
		mu.Unlock()

		target := positions[step%len(positions)]
		p.GazeX, p.GazeY = target.X, target.Y
		if closed {
			p.LeftEAR, p.RightEAR = 0.05, 0.05
		}
		return p, true
	}
}

// SyntheticConfig configures a Synthetic detector.
type SyntheticConfig struct {
	FrameRate float64 // Frames per second; <= 0 disables pacing
	Noise     float64 // Uniform iris jitter amplitude in gaze units
	Seed      int64
	Script    Script
}

// DefaultSyntheticConfig dwells on a 3×3 grid of gaze positions at 30 fps.
func DefaultSyntheticConfig() SyntheticConfig {
	var grid []gaze.Vec2
	for _, y := range []float64{-0.6, 0, 0.6} {
		for _, x := range []float64{-0.6, 0, 0.6} {
			grid = append(grid, gaze.Vec2{X: x, Y: y})
		}
	}
	return SyntheticConfig{
		FrameRate: 30,
		Noise:     0.02,
		Seed:      1,
		Script:    DwellScript(DefaultFaceParams(), grid, 2*time.Second, 3),
	}
}

// Synthetic generates landmark frames from a Script, paced by a Clock.
type Synthetic struct {
	cfg   SyntheticConfig
	clock timeutil.Clock

	mu     sync.Mutex
	rng    *rand.Rand
	ready  bool
	closed bool
	frame  uint64
	start  time.Time
	last   time.Time
}

// NewSynthetic returns an uninitialised synthetic detector.
func NewSynthetic(cfg SyntheticConfig, clock timeutil.Clock) *Synthetic {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Script == nil {
		cfg.Script = DefaultSyntheticConfig().Script
	}
	return &Synthetic{cfg: cfg, clock: clock, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Initialize readies the generator. There is no GPU path; a GPU request is
// logged and served on the CPU.
func (s *Synthetic) Initialize(ctx context.Context, useGPU bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: synthetic detector closed", gaze.ErrInitialization)
	}
	if useGPU {
		monitoring.L().Info("synthetic detector has no GPU path, using CPU")
	}
	s.ready = true
	s.start = s.clock.Now()
	return nil
}

// DetectLandmarks waits for the next frame slot and returns the scripted
// face, or nil when the script reports no face.
func (s *Synthetic) DetectLandmarks(ctx context.Context) (*gaze.FaceLandmarkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, fmt.Errorf("%w: synthetic detector not initialised", gaze.ErrInitialization)
	}

	if s.cfg.FrameRate > 0 && !s.last.IsZero() {
		interval := time.Duration(float64(time.Second) / s.cfg.FrameRate)
		if wait := interval - s.clock.Since(s.last); wait > 0 {
			s.clock.Sleep(wait)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	s.last = now
	s.frame++

	p, ok := s.cfg.Script(s.frame, now.Sub(s.start))
	if !ok {
		return nil, nil
	}
	if s.cfg.Noise > 0 {
		p.GazeX += (s.rng.Float64()*2 - 1) * s.cfg.Noise
		p.GazeY += (s.rng.Float64()*2 - 1) * s.cfg.Noise
	}
	p.Timestamp = now
	return SynthesizeFace(p), nil
}

// IsReady reports whether Initialize succeeded.
func (s *Synthetic) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// IsUsingGPU is always false.
func (s *Synthetic) IsUsingGPU() bool { return false }

// Frames returns the number of frames generated.
func (s *Synthetic) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Close stops the generator.
func (s *Synthetic) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.closed = true
	return nil
}
