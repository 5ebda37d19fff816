// Package pointer drives an on-screen pointer through a serial HID bridge,
// a small board that presents itself to the host as a USB mouse.
//
// The bridge speaks a line protocol, one command per line:
//
//	M <x> <y>   move to absolute screen pixel (x, y)
//	C           left click at the current position
//
// It answers with free-form status lines which are logged.
package pointer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

// ErrWriteFailed reports a command line the port accepted only in part.
var ErrWriteFailed = errors.New("failed to write to serial port")

// Port is the part of a serial port the sink needs.
type Port interface {
	io.ReadWriteCloser
}

// Config controls how estimates become pointer commands.
type Config struct {
	// MinInterval is the shortest time between two moves.
	MinInterval time.Duration
	// Deadband is the smallest move, in pixels, worth sending.
	Deadband float64
	// DwellClick clicks once the gaze stays within DwellRadius for this
	// long. Zero disables dwell clicking.
	DwellClick  time.Duration
	DwellRadius float64
}

// DefaultConfig moves at most 60 times a second and does not click.
func DefaultConfig() Config {
	return Config{
		MinInterval: time.Second / 60,
		Deadband:    2,
		DwellRadius: 40,
	}
}

// Stats counts what the sink sent.
type Stats struct {
	Moves   int64 `json:"moves"`
	Clicks  int64 `json:"clicks"`
	Skipped int64 `json:"skipped"`
	Errors  int64 `json:"errors"`
}

// Sink turns calibrated estimates into pointer commands.
type Sink struct {
	port  Port
	cfg   Config
	clock timeutil.Clock
	log   monitoring.Logger

	writeMu sync.Mutex

	mu         sync.Mutex
	last       gaze.Vec2
	lastAt     time.Time
	moved      bool
	dwellAt    gaze.Vec2
	dwellSince time.Time
	dwelling   bool
	clicked    bool
	stats      Stats
}

// NewSink wraps an open port. A nil clock uses the real clock and a nil log
// uses monitoring.L().
func NewSink(port Port, cfg Config, clock timeutil.Clock, log monitoring.Logger) *Sink {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if log == nil {
		log = monitoring.L()
	}
	return &Sink{port: port, cfg: cfg, clock: clock, log: log}
}

// Open opens the bridge at path.
func Open(path string, opts PortOptions, cfg Config, log monitoring.Logger) (*Sink, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open pointer bridge %s: %w", path, err)
	}
	return NewSink(port, cfg, nil, log), nil
}

func (s *Sink) send(command string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	line := command + "\n"
	n, err := s.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	return nil
}

// Move sends an absolute move.
func (s *Sink) Move(x, y int) error {
	return s.send(fmt.Sprintf("M %d %d", x, y))
}

// Click sends a left click.
func (s *Sink) Click() error {
	return s.send("C")
}

// Handle is a pipeline.Tracker.Run sink. Write failures are logged.
func (s *Sink) Handle(est pipeline.Estimate) {
	if err := s.Send(est); err != nil {
		s.log.Warn("pointer update failed", "error", err)
	}
}

// Send forwards one estimate. Invalid, held and uncalibrated estimates
// move nothing and break a dwell.
func (s *Sink) Send(est pipeline.Estimate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !est.Valid || est.Held || !est.Calibrated {
		s.dwelling = false
		s.stats.Skipped++
		return nil
	}
	now := est.Timestamp
	if now.IsZero() {
		now = s.clock.Now()
	}
	p := gaze.Vec2{X: math.Max(0, math.Round(est.X)), Y: math.Max(0, math.Round(est.Y))}

	var errs []error
	if s.shouldMove(p, now) {
		if err := s.Move(int(p.X), int(p.Y)); err != nil {
			s.stats.Errors++
			errs = append(errs, fmt.Errorf("move: %w", err))
		} else {
			s.stats.Moves++
			s.last, s.lastAt, s.moved = p, now, true
		}
	} else {
		s.stats.Skipped++
	}

	if s.dwellDue(p, now) {
		if err := s.Click(); err != nil {
			s.stats.Errors++
			errs = append(errs, fmt.Errorf("click: %w", err))
		} else {
			s.stats.Clicks++
			s.log.Debug("dwell click", "x", p.X, "y", p.Y)
		}
	}
	return errors.Join(errs...)
}

func (s *Sink) shouldMove(p gaze.Vec2, now time.Time) bool {
	if !s.moved {
		return true
	}
	if now.Sub(s.lastAt) < s.cfg.MinInterval {
		return false
	}
	return p.Dist(s.last) >= s.cfg.Deadband
}

// dwellDue tracks the dwell anchor and reports when a click is owed. One
// click per dwell; leaving the radius re-arms it.
func (s *Sink) dwellDue(p gaze.Vec2, now time.Time) bool {
	if s.cfg.DwellClick <= 0 {
		return false
	}
	if !s.dwelling || p.Dist(s.dwellAt) > s.cfg.DwellRadius {
		s.dwellAt, s.dwellSince = p, now
		s.dwelling, s.clicked = true, false
		return false
	}
	if s.clicked || now.Sub(s.dwellSince) < s.cfg.DwellClick {
		return false
	}
	s.clicked = true
	return true
}

// Stats returns the command counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Monitor logs status lines from the bridge until ctx ends or the port
// closes.
func (s *Sink) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if line != "" {
				s.log.Debug("pointer bridge", "line", line)
			}
		}
	}
}

// Close closes the port.
func (s *Sink) Close() error {
	return s.port.Close()
}
