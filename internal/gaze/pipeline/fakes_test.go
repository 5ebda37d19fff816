package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/banshee-data/gazepoint/internal/detector"
	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
	"github.com/banshee-data/gazepoint/internal/monitoring"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// face returns a frontal open-eyed face looking at (gx, gy) in eye units.
func face(gx, gy float64) *gaze.FaceLandmarkResult {
	p := detector.DefaultFaceParams()
	p.GazeX, p.GazeY = gx, gy
	p.Timestamp = t0
	return detector.SynthesizeFace(p)
}

func closedEyes() *gaze.FaceLandmarkResult {
	p := detector.DefaultFaceParams()
	p.LeftEAR, p.RightEAR = 0.05, 0.05
	p.Timestamp = t0
	return detector.SynthesizeFace(p)
}

// funcDetector delegates DetectLandmarks to a function.
type funcDetector struct {
	detect  func(ctx context.Context) (*gaze.FaceLandmarkResult, error)
	initErr error
	gpu     bool
	calls   atomic.Int64
	closed  atomic.Bool
}

func (d *funcDetector) Initialize(ctx context.Context, useGPU bool) error {
	if d.initErr != nil {
		return d.initErr
	}
	d.gpu = useGPU
	return nil
}

func (d *funcDetector) DetectLandmarks(ctx context.Context) (*gaze.FaceLandmarkResult, error) {
	d.calls.Add(1)
	return d.detect(ctx)
}

func (d *funcDetector) IsReady() bool    { return !d.closed.Load() }
func (d *funcDetector) IsUsingGPU() bool { return d.gpu }
func (d *funcDetector) Close() error     { d.closed.Store(true); return nil }

// noDetector is used by tests that only call ProcessLandmarks.
func noDetector() *funcDetector {
	return &funcDetector{detect: func(context.Context) (*gaze.FaceLandmarkResult, error) {
		return nil, errors.New("no detector in this test")
	}}
}

// memStore is an in-memory Storage keeping everything as strings, the way
// the sqlite store does.
type memStore struct {
	mu      sync.Mutex
	kv      map[string]string
	loadErr error
	saveErr error
	saves   int
	deletes int
}

func newMemStore() *memStore { return &memStore{kv: map[string]string{}} }

func (m *memStore) put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.kv[key] = value
	m.saves++
	return nil
}

func (m *memStore) get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *memStore) SaveCalibrationData(ctx context.Context, mode gaze.CalibrationMode, data gaze.CalibrationData) error {
	rec, err := calibration.Encode(data)
	if err != nil {
		return err
	}
	for field, v := range rec.Map() {
		if err := m.put(calibration.Key(mode, field), v); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) LoadCalibrationData(ctx context.Context, mode gaze.CalibrationMode) (gaze.CalibrationData, error) {
	fields := map[string]string{}
	for _, f := range calibration.Fields {
		v, ok, err := m.get(calibration.Key(mode, f))
		if err != nil {
			return gaze.CalibrationData{}, err
		}
		if ok {
			fields[f] = v
		}
	}
	if len(fields) == 0 {
		return gaze.CalibrationData{}, gaze.ErrNotFound
	}
	rec, err := calibration.RecordFromMap(fields)
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	return calibration.Decode(rec)
}

func (m *memStore) DeleteCalibrationData(ctx context.Context, mode gaze.CalibrationMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := calibration.Key(mode, "")
	for k := range m.kv {
		if strings.HasPrefix(k, prefix) {
			delete(m.kv, k)
		}
	}
	m.deletes++
	return nil
}

func (m *memStore) SaveString(ctx context.Context, key, value string) error {
	return m.put(key, value)
}

func (m *memStore) LoadString(ctx context.Context, key, def string) (string, error) {
	v, ok, err := m.get(key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

func (m *memStore) SaveFloat(ctx context.Context, key string, value float64) error {
	return m.put(key, strconv.FormatFloat(value, 'g', -1, 64))
}

func (m *memStore) LoadFloat(ctx context.Context, key string, def float64) (float64, error) {
	v, ok, err := m.get(key)
	if err != nil || !ok {
		return def, err
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptValue, key, err)
	}
	return parsed, nil
}

func (m *memStore) SaveBool(ctx context.Context, key string, value bool) error {
	return m.put(key, strconv.FormatBool(value))
}

func (m *memStore) LoadBool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := m.get(key)
	if err != nil || !ok {
		return def, err
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptValue, key, err)
	}
	return parsed, nil
}

func (m *memStore) SaveInt(ctx context.Context, key string, value int) error {
	return m.put(key, strconv.Itoa(value))
}

func (m *memStore) LoadInt(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := m.get(key)
	if err != nil || !ok {
		return def, err
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptValue, key, err)
	}
	return parsed, nil
}

var _ Storage = (*memStore)(nil)
var _ Detector = (*funcDetector)(nil)
var _ Detector = (*detector.Replay)(nil)
var _ Detector = (*detector.Synthetic)(nil)

// observedLogger returns a logger whose entries can be inspected.
func observedLogger() (monitoring.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return monitoring.FromZap(zap.New(core)), logs
}

type trackerOpts struct {
	det   Detector
	store Storage
	edit  func(s *SettingsSnapshot)
	log   monitoring.Logger
}

func newTracker(t *testing.T, o trackerOpts) *Tracker {
	t.Helper()
	snap := DefaultSettings()
	snap.SmoothingMode = gaze.SmoothingNone
	if o.edit != nil {
		o.edit(&snap)
	}
	settings, err := NewSettings(snap)
	require.NoError(t, err)
	if o.det == nil {
		o.det = noDetector()
	}
	if o.log == nil {
		o.log = monitoring.Nop()
	}
	return NewTracker(o.det, o.store, settings, DefaultConfig(), o.log)
}

// Ground-truth raw→screen transform used by the calibration tests.
var (
	truthX = [3]float64{960, 800, 40}
	truthY = [3]float64{540, -30, 450}
)

func truthApply(raw gaze.Vec2) gaze.Vec2 {
	return gaze.Vec2{
		X: truthX[0] + truthX[1]*raw.X + truthX[2]*raw.Y,
		Y: truthY[0] + truthY[1]*raw.X + truthY[2]*raw.Y,
	}
}

func rawFor(target gaze.Vec2) gaze.Vec2 {
	a, b := truthX[1], truthX[2]
	c, d := truthY[1], truthY[2]
	u, v := target.X-truthX[0], target.Y-truthY[0]
	det := a*d - b*c
	return gaze.Vec2{X: (d*u - b*v) / det, Y: (a*v - c*u) / det}
}

// calibrate runs a full noiseless session against the ground truth.
func calibrate(t *testing.T, tr *Tracker) gaze.CalibrationData {
	t.Helper()
	targets, err := tr.StartCalibration(10)
	require.NoError(t, err)
	for i, target := range targets {
		raw := rawFor(target)
		for n := 0; n < 6; n++ {
			require.NoError(t, tr.AddCalibrationSample(i, raw.X, raw.Y))
		}
	}
	data, err := tr.ComputeCalibration()
	require.NoError(t, err)
	return data
}
