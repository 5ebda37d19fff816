package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/gazepoint/internal/config"
	"github.com/banshee-data/gazepoint/internal/detector"
	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
	"github.com/banshee-data/gazepoint/internal/monitor"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/pointer"
	"github.com/banshee-data/gazepoint/internal/report"
	"github.com/banshee-data/gazepoint/internal/storage/sqlite"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

const sourceSynthetic = "synthetic"

type options struct {
	configFile     string
	dbPath         string
	source         string
	loop           bool
	realtime       bool
	recordPath     string
	serialPort     string
	baudRate       int
	dwellClick     time.Duration
	listen         string
	calibrate      bool
	calibrateDwell time.Duration
	screenWidth    int
	screenHeight   int
	maxFrames      int
	plotDir        string
	useGPU         bool

	clock timeutil.Clock
	log   monitoring.Logger
	// synthetic overrides the synthetic detector configuration.
	synthetic *detector.SyntheticConfig
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// openDetector builds the landmark source and wraps it in a recorder when
// recordPath is set.
func openDetector(o options) (pipeline.Detector, error) {
	var det detector.Detector
	if o.source == sourceSynthetic {
		cfg := detector.DefaultSyntheticConfig()
		if o.synthetic != nil {
			cfg = *o.synthetic
		}
		det = detector.NewSynthetic(cfg, o.clock)
	} else {
		det = detector.NewReplay(o.source, detector.ReplayConfig{Loop: o.loop, Realtime: o.realtime}, o.clock)
	}
	if o.recordPath == "" {
		return det, nil
	}
	f, err := os.OpenFile(o.recordPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return detector.NewRecorder(det, f, o.clock), nil
}

// restore loads persisted settings and the calibration for the stored mode.
// Failures are logged; tracking continues with defaults.
func restore(ctx context.Context, tr *pipeline.Tracker, o options) {
	if err := tr.LoadSettings(ctx); err != nil {
		o.log.Warn("using default settings", "error", err)
	}
	if o.screenWidth > 0 {
		if err := tr.Settings().SetScreenSize(o.screenWidth, o.screenHeight); err != nil {
			o.log.Warn("ignoring screen size", "error", err)
		}
	}
	mode := tr.Settings().Snapshot().CalibrationMode
	ok, err := tr.LoadCalibration(ctx, mode)
	switch {
	case err != nil:
		o.log.Warn("stored calibration unavailable", "mode", mode.String(), "error", err)
	case ok:
		o.log.Info("restored calibration", "mode", mode.String())
	default:
		o.log.Info("no stored calibration", "mode", mode.String())
	}
}

func run(ctx context.Context, o options) error {
	if o.clock == nil {
		o.clock = timeutil.RealClock{}
	}
	if o.log == nil {
		o.log = monitoring.L()
	}

	tuning, err := loadTuning(o.configFile)
	if err != nil {
		return err
	}

	// A nil *Store must not become a non-nil Storage.
	var (
		db    *sqlite.Store
		store pipeline.Storage
	)
	if o.dbPath != "" {
		db, err = sqlite.Open(o.dbPath, sqlite.WithClock(o.clock), sqlite.WithLogger(o.log))
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	det, err := openDetector(o)
	if err != nil {
		return err
	}
	settings, err := pipeline.NewSettings(pipeline.SettingsFromTuning(tuning))
	if err != nil {
		det.Close()
		return err
	}
	tr := pipeline.NewTracker(det, store, settings, pipeline.ConfigFromTuning(tuning), o.log)
	defer tr.Close()

	if store != nil {
		restore(ctx, tr, o)
	} else if o.screenWidth > 0 {
		if err := settings.SetScreenSize(o.screenWidth, o.screenHeight); err != nil {
			return err
		}
	}

	if err := tr.Initialize(ctx, o.useGPU); err != nil {
		return err
	}
	o.log.Info("detector ready", "gpu", tr.UsingGPU())

	if o.plotDir != "" {
		if err := os.MkdirAll(o.plotDir, 0o755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
	}

	if o.calibrate {
		if err := calibrateAndSave(ctx, tr, o, tuning.GetCalibrationMarginPercent()); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		sinks []func(pipeline.Estimate)
	)

	if o.listen != "" {
		ws, err := monitor.NewWebServer(monitor.WebServerConfig{
			Address: o.listen,
			Tracker: tr,
			Store:   db,
			Log:     o.log,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, ws.Trace().Record)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(runCtx); err != nil {
				o.log.Error("monitor server failed", err)
			}
		}()
	}

	if o.serialPort != "" {
		cfg := pointer.DefaultConfig()
		cfg.DwellClick = o.dwellClick
		ps, err := pointer.Open(o.serialPort, pointer.PortOptions{BaudRate: o.baudRate}, cfg, o.log)
		if err != nil {
			return err
		}
		defer ps.Close()
		sinks = append(sinks, ps.Handle)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ps.Monitor(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				o.log.Warn("pointer bridge monitor stopped", "error", err)
			}
		}()
	}

	var plots *report.Plotter
	if o.plotDir != "" {
		plots = report.NewPlotter(o.plotDir, report.DefaultMaxSamples)
		sinks = append(sinks, plots.Record)
	}

	frames := 0
	runErr := tr.Run(runCtx, func(est pipeline.Estimate) {
		for _, sink := range sinks {
			sink(est)
		}
		frames++
		if o.maxFrames > 0 && frames >= o.maxFrames {
			cancel()
		}
	})
	cancel()
	wg.Wait()

	stats := tr.Stats()
	o.log.Info("tracking stopped",
		"frames", stats.Frames,
		"estimates", stats.Estimates,
		"no_face", stats.NoFace,
		"eyes_closed", stats.EyesClosed,
		"held", stats.Held)

	if plots != nil {
		snap := settings.Snapshot()
		paths, err := plots.GeneratePlots(snap.ScreenWidth, snap.ScreenHeight)
		switch {
		case errors.Is(err, report.ErrNoSamples):
			o.log.Warn("no samples to plot")
		case err != nil:
			runErr = errors.Join(runErr, err)
		default:
			o.log.Info("wrote session plots", "paths", paths)
		}
	}
	return runErr
}

// calibrateAndSave runs a calibration pass, persists the result when a
// store is configured and plots the fit when a plot directory is set.
func calibrateAndSave(ctx context.Context, tr *pipeline.Tracker, o options, marginPercent float64) error {
	data, err := runCalibration(ctx, tr, o.clock, o.calibrateDwell, marginPercent, o.log)
	if err != nil {
		return err
	}
	if err := tr.SaveCalibration(ctx); err != nil && !errors.Is(err, pipeline.ErrNoStorage) {
		return err
	}
	if err := tr.SaveSettings(ctx); err != nil && !errors.Is(err, pipeline.ErrNoStorage) {
		return err
	}
	if o.plotDir != "" {
		sum, _ := tr.CalibrationSummary()
		if err := report.PlotCalibration(filepath.Join(o.plotDir, "calibration.png"), sum, data); err != nil {
			return err
		}
	}
	return nil
}
