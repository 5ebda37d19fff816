package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

// settleFraction of each dwell is skipped while the eyes land on the target.
const settleFraction = 0.25

// runCalibration shows each target for dwell and samples the smoothed gaze
// of every valid, non-held frame after the settle period. Targets are
// announced in the log; a synthetic source dwells on the same row-major
// grid for the same period, so the schedules line up.
func runCalibration(ctx context.Context, tr *pipeline.Tracker, clock timeutil.Clock, dwell time.Duration, marginPercent float64, log monitoring.Logger) (gaze.CalibrationData, error) {
	targets, err := tr.StartCalibration(marginPercent)
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	settle := time.Duration(float64(dwell) * settleFraction)
	start := clock.Now()

	for i, target := range targets {
		log.Info("look at calibration target", "index", i, "x", target.X, "y", target.Y)
		from := start.Add(time.Duration(i)*dwell + settle)
		until := start.Add(time.Duration(i+1) * dwell)

		samples := 0
		for clock.Now().Before(until) {
			est, err := tr.ProcessFrame(ctx)
			switch {
			case ctx.Err() != nil:
				return gaze.CalibrationData{}, ctx.Err()
			case errors.Is(err, io.EOF):
				return gaze.CalibrationData{}, fmt.Errorf("source ended during calibration target %d: %w", i, err)
			case err != nil:
				log.Warn("calibration frame failed", "error", err)
				continue
			}
			if !est.Valid || est.Held || clock.Now().Before(from) {
				continue
			}
			err = tr.RecordCalibrationSample(i)
			if errors.Is(err, calibration.ErrBucketFull) {
				continue
			}
			if err != nil {
				return gaze.CalibrationData{}, err
			}
			samples++
		}
		log.Debug("calibration target sampled", "index", i, "samples", samples)
	}

	data, err := tr.ComputeCalibration()
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	log.Info("calibration complete", "mode", data.Mode.String(), "error_px", data.CalibrationError)
	return data, nil
}
