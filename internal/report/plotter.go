// Package report renders PNG plots of a tracking session: the raw and
// smoothed gaze over time, head pose, the calibrated screen trace and the
// calibration fit.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
)

// DefaultMaxSamples bounds memory for long sessions, about five minutes at
// 30 fps.
const DefaultMaxSamples = 9000

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("no samples recorded")

var (
	colorX      = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	colorY      = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
	colorFaint  = color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
	colorTarget = color.RGBA{R: 0x44, G: 0x01, B: 0x54, A: 0xff}
	colorMapped = color.RGBA{R: 0xff, G: 0x52, B: 0x52, A: 0xff}
)

// Sample is one valid estimate as recorded for plotting.
type Sample struct {
	Frame      int
	Elapsed    time.Duration
	Raw        gaze.Vec2
	Smoothed   gaze.Vec2
	Screen     gaze.Vec2
	Yaw, Pitch float64
	Calibrated bool
	Held       bool
}

// Plotter accumulates estimates during a run and writes plots afterwards.
type Plotter struct {
	mu         sync.Mutex
	outputDir  string
	maxSamples int
	frames     int
	start      time.Time
	samples    []Sample
}

// NewPlotter writes into outputDir. maxSamples below one uses
// DefaultMaxSamples; older samples are dropped once it is reached.
func NewPlotter(outputDir string, maxSamples int) *Plotter {
	if maxSamples < 1 {
		maxSamples = DefaultMaxSamples
	}
	return &Plotter{outputDir: outputDir, maxSamples: maxSamples}
}

// Record counts a frame and keeps est if it is valid. It can be passed to
// Tracker.Run.
func (p *Plotter) Record(est pipeline.Estimate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame := p.frames
	p.frames++
	if !est.Valid {
		return
	}
	if p.start.IsZero() {
		p.start = est.Timestamp
	}
	if len(p.samples) == p.maxSamples {
		p.samples = append(p.samples[:0], p.samples[1:]...)
	}
	p.samples = append(p.samples, Sample{
		Frame:      frame,
		Elapsed:    est.Timestamp.Sub(p.start),
		Raw:        est.Raw,
		Smoothed:   est.Smoothed,
		Screen:     gaze.Vec2{X: est.X, Y: est.Y},
		Yaw:        est.Gaze.HeadYaw,
		Pitch:      est.Gaze.HeadPitch,
		Calibrated: est.Calibrated,
		Held:       est.Held,
	})
}

// Samples returns a copy of the recorded samples.
func (p *Plotter) Samples() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sample(nil), p.samples...)
}

// GeneratePlots writes gaze_raw.png, head_pose.png and, when any sample
// was calibrated, gaze_screen.png sized to screen. It returns the written
// paths.
func (p *Plotter) GeneratePlots(screenWidth, screenHeight int) ([]string, error) {
	samples := p.Samples()
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	var written []string
	save := func(pl *plot.Plot, name string, w, h vg.Length) error {
		path := filepath.Join(p.outputDir, name)
		if err := pl.Save(w, h, path); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	raw, err := rawPlot(samples)
	if err != nil {
		return written, err
	}
	if err := save(raw, "gaze_raw.png", 14*vg.Inch, 6*vg.Inch); err != nil {
		return written, err
	}

	pose, err := posePlot(samples)
	if err != nil {
		return written, err
	}
	if err := save(pose, "head_pose.png", 14*vg.Inch, 6*vg.Inch); err != nil {
		return written, err
	}

	screen, ok, err := screenPlot(samples, screenWidth, screenHeight)
	if err != nil {
		return written, err
	}
	if ok {
		if err := save(screen, "gaze_screen.png", 12*vg.Inch, 12*vg.Inch*vg.Length(screenHeight)/vg.Length(screenWidth)); err != nil {
			return written, err
		}
	}
	return written, nil
}

func addLine(pl *plot.Plot, label string, pts plotter.XYs, c color.Color, dashed bool) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = vg.Points(1)
	if dashed {
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	}
	pl.Add(l)
	pl.Legend.Add(label, l)
	return nil
}

func topRightLegend(pl *plot.Plot) {
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10
}

func rawPlot(samples []Sample) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = "Gaze - raw and smoothed"
	pl.X.Label.Text = "Time (s)"
	pl.Y.Label.Text = "Gaze (eye units)"

	rawX := make(plotter.XYs, len(samples))
	rawY := make(plotter.XYs, len(samples))
	smX := make(plotter.XYs, len(samples))
	smY := make(plotter.XYs, len(samples))
	for i, s := range samples {
		t := s.Elapsed.Seconds()
		rawX[i] = plotter.XY{X: t, Y: s.Raw.X}
		rawY[i] = plotter.XY{X: t, Y: s.Raw.Y}
		smX[i] = plotter.XY{X: t, Y: s.Smoothed.X}
		smY[i] = plotter.XY{X: t, Y: s.Smoothed.Y}
	}
	for _, l := range []struct {
		label  string
		pts    plotter.XYs
		c      color.Color
		dashed bool
	}{
		{"raw x", rawX, colorX, true},
		{"raw y", rawY, colorY, true},
		{"smoothed x", smX, colorX, false},
		{"smoothed y", smY, colorY, false},
	} {
		if err := addLine(pl, l.label, l.pts, l.c, l.dashed); err != nil {
			return nil, err
		}
	}
	topRightLegend(pl)
	return pl, nil
}

func posePlot(samples []Sample) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = "Head pose"
	pl.X.Label.Text = "Time (s)"
	pl.Y.Label.Text = "Angle (deg)"

	yaw := make(plotter.XYs, len(samples))
	pitch := make(plotter.XYs, len(samples))
	for i, s := range samples {
		t := s.Elapsed.Seconds()
		yaw[i] = plotter.XY{X: t, Y: s.Yaw}
		pitch[i] = plotter.XY{X: t, Y: s.Pitch}
	}
	if err := addLine(pl, "yaw", yaw, colorX, false); err != nil {
		return nil, err
	}
	if err := addLine(pl, "pitch", pitch, colorY, false); err != nil {
		return nil, err
	}
	topRightLegend(pl)
	return pl, nil
}

// screenAxes fixes the axes to the screen with y growing downwards.
func screenAxes(pl *plot.Plot, width, height int) {
	pl.X.Label.Text = "x (px)"
	pl.Y.Label.Text = "y (px)"
	pl.X.Min, pl.X.Max = 0, float64(width)
	pl.Y.Min, pl.Y.Max = 0, float64(height)
	pl.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	pl.Add(plotter.NewGrid())
}

func screenPlot(samples []Sample, width, height int) (*plot.Plot, bool, error) {
	var moving, held plotter.XYs
	for _, s := range samples {
		if !s.Calibrated {
			continue
		}
		pt := plotter.XY{X: s.Screen.X, Y: s.Screen.Y}
		if s.Held {
			held = append(held, pt)
		} else {
			moving = append(moving, pt)
		}
	}
	if len(moving)+len(held) == 0 {
		return nil, false, nil
	}

	pl := plot.New()
	pl.Title.Text = "Gaze on screen"
	screenAxes(pl, width, height)

	if len(moving) > 0 {
		path, err := plotter.NewLine(moving)
		if err != nil {
			return nil, false, err
		}
		path.Color = colorFaint
		path.Width = vg.Points(0.5)
		pl.Add(path)

		sc, err := plotter.NewScatter(moving)
		if err != nil {
			return nil, false, err
		}
		sc.GlyphStyle.Color = colorX
		sc.GlyphStyle.Radius = vg.Points(1.5)
		pl.Add(sc)
		pl.Legend.Add("gaze", sc)
	}
	if len(held) > 0 {
		sc, err := plotter.NewScatter(held)
		if err != nil {
			return nil, false, err
		}
		sc.GlyphStyle.Color = colorFaint
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		pl.Add(sc)
		pl.Legend.Add("held", sc)
	}
	topRightLegend(pl)
	return pl, true, nil
}

// PlotCalibration writes the calibration fit to path: each target as a
// ring, the mapped mean gaze of its samples as a cross, joined by the
// residual.
func PlotCalibration(path string, sum calibration.Summary, data gaze.CalibrationData) error {
	if len(sum.Points) == 0 {
		return ErrNoSamples
	}
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Calibration (%s) - mean error %.1f px", sum.Mode, sum.Error)
	screenAxes(pl, data.ScreenWidth, data.ScreenHeight)

	targets := make(plotter.XYs, len(sum.Points))
	mapped := make(plotter.XYs, len(sum.Points))
	for i, pt := range sum.Points {
		targets[i] = plotter.XY{X: pt.Target.X, Y: pt.Target.Y}
		mapped[i] = plotter.XY{X: pt.Mapped.X, Y: pt.Mapped.Y}

		res, err := plotter.NewLine(plotter.XYs{targets[i], mapped[i]})
		if err != nil {
			return err
		}
		res.Color = colorFaint
		pl.Add(res)

		lbl, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{targets[i]},
			Labels: []string{fmt.Sprintf(" P%d %.0fpx (%d/%d)", pt.Index+1, pt.Residual, pt.Accepted, pt.Accepted+pt.Rejected)},
		})
		if err != nil {
			return err
		}
		pl.Add(lbl)
	}

	ts, err := plotter.NewScatter(targets)
	if err != nil {
		return err
	}
	ts.GlyphStyle.Color = colorTarget
	ts.GlyphStyle.Shape = draw.RingGlyph{}
	ts.GlyphStyle.Radius = vg.Points(6)
	pl.Add(ts)
	pl.Legend.Add("target", ts)

	ms, err := plotter.NewScatter(mapped)
	if err != nil {
		return err
	}
	ms.GlyphStyle.Color = colorMapped
	ms.GlyphStyle.Shape = draw.CrossGlyph{}
	ms.GlyphStyle.Radius = vg.Points(4)
	pl.Add(ms)
	pl.Legend.Add("mapped mean", ms)
	topRightLegend(pl)

	h := 12 * vg.Inch * vg.Length(data.ScreenHeight) / vg.Length(data.ScreenWidth)
	if err := pl.Save(12*vg.Inch, h, path); err != nil {
		return fmt.Errorf("save calibration plot: %w", err)
	}
	return nil
}
