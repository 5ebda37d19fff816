package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

func (ws *WebServer) renderPage(w http.ResponseWriter, page *components.Page) {
	page.SetAssetsHost(echartsAssetsPrefix)
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTraceChart plots recent estimates: screen positions as a scatter
// and the raw gaze over time.
// Query params:
//   - limit (optional; default all held points)
func (ws *WebServer) handleTraceChart(w http.ResponseWriter, r *http.Request) {
	points := ws.trace.Points(queryLimit(r, 0, DefaultTraceSize*100))
	if len(points) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no gaze estimates recorded yet")
		return
	}
	snap := ws.tracker.Settings().Snapshot()

	var screen, held, fixation []opts.ScatterData
	labels := make([]string, len(points))
	rawX := make([]opts.LineData, len(points))
	rawY := make([]opts.LineData, len(points))
	start := points[0].Timestamp
	for i, p := range points {
		labels[i] = fmt.Sprintf("%.2f", p.Timestamp.Sub(start).Seconds())
		rawX[i] = opts.LineData{Value: p.RawX}
		rawY[i] = opts.LineData{Value: p.RawY}
		if !p.Calibrated {
			continue
		}
		d := opts.ScatterData{Value: []interface{}{p.X, p.Y}}
		switch {
		case p.Held:
			held = append(held, d)
		case p.Fixation:
			fixation = append(fixation, d)
		default:
			screen = append(screen, d)
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Gaze trace", Width: "960px", Height: "560px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Screen gaze", Subtitle: fmt.Sprintf("%d points, %dx%d", len(points), snap.ScreenWidth, snap.ScreenHeight)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: snap.ScreenWidth, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: snap.ScreenHeight, Name: "y (px, down)", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("moving", screen, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("fixation", fixation, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#35b779"}))
	scatter.AddSeries("held", held, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "960px", Height: "360px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Raw gaze", Subtitle: "eye units before calibration"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
	)
	line.SetXAxis(labels).
		AddSeries("raw x", rawX).
		AddSeries("raw y", rawY)

	page := components.NewPage()
	page.AddCharts(scatter, line)
	ws.renderPage(w, page)
}

// handleCalibrationChart plots the calibration targets against where the
// fitted transform maps each point's mean gaze, and the per-point residual.
func (ws *WebServer) handleCalibrationChart(w http.ResponseWriter, r *http.Request) {
	sum, ok := ws.tracker.CalibrationSummary()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no calibration computed in this session")
		return
	}
	data, _ := ws.tracker.Calibration()

	targets := make([]opts.ScatterData, 0, len(sum.Points))
	mapped := make([]opts.ScatterData, 0, len(sum.Points))
	names := make([]string, 0, len(sum.Points))
	residuals := make([]opts.BarData, 0, len(sum.Points))
	rejected := make([]opts.BarData, 0, len(sum.Points))
	for _, p := range sum.Points {
		targets = append(targets, opts.ScatterData{Value: []interface{}{p.Target.X, p.Target.Y}})
		mapped = append(mapped, opts.ScatterData{Value: []interface{}{p.Mapped.X, p.Mapped.Y}})
		names = append(names, fmt.Sprintf("P%d", p.Index+1))
		residuals = append(residuals, opts.BarData{Value: p.Residual})
		rejected = append(rejected, opts.BarData{Value: p.Rejected})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Calibration", Width: "960px", Height: "560px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Calibration fit", Subtitle: fmt.Sprintf("%s, mean error %.1f px", sum.Mode, sum.Error)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: data.ScreenWidth, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: data.ScreenHeight, Name: "y (px, down)", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("target", targets, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#440154"}))
	scatter.AddSeries("mapped", mapped, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "960px", Height: "360px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Per-point residual and rejected samples"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("residual (px)", residuals, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("rejected", rejected)

	page := components.NewPage()
	page.AddCharts(scatter, bar)
	ws.renderPage(w, page)
}

// handleHistoryChart plots the error of saved calibrations over time.
// Query params:
//   - mode (optional; defaults to the active calibration mode)
//   - limit (optional; default 50)
func (ws *WebServer) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	mode, err := queryMode(r, ws.tracker.Settings().Snapshot().CalibrationMode)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	hist, err := ws.store.History(r.Context(), mode, queryLimit(r, 50, 1000))
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(hist) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no %s calibrations saved", mode))
		return
	}

	// History is newest first; plot oldest first.
	labels := make([]string, len(hist))
	errs := make([]opts.LineData, len(hist))
	for i, h := range hist {
		j := len(hist) - 1 - i
		labels[j] = h.CreatedAt.Local().Format(time.DateTime)
		errs[j] = opts.LineData{Value: h.Data.CalibrationError, Name: h.ID}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Calibration history", Width: "960px", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Calibration error", Subtitle: fmt.Sprintf("%s, %d saved", mode, len(hist))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mean error (px)"}),
	)
	line.SetXAxis(labels).AddSeries("error", errs, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))

	page := components.NewPage()
	page.AddCharts(line)
	ws.renderPage(w, page)
}
