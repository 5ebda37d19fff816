// Package monitor serves a local debugging interface for a running tracker:
// JSON status and settings endpoints, go-echarts pages for the live gaze
// trace and the calibration fit, and the tsweb debug index with a tailsql
// console over the settings database.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/storage/sqlite"
	"github.com/banshee-data/gazepoint/internal/version"
)

// WebServer serves the monitoring endpoints.
type WebServer struct {
	address string
	tracker *pipeline.Tracker
	trace   *Trace
	store   *sqlite.Store
	log     monitoring.Logger
	server  *http.Server
}

// WebServerConfig configures a WebServer. Store is optional; without it
// the history endpoints and the SQL console are not mounted.
type WebServerConfig struct {
	Address string
	Tracker *pipeline.Tracker
	Trace   *Trace
	Store   *sqlite.Store
	Log     monitoring.Logger
}

// NewWebServer builds the server and its routes.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("monitor: tracker is required")
	}
	ws := &WebServer{
		address: cfg.Address,
		tracker: cfg.Tracker,
		trace:   cfg.Trace,
		store:   cfg.Store,
		log:     cfg.Log,
	}
	if ws.trace == nil {
		ws.trace = NewTrace(DefaultTraceSize)
	}
	if ws.log == nil {
		ws.log = monitoring.L()
	}
	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Trace returns the ring the charts read from. Pass its Record method to
// Tracker.Run.
func (ws *WebServer) Trace() *Trace { return ws.trace }

// Handler returns the route multiplexer.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx ends, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		ws.log.Info("starting HTTP server", "address", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("monitor server: %w", err)
	case <-ctx.Done():
	}
	ws.log.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		ws.log.Warn("HTTP server shutdown error", "error", err)
		if err := ws.server.Close(); err != nil {
			ws.log.Warn("HTTP server force close error", "error", err)
		}
	}
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleIndex)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/settings", ws.handleSettings)
	mux.HandleFunc("/api/trace", ws.handleTrace)
	mux.HandleFunc("/charts/trace", ws.handleTraceChart)
	mux.HandleFunc("/charts/calibration", ws.handleCalibrationChart)
	if ws.store != nil {
		mux.HandleFunc("/api/calibration/history", ws.handleCalibrationHistory)
		mux.HandleFunc("/api/calibration/restore", ws.handleCalibrationRestore)
		mux.HandleFunc("/charts/history", ws.handleHistoryChart)
	}

	if err := ws.attachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return mux, nil
}

// attachAdminRoutes mounts the tsweb debug index at /debug/. tsweb only
// answers loopback and tailnet clients there.
func (ws *WebServer) attachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	debug.KV("version", version.Version)
	debug.KV("git_sha", version.GitSHA)
	debug.KVFunc("frames", func() any { return ws.tracker.Stats().Frames })
	debug.KVFunc("estimates", func() any { return ws.tracker.Stats().Estimates })
	debug.KVFunc("detector_gpu", func() any { return ws.tracker.UsingGPU() })

	if ws.store == nil {
		return nil
	}
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+ws.store.Path(), ws.store.DB(), &tailsql.DBOptions{
		Label: "Gaze settings DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	return nil
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.log.Warn("JSON encoding error", "error", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	ws.writeJSON(w, status, map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

const indexHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>gazepoint</title></head>
<body style="font-family: sans-serif">
<h1>gazepoint</h1>
<p>version %s (%s)</p>
<ul>
<li><a href="/charts/trace">Gaze trace</a></li>
<li><a href="/charts/calibration">Calibration fit</a></li>
<li><a href="/charts/history">Calibration history</a></li>
<li><a href="/api/status">Status (JSON)</a></li>
<li><a href="/api/settings">Settings (JSON)</a></li>
<li><a href="/debug/">Debug</a></li>
</ul>
</body></html>
`

func (ws *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexHTML, version.Version, version.GitSHA)
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Ready            bool                      `json:"ready"`
	UsingGPU         bool                      `json:"using_gpu"`
	Stats            pipeline.Stats            `json:"stats"`
	Settings         pipeline.SettingsSnapshot `json:"settings"`
	CalibrationState string                    `json:"calibration_state"`
	CalibrationPoint int                       `json:"calibration_point"`
	Calibration      *gaze.CalibrationData     `json:"calibration,omitempty"`
	Summary          *calibration.Summary      `json:"summary,omitempty"`
	Last             *TracePoint               `json:"last,omitempty"`
}

func (ws *WebServer) status() StatusResponse {
	state, point := ws.tracker.CalibrationState()
	resp := StatusResponse{
		Ready:            ws.tracker.Ready(),
		UsingGPU:         ws.tracker.UsingGPU(),
		Stats:            ws.tracker.Stats(),
		Settings:         ws.tracker.Settings().Snapshot(),
		CalibrationState: state.String(),
		CalibrationPoint: point,
	}
	if data, ok := ws.tracker.Calibration(); ok {
		resp.Calibration = &data
	}
	if sum, ok := ws.tracker.CalibrationSummary(); ok {
		resp.Summary = &sum
	}
	if est, ok := ws.tracker.Last(); ok {
		p := pointOf(est)
		resp.Last = &p
	}
	return resp
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ws.writeJSON(w, http.StatusOK, ws.status())
}

// handleSettings returns the settings on GET. PUT and POST apply a JSON
// object on top of the current settings; omitted fields keep their value.
// Applied settings are persisted when a store is configured.
func (ws *WebServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings := ws.tracker.Settings()
	switch r.Method {
	case http.MethodGet:
		ws.writeJSON(w, http.StatusOK, settings.Snapshot())
		return
	case http.MethodPut, http.MethodPost:
	default:
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid settings: %v", err))
		return
	}
	applied, err := settings.Update(func(next *pipeline.SettingsSnapshot) error {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(next); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
		return nil
	})
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.tracker.SaveSettings(r.Context()); err != nil && !errors.Is(err, pipeline.ErrNoStorage) {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.log.Info("settings updated", "remote", r.RemoteAddr)
	ws.writeJSON(w, http.StatusOK, applied)
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= max {
			limit = v
		}
	}
	return limit
}

func (ws *WebServer) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	points := ws.trace.Points(queryLimit(r, DefaultTraceSize, 100000))
	if points == nil {
		points = []TracePoint{}
	}
	ws.writeJSON(w, http.StatusOK, points)
}

func queryMode(r *http.Request, def gaze.CalibrationMode) (gaze.CalibrationMode, error) {
	m := r.URL.Query().Get("mode")
	if m == "" {
		return def, nil
	}
	return gaze.ParseCalibrationMode(m)
}

func (ws *WebServer) handleCalibrationHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	mode, err := queryMode(r, ws.tracker.Settings().Snapshot().CalibrationMode)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	hist, err := ws.store.History(r.Context(), mode, queryLimit(r, 20, 1000))
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hist == nil {
		hist = []sqlite.HistoryEntry{}
	}
	ws.writeJSON(w, http.StatusOK, hist)
}

// handleCalibrationRestore re-activates a history entry and loads it into
// the tracker.
func (ws *WebServer) handleCalibrationRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'id' parameter")
		return
	}
	data, err := ws.store.Restore(r.Context(), id)
	switch {
	case errors.Is(err, gaze.ErrNotFound):
		ws.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ok, err := ws.tracker.LoadCalibration(r.Context(), data.Mode)
	if err != nil || !ok {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("load restored calibration: %v", err))
		return
	}
	ws.log.Info("calibration restored", "id", id, "mode", data.Mode.String())
	ws.writeJSON(w, http.StatusOK, data)
}
