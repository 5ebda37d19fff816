// Command gazetrack runs the gaze pipeline against a landmark source and
// forwards calibrated estimates to the monitor, a pointer bridge and
// session plots.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/pointer"
	"github.com/banshee-data/gazepoint/internal/timeutil"
	"github.com/banshee-data/gazepoint/internal/version"
)

var (
	configFile  = flag.String("config", "", "Tuning config file (.json, .yaml or .yml); built-in defaults when empty")
	dbPath      = flag.String("db", "gazetrack.db", "SQLite database for settings and calibration; empty disables persistence")
	source      = flag.String("source", "synthetic", `Landmark source: "synthetic" or a JSON-lines recording to replay`)
	loopReplay  = flag.Bool("loop", false, "Restart a replayed recording when it ends")
	realtime    = flag.Bool("realtime", true, "Replay frames at their recorded spacing")
	recordPath  = flag.String("record", "", "Append every detection to this JSON-lines file")
	serialPort  = flag.String("serial", "", "Serial port of the pointer bridge; empty disables pointer output")
	baudRate    = flag.Int("baud", pointer.DefaultBaudRate, "Pointer bridge baud rate")
	dwellClick  = flag.Duration("dwell-click", 0, "Click once the gaze rests this long; 0 disables")
	listen      = flag.String("listen", "127.0.0.1:8080", "Monitor listen address; empty disables the monitor")
	calibrate   = flag.Bool("calibrate", false, "Run a calibration pass before tracking")
	calibDwell  = flag.Duration("calibrate-dwell", 2*time.Second, "Time spent on each calibration target")
	screen      = flag.String("screen", "", "Screen size as WIDTHxHEIGHT, overriding stored settings")
	maxFrames   = flag.Int("frames", 0, "Stop after this many frames; 0 runs until interrupted")
	plotDir     = flag.String("plot-dir", "", "Write PNG plots of the session to this directory on exit")
	useGPU      = flag.Bool("gpu", false, "Request GPU inference from the detector")
	devLog      = flag.Bool("dev", false, "Human-readable development logging")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	opts, err := optionsFromFlags()
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	zl, err := monitoring.NewLogger(*devLog)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck
	monitoring.SetLogger(zl)
	opts.log = zl

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info("starting", "version", version.Version, "git_sha", version.GitSHA, "source", opts.source)
	if err := run(ctx, opts); err != nil {
		zl.Error("gazetrack failed", err)
		os.Exit(1)
	}
	zl.Info("graceful shutdown complete")
}

func optionsFromFlags() (options, error) {
	w, h, err := parseScreen(*screen)
	if err != nil {
		return options{}, err
	}
	if *calibDwell <= 0 {
		return options{}, fmt.Errorf("calibrate-dwell must be positive, got %v", *calibDwell)
	}
	if *maxFrames < 0 {
		return options{}, fmt.Errorf("frames must not be negative, got %d", *maxFrames)
	}
	return options{
		configFile:     *configFile,
		dbPath:         *dbPath,
		source:         *source,
		loop:           *loopReplay,
		realtime:       *realtime,
		recordPath:     *recordPath,
		serialPort:     *serialPort,
		baudRate:       *baudRate,
		dwellClick:     *dwellClick,
		listen:         *listen,
		calibrate:      *calibrate,
		calibrateDwell: *calibDwell,
		screenWidth:    w,
		screenHeight:   h,
		maxFrames:      *maxFrames,
		plotDir:        *plotDir,
		useGPU:         *useGPU,
		clock:          timeutil.RealClock{},
	}, nil
}

// parseScreen reads WIDTHxHEIGHT. An empty value returns zeros.
func parseScreen(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("screen %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("screen %q: width: %w", s, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("screen %q: height: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("screen %q: dimensions must be positive", s)
	}
	return w, h, nil
}
