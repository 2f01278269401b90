package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/crashsight/crashsight/internal/alert"
	"github.com/crashsight/crashsight/internal/config"
	"github.com/crashsight/crashsight/internal/detection"
	"github.com/crashsight/crashsight/internal/dispatcher"
	"github.com/crashsight/crashsight/internal/logging"
	"github.com/crashsight/crashsight/internal/monitor"
	intOtel "github.com/crashsight/crashsight/internal/otel"
	"github.com/crashsight/crashsight/internal/scene"
	"github.com/crashsight/crashsight/internal/sim"
	"github.com/crashsight/crashsight/internal/ui"
	"github.com/crashsight/crashsight/pkg/core"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/viper"
)

// BuildDate can be set at build time via ldflags
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"

	AppName string = "crashsight"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFile *os.File

	SessionStartTime time.Time = time.Now()

	eventDispatcher *dispatcher.Dispatcher

	// progressSource feeds scenario, session and frame into every log record once the
	// loop exists.
	progressSource atomic.Pointer[progressHolder]
)

type progressReporter interface {
	Progress() (sim.Progress, bool)
}

type progressHolder struct {
	src progressReporter
}

type flags struct {
	configDir string
	headless  bool
	scenario  string
	frames    int
	version   bool
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configDir, "config", ".", "directory containing "+config.FileName)
	fs.BoolVar(&f.headless, "headless", false, "run without a terminal UI and print detection results as JSON lines")
	fs.StringVar(&f.scenario, "scenario", "", "scenario to run (default from config)")
	fs.IntVar(&f.frames, "frames", 300, "ticks to simulate in headless mode")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.frames < 0 {
		return f, fmt.Errorf("frames must not be negative, got %d", f.frames)
	}
	return f, nil
}

func main() {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if f.version {
		fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	// console logging until the config says otherwise
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Console: os.Stderr, Level: "info"})
	Logger = SlogManager.Logger()

	if err := config.Load(f.configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	setupLogging(f.headless)
	defer closeLogFile()

	Logger.Info("Starting", "version", Version, "buildDate", BuildDate, "headless", f.headless)

	setupOTel()
	defer shutdownOTel()

	var err error
	eventDispatcher, err = newDispatcher()
	if err != nil {
		return fmt.Errorf("creating event dispatcher: %w", err)
	}
	defer eventDispatcher.Close()

	simCfg := config.GetSimConfig()
	loopRand, detectRand := newRands(simCfg.Seed)

	detector := detection.NewService(eventDispatcher, detectRand, Logger)
	detector.Start()
	defer detector.Stop()

	scenarioID := core.ScenarioID(f.scenario)
	if scenarioID == "" {
		scenarioID = core.ScenarioID(config.GetUIConfig().DefaultScenario)
	}

	loopCfg := sim.Config{
		FPS:                simCfg.FPS,
		CollisionThreshold: simCfg.CollisionThreshold,
		Gravity:            simCfg.Gravity,
	}

	if f.headless {
		return runHeadless(ctx, headlessOptions{
			Sim:      loopCfg,
			Rand:     loopRand,
			Scenario: scenarioID,
			Frames:   f.frames,
			Out:      os.Stdout,
		})
	}
	return runInteractive(ctx, loopCfg, loopRand, scenarioID)
}

func runInteractive(ctx context.Context, loopCfg sim.Config, rng *rand.Rand, id core.ScenarioID) error {
	crashScene := scene.New(scene.Options{
		Sim:    loopCfg,
		Bus:    eventDispatcher,
		Rand:   rng,
		Logger: Logger,
	})
	defer crashScene.Close()
	progressSource.Store(&progressHolder{src: crashScene})

	shell := ui.New(ui.Options{
		Scene:         crashScene,
		Bus:           eventDispatcher,
		AlertDuration: config.GetUIConfig().AlertDuration,
		Logger:        Logger,
	})
	shell.Attach()
	defer shell.Detach()
	crashScene.AddOverlay(shell)

	stopMonitor := startMonitor(crashScene)
	defer stopMonitor()

	detachAlert := startAlert()
	defer detachAlert()

	screen, err := initScene(crashScene, tcell.NewScreen, os.Stdin, os.Stderr)
	if err != nil {
		return err
	}

	shell.Load(id)
	return shell.Run(ctx, screen)
}

// initScene creates a screen and initializes the scene on it. An init failure is
// reported on out and retried while the user answers "r".
func initScene(s *scene.Scene, newScreen func() (tcell.Screen, error), in io.Reader, out io.Writer) (tcell.Screen, error) {
	answers := bufio.NewScanner(in)
	for {
		screen, err := newScreen()
		if err != nil {
			err = &scene.InitError{Cause: err}
		} else {
			err = s.Init(screen)
		}
		if err == nil {
			return screen, nil
		}

		var initErr *scene.InitError
		if !errors.As(err, &initErr) {
			return nil, err
		}
		Logger.Error("Failed to initialize visualization", "error", err)

		fmt.Fprintf(out, "%v\n[r] retry, anything else quits: ", err)
		if !answers.Scan() || strings.TrimSpace(answers.Text()) != "r" {
			return nil, err
		}
	}
}

func setupLogging(headless bool) {
	var err error
	logsDir := viper.GetString("logsDir")
	LogFile, err = logging.OpenLogFile(logsDir, AppName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "dir", logsDir)
	}

	opts := logging.Options{
		Level:   viper.GetString("logLevel"),
		Context: sessionContext,
	}
	if LogFile != nil {
		opts.File = LogFile
	}
	// the terminal belongs to the scene in interactive mode
	if headless || LogFile == nil {
		opts.Console = os.Stderr
	}
	SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	if LogFile != nil {
		Logger.Info("Logging to file", "path", LogFile.Name())
	}
}

func closeLogFile() {
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

func sessionContext() []slog.Attr {
	h := progressSource.Load()
	if h == nil {
		return nil
	}
	p, ok := h.src.Progress()
	if !ok {
		return nil
	}
	return []slog.Attr{
		slog.String("scenario", string(p.Scenario)),
		slog.String("session", p.Session.String()),
		slog.Uint64("frame", p.Frame),
	}
}

func setupOTel() {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return
	}

	var w io.Writer = os.Stderr
	if LogFile != nil {
		w = LogFile
	}
	var err error
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ExportInterval: otelCfg.ExportInterval,
		MetricWriter:   w,
	})
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
		OTelProvider = nil
		return
	}
	Logger.Info("OTel provider initialized", "interval", otelCfg.ExportInterval)
}

func shutdownOTel() {
	if OTelProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := OTelProvider.Shutdown(ctx); err != nil {
		Logger.Warn("Failed to shut down OTel provider", "error", err)
	}
}

// newDispatcher picks the bus logger from the logBackend setting.
func newDispatcher() (*dispatcher.Dispatcher, error) {
	if strings.EqualFold(viper.GetString("logBackend"), "zerolog") {
		var w io.Writer = os.Stderr
		if LogFile != nil {
			w = LogFile
		}
		zl := logging.NewZerolog(w, viper.GetString("logLevel"))
		return dispatcher.New(logging.NewZerologAdapter(zl))
	}
	return dispatcher.New(Logger)
}

// newRands returns independent generators for the loop and the classifier. A zero
// seed leaves both seeded from the clock.
func newRands(seed uint64) (loop, detect *rand.Rand) {
	if seed == 0 {
		return nil, nil
	}
	return rand.New(rand.NewPCG(seed, 1)), rand.New(rand.NewPCG(seed, 2))
}

func startMonitor(src monitor.SessionSource) (stop func()) {
	cfg := config.GetMonitorConfig()
	if !cfg.Enabled {
		return func() {}
	}

	path := cfg.StatusFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(viper.GetString("logsDir"), path)
	}
	svc := monitor.NewService(monitor.Dependencies{
		Logger:     Logger,
		Sessions:   src,
		Bus:        eventDispatcher,
		StatusFile: path,
		Interval:   cfg.Interval,
	})
	if err := svc.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
		return func() {}
	}
	return svc.Stop
}

func startAlert() (detach func()) {
	cfg := config.GetAudioConfig()
	if !cfg.Enabled {
		return func() {}
	}

	a, err := alert.New(cfg.Frequency, Logger)
	if err != nil {
		Logger.Warn("Audio alert unavailable", "error", err)
		return func() {}
	}
	a.Attach(eventDispatcher)
	return a.Detach
}
