// Package bootstrap wires configuration, adapters and services together.
// Configuration comes from index.yaml with INDEX_* environment overrides.
package bootstrap

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/index-py/index-cli/adapters/metrics"
	"github.com/index-py/index-cli/adapters/pidfile"
	"github.com/index-py/index-cli/adapters/process"
	"github.com/index-py/index-cli/adapters/runner"
	"github.com/index-py/index-cli/adapters/sqlite"
	"github.com/index-py/index-cli/app"
	"github.com/index-py/index-cli/config"
	"github.com/index-py/index-cli/ports"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options controls how the App is assembled.
type Options struct {
	// ConfigPath is the YAML file. A missing file falls back to env and defaults.
	ConfigPath string

	// Dir is the project directory (default: working directory).
	Dir string

	// LogOutput receives the CLI's own logs (default: stderr).
	LogOutput io.Writer

	// Journal opens the control journal when enabled in config.
	Journal bool
}

// App holds the wired components for one CLI invocation.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Dir    string

	DB      *sqlite.DB    // nil when the journal is not open
	Journal ports.Journal // nil when the journal is not open
	Metrics *metrics.Collector
	Runner  *runner.Runner
	PIDFile pidfile.File

	Controller *app.Controller
	Launcher   *app.Launcher
}

// New loads configuration and wires every component.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	dir := opts.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("working directory: %w", err)
		}
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := NewLogger(out, cfg.Server.LogLevel, cfg.Logging.Format)

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Dir:     dir,
		Metrics: metrics.New(),
		PIDFile: pidfile.New(dir, cfg.Gunicorn.PIDFile),
	}

	if opts.Journal && cfg.Journal.IsEnabled() {
		a.openJournal()
	}

	a.Runner = runner.New(logger)
	a.Runner.Color = isTerminal(os.Stdout)

	a.Controller = app.NewController(app.ControllerDeps{
		Signaler: process.System{},
		PIDs:     a.PIDFile,
		Journal:  a.Journal,
		Metrics:  a.Metrics,
		Logger:   logger,
	}, app.ControllerConfig{PIDFileName: cfg.Gunicorn.PIDFile})

	a.Launcher = app.NewLauncher(app.LauncherDeps{
		Runner:  a.Runner,
		Journal: a.Journal,
		Metrics: a.Metrics,
		Logger:  logger,
	}, LauncherConfig(cfg, dir))

	logger.Debug().
		Str("config", opts.ConfigPath).
		Str("dir", dir).
		Str("bind", cfg.Server.Bind()).
		Bool("journal", a.Journal != nil).
		Msg("initialized")
	return a, nil
}

// LauncherConfig maps the loaded configuration onto the launcher's.
func LauncherConfig(cfg *config.Config, dir string) app.LauncherConfig {
	return app.LauncherConfig{
		Dir:            dir,
		App:            cfg.Server.App,
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		LogLevel:       cfg.Server.LogLevel,
		Autoreload:     cfg.Server.Autoreload,
		UvicornBinary:  cfg.Uvicorn.Binary,
		GunicornBinary: cfg.Gunicorn.Binary,
		WorkerClass:    cfg.Gunicorn.WorkerClass,
		PIDFile:        cfg.Gunicorn.PIDFile,
		LogFile:        cfg.Gunicorn.LogFile,
	}
}

// openJournal opens the journal database. Failure only disables journaling.
func (a *App) openJournal() {
	dsn := a.Config.Journal.DSN
	if dsn != sqlite.MemoryDSN && !filepath.IsAbs(dsn) {
		dsn = filepath.Join(a.Dir, dsn)
	}

	db, err := sqlite.Open(dsn)
	if err != nil {
		a.Logger.Warn().Err(err).Str("dsn", dsn).Msg("journal disabled")
		return
	}

	a.DB = db
	a.Journal = sqlite.NewJournal(db)
}

// Close writes the metrics textfile and closes the journal.
func (a *App) Close() error {
	if err := a.Metrics.WriteTextfile(a.Config.Metrics.Textfile); err != nil {
		a.Logger.Warn().Err(err).Msg("metrics export failed")
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("close journal: %w", err)
		}
		a.DB = nil
	}
	return nil
}

// NewLogger builds the CLI logger. Server log level names are accepted
// (critical, warning) alongside zerolog's own. An empty format picks
// console output on a terminal and JSON otherwise.
func NewLogger(out io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(zerologLevel(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	if format == "" {
		format = "json"
		if f, ok := out.(*os.File); ok && isTerminal(f) {
			format = "console"
		}
	}

	if format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func zerologLevel(level string) string {
	switch level = strings.ToLower(strings.TrimSpace(level)); level {
	case "critical":
		return "fatal"
	case "warning":
		return "warn"
	default:
		return level
	}
}

// LookupBinary looks binary up on PATH.
func LookupBinary(binary string) (string, bool) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", false
	}
	return path, true
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
