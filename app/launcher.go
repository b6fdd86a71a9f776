package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/index-py/index-cli/ports"
	"github.com/rs/zerolog"
)

// ErrConfigurationFile is returned when a gunicorn configuration path is not a readable regular file.
var ErrConfigurationFile = errors.New("invalid gunicorn configuration file")

// LauncherDeps contains dependencies for Launcher.
type LauncherDeps struct {
	Runner  ports.CommandRunner
	Journal ports.Journal  // optional
	Metrics ports.Recorder // optional
	Logger  zerolog.Logger
}

// LauncherConfig contains configuration for Launcher.
type LauncherConfig struct {
	// Dir is the project directory. It is made importable and used as --chdir.
	Dir string

	App        string
	Host       string
	Port       int
	LogLevel   string
	Autoreload bool

	UvicornBinary  string
	GunicornBinary string
	WorkerClass    string
	PIDFile        string
	LogFile        string
}

// Launcher starts the application server as a foreground child process.
type Launcher struct {
	runner  ports.CommandRunner
	journal ports.Journal
	metrics ports.Recorder
	logger  zerolog.Logger
	cfg     LauncherConfig
}

// NewLauncher creates a new launcher.
func NewLauncher(deps LauncherDeps, cfg LauncherConfig) *Launcher {
	return &Launcher{
		runner:  deps.Runner,
		journal: deps.Journal,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		cfg:     cfg,
	}
}

// UvicornArgs builds the uvicorn argument list for application.
func UvicornArgs(application string, cfg LauncherConfig) []string {
	args := []string{
		application,
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
		"--log-level", cfg.LogLevel,
		"--interface", "asgi3",
		"--lifespan", "on",
	}
	if cfg.Autoreload {
		args = append(args, "--reload")
	}
	return args
}

// Serve runs uvicorn in the foreground and returns its exit code.
// An empty application falls back to the configured one.
func (l *Launcher) Serve(ctx context.Context, application string) (int, error) {
	application = l.application(application)
	if application == "" {
		return 1, gunicorn.ErrNoApplication
	}

	spec := ports.RunSpec{
		Name: l.cfg.UvicornBinary,
		Args: UvicornArgs(application, l.cfg),
		Dir:  l.cfg.Dir,
		Env:  []string{pythonPath(l.cfg.Dir, os.Getenv("PYTHONPATH"))},
	}

	l.logger.Debug().Str("app", application).Str("bind", l.bind()).Msg("starting uvicorn")
	code, err := l.runner.Run(ctx, spec)
	if err != nil {
		return 1, fmt.Errorf("run uvicorn: %w", err)
	}
	if l.metrics != nil {
		l.metrics.ChildExited("uvicorn", code)
	}
	return code, nil
}

// StartRequest holds the per-invocation gunicorn options.
type StartRequest struct {
	Application   string // empty = configured app
	Workers       int
	WorkerClass   string // empty = configured worker class
	Daemon        bool
	Configuration string // optional gunicorn config file
}

// StartOptions resolves req against the launcher configuration and validates it.
func (l *Launcher) StartOptions(req StartRequest) (gunicorn.StartOptions, error) {
	opts := gunicorn.StartOptions{
		Application:   l.application(req.Application),
		WorkerClass:   req.WorkerClass,
		Bind:          l.bind(),
		Chdir:         l.cfg.Dir,
		Workers:       req.Workers,
		PIDFile:       l.cfg.PIDFile,
		LogLevel:      l.cfg.LogLevel,
		Daemon:        req.Daemon,
		LogFile:       l.cfg.LogFile,
		Reload:        l.cfg.Autoreload,
		Configuration: strings.TrimSpace(req.Configuration),
	}
	if opts.WorkerClass == "" {
		opts.WorkerClass = l.cfg.WorkerClass
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	if opts.Configuration != "" {
		if err := checkConfigurationFile(opts.Configuration); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// Start runs gunicorn and returns its exit code. With Daemon set gunicorn
// detaches, so a zero code only means the master was forked.
func (l *Launcher) Start(ctx context.Context, req StartRequest) (int, error) {
	opts, err := l.StartOptions(req)
	if err != nil {
		return 1, err
	}

	args := opts.Args()
	entry := gunicorn.Entry{Action: gunicorn.ActionStart, Detail: strings.Join(args, " ")}

	l.logger.Debug().Strs("args", args).Msg("starting gunicorn")
	code, err := l.runner.Run(ctx, ports.RunSpec{
		Name: l.cfg.GunicornBinary,
		Args: args,
		Dir:  l.cfg.Dir,
	})
	switch {
	case err != nil:
		err = fmt.Errorf("run gunicorn: %w", err)
		entry.Error = err.Error()
		code = 1
	case code != 0:
		entry.Error = fmt.Sprintf("exit status %d", code)
	}

	if l.metrics != nil {
		if err == nil {
			l.metrics.ChildExited("gunicorn", code)
		} else {
			l.metrics.ControlFailed(gunicorn.ActionStart)
		}
	}
	if l.journal != nil {
		if jerr := l.journal.Record(ctx, entry); jerr != nil {
			l.logger.Warn().Err(jerr).Msg("journal write failed")
		}
	}
	return code, err
}

func (l *Launcher) application(app string) string {
	if app = strings.TrimSpace(app); app != "" {
		return app
	}
	return l.cfg.App
}

func (l *Launcher) bind() string {
	return net.JoinHostPort(l.cfg.Host, strconv.Itoa(l.cfg.Port))
}

// pythonPath puts dir in front of the inherited PYTHONPATH.
func pythonPath(dir, inherited string) string {
	if inherited == "" {
		return "PYTHONPATH=" + dir
	}
	return "PYTHONPATH=" + dir + string(os.PathListSeparator) + inherited
}

func checkConfigurationFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigurationFile, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrConfigurationFile, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigurationFile, err)
	}
	return f.Close()
}
