package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/index-py/index-cli/bootstrap"
	"github.com/index-py/index-cli/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "index-cli",
	Short: "Run and control an ASGI application",
	Long: `index-cli runs an ASGI application under uvicorn (development) or
gunicorn (production) and controls a running gunicorn master.

Quick start:
  index-cli serve                      # uvicorn in the foreground
  index-cli gunicorn start -d          # gunicorn master in the background
  index-cli gunicorn reload --gracefully
  index-cli gunicorn stop

Settings are read from index.yaml (or --config) with INDEX_* overrides.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
}

// ExitError carries a child process exit code to main.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// exitWith turns a child exit code into a command result.
func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return execute(os.Args[1:], os.Stderr)
}

// execute runs rootCmd with args. Errors other than a child exit code are
// printed to stderr and map to 1.
func execute(args []string, stderr io.Writer) int {
	registerOptionalCommands(args)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(stderr, err)
	return 1
}

// registerOptionalCommands adds the gunicorn group when gunicorn is installed.
func registerOptionalCommands(args []string) {
	if gunicornCmd.HasParent() {
		return
	}

	cfg, err := config.LoadWithFallback(configPathFromArgs(args))
	if err != nil {
		// Reported properly once a command loads the configuration.
		cfg, _ = config.LoadFromEnv()
	}
	if cfg == nil {
		rootCmd.AddCommand(gunicornCmd)
		return
	}

	if _, ok := bootstrap.LookupBinary(cfg.Gunicorn.Binary); ok {
		rootCmd.AddCommand(gunicornCmd)
		return
	}
	logger := bootstrap.NewLogger(os.Stderr, cfg.Server.LogLevel, cfg.Logging.Format)
	logger.Debug().
		Str("binary", cfg.Gunicorn.Binary).
		Msg("gunicorn not found on PATH, gunicorn commands disabled")
}

// configPathFromArgs finds --config before cobra parses flags.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return config.DefaultPath
}

// newApp wires the application for one command. withJournal opens the control journal.
func newApp(withJournal bool) (*bootstrap.App, error) {
	return bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Journal:    withJournal,
	})
}

func closeApp(a *bootstrap.App) {
	if err := a.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("shutdown")
	}
}
