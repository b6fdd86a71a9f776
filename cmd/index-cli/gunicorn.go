package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/index-py/index-cli/adapters/pidfile"
	"github.com/index-py/index-cli/adapters/process"
	"github.com/index-py/index-cli/app"
	"github.com/index-py/index-cli/bootstrap"
	"github.com/spf13/cobra"
)

// gunicornCmd is added to the root only when gunicorn is installed.
var gunicornCmd = &cobra.Command{
	Use:   "gunicorn",
	Short: "Run and control a gunicorn master",
	Long: `Start gunicorn with uvicorn workers and control the running master
through the pid file it records (gunicorn.pid_file, default .gunicorn.pid).

Signals:
  incr                 TTIN   add one worker
  decr                 TTOU   remove one worker
  stop                 TERM   graceful shutdown
  stop --force         INT    quick shutdown
  reload               HUP    reload configuration and workers
  reload --gracefully  USR2 then WINCH   zero-downtime upgrade`,
}

var (
	startWorkers       int
	startWorkerClass   string
	startDaemon        bool
	startConfiguration string

	stopForce        bool
	reloadGracefully bool
)

var gunicornStartCmd = &cobra.Command{
	Use:   "start [application]",
	Short: "Start gunicorn",
	Long: `Start gunicorn serving the application (default: server.app).

With --daemon gunicorn detaches; index-cli then waits up to gunicorn.pid_wait
for the master pid file and prints the pid.

Examples:
  index-cli gunicorn start
  index-cli gunicorn start -w 4 -d
  index-cli gunicorn start -c gunicorn.conf.py api.main:app`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGunicornStart,
}

var gunicornIncrCmd = &cobra.Command{
	Use:   "incr",
	Short: "Increment the number of workers by one",
	Args:  cobra.NoArgs,
	RunE: controlRunE(func(ctx context.Context, c *app.Controller) error {
		return c.Incr(ctx)
	}),
}

var gunicornDecrCmd = &cobra.Command{
	Use:   "decr",
	Short: "Decrement the number of workers by one",
	Args:  cobra.NoArgs,
	RunE: controlRunE(func(ctx context.Context, c *app.Controller) error {
		return c.Decr(ctx)
	}),
}

var gunicornStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop gunicorn (graceful unless --force)",
	Args:  cobra.NoArgs,
	RunE: controlRunE(func(ctx context.Context, c *app.Controller) error {
		return c.Stop(ctx, stopForce)
	}),
}

var gunicornReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload gunicorn (zero-downtime with --gracefully)",
	Args:  cobra.NoArgs,
	RunE: controlRunE(func(ctx context.Context, c *app.Controller) error {
		return c.Reload(ctx, reloadGracefully)
	}),
}

var gunicornStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the recorded master is running",
	Args:  cobra.NoArgs,
	RunE:  runGunicornStatus,
}

func init() {
	gunicornCmd.AddCommand(gunicornStartCmd)
	gunicornCmd.AddCommand(gunicornIncrCmd)
	gunicornCmd.AddCommand(gunicornDecrCmd)
	gunicornCmd.AddCommand(gunicornStopCmd)
	gunicornCmd.AddCommand(gunicornReloadCmd)
	gunicornCmd.AddCommand(gunicornStatusCmd)

	gunicornStartCmd.Flags().IntVarP(&startWorkers, "workers", "w", runtime.NumCPU(), "number of worker processes")
	gunicornStartCmd.Flags().StringVarP(&startWorkerClass, "worker-class", "k", "", "worker class (default gunicorn.worker_class)")
	gunicornStartCmd.Flags().BoolVarP(&startDaemon, "daemon", "d", false, "detach and write logs to gunicorn.log_file")
	gunicornStartCmd.Flags().StringVarP(&startConfiguration, "configuration", "c", "", "gunicorn configuration file")

	gunicornStopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "quick shutdown (INT) instead of graceful (TERM)")
	gunicornReloadCmd.Flags().BoolVar(&reloadGracefully, "gracefully", false, "zero-downtime upgrade (USR2 then WINCH)")
}

// controlRunE wires the app with the journal and runs one controller action.
func controlRunE(action func(context.Context, *app.Controller) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer closeApp(a)

		return action(cmd.Context(), a.Controller)
	}
}

func runGunicornStart(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer closeApp(a)

	req := app.StartRequest{
		Workers:       startWorkers,
		WorkerClass:   startWorkerClass,
		Daemon:        startDaemon,
		Configuration: startConfiguration,
	}
	if len(args) > 0 {
		req.Application = args[0]
	}

	if req.Daemon {
		if err := clearStalePIDFile(a); err != nil {
			return err
		}
	}

	code, err := a.Launcher.Start(cmd.Context(), req)
	if err != nil {
		return err
	}
	if code != 0 || !req.Daemon {
		return exitWith(code)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.Config.Gunicorn.PIDWait)
	defer cancel()

	pid, err := a.PIDFile.Wait(ctx, a.Logger)
	if err != nil {
		return fmt.Errorf("gunicorn did not write %s within %s: %w", a.Config.Gunicorn.PIDFile, a.Config.Gunicorn.PIDWait, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "gunicorn master started (pid %d)\n", pid)
	return nil
}

// clearStalePIDFile refuses to start over a live master and removes a
// pid file left behind by a dead one, so the wait does not pick it up.
func clearStalePIDFile(a *bootstrap.App) error {
	pid, err := a.PIDFile.ReadPID()
	switch {
	case errors.Is(err, pidfile.ErrNotFound):
		return nil
	case err == nil && process.Alive(pid):
		return fmt.Errorf("gunicorn is already running (pid %d)", pid)
	}

	a.Logger.Debug().Str("path", a.PIDFile.Path).Msg("removing stale pid file")
	if err := os.Remove(a.PIDFile.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale pid file: %w", err)
	}
	return nil
}

func runGunicornStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer closeApp(a)

	st, err := a.Controller.Status(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case st.Running:
		fmt.Fprintf(out, "running (pid %d)\n", st.PID)
		return nil
	case st.PID != 0:
		fmt.Fprintf(out, "not running (stale pid %d in %s)\n", st.PID, a.Config.Gunicorn.PIDFile)
	default:
		fmt.Fprintln(out, "not running")
	}
	return exitWith(3)
}
