// Package runner runs child processes in the foreground and forwards
// termination requests to them.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/index-py/index-cli/ports"
	"github.com/rs/zerolog"
)

// Runner starts one child at a time and blocks until it has been reaped.
//
// The child shares this process's process group, so it stays in the
// terminal's foreground job and can read stdin. While it runs, SIGINT and
// SIGTERM delivered to this process are turned into a single StopSignal sent
// to the child. The parent keeps waiting afterwards, so it never returns
// before the child.
type Runner struct {
	Logger zerolog.Logger

	// Echo receives the "Execute command:" line. Nil disables it.
	Echo  io.Writer
	Color bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// StopSignal is sent to the child on interrupt. Defaults to SIGTERM.
	StopSignal syscall.Signal

	// Signals overrides the OS signal subscription (for testing).
	Signals <-chan os.Signal
}

// New returns a Runner wired to the process's standard streams.
func New(logger zerolog.Logger) *Runner {
	return &Runner{
		Logger:     logger,
		Echo:       os.Stdout,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		StopSignal: syscall.SIGTERM,
	}
}

// Ensure interface compliance.
var _ ports.CommandRunner = (*Runner)(nil)

// Command builds the exec.Cmd for spec without starting it.
func Command(spec ports.RunSpec) (*exec.Cmd, error) {
	var cmd *exec.Cmd
	switch {
	case spec.Shell != "":
		line := strings.Join(spec.Args, " ")
		if strings.TrimSpace(line) == "" {
			return nil, fmt.Errorf("empty command")
		}
		cmd = exec.Command(spec.Shell, "-c", line)
	case spec.Name != "":
		cmd = exec.Command(spec.Name, spec.Args...)
	default:
		return nil, fmt.Errorf("empty command")
	}

	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	// No Setpgid: a child in its own group is a background job on the
	// terminal and stops with SIGTTIN on its first read.
	return cmd, nil
}

// Display renders spec the way it is echoed to the user.
func Display(spec ports.RunSpec) string {
	if spec.Shell != "" {
		return strings.Join(spec.Args, " ")
	}
	return strings.TrimSpace(spec.Name + " " + strings.Join(spec.Args, " "))
}

// Run executes spec and returns the child's exit code.
// A child killed by a signal reports 128+signal, as a shell would.
// Cancelling ctx stops the child like an interrupt does.
func (r *Runner) Run(ctx context.Context, spec ports.RunSpec) (int, error) {
	cmd, err := Command(spec)
	if err != nil {
		return -1, err
	}
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	display := Display(spec)
	r.echo(display)

	sigCh := r.Signals
	if sigCh == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %s: %w", display, err)
	}

	pid := cmd.Process.Pid
	r.Logger.Debug().Int("pid", pid).Str("command", display).Msg("child started")

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	stopSig := r.StopSignal
	if stopSig == 0 {
		stopSig = syscall.SIGTERM
	}

	stopped := false
	stop := func(reason string) {
		if stopped {
			return
		}
		stopped = true
		r.Logger.Info().Int("pid", pid).Str("reason", reason).Msg("stopping child")
		if err := cmd.Process.Signal(stopSig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			r.Logger.Warn().Err(err).Int("pid", pid).Msg("signal child failed")
		}
	}

	ctxDone := ctx.Done()
	for {
		select {
		case err := <-done:
			code, werr := exitCode(err)
			r.Logger.Debug().Int("pid", pid).Int("code", code).Msg("child exited")
			return code, werr

		case sig := <-sigCh:
			stop(sig.String())

		case <-ctxDone:
			ctxDone = nil
			stop(ctx.Err().Error())
		}
	}
}

func (r *Runner) echo(display string) {
	if r.Echo == nil {
		return
	}
	if r.Color {
		fmt.Fprintf(r.Echo, "Execute command: \x1b[32m%s\x1b[0m\n", display)
		return
	}
	fmt.Fprintf(r.Echo, "Execute command: %s\n", display)
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("wait: %w", err)
}
