// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/index-py/index-cli/ports"
	"github.com/rs/zerolog"
)

// MasterNotRunningError is returned when no gunicorn master pid is recorded.
type MasterNotRunningError struct {
	PIDFile string
	Err     error
}

func (e *MasterNotRunningError) Error() string {
	return fmt.Sprintf("File %q not found, please make sure you have started gunicorn using the "+
		"`index-cli gunicorn start --daemon ...`.", e.PIDFile)
}

func (e *MasterNotRunningError) Unwrap() error {
	return e.Err
}

// ControllerDeps contains dependencies for Controller.
type ControllerDeps struct {
	Signaler ports.Signaler
	PIDs     ports.PIDReader
	Journal  ports.Journal  // optional
	Metrics  ports.Recorder // optional
	Logger   zerolog.Logger
}

// ControllerConfig contains configuration for Controller.
type ControllerConfig struct {
	// PIDFileName is the pid file as the user configured it, used in messages.
	PIDFileName string
}

// Controller sends control signals to a running gunicorn master.
type Controller struct {
	signaler ports.Signaler
	pids     ports.PIDReader
	journal  ports.Journal
	metrics  ports.Recorder
	logger   zerolog.Logger
	pidName  string
	now      func() time.Time
}

// NewController creates a new controller.
func NewController(deps ControllerDeps, cfg ControllerConfig) *Controller {
	return &Controller{
		signaler: deps.Signaler,
		pids:     deps.PIDs,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		pidName:  cfg.PIDFileName,
		now:      time.Now,
	}
}

// Incr adds one worker (TTIN).
func (c *Controller) Incr(ctx context.Context) error {
	return c.control(ctx, gunicorn.ActionIncr, gunicorn.ControlOptions{})
}

// Decr removes one worker (TTOU).
func (c *Controller) Decr(ctx context.Context) error {
	return c.control(ctx, gunicorn.ActionDecr, gunicorn.ControlOptions{})
}

// Stop shuts the master down: gracefully (TERM) or quickly when force is set (INT).
func (c *Controller) Stop(ctx context.Context, force bool) error {
	return c.control(ctx, gunicorn.ActionStop, gunicorn.ControlOptions{Force: force})
}

// Reload reloads the configuration (HUP), or performs a zero-downtime
// upgrade (USR2 then WINCH) when gracefully is set.
func (c *Controller) Reload(ctx context.Context, gracefully bool) error {
	return c.control(ctx, gunicorn.ActionReload, gunicorn.ControlOptions{Gracefully: gracefully})
}

// MasterStatus describes the recorded master.
type MasterStatus struct {
	PID     int
	Running bool
}

// Status probes the recorded master with signal 0. A missing pid file is
// reported as not running rather than as an error.
func (c *Controller) Status(ctx context.Context) (MasterStatus, error) {
	pid, err := c.pids.ReadPID()
	if err != nil {
		if errors.Is(err, gunicorn.ErrMasterNotRunning) {
			return MasterStatus{}, nil
		}
		return MasterStatus{}, err
	}

	err = c.signaler.Signal(pid, syscall.Signal(0))
	switch {
	case err == nil, errors.Is(err, syscall.EPERM):
		return MasterStatus{PID: pid, Running: true}, nil
	case errors.Is(err, syscall.ESRCH):
		return MasterStatus{PID: pid}, nil
	default:
		return MasterStatus{PID: pid}, err
	}
}

func (c *Controller) control(ctx context.Context, action gunicorn.Action, opts gunicorn.ControlOptions) error {
	entry := gunicorn.Entry{Action: action, Detail: controlDetail(opts), At: c.now()}

	err := c.deliver(&entry, opts)
	if err != nil {
		entry.Error = err.Error()
		if c.metrics != nil {
			c.metrics.ControlFailed(action)
		}
		c.logger.Debug().Err(err).Str("action", string(action)).Msg("control action failed")
	} else {
		c.logger.Info().
			Str("action", string(action)).
			Int("pid", entry.PID).
			Str("signals", entry.SignalNames()).
			Msg("signals delivered")
	}

	c.record(ctx, entry)
	return err
}

// deliver sends the plan in order and stops at the first failure.
func (c *Controller) deliver(entry *gunicorn.Entry, opts gunicorn.ControlOptions) error {
	plan, err := gunicorn.SignalPlan(entry.Action, opts)
	if err != nil {
		return err
	}

	pid, err := c.pids.ReadPID()
	if err != nil {
		if errors.Is(err, gunicorn.ErrMasterNotRunning) {
			return &MasterNotRunningError{PIDFile: c.pidName, Err: err}
		}
		return err
	}
	entry.PID = pid

	for _, sig := range plan {
		if err := c.signaler.Signal(pid, sig); err != nil {
			return err
		}
		entry.Signals = append(entry.Signals, sig)
		if c.metrics != nil {
			c.metrics.SignalSent(sig)
		}
	}
	return nil
}

func (c *Controller) record(ctx context.Context, entry gunicorn.Entry) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, entry); err != nil {
		c.logger.Warn().Err(err).Str("action", string(entry.Action)).Msg("journal write failed")
	}
}

func controlDetail(opts gunicorn.ControlOptions) string {
	switch {
	case opts.Force:
		return "force"
	case opts.Gracefully:
		return "gracefully"
	default:
		return ""
	}
}
