package app_test

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/index-py/index-cli/adapters/process"
	"github.com/index-py/index-cli/app"
	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controllerFixture struct {
	ctrl    *app.Controller
	sig     *process.Recorder
	journal *memJournal
	metrics *countingRecorder
}

func newController(pids pidReader) controllerFixture {
	f := controllerFixture{
		sig:     process.NewRecorder(),
		journal: &memJournal{},
		metrics: newCountingRecorder(),
	}
	f.ctrl = app.NewController(app.ControllerDeps{
		Signaler: f.sig,
		PIDs:     pids,
		Journal:  f.journal,
		Metrics:  f.metrics,
		Logger:   zerolog.Nop(),
	}, app.ControllerConfig{PIDFileName: ".gunicorn.pid"})
	return f
}

func TestController_SignalSequences(t *testing.T) {
	tests := []struct {
		name string
		call func(*app.Controller) error
		want []syscall.Signal
	}{
		{"incr", func(c *app.Controller) error { return c.Incr(context.Background()) }, []syscall.Signal{syscall.SIGTTIN}},
		{"decr", func(c *app.Controller) error { return c.Decr(context.Background()) }, []syscall.Signal{syscall.SIGTTOU}},
		{"stop", func(c *app.Controller) error { return c.Stop(context.Background(), false) }, []syscall.Signal{syscall.SIGTERM}},
		{"stop force", func(c *app.Controller) error { return c.Stop(context.Background(), true) }, []syscall.Signal{syscall.SIGINT}},
		{"reload", func(c *app.Controller) error { return c.Reload(context.Background(), false) }, []syscall.Signal{syscall.SIGHUP}},
		{"reload gracefully", func(c *app.Controller) error { return c.Reload(context.Background(), true) }, []syscall.Signal{syscall.SIGUSR2, syscall.SIGWINCH}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newController(pidReader{pid: 4242})

			require.NoError(t, tt.call(f.ctrl))

			for _, d := range f.sig.Deliveries() {
				assert.Equal(t, 4242, d.PID)
			}
			assert.Equal(t, tt.want, f.sig.Signals())
			assert.Equal(t, tt.want, f.metrics.signals)
		})
	}
}

func TestController_JournalsActions(t *testing.T) {
	f := newController(pidReader{pid: 7})

	require.NoError(t, f.ctrl.Reload(context.Background(), true))
	require.NoError(t, f.ctrl.Stop(context.Background(), true))

	require.Len(t, f.journal.entries, 2)

	reload := f.journal.entries[0]
	assert.Equal(t, gunicorn.ActionReload, reload.Action)
	assert.Equal(t, 7, reload.PID)
	assert.Equal(t, "USR2,WINCH", reload.SignalNames())
	assert.Equal(t, "gracefully", reload.Detail)
	assert.True(t, reload.OK())
	assert.False(t, reload.At.IsZero())

	assert.Equal(t, "force", f.journal.entries[1].Detail)
}

func TestController_MissingPIDFile(t *testing.T) {
	f := newController(pidReader{err: errNoPIDFile})

	err := f.ctrl.Incr(context.Background())
	require.Error(t, err)

	var notRunning *app.MasterNotRunningError
	require.True(t, errors.As(err, &notRunning))
	assert.Equal(t,
		"File \".gunicorn.pid\" not found, please make sure you have started gunicorn using the `index-cli gunicorn start --daemon ...`.",
		err.Error())
	assert.ErrorIs(t, err, gunicorn.ErrMasterNotRunning)

	assert.Empty(t, f.sig.Signals(), "no signal may be sent without a pid")
	assert.Equal(t, []gunicorn.Action{gunicorn.ActionIncr}, f.metrics.failures)

	require.Len(t, f.journal.entries, 1)
	assert.False(t, f.journal.entries[0].OK())
}

func TestController_PIDReadError(t *testing.T) {
	bad := fmt.Errorf("pid file is invalid: %w", errBoom)
	f := newController(pidReader{err: bad})

	err := f.ctrl.Decr(context.Background())
	assert.ErrorIs(t, err, errBoom)

	var notRunning *app.MasterNotRunningError
	assert.False(t, errors.As(err, &notRunning))
}

func TestController_SignalFailureAbortsPlan(t *testing.T) {
	f := newController(pidReader{pid: 11})
	f.sig.Errors = map[syscall.Signal]error{syscall.SIGUSR2: syscall.ESRCH}

	err := f.ctrl.Reload(context.Background(), true)
	require.ErrorIs(t, err, syscall.ESRCH)

	assert.Empty(t, f.sig.Signals(), "WINCH must not follow a failed USR2")
	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, 11, f.journal.entries[0].PID)
	assert.NotEmpty(t, f.journal.entries[0].Error)
}

func TestController_SecondSignalFailure(t *testing.T) {
	f := newController(pidReader{pid: 11})
	f.sig.Errors = map[syscall.Signal]error{syscall.SIGWINCH: errBoom}

	err := f.ctrl.Reload(context.Background(), true)
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, []syscall.Signal{syscall.SIGUSR2}, f.sig.Signals())
	assert.Equal(t, []syscall.Signal{syscall.SIGUSR2}, f.journal.entries[0].Signals)
}

func TestController_JournalFailureDoesNotFailAction(t *testing.T) {
	f := newController(pidReader{pid: 3})
	f.journal.err = errBoom

	assert.NoError(t, f.ctrl.Incr(context.Background()))
	assert.Equal(t, []syscall.Signal{syscall.SIGTTIN}, f.sig.Signals())
}

func TestController_OptionalDeps(t *testing.T) {
	sig := process.NewRecorder()
	ctrl := app.NewController(app.ControllerDeps{
		Signaler: sig,
		PIDs:     pidReader{pid: 5},
		Logger:   zerolog.Nop(),
	}, app.ControllerConfig{PIDFileName: ".gunicorn.pid"})

	require.NoError(t, ctrl.Stop(context.Background(), false))
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM}, sig.Signals())

	err := app.NewController(app.ControllerDeps{
		Signaler: sig,
		PIDs:     pidReader{err: errNoPIDFile},
		Logger:   zerolog.Nop(),
	}, app.ControllerConfig{PIDFileName: ".gunicorn.pid"}).Incr(context.Background())
	assert.Error(t, err)
}

func TestController_Status(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		f := newController(pidReader{pid: 9})

		st, err := f.ctrl.Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, app.MasterStatus{PID: 9, Running: true}, st)
		assert.Equal(t, []syscall.Signal{syscall.Signal(0)}, f.sig.Signals())
	})

	t.Run("stale pid", func(t *testing.T) {
		f := newController(pidReader{pid: 9})
		f.sig.Errors = map[syscall.Signal]error{syscall.Signal(0): fmt.Errorf("signal 0 to pid 9: %w", syscall.ESRCH)}

		st, err := f.ctrl.Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, app.MasterStatus{PID: 9}, st)
	})

	t.Run("other user", func(t *testing.T) {
		f := newController(pidReader{pid: 1})
		f.sig.Errors = map[syscall.Signal]error{syscall.Signal(0): syscall.EPERM}

		st, err := f.ctrl.Status(context.Background())
		require.NoError(t, err)
		assert.True(t, st.Running)
	})

	t.Run("no pid file", func(t *testing.T) {
		f := newController(pidReader{err: errNoPIDFile})

		st, err := f.ctrl.Status(context.Background())
		require.NoError(t, err)
		assert.False(t, st.Running)
		assert.Empty(t, f.journal.entries, "status is not journaled")
	})
}
