// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"syscall"

	"github.com/index-py/index-cli/domain/gunicorn"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Signaler delivers OS signals to a process by id.
type Signaler interface {
	Signal(pid int, sig syscall.Signal) error
}

// PIDReader reads the process manager's recorded master pid.
// When no master is recorded the error matches gunicorn.ErrMasterNotRunning.
type PIDReader interface {
	ReadPID() (int, error)
}

// CommandRunner runs an external command to completion and returns its exit code.
type CommandRunner interface {
	Run(ctx context.Context, spec RunSpec) (int, error)
}

// RunSpec describes a child process invocation.
type RunSpec struct {
	// Name is the executable; Args are passed verbatim (no shell).
	Name string
	Args []string

	// Shell, when set, runs Args joined by spaces through "<Shell> -c".
	Shell string

	// Dir is the working directory (empty = inherit).
	Dir string

	// Env entries are appended to the parent environment.
	Env []string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// Journal records control actions taken against the process manager.
type Journal interface {
	// Record appends an entry. ID and Time are filled in when empty.
	Record(ctx context.Context, e gunicorn.Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]gunicorn.Entry, error)
}

// -----------------------------------------------------------------------------
// Metrics Ports
// -----------------------------------------------------------------------------

// Recorder receives operational counters.
type Recorder interface {
	SignalSent(sig syscall.Signal)
	ControlFailed(action gunicorn.Action)
	ChildExited(command string, code int)
}
