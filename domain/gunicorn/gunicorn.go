// Package gunicorn provides the pure parts of driving the gunicorn process manager:
// building its command line and mapping control actions to its signal protocol.
// All functions are deterministic - same input always produces same output.
//
// Signal semantics follow https://docs.gunicorn.org/en/stable/signals.html and
// must not be reordered: a graceful reload is USR2 (fork a new master with the
// new code) followed by WINCH (retire the old workers).
package gunicorn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Action identifies a control operation on the gunicorn master.
type Action string

const (
	ActionStart  Action = "start"
	ActionIncr   Action = "incr"
	ActionDecr   Action = "decr"
	ActionStop   Action = "stop"
	ActionReload Action = "reload"
)

// ControlOptions carries the flags that change which signals an action sends.
type ControlOptions struct {
	Force      bool // stop: quick shutdown instead of graceful
	Gracefully bool // reload: zero-downtime binary upgrade
}

var (
	// ErrUnknownAction is returned for actions that have no signal mapping.
	ErrUnknownAction = errors.New("unknown control action")

	// ErrMasterNotRunning is matched by pid readers when no master pid is recorded.
	ErrMasterNotRunning = errors.New("master not running")
)

// SignalPlan returns the signals to deliver to the master, in order.
func SignalPlan(action Action, opts ControlOptions) ([]syscall.Signal, error) {
	switch action {
	case ActionIncr:
		return []syscall.Signal{syscall.SIGTTIN}, nil
	case ActionDecr:
		return []syscall.Signal{syscall.SIGTTOU}, nil
	case ActionStop:
		if opts.Force {
			return []syscall.Signal{syscall.SIGINT}, nil
		}
		return []syscall.Signal{syscall.SIGTERM}, nil
	case ActionReload:
		if opts.Gracefully {
			return []syscall.Signal{syscall.SIGUSR2, syscall.SIGWINCH}, nil
		}
		return []syscall.Signal{syscall.SIGHUP}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// SignalName returns the conventional short name ("TTIN", "HUP", ...).
func SignalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGTTIN:
		return "TTIN"
	case syscall.SIGTTOU:
		return "TTOU"
	case syscall.SIGINT:
		return "INT"
	case syscall.SIGTERM:
		return "TERM"
	case syscall.SIGHUP:
		return "HUP"
	case syscall.SIGUSR2:
		return "USR2"
	case syscall.SIGWINCH:
		return "WINCH"
	default:
		return strconv.Itoa(int(sig))
	}
}

// StartOptions describes a gunicorn launch.
type StartOptions struct {
	Application   string
	WorkerClass   string
	Bind          string // host:port
	Chdir         string
	Workers       int
	PIDFile       string
	LogLevel      string
	Daemon        bool
	LogFile       string // only used with Daemon
	Reload        bool
	Configuration string // optional gunicorn config file
}

// Validation errors for StartOptions.
var (
	ErrNoApplication  = errors.New("application reference is required")
	ErrInvalidWorkers = errors.New("workers must be at least 1")
)

// Validate checks the options that would otherwise produce a broken command line.
func (o StartOptions) Validate() error {
	if strings.TrimSpace(o.Application) == "" {
		return ErrNoApplication
	}
	if o.Workers < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidWorkers, o.Workers)
	}
	return nil
}

// Args builds the gunicorn argument list (without the program name).
// The application reference is always last.
func (o StartOptions) Args() []string {
	args := []string{
		"-k", o.WorkerClass,
		"--bind", o.Bind,
		"--chdir", o.Chdir,
		"--workers", strconv.Itoa(o.Workers),
		"--pid", o.PIDFile,
		"--log-level", o.LogLevel,
	}
	if o.Daemon {
		args = append(args, "-D", "--log-file", o.LogFile)
	}
	if o.Reload {
		args = append(args, "--reload")
	}
	if c := strings.TrimSpace(o.Configuration); c != "" {
		args = append(args, "-c", c)
	}
	return append(args, o.Application)
}

// Entry is one journal record of a control action (value type).
type Entry struct {
	ID      string
	Action  Action
	PID     int
	Signals []syscall.Signal
	Detail  string // e.g. "force", "gracefully", launch arguments
	Error   string // empty on success
	At      time.Time
}

// OK reports whether the action succeeded.
func (e Entry) OK() bool {
	return e.Error == ""
}

// SignalNames renders the signals as a comma separated list.
func (e Entry) SignalNames() string {
	names := make([]string, len(e.Signals))
	for i, s := range e.Signals {
		names[i] = SignalName(s)
	}
	return strings.Join(names, ",")
}

// ParseSignalNames is the inverse of Entry.SignalNames.
func ParseSignalNames(s string) ([]syscall.Signal, error) {
	if s == "" {
		return nil, nil
	}
	var sigs []syscall.Signal
	for _, name := range strings.Split(s, ",") {
		sig, ok := signalsByName[name]
		if !ok {
			n, err := strconv.Atoi(name)
			if err != nil {
				return nil, fmt.Errorf("unknown signal %q", name)
			}
			sig = syscall.Signal(n)
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

var signalsByName = map[string]syscall.Signal{
	"TTIN":  syscall.SIGTTIN,
	"TTOU":  syscall.SIGTTOU,
	"INT":   syscall.SIGINT,
	"TERM":  syscall.SIGTERM,
	"HUP":   syscall.SIGHUP,
	"USR2":  syscall.SIGUSR2,
	"WINCH": syscall.SIGWINCH,
}
