// Package metrics provides Prometheus counters for index-cli.
//
// The CLI is short-lived, so nothing is served over HTTP. When a textfile
// path is configured the registry is written in node-exporter textfile
// format at the end of each command, replacing the previous file. Every
// invocation starts from zero, so the exported values describe the last
// command only; each write looks like a counter reset to Prometheus.
package metrics

import (
	"fmt"
	"strconv"
	"syscall"

	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/index-py/index-cli/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for index-cli.
type Collector struct {
	// Control metrics
	SignalsSent   *prometheus.CounterVec
	ControlErrors *prometheus.CounterVec

	// Child process metrics
	ChildExits *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates a collector on a private registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered with reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		SignalsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "index_cli",
				Name:      "signals_sent_total",
				Help:      "Signals delivered to the gunicorn master by the last index-cli command",
			},
			[]string{"signal"},
		),
		ControlErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "index_cli",
				Name:      "control_errors_total",
				Help:      "Control actions that failed in the last index-cli command",
			},
			[]string{"action"},
		),
		ChildExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "index_cli",
				Name:      "child_exit_total",
				Help:      "Foreground child exit codes from the last index-cli command",
			},
			[]string{"command", "code"},
		),
		gatherer: reg,
	}
}

// Ensure interface compliance.
var _ ports.Recorder = (*Collector)(nil)

// SignalSent counts one delivered signal.
func (c *Collector) SignalSent(sig syscall.Signal) {
	c.SignalsSent.WithLabelValues(gunicorn.SignalName(sig)).Inc()
}

// ControlFailed counts one failed control action.
func (c *Collector) ControlFailed(action gunicorn.Action) {
	c.ControlErrors.WithLabelValues(string(action)).Inc()
}

// ChildExited counts one child exit. command should be a low-cardinality
// label such as "uvicorn" or "exec".
func (c *Collector) ChildExited(command string, code int) {
	c.ChildExits.WithLabelValues(command, strconv.Itoa(code)).Inc()
}

// WriteTextfile replaces path with this invocation's counters. An empty
// path is a no-op.
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Nop discards all observations.
type Nop struct{}

func (Nop) SignalSent(syscall.Signal)     {}
func (Nop) ControlFailed(gunicorn.Action) {}
func (Nop) ChildExited(string, int)       {}

// Ensure interface compliance.
var _ ports.Recorder = Nop{}
