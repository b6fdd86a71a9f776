// Package process provides Signaler implementations.
package process

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/index-py/index-cli/ports"
)

// System delivers signals with kill(2).
type System struct{}

// Signal sends sig to pid.
func (System) Signal(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal %d to pid %d: %w", sig, pid, err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.Signaler = System{}

// Alive probes pid with signal 0. A process owned by another user still counts as alive.
func Alive(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Delivery is one recorded signal.
type Delivery struct {
	PID    int
	Signal syscall.Signal
}

// Recorder records signals instead of sending them (for testing).
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery

	// Errors makes Signal fail for the listed signals without recording them.
	Errors map[syscall.Signal]error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Signal records the delivery.
func (r *Recorder) Signal(pid int, sig syscall.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.Errors[sig]; ok {
		return err
	}
	r.deliveries = append(r.deliveries, Delivery{PID: pid, Signal: sig})
	return nil
}

// Deliveries returns a copy of what was recorded, in order.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Signals returns only the recorded signals, in order.
func (r *Recorder) Signals() []syscall.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]syscall.Signal, len(r.deliveries))
	for i, d := range r.deliveries {
		out[i] = d.Signal
	}
	return out
}

// Ensure interface compliance.
var _ ports.Signaler = (*Recorder)(nil)
