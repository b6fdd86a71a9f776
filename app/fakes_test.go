package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/index-py/index-cli/ports"
)

// pidReader returns a fixed pid or error.
type pidReader struct {
	pid int
	err error
}

func (r pidReader) ReadPID() (int, error) { return r.pid, r.err }

var errNoPIDFile = fmt.Errorf("pid file not found (%w): /srv/.gunicorn.pid", gunicorn.ErrMasterNotRunning)

// memJournal keeps entries in memory.
type memJournal struct {
	mu      sync.Mutex
	entries []gunicorn.Entry
	err     error
}

func (j *memJournal) Record(_ context.Context, e gunicorn.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) Recent(_ context.Context, limit int) ([]gunicorn.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]gunicorn.Entry, 0, len(j.entries))
	for i := len(j.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

// countingRecorder tallies metric calls.
type countingRecorder struct {
	signals  []syscall.Signal
	failures []gunicorn.Action
	exits    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{exits: make(map[string]int)}
}

func (r *countingRecorder) SignalSent(sig syscall.Signal)        { r.signals = append(r.signals, sig) }
func (r *countingRecorder) ControlFailed(action gunicorn.Action) { r.failures = append(r.failures, action) }
func (r *countingRecorder) ChildExited(command string, code int) { r.exits[fmt.Sprintf("%s/%d", command, code)]++ }

// fakeRunner records the spec and returns a canned result.
type fakeRunner struct {
	specs []ports.RunSpec
	code  int
	err   error
}

func (r *fakeRunner) Run(_ context.Context, spec ports.RunSpec) (int, error) {
	r.specs = append(r.specs, spec)
	return r.code, r.err
}

var errBoom = errors.New("boom")

var _ ports.Journal = (*memJournal)(nil)
