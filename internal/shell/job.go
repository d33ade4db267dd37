package shell

import (
	"errors"
	"fmt"

	"smallsh/internal/spawn"
)

var ErrJobTableFull = errors.New("background job table full")

type processReaper interface {
	Reap(pid int) (spawn.Status, bool, error)
	Terminate(pid int) error
}

// JobTable tracks background children by pid in the order they started.
// Capacity is a policy limit; zero means unlimited.
type JobTable struct {
	pids     []int
	capacity int
	procs    processReaper
}

// Reaped is a background job observed to have finished. Err is set when its
// status could not be collected; the entry is dropped either way.
type Reaped struct {
	Pid    int
	Status spawn.Status
	Err    error
}

func NewJobTable(capacity int, procs processReaper) *JobTable {
	return &JobTable{
		capacity: capacity,
		procs:    procs,
	}
}

// Track adds pid, refusing it when the table is at capacity.
func (t *JobTable) Track(pid int) error {
	if t.Full() {
		return fmt.Errorf("%w (%d jobs)", ErrJobTableFull, t.capacity)
	}
	t.pids = append(t.pids, pid)
	return nil
}

func (t *JobTable) Full() bool {
	return t.capacity > 0 && len(t.pids) >= t.capacity
}

func (t *JobTable) Capacity() int {
	return t.capacity
}

func (t *JobTable) Len() int {
	return len(t.pids)
}

func (t *JobTable) Pids() []int {
	return append([]int{}, t.pids...)
}

// ReapAll collects every finished job without blocking, in tracking order.
func (t *JobTable) ReapAll() []Reaped {
	var reaped []Reaped
	running := t.pids[:0]
	for _, pid := range t.pids {
		st, done, err := t.procs.Reap(pid)
		switch {
		case err != nil:
			reaped = append(reaped, Reaped{Pid: pid, Err: err})
		case done:
			reaped = append(reaped, Reaped{Pid: pid, Status: st})
		default:
			running = append(running, pid)
		}
	}
	t.pids = running
	return reaped
}

// TerminateAll sends SIGTERM to every tracked job and does not wait.
func (t *JobTable) TerminateAll() error {
	var errs []error
	for _, pid := range t.pids {
		if err := t.procs.Terminate(pid); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
