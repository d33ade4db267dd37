package spawn

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Status is how a child ended: a normal exit code or the signal that killed it.
// The zero value reads as "exit value 0".
type Status struct {
	Code     int
	Signal   unix.Signal
	Signaled bool
}

func statusFromWait(ws unix.WaitStatus) Status {
	if ws.Signaled() {
		return Status{Signal: ws.Signal(), Signaled: true}
	}
	return Status{Code: ws.ExitStatus()}
}

func (s Status) String() string {
	if s.Signaled {
		return fmt.Sprintf("terminated by signal %d", int(s.Signal))
	}
	return fmt.Sprintf("exit value %d", s.Code)
}
