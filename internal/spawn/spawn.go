// Package spawn starts external commands for the shell and collects their
// exit statuses.
//
// Children are not exec'd directly. The shell re-executes its own binary with
// argv[0] set to a marker; that trampoline applies signal dispositions and
// redirections and then replaces itself with the requested program. Binaries
// embedding this package must call ExecChild early in main when IsChild
// reports true.
package spawn

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sys/unix"
)

// Request describes one invocation.
type Request struct {
	Args       []string
	InputFile  string
	OutputFile string

	// DefaultInterrupt restores SIGINT to its default action in the child.
	// Otherwise the child keeps the shell's ignored disposition.
	DefaultInterrupt bool
}

func (r Request) trampolineArgs(name string) []string {
	argv := []string{childArg0, "--name=" + name}
	if r.InputFile != "" {
		argv = append(argv, "--in="+r.InputFile)
	}
	if r.OutputFile != "" {
		argv = append(argv, "--out="+r.OutputFile)
	}
	if r.DefaultInterrupt {
		argv = append(argv, "--default-sigint")
	}
	argv = append(argv, "--")
	return append(argv, r.Args...)
}

type Spawner struct {
	name   string
	exe    string
	files  []uintptr
	logger *log.Logger
}

type Option func(*Spawner)

// WithFiles sets the standard streams handed to children. The default is the
// shell's own stdin, stdout and stderr.
func WithFiles(stdin, stdout, stderr *os.File) Option {
	return func(s *Spawner) {
		s.files = []uintptr{stdin.Fd(), stdout.Fd(), stderr.Fd()}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Spawner) {
		s.logger = l
	}
}

// New creates a Spawner whose children report errors under name.
func New(name string, opts ...Option) (*Spawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating shell executable: %w", err)
	}

	s := &Spawner{
		name:   name,
		exe:    exe,
		files:  []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd()},
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start creates the child and returns its pid without waiting for it.
func (s *Spawner) Start(req Request) (int, error) {
	if len(req.Args) == 0 {
		return 0, errors.New("empty command")
	}

	argv := req.trampolineArgs(s.name)
	pid, err := syscall.ForkExec(s.exe, argv, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: s.files,
	})
	if err != nil {
		return 0, fmt.Errorf("starting %s: %w", req.Args[0], err)
	}

	s.logger.Printf("pid %d: %s (in=%q out=%q default-sigint=%t)",
		pid, shellquote.Join(req.Args...), req.InputFile, req.OutputFile, req.DefaultInterrupt)
	return pid, nil
}

// Wait blocks until pid terminates.
func (s *Spawner) Wait(pid int) (Status, error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Status{}, fmt.Errorf("waiting for pid %d: %w", pid, err)
		}
		st := statusFromWait(ws)
		s.logger.Printf("pid %d: %s", pid, st)
		return st, nil
	}
}

// Reap checks pid without blocking. done is false while the child is still
// running.
func (s *Spawner) Reap(pid int) (st Status, done bool, err error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Status{}, false, fmt.Errorf("reaping pid %d: %w", pid, err)
		}
		if wpid == 0 {
			return Status{}, false, nil
		}
		st = statusFromWait(ws)
		s.logger.Printf("pid %d: reaped, %s", pid, st)
		return st, true, nil
	}
}

// Terminate sends SIGTERM to pid. A pid that no longer exists is not an error.
func (s *Spawner) Terminate(pid int) error {
	err := unix.Kill(pid, unix.SIGTERM)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("terminating pid %d: %w", pid, err)
	}
	s.logger.Printf("pid %d: sent SIGTERM", pid)
	return nil
}
