package shell

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	enterForegroundOnly = []byte("Entering foreground-only mode (& is now ignored)\n")
	exitForegroundOnly  = []byte("Exiting foreground-only mode (& is now allowed)\n")
)

// Signals owns the shell's SIGINT/SIGTSTP dispositions and the
// foreground-only mode that SIGTSTP toggles.
type Signals struct {
	foregroundOnly atomic.Bool
	noticeFd       int
	signalChan     chan os.Signal
	done           chan struct{}
	started        bool
}

// Decision is how one external command will run.
type Decision struct {
	Background       bool
	DefaultInterrupt bool
}

// NewSignals returns a controller writing mode notices to out.
func NewSignals(out *os.File) *Signals {
	return &Signals{
		noticeFd:   int(out.Fd()),
		signalChan: make(chan os.Signal, 1),
	}
}

// Start makes the process ignore SIGINT and toggle foreground-only mode on
// SIGTSTP.
func (s *Signals) Start() {
	if s.started {
		return
	}
	s.started = true
	s.done = make(chan struct{})

	signal.Ignore(syscall.SIGINT)
	signal.Notify(s.signalChan, syscall.SIGTSTP)
	go s.handleSignals()
}

// Stop restores the default dispositions.
func (s *Signals) Stop() {
	if !s.started {
		return
	}
	s.started = false

	signal.Stop(s.signalChan)
	signal.Reset(syscall.SIGINT, syscall.SIGTSTP)
	close(s.done)
}

func (s *Signals) handleSignals() {
	for {
		select {
		case <-s.signalChan:
			s.toggle()
		case <-s.done:
			return
		}
	}
}

// toggle flips the mode and announces it with a single unbuffered write.
func (s *Signals) toggle() {
	notice := enterForegroundOnly
	if s.foregroundOnly.Load() {
		notice = exitForegroundOnly
	}
	s.foregroundOnly.Store(!s.foregroundOnly.Load())
	_, _ = unix.Write(s.noticeFd, notice)
}

func (s *Signals) ForegroundOnly() bool {
	return s.foregroundOnly.Load()
}

// Decide fixes the disposition of a child about to be spawned. Foreground-only
// mode turns every background request into a foreground one.
func (s *Signals) Decide(background bool) Decision {
	bg := background && !s.ForegroundOnly()
	return Decision{Background: bg, DefaultInterrupt: !bg}
}

// Spawning runs start with SIGTSTP ignored, so the child it creates begins
// life ignoring SIGTSTP, then reinstalls the toggle.
func (s *Signals) Spawning(start func() error) error {
	if !s.started {
		return start()
	}
	signal.Ignore(syscall.SIGTSTP)
	defer signal.Notify(s.signalChan, syscall.SIGTSTP)
	return start()
}

// Suspend delivers SIGTSTP to the shell itself. The line editor calls it for
// Ctrl-Z, which raw terminal mode swallows.
func (s *Signals) Suspend() {
	if !s.started {
		s.toggle()
		return
	}
	_ = unix.Kill(unix.Getpid(), unix.SIGTSTP)
}
