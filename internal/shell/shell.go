package shell

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"

	"smallsh/internal/config"
	"smallsh/internal/spawn"
	"smallsh/internal/ui"
)

// Launcher creates and collects child processes.
type Launcher interface {
	Start(req spawn.Request) (int, error)
	Wait(pid int) (spawn.Status, error)
	Reap(pid int) (spawn.Status, bool, error)
	Terminate(pid int) error
}

type Shell struct {
	config   *config.Config
	parser   *Parser
	signals  *Signals
	jobs     *JobTable
	launcher Launcher
	reader   LineReader
	stdout   io.Writer
	stderr   io.Writer
	logger   *log.Logger

	// status of the last foreground command
	status spawn.Status
}

type Option func(*Shell)

func WithReader(r LineReader) Option {
	return func(s *Shell) { s.reader = r }
}

func WithLauncher(l Launcher) Option {
	return func(s *Shell) { s.launcher = l }
}

func WithSignals(sig *Signals) Option {
	return func(s *Shell) { s.signals = sig }
}

func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Shell) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

func New(cfg *config.Config, opts ...Option) (*Shell, error) {
	s := &Shell{
		config: cfg,
		parser: NewParser(os.Getpid(), cfg.MaxLineLength, cfg.MaxArgs),
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.signals == nil {
		s.signals = NewSignals(os.Stdout)
	}
	if s.launcher == nil {
		sp, err := spawn.New(cfg.ShellName, spawn.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("error initializing spawner: %w", err)
		}
		s.launcher = sp
	}
	if s.reader == nil {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			rl, err := NewTerminalReader(s.signals)
			if err != nil {
				return nil, err
			}
			s.reader = rl
		} else {
			s.reader = NewPlainReader(os.Stdin, s.stdout)
		}
	}
	s.jobs = NewJobTable(cfg.MaxBackgroundJobs, s.launcher)

	return s, nil
}

// Run reads and executes lines until exit or end of input.
func (s *Shell) Run() error {
	s.signals.Start()
	defer s.signals.Stop()
	defer s.reader.Close()

	for {
		s.reportFinishedJobs()

		line, err := s.reader.ReadLine(s.config.Prompt)
		if errors.Is(err, io.EOF) {
			s.exit()
			return nil
		} else if err != nil {
			s.exit()
			return fmt.Errorf("error reading input: %w", err)
		}

		if !s.Execute(line) {
			return nil
		}
	}
}

// Execute runs one line and reports whether the shell should keep going.
func (s *Shell) Execute(line string) bool {
	cmd, ok, err := s.parser.Parse(line)
	if err != nil {
		s.errorf("%v", err)
		return true
	}
	if !ok {
		return true
	}

	if handled, keepGoing := s.executeBuiltin(cmd); handled {
		return keepGoing
	}

	s.runExternal(cmd)
	return true
}

func (s *Shell) runExternal(cmd Command) {
	decision := s.signals.Decide(cmd.Background)
	if decision.Background && s.jobs.Full() {
		s.errorf("background job limit reached (%d)", s.jobs.Capacity())
		return
	}

	req := spawn.Request{
		Args:             cmd.Args,
		InputFile:        cmd.InputFile,
		OutputFile:       cmd.OutputFile,
		DefaultInterrupt: decision.DefaultInterrupt,
	}

	var pid int
	err := s.signals.Spawning(func() (err error) {
		pid, err = s.launcher.Start(req)
		return err
	})
	if err != nil {
		s.errorf("%v", err)
		return
	}

	if decision.Background {
		fmt.Fprintf(s.stdout, "Background pid is %d\n", pid)
		if err := s.jobs.Track(pid); err != nil {
			s.errorf("%v", err)
		}
		return
	}

	st, err := s.launcher.Wait(pid)
	if err != nil {
		s.errorf("%v", err)
		return
	}
	s.status = st
	if st.Signaled {
		fmt.Fprintln(s.stdout, st)
	}
}

func (s *Shell) reportFinishedJobs() {
	for _, job := range s.jobs.ReapAll() {
		if job.Err != nil {
			s.errorf("background pid %d: %v", job.Pid, job.Err)
			continue
		}
		fmt.Fprintf(s.stdout, "Background pid %d is done: %s\n", job.Pid, job.Status)
	}
}

func (s *Shell) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf("%s: "+format, append([]interface{}{s.config.ShellName}, args...)...)
	s.logger.Print(msg)
	fmt.Fprintln(s.stderr, ui.ErrorColor(msg))
}
