package shell

import (
	"fmt"
	"os"
)

// executeBuiltin runs cmd if it names a built-in. Built-ins always run in the
// foreground in the shell process; "&" and redirections are ignored.
func (s *Shell) executeBuiltin(cmd Command) (handled bool, keepGoing bool) {
	switch cmd.Args[0] {
	case "cd":
		s.changeDirectory(cmd.Args[1:])
		return true, true
	case "status":
		fmt.Fprintln(s.stdout, s.status)
		return true, true
	case "exit":
		s.exit()
		return true, false
	default:
		return false, true
	}
}

func (s *Shell) changeDirectory(args []string) {
	if len(args) == 0 {
		dir := s.config.HomeDir
		if dir == "" {
			fmt.Fprintln(s.stdout, "[could not open home directory]")
			return
		}
		if err := os.Chdir(dir); err != nil {
			s.logger.Printf("cd: %v", err)
			fmt.Fprintln(s.stdout, "[could not open home directory]")
		}
		return
	}

	if err := os.Chdir(args[0]); err != nil {
		s.logger.Printf("cd: %v", err)
		fmt.Fprintf(s.stdout, "[could not open directory %s]\n", args[0])
	}
}

// exit terminates tracked background jobs without waiting for them.
func (s *Shell) exit() {
	if err := s.jobs.TerminateAll(); err != nil {
		s.errorf("%v", err)
	}
}
