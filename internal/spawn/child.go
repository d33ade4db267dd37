package spawn

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

const childArg0 = "smallsh-exec"

// Exit codes of a child that never reached the requested program.
const (
	ExitOpenFailed     = 1
	ExitRedirectFailed = 2
	ExitInvokeFailed   = 2
)

// IsChild reports whether this process was started by Spawner.Start.
func IsChild() bool {
	return len(os.Args) > 0 && os.Args[0] == childArg0
}

// ExecChild configures the process as requested on its command line and
// replaces it with the target program. It only returns control to the OS, via
// os.Exit, when that fails.
func ExecChild() {
	os.Exit(execChild(os.Args[1:], os.Stderr))
}

func execChild(args []string, stderr io.Writer) int {
	flags := pflag.NewFlagSet(childArg0, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.SetInterspersed(false)
	name := flags.String("name", "smallsh", "name used in error messages")
	in := flags.String("in", "", "file to use as standard input")
	out := flags.String("out", "", "file to use as standard output")
	defaultInt := flags.Bool("default-sigint", false, "restore the default SIGINT action")

	if err := flags.Parse(args); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", *name, err)
		return ExitInvokeFailed
	}
	argv := flags.Args()
	if len(argv) == 0 {
		fmt.Fprintf(stderr, "%s: no command given\n", *name)
		return ExitInvokeFailed
	}

	// Ignored dispositions survive exec. A caught one is reset to the default,
	// so registering a handler is how SIGINT gets back to SIG_DFL.
	signal.Ignore(syscall.SIGTSTP)
	if *defaultInt {
		signal.Notify(make(chan os.Signal, 1), syscall.SIGINT)
	} else {
		signal.Ignore(syscall.SIGINT)
	}

	if *in != "" {
		if code := redirect(stderr, *name, *in, unix.O_RDONLY, 0); code != 0 {
			return code
		}
	}
	if *out != "" {
		if code := redirect(stderr, *name, *out, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 1); code != 0 {
			return code
		}
	}

	path, err := exec.LookPath(argv[0])
	if err == nil {
		err = unix.Exec(path, argv, os.Environ())
	}
	if execErr, ok := err.(*exec.Error); ok {
		err = execErr.Err
	}

	fmt.Fprintf(stderr, "%s: %s: %v\n", *name, argv[0], err)
	for _, file := range []string{*in, *out} {
		if file != "" {
			fmt.Fprintf(stderr, "%s: %s: %v\n", *name, file, err)
		}
	}
	return ExitInvokeFailed
}

// redirect opens path and moves it onto fd, returning a non-zero exit code on
// failure.
func redirect(stderr io.Writer, name, path string, flag, fd int) int {
	src, err := unix.Open(path, flag|unix.O_CLOEXEC, 0644)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s: %v\n", name, path, err)
		return ExitOpenFailed
	}
	if src == fd {
		// Already in place; only the close-on-exec flag has to go.
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, 0); err != nil {
			fmt.Fprintf(stderr, "%s: %s: redirection failed: %v\n", name, path, err)
			return ExitRedirectFailed
		}
		return 0
	}
	if err := unix.Dup2(src, fd); err != nil {
		fmt.Fprintf(stderr, "%s: %s: redirection failed: %v\n", name, path, err)
		return ExitRedirectFailed
	}
	return 0
}
