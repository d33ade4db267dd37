package spawn

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	if IsChild() {
		ExecChild()
	}
	os.Exit(m.Run())
}

// newTestSpawner returns a spawner whose children write stderr to a file in a
// temp dir, along with a func reading it back.
func newTestSpawner(t *testing.T) (*Spawner, func() string) {
	t.Helper()

	errPath := filepath.Join(t.TempDir(), "stderr")
	errFile, err := os.Create(errPath)
	require.NoError(t, err)
	t.Cleanup(func() { errFile.Close() })

	s, err := New("smallsh", WithFiles(os.Stdin, os.Stdout, errFile))
	require.NoError(t, err)

	return s, func() string {
		data, err := os.ReadFile(errPath)
		require.NoError(t, err)
		return string(data)
	}
}

func run(t *testing.T, s *Spawner, req Request) Status {
	t.Helper()
	pid, err := s.Start(req)
	require.NoError(t, err)
	st, err := s.Wait(pid)
	require.NoError(t, err)
	return st
}

func TestTrampolineArgs(t *testing.T) {
	req := Request{
		Args:             []string{"ls", "-l", "--", "x"},
		InputFile:        "in.txt",
		OutputFile:       "out.txt",
		DefaultInterrupt: true,
	}
	assert.Equal(t, []string{
		"smallsh-exec", "--name=sh", "--in=in.txt", "--out=out.txt", "--default-sigint",
		"--", "ls", "-l", "--", "x",
	}, req.trampolineArgs("sh"))

	assert.Equal(t, []string{"smallsh-exec", "--name=sh", "--", "true"},
		Request{Args: []string{"true"}}.trampolineArgs("sh"))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "exit value 0", Status{}.String())
	assert.Equal(t, "exit value 3", Status{Code: 3}.String())
	assert.Equal(t, "terminated by signal 15", Status{Signal: unix.SIGTERM, Signaled: true}.String())
}

func TestStartRejectsEmptyCommand(t *testing.T) {
	s, _ := newTestSpawner(t)
	_, err := s.Start(Request{})
	assert.Error(t, err)
}

func TestRedirection(t *testing.T) {
	s, _ := newTestSpawner(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	count := filepath.Join(dir, "count.txt")

	st := run(t, s, Request{Args: []string{"echo", "hi"}, OutputFile: out})
	assert.Equal(t, Status{}, st)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))

	st = run(t, s, Request{Args: []string{"wc", "-l"}, InputFile: out, OutputFile: count})
	assert.Equal(t, Status{}, st)
	data, err = os.ReadFile(count)
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(string(data)))

	// Output files are truncated.
	st = run(t, s, Request{Args: []string{"echo", "a"}, OutputFile: count})
	assert.Equal(t, Status{}, st)
	data, err = os.ReadFile(count)
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(data))
}

func TestChildFailures(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.txt")

	cases := map[string]struct {
		req        Request
		wantStatus Status
		wantErr    []string
	}{
		"unreadable input": {
			req:        Request{Args: []string{"cat"}, InputFile: missing},
			wantStatus: Status{Code: ExitOpenFailed},
			wantErr:    []string{"smallsh: " + missing + ": no such file or directory"},
		},
		"uncreatable output": {
			req:        Request{Args: []string{"echo"}, OutputFile: filepath.Join(dir, "nodir", "out")},
			wantStatus: Status{Code: ExitOpenFailed},
			wantErr:    []string{"smallsh: " + filepath.Join(dir, "nodir", "out") + ":"},
		},
		"unknown program": {
			req:        Request{Args: []string{"smallsh-no-such-program"}},
			wantStatus: Status{Code: ExitInvokeFailed},
			wantErr:    []string{"smallsh: smallsh-no-such-program: executable file not found"},
		},
		"unknown program names redirect targets": {
			req:        Request{Args: []string{"smallsh-no-such-program"}, OutputFile: filepath.Join(dir, "o")},
			wantStatus: Status{Code: ExitInvokeFailed},
			wantErr: []string{
				"smallsh: smallsh-no-such-program:",
				"smallsh: " + filepath.Join(dir, "o") + ":",
			},
		},
		"program exit code": {
			req:        Request{Args: []string{"sh", "-c", "exit 7"}},
			wantStatus: Status{Code: 7},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, stderr := newTestSpawner(t)
			assert.Equal(t, tc.wantStatus, run(t, s, tc.req))
			for _, want := range tc.wantErr {
				assert.Contains(t, stderr(), want)
			}
		})
	}
}

// waitForExec polls until pid runs the named program, so signals sent after it
// reach the program rather than the trampoline.
func waitForExec(t *testing.T, pid int, comm string) {
	t.Helper()
	path := "/proc/" + strconv.Itoa(pid) + "/comm"
	if _, err := os.Stat("/proc/self/comm"); err != nil {
		t.Skip("procfs not available")
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && strings.TrimSpace(string(data)) == comm {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("pid %d never became %s", pid, comm)
}

// ignoredSignals returns the SigIgn mask from /proc/<pid>/status.
func ignoredSignals(t *testing.T, pid int) uint64 {
	t.Helper()
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	require.NoError(t, err)
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "SigIgn:") {
			mask, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "SigIgn:")), 16, 64)
			require.NoError(t, err)
			return mask
		}
	}
	t.Fatal("no SigIgn line")
	return 0
}

func bit(sig unix.Signal) uint64 {
	return 1 << (uint(sig) - 1)
}

func TestChildDispositions(t *testing.T) {
	cases := map[string]struct {
		defaultInterrupt bool
		wantStatus       Status
	}{
		"foreground child dies on SIGINT": {
			defaultInterrupt: true,
			wantStatus:       Status{Signal: unix.SIGINT, Signaled: true},
		},
		"background child ignores SIGINT": {
			defaultInterrupt: false,
			wantStatus:       Status{Signal: unix.SIGTERM, Signaled: true},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestSpawner(t)
			pid, err := s.Start(Request{Args: []string{"sleep", "30"}, DefaultInterrupt: tc.defaultInterrupt})
			require.NoError(t, err)
			t.Cleanup(func() { unix.Kill(pid, unix.SIGKILL) })
			waitForExec(t, pid, "sleep")

			ignored := ignoredSignals(t, pid)
			assert.NotZero(t, ignored&bit(unix.SIGTSTP), "SIGTSTP should be ignored")
			assert.Equal(t, !tc.defaultInterrupt, ignored&bit(unix.SIGINT) != 0)

			require.NoError(t, unix.Kill(pid, unix.SIGTSTP))
			require.NoError(t, unix.Kill(pid, unix.SIGINT))
			if !tc.defaultInterrupt {
				time.Sleep(50 * time.Millisecond)
				require.NoError(t, s.Terminate(pid))
			}

			st, err := s.Wait(pid)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, st)
		})
	}
}

func TestReap(t *testing.T) {
	s, _ := newTestSpawner(t)

	pid, err := s.Start(Request{Args: []string{"sleep", "30"}})
	require.NoError(t, err)
	t.Cleanup(func() { unix.Kill(pid, unix.SIGKILL) })

	_, done, err := s.Reap(pid)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.Terminate(pid))
	var st Status
	require.Eventually(t, func() bool {
		st, done, err = s.Reap(pid)
		return done || err != nil
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Status{Signal: unix.SIGTERM, Signaled: true}, st)

	// Already collected.
	_, _, err = s.Reap(pid)
	assert.ErrorIs(t, err, unix.ECHILD)
}

func TestTerminateFinishedProcess(t *testing.T) {
	s, _ := newTestSpawner(t)
	pid, err := s.Start(Request{Args: []string{"true"}})
	require.NoError(t, err)
	_, err = s.Wait(pid)
	require.NoError(t, err)

	assert.NoError(t, s.Terminate(pid))
}
