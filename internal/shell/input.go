package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// LineReader prompts for and returns one line without its newline. It
// returns io.EOF at end of input.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type terminalReader struct {
	rl *readline.Instance
}

// NewTerminalReader reads from an interactive terminal. History is off, Ctrl-C
// abandons the current line and Ctrl-Z is handed to signals.
func NewTerminalReader(signals *Signals) (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			if r == readline.CharCtrlZ {
				signals.Suspend()
				return r, false
			}
			return r, true
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing readline: %w", err)
	}
	return &terminalReader{rl: rl}, nil
}

func (r *terminalReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", nil
	}
	return line, err
}

func (r *terminalReader) Close() error {
	return r.rl.Close()
}

type plainReader struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPlainReader reads newline-terminated lines from in, writing the prompt
// to out first. Used when stdin is not a terminal.
func NewPlainReader(in io.Reader, out io.Writer) LineReader {
	return &plainReader{in: bufio.NewReader(in), out: out}
}

func (r *plainReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	line, err := r.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

func (r *plainReader) Close() error {
	return nil
}
