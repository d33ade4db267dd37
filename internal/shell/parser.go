package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrLineTooLong           = errors.New("line too long")
	ErrTooManyArgs           = errors.New("too many arguments")
	ErrMissingCommand        = errors.New("missing command")
	ErrMissingRedirectTarget = errors.New("missing redirection target")
)

// Command is one parsed input line.
type Command struct {
	Args       []string
	InputFile  string
	OutputFile string
	Background bool
}

type Parser struct {
	pid     string
	maxLine int
	maxArgs int
}

// NewParser returns a parser expanding $$ to pid.
func NewParser(pid, maxLine, maxArgs int) *Parser {
	return &Parser{
		pid:     strconv.Itoa(pid),
		maxLine: maxLine,
		maxArgs: maxArgs,
	}
}

// Parse turns a line into a Command. ok is false, with a nil error, for blank
// lines and comments.
//
// A trailing "&" requests background execution; anywhere else it is an
// ordinary argument. "<" and ">" take the next token as a file name.
func (p *Parser) Parse(line string) (cmd Command, ok bool, err error) {
	if n := utf8.RuneCountInString(line); n > p.maxLine {
		return Command{}, false, fmt.Errorf("%w (%d characters, limit %d)", ErrLineTooLong, n, p.maxLine)
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
		return Command{}, false, nil
	}

	if tokens[len(tokens)-1] == "&" {
		cmd.Background = true
		tokens = tokens[:len(tokens)-1]
	}

	for i := 0; i < len(tokens); i++ {
		switch tok := tokens[i]; tok {
		case "<", ">":
			if i+1 == len(tokens) {
				return Command{}, false, fmt.Errorf("%w after %s", ErrMissingRedirectTarget, tok)
			}
			i++
			if tok == "<" {
				cmd.InputFile = tokens[i]
			} else {
				cmd.OutputFile = tokens[i]
			}
		default:
			if len(cmd.Args) == p.maxArgs {
				return Command{}, false, fmt.Errorf("%w (limit %d)", ErrTooManyArgs, p.maxArgs)
			}
			cmd.Args = append(cmd.Args, strings.ReplaceAll(tok, "$$", p.pid))
		}
	}

	if len(cmd.Args) == 0 {
		return Command{}, false, ErrMissingCommand
	}
	return cmd, true, nil
}
