// Package prompt collects the operator's choices on the terminal: which
// images to build, where to put them, and how the default user is
// provisioned.
//
// Numbered menus re-prompt until the input is valid. The only way out of a
// menu is end of input, which is reported as io.ErrUnexpectedEOF.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrCancelled is returned when the operator aborts a selection.
var ErrCancelled = errors.New("selection cancelled")

// ParseChoice validates a 1-based menu choice among n options and returns
// the 0-based index.
func ParseChoice(input string, n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("no options to choose from")
	}
	input = strings.TrimSpace(input)
	choice, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid choice %q: enter a number between 1 and %d", input, n)
	}
	if choice < 1 || choice > n {
		return 0, fmt.Errorf("choice %d out of range: enter a number between 1 and %d", choice, n)
	}
	return choice - 1, nil
}

// Prompter reads answers from In and writes menus to Out.
type Prompter struct {
	in  *bufio.Reader
	Out io.Writer

	// interactive enables the huh checklist and hidden password input.
	interactive bool
	// readPassword reads a line without echo; nil reads from in.
	readPassword func() (string, error)
	// runChecklist runs the checklist form, which writes into answer;
	// replaced in tests.
	runChecklist func(form *huh.Form, answer *checklistAnswer) error
}

// New creates a line-oriented prompter over in and out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:           bufio.NewReader(in),
		Out:          out,
		runChecklist: func(f *huh.Form, _ *checklistAnswer) error { return f.Run() },
	}
}

// NewTerminal creates a prompter on stdin and stdout. The checklist and
// hidden password input are enabled only when both are terminals.
func NewTerminal() *Prompter {
	p := New(os.Stdin, os.Stdout)
	stdin := int(os.Stdin.Fd())
	if term.IsTerminal(stdin) && term.IsTerminal(int(os.Stdout.Fd())) {
		p.interactive = true
		p.readPassword = func() (string, error) {
			b, err := term.ReadPassword(stdin)
			return string(b), err
		}
	}
	return p
}

// Interactive reports whether the prompter is attached to a terminal.
func (p *Prompter) Interactive() bool {
	return p.interactive
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line == "" {
				return "", io.ErrUnexpectedEOF
			}
			return strings.TrimSpace(line), nil
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Choose prints an enumerated menu and returns the 0-based index of the
// chosen option, re-prompting until the input is valid.
func (p *Prompter) Choose(title string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("%s: no options to choose from", title)
	}

	_, _ = fmt.Fprintln(p.Out, title)
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.Out, "%d) %s\n", i+1, opt)
	}

	for {
		_, _ = fmt.Fprint(p.Out, "Enter choice: ")
		line, err := p.readLine()
		if err != nil {
			return 0, err
		}
		idx, err := ParseChoice(line, len(options))
		if err == nil {
			_, _ = fmt.Fprintln(p.Out)
			return idx, nil
		}
		_, _ = fmt.Fprintln(p.Out, err)
	}
}

// Ask reads a line for label, re-prompting while validate rejects it. A nil
// validate accepts anything, including an empty answer.
func (p *Prompter) Ask(label string, validate func(string) error) (string, error) {
	for {
		_, _ = fmt.Fprintf(p.Out, "Enter %s: ", label)
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if validate == nil {
			return line, nil
		}
		if err := validate(line); err != nil {
			_, _ = fmt.Fprintln(p.Out, err)
			continue
		}
		return line, nil
	}
}

// Password reads a secret. On a terminal the input is not echoed.
func (p *Prompter) Password(label string) (string, error) {
	_, _ = fmt.Fprintf(p.Out, "Enter %s: ", label)
	if p.readPassword == nil {
		return p.readLine()
	}
	pw, err := p.readPassword()
	_, _ = fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return pw, nil
}
