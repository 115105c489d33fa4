package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the user for a missing value.
type Prompter interface {
	Prompt(label string) (string, error)
}

// LinePrompter reads one line per question.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter asks on out and reads answers from in.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt implements Prompter. The answer is trimmed; a closed input yields
// whatever was typed before it.
func (p *LinePrompter) Prompt(label string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer for %q: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}

// TerminalPrompter returns a prompter on stdin and stderr, or nil when
// stdin is not a terminal.
func TerminalPrompter() Prompter {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return NewLinePrompter(os.Stdin, os.Stderr)
}
