package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput - ввод закончился раньше, чем было получено значение
var ErrNoInput = errors.New("no input")

// Prompter читает значения, которые нельзя передавать флагами
type Prompter interface {
	ReadLine(label string) (string, error)
	ReadSecret(label string) (string, error)
}

// terminalPrompter читает из in. Если in - терминал, секреты вводятся без эха.
type terminalPrompter struct {
	in     *bufio.Reader
	file   *os.File
	prompt io.Writer
}

// NewPrompter создает prompter; приглашения пишутся в prompt (обычно stderr)
func NewPrompter(in io.Reader, prompt io.Writer) Prompter {
	p := &terminalPrompter{in: bufio.NewReader(in), prompt: prompt}
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		p.file = f
	}
	return p
}

func (p *terminalPrompter) ReadLine(label string) (string, error) {
	fmt.Fprint(p.prompt, label)
	return p.readLine()
}

func (p *terminalPrompter) ReadSecret(label string) (string, error) {
	fmt.Fprint(p.prompt, label)
	if p.file == nil {
		return p.readLine()
	}
	secret, err := term.ReadPassword(int(p.file.Fd()))
	fmt.Fprintln(p.prompt)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(secret), nil
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
