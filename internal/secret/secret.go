// Package secret supplies mnemonics and private keys to wallet imports.
package secret

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pushchain/push-node-docker/internal/errors"
)

// Provider returns a secret for prompt. Implementations trim whitespace;
// an empty result is the caller's validation concern.
type Provider interface {
	Secret(prompt string) (string, error)
}

// Terminal reads from In, hiding input when In is a terminal.
type Terminal struct {
	In  *os.File
	Out io.Writer
}

// NewTerminal reads from stdin and prompts on stderr.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

func (t *Terminal) Secret(prompt string) (string, error) {
	fmt.Fprint(t.Out, prompt)

	fd := int(t.In.Fd())
	if !term.IsTerminal(fd) {
		return readLine(t.In)
	}

	b, err := term.ReadPassword(fd)
	fmt.Fprintln(t.Out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Reader reads one line from R. It serves piped input and tests.
type Reader struct {
	R io.Reader
}

func (r Reader) Secret(string) (string, error) { return readLine(r.R) }

// Static always returns Value.
type Static string

func (s Static) Secret(string) (string, error) { return strings.TrimSpace(string(s)), nil }

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read secret from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Require asks p for a secret and rejects an empty answer.
func Require(p Provider, prompt, what string) (string, error) {
	v, err := p.Secret(prompt)
	if err != nil {
		return "", errors.WrapCode(err, errors.CodeValidation, "secret.read", "failed to read "+what)
	}
	if v == "" {
		return "", errors.Newf(errors.CodeValidation, "secret.read", "%s must not be empty", what)
	}
	return v, nil
}
