// Package factors provides the concrete, default-registered encryption
// factors this repository supplements spec.md with (see SPEC_FULL.md
// "Supplemented features"): Passphrase, Keyfile, and Ephemeral-upload. Each
// implements factor.Handler and knows nothing about headers, options, or
// the envelope — it only turns user input into key material and back.
package factors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// FactorNamePassphrase is PassphraseFactor's stable registry name.
const FactorNamePassphrase = "Passphrase"

// PassphraseFactor derives its key straight from a user-supplied
// passphrase. It carries no factor-data: supplying the same passphrase
// again at decrypt time reproduces the same key.
type PassphraseFactor struct {
	// Interactive selects huh's TTY prompt, asking for the passphrase
	// twice on Create to catch typos. When false, the passphrase is read
	// once from Stdin: via golang.org/x/term.ReadPassword if Stdin is a
	// terminal, otherwise as a single line (spec.md's non-interactive /
	// --stdin mode, for scripting and tests).
	Interactive bool
	Stdin       *os.File
}

func (p *PassphraseFactor) Name() string { return FactorNamePassphrase }

// Create reads a passphrase and returns it as the factor-key; factor-data
// is always nil.
func (p *PassphraseFactor) Create(ctx context.Context) (data, key []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var pass string
	if p.Interactive {
		pass, err = p.promptConfirmed()
	} else {
		pass, err = p.readNonInteractive()
	}
	if err != nil {
		return nil, nil, err
	}
	return nil, []byte(pass), nil
}

// Derive reads the passphrase again and returns it as the factor-key. data
// is unused — a wrong passphrase is not detected here, only later when
// internal/wrap fails to open the primary key under it.
func (p *PassphraseFactor) Derive(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pass string
	var err error
	if p.Interactive {
		pass, err = p.prompt("Passphrase")
	} else {
		pass, err = p.readNonInteractive()
	}
	if err != nil {
		return nil, err
	}
	return []byte(pass), nil
}

func (p *PassphraseFactor) prompt(title string) (string, error) {
	var value string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Validate(requireNonEmpty).
		Value(&value).
		Run()
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return value, nil
}

func (p *PassphraseFactor) promptConfirmed() (string, error) {
	first, err := p.prompt("Passphrase")
	if err != nil {
		return "", err
	}
	second, err := p.prompt("Confirm passphrase")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

func (p *PassphraseFactor) readNonInteractive() (string, error) {
	stdin := p.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	if term.IsTerminal(int(stdin.Fd())) {
		passBytes, err := term.ReadPassword(int(stdin.Fd()))
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		if len(passBytes) == 0 {
			return "", fmt.Errorf("passphrase must not be empty")
		}
		return string(passBytes), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return line, nil
}

func requireNonEmpty(s string) error {
	if s == "" {
		return fmt.Errorf("must not be empty")
	}
	return nil
}
