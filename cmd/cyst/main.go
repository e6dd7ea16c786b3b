// Package main provides the CLI entry point for cyst.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arctide/cyst/internal/cerrors"
	"github.com/arctide/cyst/internal/config"
	"github.com/arctide/cyst/internal/envelope"
	"github.com/arctide/cyst/internal/factor"
	"github.com/arctide/cyst/internal/factors"
	"github.com/arctide/cyst/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cyst",
		Short: "cyst encrypts files behind multi-factor unlock options",
		Long: `cyst is a file-encryption tool built around unlock options instead of a
single password: each option is an independent AND of factors (a passphrase,
a keyfile, an ephemeral upload link), and a file opens if ANY one option's
factors are all satisfied.`,
		Version: Version,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "envelope", Title: "Envelope:"})

	enc := encryptCmd()
	enc.GroupID = "envelope"
	rootCmd.AddCommand(enc)

	dec := decryptCmd()
	dec.GroupID = "envelope"
	rootCmd.AddCommand(dec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failureStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func encryptCmd() *cobra.Command {
	var (
		optionSpecs    []string
		stdinPassword  bool
		nonInteractive bool
		configPath     string
		keyfilePath    string
		uploadURL      string
		logLevel       string
		logFormat      string
	)

	cmd := &cobra.Command{
		Use:   "encrypt <input> [output]",
		Short: "Encrypt a file behind one or more unlock options",
		Long: `Encrypt reads <input>, builds one unlock option per --option flag, and
writes the resulting envelope to [output], or to standard output if
[output] is omitted. Any one option's factors, all satisfied, is enough to
decrypt the file later.

Each --option takes the form name=Factor1[+Factor2...], e.g.:

  cyst encrypt secret.txt secret.cyst --option "pw=Passphrase"
  cyst encrypt secret.txt secret.cyst \
      --option "pw=Passphrase" \
      --option "backup=Keyfile+Ephemeral"

With --stdin, the Passphrase factor reads one line from standard input
instead of prompting. With --non-interactive, every factor avoids
prompting (Passphrase reads from stdin, Keyfile requires --keyfile); this
is the mode for scripted/batch use.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := logging.NewLogger(pick(logLevel, cfg.LogLevel), pick(logFormat, cfg.LogFormat))

			if len(optionSpecs) == 0 {
				return fmt.Errorf("at least one --option is required")
			}

			interactive := !nonInteractive && !stdinPassword
			registry := buildRegistry(interactive, keyfilePath, uploadURL)
			options, err := parseOptionSpecs(optionSpecs, registry)
			if err != nil {
				return err
			}

			inPath := args[0]
			in, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			info, err := in.Stat()
			if err != nil {
				return fmt.Errorf("stat input: %w", err)
			}

			out, closeOut, err := openOutput(args, 1)
			if err != nil {
				return err
			}
			defer closeOut()

			fmt.Fprintln(cmd.ErrOrStderr(), bannerStyle.Render("cyst encrypt"))
			logger.Info("encrypting", logging.KeyPath, inPath, logging.KeyBytes, info.Size())

			start := time.Now()
			if err := envelope.Create(cmd.Context(), cfg, options, in, info.Size(), out); err != nil {
				return fmt.Errorf("encrypt: %w", err)
			}

			elapsed := time.Since(start)
			fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf(
				"wrote %s in %s (%d option(s))",
				humanize.Bytes(uint64(info.Size())), elapsed.Round(time.Millisecond), len(options))))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&optionSpecs, "option", "o", nil, "name=Factor1[+Factor2...] (repeatable)")
	cmd.Flags().BoolVar(&stdinPassword, "stdin", false, "read the Passphrase factor from standard input instead of prompting")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "read factor material from stdin/flags instead of prompting")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (defaults to built-in defaults)")
	cmd.Flags().StringVar(&keyfilePath, "keyfile", "", "path for the Keyfile factor (required with --non-interactive if used)")
	cmd.Flags().StringVar(&uploadURL, "upload-url", factors.DefaultUploadURL, "paste host for the Ephemeral factor")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the config's log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "override the config's log format")

	return cmd
}

// openOutput resolves the optional output path at args[idx]: a real file if
// present, or standard output if the argument was omitted (spec.md §6).
func openOutput(args []string, idx int) (out *os.File, closeFn func(), err error) {
	if len(args) <= idx {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(args[idx])
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func decryptCmd() *cobra.Command {
	var (
		optionName     string
		stdinPassword  bool
		nonInteractive bool
		configPath     string
		keyfilePath    string
		uploadURL      string
		logLevel       string
		logFormat      string
	)

	cmd := &cobra.Command{
		Use:   "decrypt <input> [output]",
		Short: "Decrypt a file by satisfying one unlock option",
		Long: `Decrypt reads the envelope header from <input>, picks one option by name
(--option, or an interactive prompt over the options present if omitted),
derives that option's factors, and streams the recovered plaintext to
[output], or to standard output if [output] is omitted.

Deriving stops and fails before any factor is prompted if the option
references a factor name this binary doesn't know how to satisfy.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := logging.NewLogger(pick(logLevel, cfg.LogLevel), pick(logFormat, cfg.LogFormat))

			inPath := args[0]
			in, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			info, err := in.Stat()
			if err != nil {
				return fmt.Errorf("stat input: %w", err)
			}

			hdr, remaining, err := envelope.ParseHeader(in, cfg, info.Size())
			if err != nil {
				return fmt.Errorf("read header: %w", err)
			}

			names := hdr.SortedOptionNames()
			if len(names) == 0 {
				return &cerrors.InvalidConfigurationError{Reason: "header has zero options"}
			}

			chosen := optionName
			if chosen == "" {
				if nonInteractive {
					return fmt.Errorf("--option is required with --non-interactive")
				}
				chosen, err = promptOptionChoice(names)
				if err != nil {
					return err
				}
			}

			out, closeOut, err := openOutput(args, 1)
			if err != nil {
				return err
			}
			defer closeOut()

			interactive := !nonInteractive && !stdinPassword
			registry := buildRegistry(interactive, keyfilePath, uploadURL)

			fmt.Fprintln(cmd.ErrOrStderr(), bannerStyle.Render("cyst decrypt"))
			logger.Info("decrypting", logging.KeyPath, inPath, logging.KeyOption, chosen)

			start := time.Now()
			if err := envelope.Open(cmd.Context(), cfg, registry, hdr, chosen, remaining, in, out); err != nil {
				return describeOpenError(err)
			}

			elapsed := time.Since(start)
			fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf(
				"recovered %s in %s via option %q",
				humanize.Bytes(uint64(remaining)), elapsed.Round(time.Millisecond), chosen)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&optionName, "option", "o", "", "the option name to unlock (prompted if omitted)")
	cmd.Flags().BoolVar(&stdinPassword, "stdin", false, "read the Passphrase factor from standard input instead of prompting")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "read factor material from stdin/flags instead of prompting")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (defaults to built-in defaults)")
	cmd.Flags().StringVar(&keyfilePath, "keyfile", "", "path for the Keyfile factor")
	cmd.Flags().StringVar(&uploadURL, "upload-url", factors.DefaultUploadURL, "paste host for the Ephemeral factor")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the config's log level")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "override the config's log format")

	return cmd
}

// buildRegistry assembles the factor registry this binary ships, pointing
// the Keyfile factor at a fixed path (set via --keyfile) since the CLI has
// no per-option way to ask the user for a distinct path per use.
func buildRegistry(interactive bool, keyfilePath, uploadURL string) factor.Registry {
	registry := factors.NewRegistry(interactive)
	if keyfilePath != "" {
		if h, ok := registry.Get(factors.FactorNameKeyfile); ok {
			if kf, ok := h.(*factors.KeyfileFactor); ok {
				kf.Path = keyfilePath
			}
		}
	}
	if uploadURL != "" {
		if h, ok := registry.Get(factors.FactorNameEphemeral); ok {
			if ef, ok := h.(*factors.EphemeralFactor); ok {
				ef.UploadURL = uploadURL
			}
		}
	}
	return registry
}

// parseOptionSpecs turns "name=Factor1+Factor2" strings into OptionInputs,
// resolving each factor name against registry so an unknown factor name is
// rejected at parse time rather than partway through Create.
func parseOptionSpecs(specs []string, registry factor.Registry) ([]envelope.OptionInput, error) {
	options := make([]envelope.OptionInput, 0, len(specs))
	for _, spec := range specs {
		name, factorList, ok := strings.Cut(spec, "=")
		if !ok || name == "" || factorList == "" {
			return nil, fmt.Errorf("invalid --option %q, want name=Factor1[+Factor2...]", spec)
		}

		var handlers []factor.Handler
		for _, factorName := range strings.Split(factorList, "+") {
			h, ok := registry.Get(factorName)
			if !ok {
				return nil, &cerrors.UnknownFactorError{Name: factorName}
			}
			handlers = append(handlers, h)
		}

		options = append(options, envelope.OptionInput{Name: name, Factors: handlers})
	}
	return options, nil
}

func promptOptionChoice(names []string) (string, error) {
	opts := make([]huh.Option[string], len(names))
	for i, n := range names {
		opts[i] = huh.NewOption(n, n)
	}

	var chosen string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Which unlock option do you want to use?").
			Options(opts...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("prompt for option: %w", err)
	}
	return chosen, nil
}

// describeOpenError surfaces the unknown-factor and decryption-failure
// cases with a message distinct from a bare wrapped error, since they're
// the two outcomes an operator is most likely to hit.
func describeOpenError(err error) error {
	var unknown *cerrors.UnknownFactorError
	if errors.As(err, &unknown) {
		return fmt.Errorf("decrypt: unknown factor %q (this binary has no handler for it)", unknown.Name)
	}
	if errors.Is(err, cerrors.ErrDecryptionFailed) {
		return fmt.Errorf("decrypt: authentication failed — wrong factors, or the file is corrupt/tampered")
	}
	return fmt.Errorf("decrypt: %w", err)
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
