// Command sandbox-exec applies a sandbox policy to itself and then execs
// the given command in its place.
//
// Usage:
//
//	sandbox-exec --sandbox-policy-cwd <path> --sandbox-policy <json> [--enable-bind-mounts] [--] <command> [args...]
//
// Everything after the first positional argument belongs to the command,
// including arguments that look like sandbox-exec flags. On any failure a
// one-line diagnostic is printed to stderr and the exit status is 1. On
// success nothing is printed: the process becomes the command.
//
// Set SANDBOX_EXEC_LOG=debug to trace the launch on stderr.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zhangyunhao116/sandboxexec"
	"github.com/zhangyunhao116/sandboxexec/policy"
)

const (
	flagPolicyCwd        = "sandbox-policy-cwd"
	flagPolicy           = "sandbox-policy"
	flagEnableBindMounts = "enable-bind-mounts"

	// logEnv selects the log level: debug, info, warn or error.
	logEnv = "SANDBOX_EXEC_LOG"
)

// options holds the parsed command-line flags.
type options struct {
	policyCwd        string
	policy           string
	enableBindMounts bool
}

// AddFlags registers the launcher flags on flagSet.
func (o *options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.policyCwd, flagPolicyCwd, "", "absolute directory the sandbox policy is relative to")
	flagSet.StringVar(&o.policy, flagPolicy, "", "sandbox policy as JSON, e.g. '{\"mode\":\"read-only\"}'")
	flagSet.BoolVar(&o.enableBindMounts, flagEnableBindMounts, false, "protect read-only subpaths with bind mounts")
}

// launchFunc runs a validated invocation. It returns only on failure.
type launchFunc func(inv *sandboxexec.Invocation) error

func newRootCmd(launch launchFunc) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "sandbox-exec --sandbox-policy-cwd <path> --sandbox-policy <json> [--enable-bind-mounts] [--] <command> [args...]",
		Short: "Run a command under a sandbox policy",
		Long: `sandbox-exec restricts its own process with the given sandbox policy
(mount namespace, no_new_privs, seccomp network filter, Landlock) and then
replaces itself with the command. If any step fails the command is not run.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := policy.Parse(o.policy)
			if err != nil {
				return fmt.Errorf("invalid --%s: %w", flagPolicy, err)
			}
			inv, err := sandboxexec.NewInvocation(p, o.policyCwd, o.enableBindMounts, args)
			if err != nil {
				return err
			}
			return launch(inv)
		},
	}

	flags := cmd.Flags()
	// The command's own flags must reach it untouched.
	flags.SetInterspersed(false)
	o.AddFlags(flags)
	_ = cmd.MarkFlagRequired(flagPolicyCwd)
	_ = cmd.MarkFlagRequired(flagPolicy)
	return cmd
}

// execute parses args against cmd's flags and runs it directly. cobra's own
// dispatch is bypassed because it treats a leading "__complete" or
// "completion" argument as its shell-completion command, and everything
// after our flags must reach the target command verbatim.
func execute(cmd *cobra.Command, args []string) error {
	cmd.InitDefaultHelpFlag()
	if err := cmd.ParseFlags(args); err != nil {
		return err
	}
	if help, _ := cmd.Flags().GetBool("help"); help {
		return cmd.Help()
	}
	if err := cmd.ValidateRequiredFlags(); err != nil {
		return err
	}
	rest := cmd.Flags().Args()
	if err := cmd.ValidateArgs(rest); err != nil {
		return err
	}
	return cmd.RunE(cmd, rest)
}

// newLogger returns a text logger on w at the level named by level. Unknown
// or empty levels mean warn, so a successful launch writes nothing.
func newLogger(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelWarn
	if level != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err == nil {
			lvl = parsed
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	logger := newLogger(os.Stderr, os.Getenv(logEnv))
	slog.SetDefault(logger)

	cmd := newRootCmd(func(inv *sandboxexec.Invocation) error {
		return sandboxexec.New(sandboxexec.WithLogger(logger)).Run(inv)
	})
	if err := execute(cmd, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox-exec: %v\n", err)
		os.Exit(1)
	}
}
