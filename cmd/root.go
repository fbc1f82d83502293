// Package cmd defines and implements the CLI commands for the pagewatch executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-watcher/internal/app"
	"github.com/JakeFAU/page-watcher/internal/config"
	"github.com/JakeFAU/page-watcher/internal/logging"
	"github.com/JakeFAU/page-watcher/internal/watch"
)

// Process exit statuses.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitConfig      = 2
	ExitInterrupted = 130
)

var errInterrupted = errors.New("interrupted")

// sessionKeyType is the key for storing the session in the context.
type sessionKeyType string

const sessionKey sessionKeyType = "session"

// session carries what PersistentPreRunE prepared for the subcommand.
type session struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp is the application factory. It's a variable so tests can observe
// or replace the wiring.
var newApp = app.New

// newRootCmd creates and configures the root command. Running it without a
// subcommand performs a check.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "pagewatch",
		Short: "Watch a web page and alert when it changes.",
		Long: `pagewatch fetches one page, fingerprints the part of it you care about
(a CSS selector or the visible text when keywords are configured) and compares
the fingerprint with the one stored by the previous run. On a change it sends
alerts by email and WhatsApp. It is meant to run on a schedule.`,
		SilenceErrors: true,
		SilenceUsage:  true,

		// Runs before every subcommand: load configuration and build the logger.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), sessionKey, &session{cfg: cfg, logger: logger}))
			return nil
		},
		RunE: runCheckCommand,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file")
	addForceNotifyFlag(cmd)

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newNotifyTestCmd())
	cmd.AddCommand(newStateCmd())
	return cmd
}

func resolveSession(ctx context.Context) (*session, error) {
	s, ok := ctx.Value(sessionKey).(*session)
	if !ok || s == nil {
		return nil, errors.New("configuration not loaded")
	}
	return s, nil
}

// Execute runs the CLI and returns the process exit status. SIGINT and
// SIGTERM cancel the run.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, newRootCmd(), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(stderr, "pagewatch: unexpected panic: %v\n%s", r, debug.Stack())
			code = ExitFatal
		}
	}()

	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	code = ExitCode(err)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "pagewatch: %s: %v\n", outcomeFor(err), err)
	}
	return code
}

// ExitCode maps a command error onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch outcomeFor(err) {
	case watch.OutcomeConfigError:
		return ExitConfig
	case watch.OutcomeInterrupted:
		return ExitInterrupted
	default:
		return ExitFatal
	}
}

// outcomeFor classifies an error that ended the command.
func outcomeFor(err error) watch.Outcome {
	switch {
	case errors.Is(err, config.ErrInvalid):
		return watch.OutcomeConfigError
	case errors.Is(err, errInterrupted), errors.Is(err, context.Canceled):
		return watch.OutcomeInterrupted
	default:
		return watch.OutcomeFatal
	}
}
