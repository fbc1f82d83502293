package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-watcher/internal/notify"
	"github.com/JakeFAU/page-watcher/internal/watch"
)

const forceNotifyFlag = "force-notify"

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the page once and alert if it changed",
		Long: `Loads the previous fingerprint, fetches the page with retries, extracts the
watched signal and compares fingerprints. The first run only records a baseline.
Network failures are logged and exit successfully so the next scheduled run
can try again.`,
		RunE: runCheckCommand,
	}
	addForceNotifyFlag(cmd)
	return cmd
}

func addForceNotifyFlag(cmd *cobra.Command) {
	cmd.Flags().Bool(forceNotifyFlag, false, "send a test notification instead of checking the page")
}

func runCheckCommand(cmd *cobra.Command, _ []string) error {
	s, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool(forceNotifyFlag)
	if err != nil {
		return fmt.Errorf("read --%s: %w", forceNotifyFlag, err)
	}
	if s.cfg.Watch.ForceNotify || force {
		return sendTestNotification(cmd, s)
	}

	logger := s.logger
	logger.Info("page watcher starting",
		zap.String("url", s.cfg.Watch.URL),
		zap.String("method", s.cfg.Method()),
		zap.String("selector", s.cfg.Watch.Selector),
		zap.String("keywords", strings.Join(s.cfg.Watch.Keywords, ", ")),
	)

	a, err := newApp(cmd.Context(), s.cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Runner().Run(cmd.Context())
	switch {
	case report.Outcome == watch.OutcomeInterrupted:
		return fmt.Errorf("%w: %v", errInterrupted, err)
	case err != nil:
		logger.Error("unexpected error", zap.String("run_id", report.RunID), zap.Error(err))
		return fmt.Errorf("check failed: %w", err)
	}

	logger.Info("check finished",
		zap.String("run_id", report.RunID),
		zap.String("outcome", string(report.Outcome)),
		zap.Int("notifications_sent", countSent(report.Deliveries)),
	)
	return nil
}

func countSent(results []notify.Result) int {
	n := 0
	for _, r := range results {
		if r.Status == notify.StatusSent {
			n++
		}
	}
	return n
}
