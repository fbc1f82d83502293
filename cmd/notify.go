package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newNotifyTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test alert on every configured channel",
		Long: `Sends a synthetic alert (detection method "test", matched keyword TEST)
without fetching the page or touching stored state. Delivery failures are
logged but never change the exit status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.cfg.Validate(); err != nil {
				return err
			}
			return sendTestNotification(cmd, s)
		},
	}
}

func sendTestNotification(cmd *cobra.Command, s *session) error {
	a, err := newApp(cmd.Context(), s.cfg, s.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.Runner().ForceTest(cmd.Context())
	s.logger.Info("test notification finished",
		zap.String("run_id", report.RunID),
		zap.Int("notifications_sent", countSent(report.Deliveries)),
	)
	return nil
}
