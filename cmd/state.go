package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/page-watcher/internal/app"
	"github.com/JakeFAU/page-watcher/internal/config"
	"github.com/JakeFAU/page-watcher/internal/state"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the stored watch state as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			if s.cfg.State.Location == "" {
				return fmt.Errorf("%w: state.location must be set", config.ErrInvalid)
			}
			a, err := app.NewStoreOnly(cmd.Context(), s.cfg, s.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Store().Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}
			data, err := state.Encode(st)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
