package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/williamfrack18-alt/anmar-engine/internal/config"
	"github.com/williamfrack18-alt/anmar-engine/internal/store"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify the home directory, config file, and store",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			var problems []string

			cfg, err := config.Load(home)
			if err != nil {
				problems = append(problems, "config: "+err.Error())
			}

			if err := store.EnsureSchema(home); err != nil {
				problems = append(problems, "store: "+err.Error())
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok (home %s, %d engineers)\n", home, len(cfg.Engineers))
			if cfg.Advisor.APIKey == "" || cfg.Advisor.BaseURL == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "note: advisor credentials not set; replies use the composed fallback")
			}
			return nil
		},
	}
	return cmd
}
