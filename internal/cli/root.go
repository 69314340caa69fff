package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/williamfrack18-alt/anmar-engine/internal/config"
)

func NewRootCmd(version string) *cobra.Command {
	var homeOverride string

	cmd := &cobra.Command{
		Use:          "anmar",
		Short:        "Anmar engine — consultation intake, briefs, and ticket dispatch",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override anmar home directory (default: ~/.anmar, env: ANMAR_HOME)")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())

	cmd.AddCommand(newTurnCmd())
	cmd.AddCommand(newMemoryCmd())
	cmd.AddCommand(newTicketCmd())
	cmd.AddCommand(newQueueCmd())
	cmd.AddCommand(newDispatchCmd())
	cmd.AddCommand(newApikeyCmd())

	// Hidden internal subcommand used by `anmar start` for background mode.
	cmd.AddCommand(newDaemonCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
