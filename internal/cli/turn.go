package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTurnCmd() *cobra.Command {
	var identity string
	var project string

	cmd := &cobra.Command{
		Use:   "turn [message...]",
		Short: "Send one consultation message to the running engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			out, err := c.Turn(cmd.Context(), identity, project, strings.Join(args, " "))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, out.Reply)
			_, _ = fmt.Fprintf(w, "\n[action=%s phase=%s score=%d]\n", out.Action, out.Phase, out.BriefScore)
			if out.QuotaExceeded {
				_, _ = fmt.Fprintln(w, "Active ticket quota reached; no ticket was opened.")
			}
			if out.Ticket != nil {
				_, _ = fmt.Fprintf(w, "Ticket opened: %s (%s, %s)\n", out.Ticket.ID, out.Ticket.ProjectID, out.Ticket.Priority)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "Client identity (email)")
	cmd.Flags().StringVar(&project, "project", "", "Project name (scopes the conversation)")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}
