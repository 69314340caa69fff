package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or reset conversation memory",
	}
	cmd.AddCommand(newMemoryShowCmd())
	cmd.AddCommand(newMemoryResetCmd())
	cmd.AddCommand(newHistoryCmd())
	return cmd
}

func newMemoryShowCmd() *cobra.Command {
	var identity, project string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the reconciled memory for a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			view, err := c.Memory(cmd.Context(), identity, project)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			m := view.Memory
			_, _ = fmt.Fprintf(w, "summary:  %s\n", m.Summary)
			_, _ = fmt.Fprintf(w, "audience: %s\n", m.Audience)
			_, _ = fmt.Fprintf(w, "model:    %s\n", m.BusinessModel)
			_, _ = fmt.Fprintf(w, "timeline: %s\n", m.Timeline)
			_, _ = fmt.Fprintf(w, "features: %s\n", strings.Join(m.Features, ", "))
			_, _ = fmt.Fprintf(w, "domain:   %s\n", m.Domain)
			_, _ = fmt.Fprintf(w, "score:    %d (missing: %s)\n", view.BriefScore, strings.Join(view.MissingFields, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "Client identity (email)")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}

func newMemoryResetCmd() *cobra.Command {
	var identity, project string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the memory and transcript for a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			if err := c.ResetMemory(cmd.Context(), identity, project); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Reset")
			return nil
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "Client identity (email)")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var identity, project string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored transcript for a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			history, err := c.History(cmd.Context(), identity, project)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, m := range history {
				_, _ = fmt.Fprintf(w, "%s: %s\n", m.Role, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "Client identity (email)")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}
