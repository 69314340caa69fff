package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/williamfrack18-alt/anmar-engine/pkg/client"
)

func newQueueCmd() *cobra.Command {
	var engineer, status, priority, mode string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the ticket queue in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			q, err := c.Queue(cmd.Context(), client.QueueFilter{
				Engineer: engineer,
				Status:   status,
				Priority: priority,
				Mode:     mode,
			})
			if err != nil {
				return err
			}
			for i := range q.Items {
				t := q.Items[i]
				overdue := ""
				if t.SLAOverdue {
					overdue = "  OVERDUE"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-7s %3d%%  %-12s %s%s\n",
					t.ID, t.Status, t.Priority, t.Progress, t.Engineer, t.ProjectID, overdue)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "total %d, pending %d, overdue %d\n",
				q.Meta.Total, q.Meta.Pending, q.Meta.Overdue)
			return nil
		},
	}
	cmd.Flags().StringVar(&engineer, "engineer", "", "Filter by engineer")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&mode, "mode", "", "mine: pending tickets plus the engineer's own")
	return cmd
}

func newDispatchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Auto-assign pending tickets across the engineer pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			assignments, err := c.AutoAssign(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(assignments) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing pending")
				return nil
			}
			for _, a := range assignments {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s) -> %s\n", a.TicketID, a.ProjectID, a.Priority, a.Engineer)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Batch size (0 uses the default of 5, max 20)")
	return cmd
}
