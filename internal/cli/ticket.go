package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/williamfrack18-alt/anmar-engine/pkg/models"
)

func newTicketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Manage work-item tickets",
	}
	cmd.AddCommand(newTicketListCmd())
	cmd.AddCommand(newTicketCreateCmd())
	cmd.AddCommand(newTicketAcceptCmd())
	cmd.AddCommand(newTicketDeliverCmd())
	cmd.AddCommand(newTicketUpdateCmd())
	return cmd
}

func printTicket(cmd *cobra.Command, t *models.Ticket) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-7s %3d%%  %-12s %s\n",
		t.ID, t.Status, t.Priority, t.Progress, t.Engineer, t.ProjectID)
}

func newTicketListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			tickets, err := c.Tickets(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tickets {
				printTicket(cmd, t)
			}
			return nil
		},
	}
	return cmd
}

func newTicketCreateCmd() *cobra.Command {
	var identity, project, priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Hand a stored conversation off as a ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.CreateTicket(cmd.Context(), identity, project, priority)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s, %s, SLA due %s)\n",
				t.ID, t.ProjectID, t.Priority, t.SLADueAt.Format("2006-01-02 15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&identity, "identity", "", "Client identity (email)")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().StringVar(&priority, "priority", "", "high, medium, or low (inferred when empty)")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}

func newTicketAcceptCmd() *cobra.Command {
	var ticketID, engineer string
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Accept a ticket and start development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticketID == "" {
				return fmt.Errorf("--id is required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.AcceptTicket(cmd.Context(), ticketID, engineer)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s accepted by %s, now %s\n", t.ID, t.Engineer, t.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticketID, "id", "", "Ticket ID")
	cmd.Flags().StringVar(&engineer, "engineer", "auto", "Engineer name, or auto for the dispatch balancer")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTicketDeliverCmd() *cobra.Command {
	var ticketID, previewURL, note string
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Mark a ticket completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticketID == "" {
				return fmt.Errorf("--id is required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.DeliverTicket(cmd.Context(), ticketID, previewURL, note)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s delivered, preview %s\n", t.ID, t.PreviewURL)
			if t.SLABreached {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "note: delivered past the SLA due time")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ticketID, "id", "", "Ticket ID")
	cmd.Flags().StringVar(&previewURL, "preview", "", "Preview URL (defaults to the project page)")
	cmd.Flags().StringVar(&note, "note", "", "Delivery note")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newTicketUpdateCmd() *cobra.Command {
	var ticketID, status, engineer string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Set ticket status (legacy aliases accepted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticketID == "" || status == "" {
				return fmt.Errorf("--id and --status are required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.UpdateTicket(cmd.Context(), ticketID, status, engineer)
			if err != nil {
				return err
			}
			printTicket(cmd, t)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticketID, "id", "", "Ticket ID")
	cmd.Flags().StringVar(&status, "status", "", "New status (pending, accepted, developing, blocked, completed)")
	cmd.Flags().StringVar(&engineer, "engineer", "", "Engineer name")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
