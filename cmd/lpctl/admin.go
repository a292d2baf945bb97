package main

import (
	"github.com/spf13/cobra"

	"legalpulse/notify"
	"legalpulse/registration"
)

func (c *cli) adminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Review LSP registrations (administrators only)",
	}

	var (
		query  string
		status string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := registration.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			regs, err := c.app.Registrations.ListAll(cmd.Context(), c.session.Actor(), registration.ListFilter{Query: query, Status: filter})
			if err != nil {
				return c.fail(cmd, "Listing failed", err)
			}
			return c.printRegistrations(regs)
		},
	}
	list.Flags().StringVarP(&query, "query", "q", "", "match name, email, specialization, city or state")
	list.Flags().StringVar(&status, "status", string(registration.FilterAll), "all, pending, approved or rejected")

	admin.AddCommand(
		list,
		c.decisionCmd("approve", registration.StatusApproved),
		c.decisionCmd("reject", registration.StatusRejected),
	)
	return admin
}

func (c *cli) decisionCmd(verb string, to registration.Status) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <registration-id>",
		Short: verb + " a registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := c.app.Registrations.UpdateStatus(cmd.Context(), c.session.Actor(), args[0], to)
			if err != nil {
				return c.fail(cmd, "Decision failed", err)
			}
			c.app.Notifier.Notify(cmd.Context(), "Registration "+string(reg.Status),
				reg.FirstName+" "+reg.LastName+" has been "+string(reg.Status)+".", notify.SeverityDefault)
			return c.printRegistrations([]registration.Registration{reg})
		},
	}
}
