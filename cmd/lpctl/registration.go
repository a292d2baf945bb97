package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"legalpulse/auth"
	"legalpulse/registration"
)

func (c *cli) registerCmd() *cobra.Command {
	var (
		file     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Apply to be listed as a legal service provider",
		Long: `register submits an application read from a YAML or JSON file. When you are
not signed in as an LSP a new LSP account is created from the application's
email and --password, and you are signed in to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := readForm(file)
			if err != nil {
				return err
			}
			if password != "" {
				form.Password = password
			}

			res, err := c.session.Submit(cmd.Context(), form)
			if err != nil {
				return c.fail(cmd, "Registration failed", err)
			}
			if c.asJSON {
				return c.printJSON(res.Registration)
			}
			fmt.Fprintf(c.out, "submitted %s (%s)\n", res.Registration.ID, res.Registration.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "application file (YAML or JSON)")
	cmd.Flags().StringVar(&password, "password", "", "password for a newly created LSP account")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readForm(path string) (registration.Form, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return registration.Form{}, fmt.Errorf("read application: %w", err)
	}
	var form registration.Form
	if err := yaml.Unmarshal(raw, &form); err != nil {
		return registration.Form{}, fmt.Errorf("parse application: %w", err)
	}
	return form, nil
}

func (c *cli) registrationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registrations",
		Short: "List your registration submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, ok := c.session.User()
			if !ok {
				return c.fail(cmd, "Not signed in", auth.ErrNotAuthenticated)
			}
			regs, err := c.app.Registrations.ListForUser(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			return c.printRegistrations(regs)
		},
	}
}
