package main

import (
	"github.com/spf13/cobra"

	"legalpulse/auth"
	"legalpulse/notify"
	"legalpulse/registration"
)

func (c *cli) signupCmd() *cobra.Command {
	var req auth.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a client account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.ConfirmPassword == "" {
				req.ConfirmPassword = req.Password
			}
			user, err := c.app.Auth.Signup(cmd.Context(), req)
			if err != nil {
				return c.fail(cmd, "Signup failed", err)
			}
			c.app.Notifier.Notify(cmd.Context(), "Account created", "Welcome to LegalPulse, "+user.Name+".", notify.SeverityDefault)
			if err := c.session.Login(cmd.Context(), user); err != nil {
				return err
			}
			return c.printWhoami()
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (at least 8 characters)")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm-password", "", "repeat the password (defaults to --password)")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var (
		req      auth.LoginRequest
		userType string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a client, lsp or admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.UserType = auth.Role(userType)
			user, err := c.app.Auth.VerifyCredentials(cmd.Context(), req)
			if err != nil {
				return c.fail(cmd, "Login failed", err)
			}
			if err := c.session.Login(cmd.Context(), user); err != nil {
				return err
			}
			return c.printWhoami()
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&userType, "type", string(auth.RoleClient), "account type: client, lsp or admin")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.session.Logout(cmd.Context())
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and its registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.session.FetchProfile(cmd.Context()); err != nil {
				return err
			}
			return c.printWhoami()
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Manage your LSP profile",
	}

	var (
		fields    = map[string]*string{}
		languages []string
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Edit your registration details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.session.IsAuthenticated() {
				return c.fail(cmd, "Update failed", auth.ErrNotAuthenticated)
			}
			patch := registration.ProfilePatch{}
			set := func(name string, dst **string) {
				if cmd.Flags().Changed(name) {
					*dst = fields[name]
				}
			}
			set("first-name", &patch.FirstName)
			set("last-name", &patch.LastName)
			set("phone", &patch.Phone)
			set("designation", &patch.Designation)
			set("experience", &patch.Experience)
			set("specialization", &patch.Specialization)
			set("about", &patch.About)
			set("city", &patch.City)
			set("state", &patch.State)
			set("fee", &patch.ConsultationFee)
			if cmd.Flags().Changed("language") {
				patch.Languages = languages
			}

			_, changed, err := c.session.UpdateProfile(cmd.Context(), patch)
			if err != nil {
				return c.fail(cmd, "Update failed", err)
			}
			if !changed {
				c.app.Notifier.Notify(cmd.Context(), "Nothing to update", "No registration or no changes given.", notify.SeverityDefault)
			}
			return c.printWhoami()
		},
	}
	for _, name := range []string{"first-name", "last-name", "phone", "designation", "experience", "specialization", "about", "city", "state", "fee"} {
		fields[name] = update.Flags().String(name, "", "new "+name)
	}
	update.Flags().StringSliceVar(&languages, "language", nil, "languages spoken (repeatable, replaces the list)")

	profile.AddCommand(update)
	return profile
}
