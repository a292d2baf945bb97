package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"legalpulse/app"
	"legalpulse/config"
	"legalpulse/logging"
	"legalpulse/notify"
	"legalpulse/session"
)

// cli carries what every command needs once the root pre-run has opened the
// local store.
type cli struct {
	v       *viper.Viper
	cfgFile string
	asJSON  bool

	app     *app.App
	session *session.Session
	out     io.Writer
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:          "lpctl",
		Short:        "Browse the LegalPulse directory and manage registrations",
		Long:         `lpctl searches the legal service provider directory and drives accounts, LSP registrations and admin review against a local store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "config file (default: ./legalpulse.yaml or ~/.legalpulse/legalpulse.yaml)")
	root.PersistentFlags().String("store", "", "store driver: sqlite, memory, postgres or redis")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print results as JSON")
	_ = c.v.BindPFlag("store.driver", root.PersistentFlags().Lookup("store"))

	root.AddCommand(
		c.searchCmd(),
		c.showCmd(),
		c.facetsCmd(),
		c.suggestCmd(),
		c.signupCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.profileCmd(),
		c.registerCmd(),
		c.registrationsCmd(),
		c.adminCmd(),
	)
	return root, c
}

// Close releases the store opened by the pre-run, if any.
func (c *cli) Close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.v, c.cfgFile, func(v *viper.Viper) {
		v.SetDefault("store.driver", config.DriverSQLite)
		v.SetDefault("log.level", "warn")
	})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cfg.Log.Service = "lpctl"
	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	notifier := notify.Fanout{&consoleNotifier{w: cmd.ErrOrStderr()}, notify.NewLogSink(logger)}
	a, err := app.Open(ctx, cfg, logger, notifier)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	sess := a.NewSession("")
	if err := sess.Restore(ctx); err != nil {
		_ = a.Close()
		return err
	}

	c.app = a
	c.session = sess
	c.out = cmd.OutOrStdout()
	return nil
}

// fail reports err through the notification sink before cobra prints it.
func (c *cli) fail(cmd *cobra.Command, title string, err error) error {
	if c.app != nil {
		c.app.Notifier.Notify(cmd.Context(), title, describe(err), notify.SeverityDestructive)
	}
	return err
}

// consoleNotifier prints notifications on stderr.
type consoleNotifier struct {
	w io.Writer
}

func (n *consoleNotifier) Notify(_ context.Context, title, description string, severity notify.Severity) {
	prefix := ""
	if severity == notify.SeverityDestructive {
		prefix = "! "
	}
	fmt.Fprintf(n.w, "%s%s: %s\n", prefix, title, description)
}
