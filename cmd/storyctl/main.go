package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"qissati/internal/app"
	"qissati/internal/domain"
	"qissati/internal/infra/config"
)

var errNotAdmin = fmt.Errorf("%w (use --password)", domain.ErrUnauthorized)

// cli holds the state shared by every subcommand of one invocation.
type cli struct {
	password string
	verbose  bool
	timeout  time.Duration

	engine *app.App
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "storyctl",
		Short: "Manage the story of the day from the terminal",
		Long: `storyctl talks to the classroom spreadsheet directly.

Reading stories and submitting answers is open to everyone.
Changing stories, reading responses and editing settings need --password.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
	}
	root.PersistentFlags().StringVarP(&c.password, "password", "p", "", "Admin password for protected commands")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log engine activity to stderr")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 2*time.Minute, "Overall operation timeout")

	root.AddCommand(
		c.statusCmd(),
		c.storiesCmd(),
		c.todayCmd(),
		c.answerCmd(),
		c.responsesCmd(),
		c.chatCmd(),
		c.settingsCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.ctx, c.cancel = context.WithTimeout(cmd.Context(), c.timeout)

	level := zerolog.WarnLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(level)

	c.engine, err = app.New(c.ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := c.engine.Store.Refresh(c.ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not load the sheet: %v\n", err)
	}
	return nil
}

func (c *cli) close() error {
	if c.cancel != nil {
		defer c.cancel()
	}
	if c.engine == nil {
		return nil
	}
	return c.engine.Close()
}

func (c *cli) requireAdmin() error {
	if !c.engine.Settings.Authenticate(c.password) {
		return errNotAdmin
	}
	return nil
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the connection status and collection sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "endpoint:  %s\n", c.engine.Settings.EndpointURL())
			fmt.Fprintf(out, "status:    %s\n", c.engine.Store.Status())
			fmt.Fprintf(out, "stories:   %d\n", len(c.engine.Store.Stories()))
			fmt.Fprintf(out, "responses: %d\n", len(c.engine.Store.Responses()))
			return nil
		},
	}
}

func writeLines(w io.Writer, lines ...string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
