package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qissati/internal/usecase/settings"
)

func (c *cli) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the endpoint and admin password (admin)",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireAdmin(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "endpoint: %s\n", c.engine.Settings.EndpointURL())
			return nil
		},
	}

	var u settings.Update
	set := &cobra.Command{
		Use:   "set",
		Short: "Save a new endpoint and/or admin password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireAdmin(); err != nil {
				return err
			}
			u.CurrentPassword = c.password
			if err := c.engine.Settings.Update(c.ctx, u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), settings.MsgSaved)
			return nil
		},
	}
	set.Flags().StringVar(&u.EndpointURL, "url", "", "New sheet endpoint")
	set.Flags().StringVar(&u.NewPassword, "new-password", "", "New admin password")
	set.Flags().StringVar(&u.ConfirmPassword, "confirm-password", "", "Repeat the new admin password")

	cmd.AddCommand(show, set)
	return cmd
}
