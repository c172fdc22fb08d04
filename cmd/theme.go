package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"todo-app/theme"
)

func newThemeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the UI theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, closeGW, err := rt.cfg.OpenGateway()
			if err != nil {
				return err
			}
			defer func() { _ = closeGW() }()

			ctx := cmd.Context()
			current, err := theme.Load(ctx, gw, theme.DefaultMode)
			if err != nil {
				rt.log.WithError(err).Warn("reading theme preference")
			}
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), current)
				return nil
			}

			next := current.Toggle()
			if args[0] != "toggle" {
				m, ok := theme.ParseMode(args[0])
				if !ok {
					return fmt.Errorf("unknown theme %q", args[0])
				}
				next = m
			}
			if err := theme.Save(ctx, gw, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
}
