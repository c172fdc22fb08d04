package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"todo-app/model"
	"todo-app/store"
)

func newExportCmd(rt *runtime) *cobra.Command {
	var format, output string
	c := &cobra.Command{
		Use:   "export",
		Short: "Write all tasks and categories as JSON, YAML or TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd, func(s *session) error {
				if output == "" || output == "-" {
					return exportState(cmd.OutOrStdout(), format, s.svc.State())
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := exportState(f, format, s.svc.State()); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	c.Flags().StringVarP(&format, "format", "f", store.FormatJSON, "json, yaml or toml")
	c.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return c
}

func exportState(w io.Writer, format string, state model.State) error {
	if err := store.Export(w, format, state); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
