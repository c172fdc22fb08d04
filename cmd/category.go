package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"todo-app/model"
)

func newCategoryCmd(rt *runtime) *cobra.Command {
	c := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage categories",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd, func(s *session) error {
				counts := make(map[string]int)
				for _, t := range s.svc.Tasks() {
					counts[s.svc.CategoryOf(t).ID]++
				}
				t := newTable(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"ID", "Name", "Color", "Tasks"})
				for _, cat := range s.svc.Categories() {
					t.AppendRow(table.Row{cat.ID, cat.Name, cat.Color, counts[cat.ID]})
				}
				t.Render()
				return nil
			})
		},
	}

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd, func(s *session) error {
				cat, err := s.svc.AddCategory(model.CategoryDraft{Name: args[0], Color: color})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added category %s %s\n", cat.ID, cat.Name)
				return nil
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "hex color, e.g. #52C41A")

	rm := &cobra.Command{
		Use:   "rm <id|name>",
		Short: "Delete a category; its tasks fall back to Uncategorized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd, func(s *session) error {
				id, err := resolveCategory(s.svc, args[0])
				if err != nil {
					return err
				}
				if !s.svc.DeleteCategory(id) {
					return fmt.Errorf("category %q cannot be deleted", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", id)
				return nil
			})
		},
	}

	c.AddCommand(list, add, rm)
	return c
}
