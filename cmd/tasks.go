package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"todo-app/model"
	"todo-app/query"
)

const dueLayout = "2006-01-02"

func newAddCmd(rt *runtime) *cobra.Command {
	var priority, category, due, notes string

	c := &cobra.Command{
		Use:     "add <text>",
		Aliases: []string{"new"},
		Short:   "Add a task",
		Example: `  todo add "Buy milk"
  todo add "Quarterly report" -p high -C work --due 2026-11-30`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := model.ParsePriority(priority)
			if !ok {
				return fmt.Errorf("unknown priority %q", priority)
			}
			draft := model.Draft{Text: strings.Join(args, " "), Priority: p, Notes: notes}
			if due != "" {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				draft.DueDate = &d
			}

			return rt.withSession(cmd, func(s *session) error {
				if category != "" {
					id, err := resolveCategory(s.svc, category)
					if err != nil {
						return err
					}
					draft.CategoryID = id
				}
				task, err := s.svc.Add(draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s\n", shortID(task.ID), task.Text)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&priority, "priority", "p", "", "priority: high, medium or low")
	c.Flags().StringVarP(&category, "category", "C", "", "category id or name")
	c.Flags().StringVar(&due, "due", "", "due date ("+dueLayout+")")
	c.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return c
}

func newListCmd(rt *runtime) *cobra.Command {
	var (
		category, priority, search, format string
		hideCompleted                      bool
	)

	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := query.Criteria{SearchQuery: search, HideCompleted: hideCompleted}
			if priority != "" {
				p, ok := model.ParsePriority(priority)
				if !ok {
					return fmt.Errorf("unknown priority %q", priority)
				}
				criteria.Priority = p
			}

			return rt.withSession(cmd, func(s *session) error {
				if category != "" {
					id, err := resolveCategory(s.svc, category)
					if err != nil {
						return err
					}
					criteria.CategoryID = id
				}
				tasks := s.svc.Filter(criteria)
				switch format {
				case "", "table":
					return printTasks(cmd.OutOrStdout(), s.svc, tasks)
				default:
					state := s.svc.State()
					state.Tasks = tasks
					return exportState(cmd.OutOrStdout(), format, state)
				}
			})
		},
	}
	c.Flags().StringVarP(&category, "category", "C", "", "only tasks in this category (id or name)")
	c.Flags().StringVarP(&priority, "priority", "p", "", "only tasks with this priority")
	c.Flags().StringVarP(&search, "search", "s", "", "case-insensitive text search")
	c.Flags().BoolVar(&hideCompleted, "hide-completed", false, "hide completed tasks")
	c.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, yaml or toml")
	return c
}

func newDoneCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between open and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd, func(s *session) error {
				id, err := resolveTask(s.svc, args[0])
				if err != nil {
					return err
				}
				task, ok := s.svc.ToggleCompletion(id)
				if !ok {
					return fmt.Errorf("%w: %q", ErrTaskNotFound, args[0])
				}
				state := "Reopened"
				if task.Completed {
					state = "Completed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", state, shortID(task.ID), task.Text)
				return nil
			})
		},
	}
}

func newEditCmd(rt *runtime) *cobra.Command {
	var text, priority, category, due, notes string

	c := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a task",
		Example: `  todo edit 0195 --text "Buy oat milk"
  todo edit 0195 --due none`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.Patch
			flags := cmd.Flags()
			if flags.Changed("text") {
				patch.Text = &text
			}
			if flags.Changed("priority") {
				p, ok := model.ParsePriority(priority)
				if !ok {
					return fmt.Errorf("unknown priority %q", priority)
				}
				patch.Priority = &p
			}
			if flags.Changed("notes") {
				patch.Notes = &notes
			}
			if flags.Changed("due") {
				if strings.EqualFold(due, "none") || due == "" {
					patch.ClearDueDate = true
				} else {
					d, err := parseDue(due)
					if err != nil {
						return err
					}
					patch.DueDate = &d
				}
			}
			if patch.Empty() && !flags.Changed("category") {
				return errors.New("nothing to change, pass at least one flag")
			}

			return rt.withSession(cmd, func(s *session) error {
				id, err := resolveTask(s.svc, args[0])
				if err != nil {
					return err
				}
				if flags.Changed("category") {
					catID, err := resolveCategory(s.svc, category)
					if err != nil {
						return err
					}
					patch.CategoryID = &catID
				}
				task, ok := s.svc.Update(id, patch)
				if !ok {
					return errors.New("update rejected: text must not be blank")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", shortID(task.ID), task.Text)
				return nil
			})
		},
	}
	c.Flags().StringVar(&text, "text", "", "new text")
	c.Flags().StringVarP(&priority, "priority", "p", "", "new priority")
	c.Flags().StringVarP(&category, "category", "C", "", "new category id or name")
	c.Flags().StringVar(&due, "due", "", "new due date ("+dueLayout+"), or none")
	c.Flags().StringVar(&notes, "notes", "", "new notes")
	return c
}

func newRmCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete tasks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd, func(s *session) error {
				for _, ref := range args {
					id, err := resolveTask(s.svc, ref)
					if err != nil {
						return err
					}
					s.svc.Delete(id)
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", shortID(id))
				}
				return nil
			})
		},
	}
}

func newClearCmd(rt *runtime) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "clear",
		Short: "Delete every task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all tasks without --yes")
			}
			return rt.withSession(cmd, func(s *session) error {
				n := len(s.svc.Tasks())
				s.svc.ClearAll()
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d tasks\n", n)
				return nil
			})
		},
	}
	c.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deleting all tasks")
	return c
}

func parseDue(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dueLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("due date must look like %s", dueLayout)
	}
	return d, nil
}
