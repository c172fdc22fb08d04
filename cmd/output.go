package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"todo-app/app"
	"todo-app/model"
)

const shortIDLen = 8

// shortID returns the tail of id. Ids are time-ordered, so their leading
// characters are shared by tasks created close together.
func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func printTasks(w io.Writer, svc *app.Service, tasks []model.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Done", "Priority", "Category", "Due", "Text"})
	for _, task := range tasks {
		done := "[ ]"
		if task.Completed {
			done = "[x]"
		}
		due := "-"
		if task.DueDate != nil {
			due = task.DueDate.Local().Format(dueLayout)
		}
		t.AppendRow(table.Row{shortID(task.ID), done, task.Priority, svc.CategoryOf(task).Name, due, task.Text})
	}
	t.Render()
	return nil
}
