package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"todo-app/model"
)

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}
	if m.svc.IsLoading() {
		return lipgloss.NewStyle().Foreground(m.palette.TextLight).Render("Loading tasks...")
	}

	p := m.palette
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Foreground(p.Primary).Render("todo"),
		lipgloss.NewStyle().Foreground(p.TextLight).Render("  "+m.summary()),
	)

	viewW := m.viewportWidth()
	const paneGap = 1
	outerPaneW := viewW - 2
	if outerPaneW < 20 {
		outerPaneW = viewW
	}
	panelH := m.height - 5
	if panelH < 8 {
		panelH = 8
	}
	innerPaneH := panelH - 2
	if innerPaneH < 6 {
		innerPaneH = 6
	}

	leftW, rightW := m.paneWidths(outerPaneW, paneGap)
	right := m.renderTasksPanel(rightW, innerPaneH)
	if m.showDetails {
		right = m.renderDetailsPanel(rightW, innerPaneH)
	}
	split := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderCategoriesPanel(leftW, innerPaneH),
		lipgloss.NewStyle().Foreground(p.Border).Render("│"),
		right,
	)

	frameColor := p.Border
	if m.mode == modeNormal {
		frameColor = p.Primary
	}
	panes := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frameColor).
		Width(outerPaneW).
		Height(panelH).
		Render(split)

	if m.showHelp {
		popupW := viewW - 8
		if popupW > 80 {
			popupW = 80
		}
		if popupW < 40 {
			popupW = viewW
		}
		panes = lipgloss.Place(viewW, panelH, lipgloss.Center, lipgloss.Center, m.renderHelpOverlay(popupW))
	}

	statusStyle := lipgloss.NewStyle().Foreground(p.Success)
	if m.statusErr {
		statusStyle = lipgloss.NewStyle().Foreground(p.Error)
	}
	hint := "? keys"
	if pending := m.svc.PendingWrites(); pending > 0 {
		hint = fmt.Sprintf("saving %d • ? keys", pending)
	}
	parts := []string{header, panes, m.renderFooter(m.status, statusStyle, hint)}

	if prompt := m.promptLine(); prompt != "" && !m.showHelp {
		parts = append(parts, lipgloss.NewStyle().Foreground(p.Warning).Width(viewW).Render(prompt))
	}
	return strings.Join(parts, "\n")
}

func (m *Model) summary() string {
	parts := []string{"focus: " + m.focus.String()}
	if c, ok := m.selectedCategory(); ok {
		parts = append(parts, "category: "+c.Name)
	}
	if m.criteria.Priority != "" {
		parts = append(parts, "priority: "+string(m.criteria.Priority))
	}
	if m.criteria.HideCompleted {
		parts = append(parts, "open only")
	}
	if q := strings.TrimSpace(m.criteria.SearchQuery); q != "" {
		parts = append(parts, fmt.Sprintf("search: %q", q))
	}
	parts = append(parts, string(m.themeMode))
	return strings.Join(parts, " • ")
}

func (m *Model) promptLine() string {
	switch m.mode {
	case modeAddTask:
		return "New task: " + m.input.View()
	case modeEditTask:
		return "Edit task: " + m.input.View()
	case modeEditNotes:
		return "Notes: " + m.input.View()
	case modeEditDue:
		return "Due date (" + dueDateLayout + ", empty clears): " + m.input.View()
	case modeAddCategory:
		return "New category: " + m.input.View()
	case modeSearch:
		return "Search (/): " + m.input.View() + "  (Enter keeps, Esc clears)"
	case modeConfirmDelete:
		target := "task"
		if m.confirmKind == deleteCategory {
			target = "category"
		}
		return fmt.Sprintf("Delete %s %q? [y/N]", target, m.confirmName)
	case modeConfirmClear:
		return fmt.Sprintf("Delete ALL %d tasks? [y/N]", len(m.svc.Tasks()))
	}
	return ""
}

func (m *Model) viewportWidth() int {
	if m.width <= 0 {
		return 1
	}
	// Keep the last column free; some terminals wrap on it.
	if m.width > 1 {
		return m.width - 1
	}
	return m.width
}

func (m *Model) paneWidths(total, gap int) (int, int) {
	if total <= 0 {
		return 24, 30
	}
	if gap < 0 {
		gap = 0
	}

	minLeft := 20
	minRight := 30
	if total < minLeft+minRight+gap {
		left := total / 3
		if left < 12 {
			left = 12
		}
		right := total - left - gap
		if right < 12 {
			right = 12
			left = total - right - gap
			if left < 10 {
				left = 10
			}
		}
		return left, right
	}

	left := total / 4
	if left < 22 {
		left = 22
	}
	if left > 34 {
		left = 34
	}

	right := total - left - gap
	if right < minRight {
		right = minRight
		left = total - right - gap
	}
	if left < minLeft {
		left = minLeft
		right = total - left - gap
	}

	return left, right
}

func (m *Model) renderFooter(statusText string, statusStyle lipgloss.Style, rightHint string) string {
	left := strings.TrimSpace(statusText)
	right := strings.TrimSpace(rightHint)
	if left == "" {
		left = "Ready"
	}

	leftW := utf8.RuneCountInString(left)
	rightW := utf8.RuneCountInString(right)
	width := m.viewportWidth()

	if leftW+rightW+1 > width {
		maxLeft := width - rightW - 1
		if maxLeft < 8 {
			maxLeft = 8
		}
		left = truncateRunes(left, maxLeft)
		leftW = utf8.RuneCountInString(left)
	}

	padding := width - leftW - rightW
	if padding < 1 {
		padding = 1
	}

	rightStyle := lipgloss.NewStyle().Foreground(m.palette.TextLight)
	line := statusStyle.Render(left) + strings.Repeat(" ", padding) + rightStyle.Render(right)
	return lipgloss.NewStyle().Width(width).Render(line)
}

func (m *Model) renderHelpOverlay(width int) string {
	p := m.palette
	section := lipgloss.NewStyle().Foreground(p.Secondary).Bold(true)
	line := lipgloss.NewStyle().Foreground(p.Text)

	rows := []string{
		lipgloss.NewStyle().Bold(true).Render("Keys"),
		"",
		section.Render("Global"),
		line.Render("  Tab switch pane • j/k move • / search • f priority filter"),
		line.Render("  c hide/show completed • Esc clear filters • T theme • q quit"),
		"",
		section.Render("Categories"),
		line.Render("  Enter show category • a add • d delete"),
		"",
		section.Render("Tasks"),
		line.Render("  a add • e edit • n notes • t due date • p priority • m category"),
		line.Render("  x toggle done • d delete • Enter details"),
		"",
		section.Render("Debug"),
		line.Render("  + add test task • X clear all • R reload"),
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(1, 2)
	return style.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderCategoriesPanel(width, height int) string {
	p := m.palette
	cats := m.svc.Categories()
	counts := make(map[string]int)
	known := make(map[string]bool, len(cats))
	for _, c := range cats {
		known[c.ID] = true
	}
	tasks := m.svc.Tasks()
	for _, t := range tasks {
		id := t.CategoryID
		if !known[id] {
			id = model.Uncategorized.ID
		}
		counts[id]++
	}

	lines := make([]string, 0, len(cats)+2)
	lines = append(lines, m.panelTitleStyled("Categories", m.focus == focusCategories))

	row := func(i int, dot, name string, count int) string {
		cursor := " "
		if i == m.catCursor {
			cursor = "▸"
		}
		line := fmt.Sprintf("%s %s %s (%d)", cursor, dot, truncateRunes(name, width-10), count)
		if i == m.catCursor {
			style := lipgloss.NewStyle().Bold(true)
			if m.focus == focusCategories {
				style = style.Foreground(p.Primary)
			}
			line = style.Render(line)
		}
		return line
	}

	lines = append(lines, row(0, lipgloss.NewStyle().Foreground(p.Icon).Render("◆"), "All", len(tasks)))
	for i, c := range cats {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("●")
		lines = append(lines, row(i+1, dot, c.Name, counts[c.ID]))
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTasksPanel(width, height int) string {
	p := m.palette
	tasks := m.visibleTasks()

	title := "Tasks"
	if c, ok := m.selectedCategory(); ok {
		title = "Tasks • " + c.Name
	}

	lines := make([]string, 0, len(tasks)+2)
	lines = append(lines, m.panelTitleStyled(title, m.focus == focusTasks))

	muted := lipgloss.NewStyle().Foreground(p.TextLight)
	switch {
	case len(tasks) == 0 && len(m.svc.Tasks()) == 0:
		lines = append(lines, muted.Render("No tasks yet. Press 'a' to add one."))
	case len(tasks) == 0:
		lines = append(lines, muted.Render("No tasks match the current filters (Esc clears)."))
	}

	for i, t := range tasks {
		cursor := " "
		if i == m.taskCursor {
			cursor = "▸"
		}
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		pri := lipgloss.NewStyle().Foreground(p.PriorityColor(t.Priority)).Render("●")

		textStyle := lipgloss.NewStyle().Foreground(p.Text)
		if t.Completed {
			textStyle = textStyle.Foreground(p.Completed).Faint(true)
		}
		if i == m.taskCursor {
			textStyle = textStyle.Bold(true)
			if m.focus == focusTasks {
				textStyle = textStyle.Foreground(p.Primary)
			}
		}

		suffix := ""
		if t.DueDate != nil {
			suffix = " " + muted.Render(dueLabel(*t.DueDate, time.Now()))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left,
			cursor+" ",
			check+" ",
			pri+" ",
			textStyle.Render(truncateRunes(t.Text, width-12)),
			suffix,
		))
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderDetailsPanel(width, height int) string {
	task, ok := m.selectedTask()
	if !ok {
		return m.renderTasksPanel(width, height)
	}
	p := m.palette
	label := lipgloss.NewStyle().Foreground(p.TextLight)
	cat := m.svc.CategoryOf(task)

	status := "Open"
	if task.Completed {
		status = "Completed"
	}
	due := "None"
	if task.DueDate != nil {
		due = task.DueDate.Local().Format(dueDateLayout)
	}
	notes := task.Notes
	if strings.TrimSpace(notes) == "" {
		notes = label.Render("No notes")
	}

	lines := []string{
		m.panelTitleStyled("Details", m.focus == focusTasks),
		lipgloss.NewStyle().Bold(true).Foreground(p.Text).Width(width).Render(task.Text),
		"",
		label.Render("Status:   ") + status,
		label.Render("Priority: ") + lipgloss.NewStyle().Foreground(p.PriorityColor(task.Priority)).Render(priorityLabel(task.Priority)),
		label.Render("Category: ") + lipgloss.NewStyle().Foreground(lipgloss.Color(cat.Color)).Render(cat.Name),
		label.Render("Due:      ") + due,
		label.Render("Created:  ") + task.CreatedAt.Local().Format("2006-01-02 15:04"),
		"",
		label.Render("Notes"),
		lipgloss.NewStyle().Width(width).Render(notes),
	}
	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) panelTitleStyled(title string, active bool) string {
	base := lipgloss.NewStyle().Bold(true)
	if !active {
		return base.Render(title)
	}
	text := base.Foreground(m.palette.Primary).Render(title)
	marker := lipgloss.NewStyle().Bold(true).Foreground(m.palette.Success).Render("*")
	return lipgloss.JoinHorizontal(lipgloss.Left, text, " ", marker)
}

// dueLabel describes due relative to now, e.g. "due 3 days from now".
func dueLabel(due, now time.Time) string {
	return "due " + humanize.RelTime(due, now, "ago", "from now")
}
