package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"todo-app/app"
	"todo-app/model"
	"todo-app/query"
	"todo-app/store"
	"todo-app/theme"
)

type focusPane int

const (
	focusCategories focusPane = iota
	focusTasks
)

func (f focusPane) String() string {
	if f == focusTasks {
		return "tasks"
	}
	return "categories"
}

type uiMode int

const (
	modeNormal uiMode = iota
	modeAddTask
	modeEditTask
	modeEditNotes
	modeEditDue
	modeAddCategory
	modeSearch
	modeConfirmDelete
	modeConfirmClear
)

type deleteKind int

const (
	deleteNone deleteKind = iota
	deleteTask
	deleteCategory
)

const dueDateLayout = "2006-01-02"

// StoreChangedMsg tells the model the store was reloaded behind its back,
// e.g. after an external edit picked up by the watcher.
type StoreChangedMsg struct{}

type loadedMsg struct {
	err     error
	initial bool
}

// Options configure a Model.
type Options struct {
	// Settings is where the theme preference is kept. Nil disables saving.
	Settings store.Gateway
	Theme    theme.Mode
	Status   string
	Logger   logrus.FieldLogger
}

type Model struct {
	svc      *app.Service
	settings store.Gateway
	log      logrus.FieldLogger

	themeMode theme.Mode
	palette   theme.Palette

	focus      focusPane
	mode       uiMode
	catCursor  int
	taskCursor int
	input      textinput.Model
	criteria   query.Criteria

	confirmKind deleteKind
	confirmID   string
	confirmName string

	showDetails bool
	showHelp    bool
	testTasks   int

	status    string
	statusErr bool

	width  int
	height int
}

func NewModel(svc *app.Service, opts Options) *Model {
	status := strings.TrimSpace(opts.Status)
	if status == "" {
		status = "Ready"
	}
	mode := opts.Theme
	if _, ok := theme.ParseMode(string(mode)); !ok {
		mode = theme.DefaultMode
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 500

	m := &Model{
		svc:       svc,
		settings:  opts.Settings,
		log:       logger,
		themeMode: mode,
		palette:   theme.PaletteFor(mode),
		focus:     focusTasks,
		mode:      modeNormal,
		input:     ti,
		status:    status,
	}
	m.ensureSelection()
	return m
}

// Init loads the store when it has not been loaded yet.
func (m *Model) Init() tea.Cmd {
	if m.svc.Status() != app.StatusUninitialized {
		return nil
	}
	return m.load(true)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StoreChangedMsg:
		m.ensureSelection()
		m.setStatus("Reloaded after external change", false)
	case loadedMsg:
		if msg.err != nil {
			m.setStatus("Load failed: "+msg.err.Error(), true)
			break
		}
		m.ensureSelection()
		verb := "Reloaded"
		if msg.initial {
			verb = "Loaded"
		}
		m.setStatus(fmt.Sprintf("%s %d tasks", verb, len(m.svc.Tasks())), false)
	case tea.KeyMsg:
		switch m.mode {
		case modeAddTask, modeEditTask, modeEditNotes, modeEditDue, modeAddCategory, modeSearch:
			return m, m.updateInputMode(msg)
		case modeConfirmDelete, modeConfirmClear:
			m.updateConfirmMode(msg)
		default:
			return m.updateNormalMode(msg)
		}
	}
	return m, nil
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.svc.IsLoading() {
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		m.setStatus("Still loading...", false)
		return m, nil
	}

	var cmd tea.Cmd
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.focus == focusCategories {
			m.focus = focusTasks
		} else {
			m.focus = focusCategories
		}
		m.setStatus("Focus on "+m.focus.String(), false)
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "enter":
		m.handleEnter()
	case "a":
		m.startAdd()
	case "e":
		m.startEdit(modeEditTask)
	case "n":
		m.startEdit(modeEditNotes)
	case "t":
		m.startEdit(modeEditDue)
	case "x", " ":
		m.toggleCompletion()
	case "p":
		m.cyclePriority()
	case "m":
		m.cycleCategory()
	case "d":
		m.startDeleteConfirm()
	case "f":
		m.cyclePriorityFilter()
	case "c":
		m.criteria.HideCompleted = !m.criteria.HideCompleted
		m.taskCursor = 0
		if m.criteria.HideCompleted {
			m.setStatus("Hiding completed tasks", false)
		} else {
			m.setStatus("Showing completed tasks", false)
		}
	case "/":
		m.mode = modeSearch
		m.beginInput(m.criteria.SearchQuery)
		m.setStatus("Search: type to filter", false)
	case "T":
		m.toggleTheme()
	case "R":
		m.setStatus("Reloading...", false)
		cmd = m.load(false)
	case "X":
		if len(m.svc.Tasks()) == 0 {
			m.setStatus("Nothing to clear", false)
			break
		}
		m.mode = modeConfirmClear
	case "+":
		m.addTestTask()
	case "?":
		m.showHelp = !m.showHelp
	case "esc":
		if m.showHelp {
			m.showHelp = false
			break
		}
		if m.showDetails {
			m.showDetails = false
			break
		}
		if m.criteria.Active() {
			m.criteria = query.Criteria{}
			m.catCursor = 0
			m.taskCursor = 0
			m.setStatus("Filters cleared", false)
		}
	}

	m.ensureSelection()
	return m, cmd
}

func (m *Model) updateInputMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.mode == modeSearch {
			m.criteria.SearchQuery = ""
			m.taskCursor = 0
			m.setStatus("Search cleared", false)
		} else {
			m.setStatus("Cancelled", false)
		}
		m.endInput()
		return nil
	case "enter":
		m.applyInput()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeSearch {
		m.criteria.SearchQuery = m.input.Value()
		m.taskCursor = 0
		m.ensureSelection()
	}
	return cmd
}

func (m *Model) updateConfirmMode(msg tea.KeyMsg) {
	switch strings.ToLower(msg.String()) {
	case "y":
		if m.mode == modeConfirmClear {
			m.confirmClear()
			return
		}
		m.confirmDelete()
	case "n", "esc", "enter":
		m.confirmKind = deleteNone
		m.confirmID = ""
		m.confirmName = ""
		m.mode = modeNormal
		m.setStatus("Cancelled", false)
	}
}

func (m *Model) beginInput(value string) {
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) endInput() {
	m.mode = modeNormal
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) applyInput() {
	text := strings.TrimSpace(m.input.Value())
	switch m.mode {
	case modeAddTask:
		draft := model.Draft{Text: text}
		if c, ok := m.selectedCategory(); ok {
			draft.CategoryID = c.ID
		}
		task, err := m.svc.Add(draft)
		if err != nil {
			m.setStatus(inputError("Could not add task", err), true)
			return
		}
		m.endInput()
		m.taskCursor = m.indexOfTask(task.ID)
		m.commit("Task added")
	case modeEditTask:
		task, ok := m.selectedTask()
		if !ok {
			m.endInput()
			m.setStatus("No task selected", true)
			return
		}
		if _, ok := m.svc.Update(task.ID, model.Patch{Text: &text}); !ok {
			m.setStatus("Task text cannot be empty", true)
			return
		}
		m.endInput()
		m.commit("Task updated")
	case modeEditNotes:
		task, ok := m.selectedTask()
		if !ok {
			m.endInput()
			m.setStatus("No task selected", true)
			return
		}
		notes := m.input.Value()
		m.svc.Update(task.ID, model.Patch{Notes: &notes})
		m.endInput()
		m.commit("Notes saved")
	case modeEditDue:
		task, ok := m.selectedTask()
		if !ok {
			m.endInput()
			m.setStatus("No task selected", true)
			return
		}
		patch, err := duePatch(text)
		if err != nil {
			m.setStatus(err.Error(), true)
			return
		}
		m.svc.Update(task.ID, patch)
		m.endInput()
		if patch.ClearDueDate {
			m.commit("Due date cleared")
		} else {
			m.commit("Due date set")
		}
	case modeAddCategory:
		c, err := m.svc.AddCategory(model.CategoryDraft{Name: text, Color: nextCategoryColor(len(m.svc.Categories()))})
		if err != nil {
			m.setStatus(inputError("Could not add category", err), true)
			return
		}
		m.endInput()
		m.catCursor = m.indexOfCategory(c.ID) + 1
		m.commit("Category added")
	case modeSearch:
		m.criteria.SearchQuery = text
		m.endInput()
		m.taskCursor = 0
		if text == "" {
			m.setStatus("Search cleared", false)
			return
		}
		m.setStatus("Search applied", false)
	}
}

func (m *Model) moveCursor(delta int) {
	if m.focus == focusCategories {
		old := m.catCursor
		m.catCursor = clamp(m.catCursor+delta, 0, len(m.svc.Categories()))
		if m.catCursor != old {
			m.taskCursor = 0
		}
		return
	}
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		return
	}
	m.taskCursor = clamp(m.taskCursor+delta, 0, len(tasks)-1)
}

func (m *Model) handleEnter() {
	if m.focus == focusTasks {
		if _, ok := m.selectedTask(); ok {
			m.showDetails = !m.showDetails
		}
		return
	}
	m.taskCursor = 0
	m.focus = focusTasks
	if c, ok := m.selectedCategory(); ok {
		m.setStatus("Category: "+c.Name, false)
		return
	}
	m.setStatus("All categories", false)
}

func (m *Model) startAdd() {
	if m.focus == focusCategories {
		m.mode = modeAddCategory
		m.beginInput("")
		return
	}
	m.mode = modeAddTask
	m.beginInput("")
}

func (m *Model) startEdit(mode uiMode) {
	if m.focus != focusTasks {
		m.setStatus("Switch focus to tasks (Tab) to edit", false)
		return
	}
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	m.mode = mode
	switch mode {
	case modeEditNotes:
		m.beginInput(task.Notes)
	case modeEditDue:
		due := ""
		if task.DueDate != nil {
			due = task.DueDate.Local().Format(dueDateLayout)
		}
		m.beginInput(due)
	default:
		m.beginInput(task.Text)
	}
}

func (m *Model) toggleCompletion() {
	task, ok := m.selectedTask()
	if !ok || m.focus != focusTasks {
		m.setStatus("No task selected", true)
		return
	}
	updated, ok := m.svc.ToggleCompletion(task.ID)
	if !ok {
		m.setStatus("Task no longer exists", true)
		return
	}
	if updated.Completed {
		m.commit("Task completed")
	} else {
		m.commit("Task reopened")
	}
}

func (m *Model) cyclePriority() {
	task, ok := m.selectedTask()
	if !ok || m.focus != focusTasks {
		m.setStatus("No task selected", true)
		return
	}
	next := nextPriority(task.Priority)
	if _, ok := m.svc.Update(task.ID, model.Patch{Priority: &next}); !ok {
		m.setStatus("Task no longer exists", true)
		return
	}
	m.commit("Priority: " + priorityLabel(next))
}

func (m *Model) cycleCategory() {
	task, ok := m.selectedTask()
	if !ok || m.focus != focusTasks {
		m.setStatus("No task selected", true)
		return
	}
	cats := m.svc.Categories()
	if len(cats) == 0 {
		return
	}
	next := cats[(m.indexOfCategory(task.CategoryID)+1)%len(cats)]
	if _, ok := m.svc.Update(task.ID, model.Patch{CategoryID: &next.ID}); !ok {
		m.setStatus("Task no longer exists", true)
		return
	}
	m.commit("Moved to " + next.Name)
}

func (m *Model) cyclePriorityFilter() {
	switch m.criteria.Priority {
	case "":
		m.criteria.Priority = model.PriorityHigh
	case model.PriorityHigh:
		m.criteria.Priority = model.PriorityMedium
	case model.PriorityMedium:
		m.criteria.Priority = model.PriorityLow
	default:
		m.criteria.Priority = ""
	}
	m.taskCursor = 0
	m.setStatus("Priority filter: "+priorityFilterLabel(m.criteria.Priority), false)
}

func (m *Model) startDeleteConfirm() {
	if m.focus == focusCategories {
		c, ok := m.selectedCategory()
		if !ok {
			m.setStatus("Select a category to delete", false)
			return
		}
		if c.ID == model.Uncategorized.ID {
			m.setStatus(c.Name+" cannot be deleted", true)
			return
		}
		m.confirmKind = deleteCategory
		m.confirmID = c.ID
		m.confirmName = c.Name
		m.mode = modeConfirmDelete
		return
	}
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	m.confirmKind = deleteTask
	m.confirmID = task.ID
	m.confirmName = task.Text
	m.mode = modeConfirmDelete
}

func (m *Model) confirmDelete() {
	kind, id := m.confirmKind, m.confirmID
	m.confirmKind = deleteNone
	m.confirmID = ""
	m.confirmName = ""
	m.mode = modeNormal

	switch kind {
	case deleteTask:
		if !m.svc.Delete(id) {
			m.setStatus("Task no longer exists", true)
			return
		}
		m.showDetails = false
		m.commit("Task deleted")
	case deleteCategory:
		if !m.svc.DeleteCategory(id) {
			m.setStatus("Category no longer exists", true)
			return
		}
		m.commit("Category deleted")
	}
}

func (m *Model) confirmClear() {
	m.mode = modeNormal
	if !m.svc.ClearAll() {
		m.setStatus("Store is not ready", true)
		return
	}
	m.taskCursor = 0
	m.showDetails = false
	m.commit("All tasks cleared")
}

func (m *Model) addTestTask() {
	m.testTasks++
	priority := model.Priorities[m.testTasks%len(model.Priorities)]
	task, err := m.svc.Add(model.Draft{
		Text:     fmt.Sprintf("Test task %d", m.testTasks),
		Priority: priority,
	})
	if err != nil {
		m.setStatus("Could not add test task: "+err.Error(), true)
		return
	}
	m.taskCursor = m.indexOfTask(task.ID)
	m.commit("Test task added")
}

func (m *Model) toggleTheme() {
	next := m.themeMode.Toggle()
	if m.settings != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var err error
		if next, err = theme.Toggle(ctx, m.settings, m.themeMode); err != nil {
			m.log.WithError(err).Warn("save theme mode")
			m.setStatus("Theme changed but not saved: "+err.Error(), true)
		}
	}
	m.themeMode = next
	m.palette = theme.PaletteFor(next)
	if !m.statusErr {
		m.setStatus(titleCase(string(next))+" theme", false)
	}
}

func (m *Model) load(initial bool) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if initial {
			return loadedMsg{err: svc.Load(ctx), initial: true}
		}
		return loadedMsg{err: svc.Reload(ctx)}
	}
}

func (m *Model) commit(success string) {
	m.ensureSelection()
	m.setStatus(success, false)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) ensureSelection() {
	m.catCursor = clamp(m.catCursor, 0, len(m.svc.Categories()))
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		m.taskCursor = 0
		m.showDetails = false
		return
	}
	m.taskCursor = clamp(m.taskCursor, 0, len(tasks)-1)
}

// selectedCategory returns the category the task list is narrowed to. The
// first row of the categories pane means all categories.
func (m *Model) selectedCategory() (model.Category, bool) {
	if m.catCursor <= 0 {
		return model.Category{}, false
	}
	cats := m.svc.Categories()
	if m.catCursor > len(cats) {
		return model.Category{}, false
	}
	return cats[m.catCursor-1], true
}

func (m *Model) currentCriteria() query.Criteria {
	c := m.criteria
	if cat, ok := m.selectedCategory(); ok {
		c.CategoryID = cat.ID
	}
	return c
}

func (m *Model) visibleTasks() []model.Task {
	return m.svc.Filter(m.currentCriteria())
}

func (m *Model) selectedTask() (model.Task, bool) {
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		return model.Task{}, false
	}
	if m.taskCursor < 0 || m.taskCursor >= len(tasks) {
		m.taskCursor = 0
	}
	return tasks[m.taskCursor], true
}

func (m *Model) indexOfTask(id string) int {
	for i, t := range m.visibleTasks() {
		if t.ID == id {
			return i
		}
	}
	return 0
}

func (m *Model) indexOfCategory(id string) int {
	for i, c := range m.svc.Categories() {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func duePatch(text string) (model.Patch, error) {
	if text == "" {
		return model.Patch{ClearDueDate: true}, nil
	}
	due, err := time.ParseInLocation(dueDateLayout, text, time.Local)
	if err != nil {
		return model.Patch{}, fmt.Errorf("due date must look like %s", dueDateLayout)
	}
	return model.Patch{DueDate: &due}, nil
}

func inputError(prefix string, err error) string {
	if errors.Is(err, app.ErrNotReady) {
		return prefix + ": still loading"
	}
	return prefix + ": " + err.Error()
}

func nextPriority(p model.Priority) model.Priority {
	for i, candidate := range model.Priorities {
		if candidate == p {
			return model.Priorities[(i+1)%len(model.Priorities)]
		}
	}
	return model.PriorityMedium
}

var categoryColors = []string{"#4A6FFF", "#FF4D4F", "#FAAD14", "#52C41A", "#5856D6", "#5AC8FA"}

func nextCategoryColor(n int) string {
	return categoryColors[n%len(categoryColors)]
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func priorityLabel(p model.Priority) string {
	if !p.Valid() {
		return "None"
	}
	return titleCase(string(p))
}

func priorityFilterLabel(p model.Priority) string {
	if p == "" {
		return "all"
	}
	return string(p)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
