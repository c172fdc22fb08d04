package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"todo-app/model"
	"todo-app/query"
	"todo-app/store"
)

var (
	ErrInvalidTask     = errors.New("task text must not be empty")
	ErrInvalidCategory = errors.New("category name must not be empty")
	ErrNotReady        = errors.New("task store is not ready")
	ErrClosed          = errors.New("task store is closed")
)

// Status is the lifecycle state of a Service.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusReady
	StatusDisposed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how task and category ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Service is the task store: the only writer of the task and category
// collections. Mutations apply to memory synchronously and are persisted
// through an ordered queue without waiting for the gateway.
type Service struct {
	gw       store.Gateway
	log      logrus.FieldLogger
	now      func() time.Time
	newID    func() string
	validate *validator.Validate
	queue    *writeQueue

	mu         sync.Mutex
	status     Status
	tasks      []model.Task
	categories []model.Category
	issued     map[string]struct{}
	lastLoad   uint64
	onChange   func()
}

// New creates a store writing through gw. It starts Uninitialized; call Load
// before issuing mutations and Close when done.
func New(gw store.Gateway, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Service{
		gw:         gw,
		log:        discard,
		now:        time.Now,
		newID:      newID,
		validate:   validator.New(),
		status:     StatusUninitialized,
		tasks:      []model.Task{},
		categories: model.DefaultCategories(),
		issued:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = newWriteQueue(s.process)
	return s
}

// OnChange registers fn to be called after a load replaces the collections.
// It runs on the persistence goroutine.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load reads the collections from the gateway. It never fails on missing or
// corrupt data: the store ends up Ready with whatever could be read. The
// returned error is only set when ctx ends first or the store is closed.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusDisposed {
		s.mu.Unlock()
		return ErrClosed
	}
	done := make(chan struct{})
	o, ok := s.queue.push(op{kind: opLoad, done: done})
	if !ok {
		s.mu.Unlock()
		return ErrClosed
	}
	s.status = StatusLoading
	s.lastLoad = o.seq
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload discards in-memory state and loads again. Writes issued before the
// call are applied to the gateway first.
func (s *Service) Reload(ctx context.Context) error {
	s.log.Debug("reload requested")
	return s.Load(ctx)
}

// Flush waits until every write issued before the call has been attempted.
func (s *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if _, ok := s.queue.push(op{kind: opBarrier, done: done}); !ok {
		select {
		case <-s.queue.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further mutations, drains queued writes and stops the
// persistence goroutine.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.status = StatusDisposed
	s.mu.Unlock()

	s.queue.close()
	select {
	case <-s.queue.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current lifecycle state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsLoading reports whether a load is in progress or has not happened yet.
func (s *Service) IsLoading() bool {
	st := s.Status()
	return st == StatusUninitialized || st == StatusLoading
}

// PendingWrites returns how many persistence ops are queued.
func (s *Service) PendingWrites() int {
	return s.queue.len()
}

// Tasks returns the collection newest-first as a copy.
func (s *Service) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTasks(s.tasks)
}

// Categories returns the category set as a copy.
func (s *Service) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// State returns a copy of both collections.
func (s *Service) State() model.State {
	return model.State{Tasks: s.Tasks(), Categories: s.Categories()}
}

// Task returns the task with id.
func (s *Service) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfTask(id)
	if i < 0 {
		return model.Task{}, false
	}
	return copyTask(s.tasks[i]), true
}

// Category returns the category with id.
func (s *Service) Category(id string) (model.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfCategory(id)
	if i < 0 {
		return model.Category{}, false
	}
	return s.categories[i], true
}

// CategoryOf resolves the category a task references, falling back to
// model.Uncategorized for dangling references.
func (s *Service) CategoryOf(t model.Task) model.Category {
	if c, ok := s.Category(t.CategoryID); ok {
		return c
	}
	return model.Uncategorized
}

// Filter applies c to the current collection.
func (s *Service) Filter(c query.Criteria) []model.Task {
	return query.Filter(s.Tasks(), c)
}

// Add creates a task from d and puts it at the front of the collection.
func (s *Service) Add(d model.Draft) (model.Task, error) {
	d.Text = strings.TrimSpace(d.Text)
	d.CategoryID = strings.TrimSpace(d.CategoryID)
	if d.Text == "" {
		return model.Task{}, ErrInvalidTask
	}
	if err := s.validate.Struct(d); err != nil {
		return model.Task{}, fmt.Errorf("%w: %s", ErrInvalidTask, validationMessage(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return model.Task{}, ErrNotReady
	}

	task := model.Task{
		ID:         s.uniqueID(),
		Text:       d.Text,
		Completed:  false,
		Priority:   d.Priority,
		CategoryID: d.CategoryID,
		Notes:      d.Notes,
		CreatedAt:  s.now().UTC(),
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if task.CategoryID == "" {
		task.CategoryID = model.Uncategorized.ID
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		task.DueDate = &due
	}

	s.tasks = append([]model.Task{task}, s.tasks...)
	s.persistTasksLocked()
	return copyTask(task), nil
}

// Update merges p onto the task with id, keeping its id, createdAt and
// position. It reports false, changing nothing, when the task is missing or
// the patch is invalid.
func (s *Service) Update(id string, p model.Patch) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return model.Task{}, false
	}
	i := s.indexOfTask(id)
	if i < 0 {
		return model.Task{}, false
	}
	if p.Empty() {
		return copyTask(s.tasks[i]), true
	}

	t := copyTask(s.tasks[i])
	if p.Text != nil {
		text := strings.TrimSpace(*p.Text)
		if text == "" {
			s.log.WithField("id", id).Debug("rejecting update with blank text")
			return model.Task{}, false
		}
		t.Text = text
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			s.log.WithFields(logrus.Fields{"id": id, "priority": *p.Priority}).Debug("rejecting update with unknown priority")
			return model.Task{}, false
		}
		t.Priority = *p.Priority
	}
	if p.CategoryID != nil {
		t.CategoryID = strings.TrimSpace(*p.CategoryID)
		if t.CategoryID == "" {
			t.CategoryID = model.Uncategorized.ID
		}
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := p.DueDate.UTC()
		t.DueDate = &due
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}

	s.tasks[i] = t
	s.persistTasksLocked()
	return copyTask(t), true
}

// Delete removes the task with id. It reports whether a task was removed.
func (s *Service) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return false
	}
	i := s.indexOfTask(id)
	if i < 0 {
		return false
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.persistTasksLocked()
	return true
}

// ToggleCompletion flips the completed flag of the task with id.
func (s *Service) ToggleCompletion(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return model.Task{}, false
	}
	i := s.indexOfTask(id)
	if i < 0 {
		return model.Task{}, false
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	s.persistTasksLocked()
	return copyTask(s.tasks[i]), true
}

// AddCategory appends a new category built from d.
func (s *Service) AddCategory(d model.CategoryDraft) (model.Category, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Color = strings.TrimSpace(d.Color)
	if d.Name == "" {
		return model.Category{}, ErrInvalidCategory
	}
	if err := s.validate.Struct(d); err != nil {
		return model.Category{}, fmt.Errorf("%w: %s", ErrInvalidCategory, validationMessage(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return model.Category{}, ErrNotReady
	}

	c := model.Category{
		ID:    s.uniqueID(),
		Name:  d.Name,
		Color: d.Color,
	}
	if c.Color == "" {
		c.Color = model.Uncategorized.Color
	}
	s.categories = append(s.categories, c)
	s.persistCategoriesLocked()
	return c, nil
}

// DeleteCategory removes the category with id. Tasks referencing it are left
// alone and resolve to model.Uncategorized. The sentinel itself cannot be
// deleted.
func (s *Service) DeleteCategory(id string) bool {
	if id == model.Uncategorized.ID {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return false
	}
	i := s.indexOfCategory(id)
	if i < 0 {
		return false
	}
	s.categories = append(s.categories[:i:i], s.categories[i+1:]...)
	s.persistCategoriesLocked()
	return true
}

// ClearAll empties the task collection and removes the persisted blob.
func (s *Service) ClearAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return false
	}
	s.tasks = []model.Task{}
	s.enqueueLocked(op{kind: opRemove, key: store.KeyTasks})
	return true
}

func (s *Service) persistTasksLocked() {
	blob, err := store.EncodeTasks(s.tasks)
	if err != nil {
		s.log.WithError(err).Error("encode tasks")
		return
	}
	s.enqueueLocked(op{kind: opSet, key: store.KeyTasks, value: blob})
}

func (s *Service) persistCategoriesLocked() {
	blob, err := store.EncodeCategories(s.categories)
	if err != nil {
		s.log.WithError(err).Error("encode categories")
		return
	}
	s.enqueueLocked(op{kind: opSet, key: store.KeyCategories, value: blob})
}

func (s *Service) enqueueLocked(o op) {
	if _, ok := s.queue.push(o); !ok {
		s.log.WithField("key", o.key).Warn("persistence queue closed, dropping write")
	}
}

// process runs on the queue goroutine.
func (s *Service) process(o op) {
	ctx := context.Background()
	entry := s.log.WithFields(logrus.Fields{"seq": o.seq, "op": o.kind.String()})
	switch o.kind {
	case opSet:
		if err := s.gw.Set(ctx, o.key, o.value); err != nil {
			entry.WithField("key", o.key).WithError(err).Error("persist failed")
			return
		}
		entry.WithField("key", o.key).Debug("persisted")
	case opRemove:
		if err := s.gw.Remove(ctx, o.key); err != nil {
			entry.WithField("key", o.key).WithError(err).Error("remove failed")
			return
		}
		entry.WithField("key", o.key).Debug("removed")
	case opLoad:
		s.load(ctx, o.seq, entry)
	case opBarrier:
	}
}

func (s *Service) load(ctx context.Context, seq uint64, entry *logrus.Entry) {
	tasks := []model.Task{}
	categories := model.DefaultCategories()

	if blob, ok, err := s.gw.Get(ctx, store.KeyTasks); err != nil {
		entry.WithError(err).Warn("read tasks failed, starting empty")
	} else if ok {
		decoded, err := store.DecodeTasks(blob)
		if err != nil {
			entry.WithError(err).Warn("stored tasks are corrupt, starting empty")
		} else {
			tasks = decoded
		}
	}

	if blob, ok, err := s.gw.Get(ctx, store.KeyCategories); err != nil {
		entry.WithError(err).Warn("read categories failed, using defaults")
	} else if ok {
		decoded, err := store.DecodeCategories(blob)
		if err != nil {
			entry.WithError(err).Warn("stored categories are corrupt, using defaults")
		} else {
			categories = decoded
		}
	}

	s.mu.Lock()
	if s.status == StatusDisposed {
		s.mu.Unlock()
		return
	}
	if seq != s.lastLoad {
		s.mu.Unlock()
		entry.WithField("latest", s.lastLoadSeq()).Debug("discarding stale load")
		return
	}
	s.tasks = tasks
	s.categories = categories
	for _, t := range tasks {
		s.issued[t.ID] = struct{}{}
	}
	for _, c := range categories {
		s.issued[c.ID] = struct{}{}
	}
	s.status = StatusReady
	notify := s.onChange
	s.mu.Unlock()

	entry.WithFields(logrus.Fields{"tasks": len(tasks), "categories": len(categories)}).Debug("loaded")
	if notify != nil {
		notify()
	}
}

func (s *Service) lastLoadSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoad
}

func (s *Service) indexOfTask(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) indexOfCategory(id string) int {
	for i := range s.categories {
		if s.categories[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueID returns an id never handed out in this session nor present in
// the loaded collections.
func (s *Service) uniqueID() string {
	candidate := s.newID()
	id := candidate
	for n := 2; ; n++ {
		if _, taken := s.issued[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s-%d", candidate, n)
	}
	s.issued[id] = struct{}{}
	return id
}

// newID returns a time-ordered UUIDv7, falling back to a random v4 when the
// clock-based generator fails.
func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s' (value: '%v')", e.Field(), e.Tag(), e.Value()))
	}
	return strings.Join(msgs, "; ")
}

func copyTask(t model.Task) model.Task {
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}

func copyTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		out[i] = copyTask(t)
	}
	return out
}
