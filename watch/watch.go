// Package watch reloads the task store when its data directory is edited by
// another process.
package watch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 150 * time.Millisecond

// Options tune a Watcher. The zero value watches every *.txt file, ignores
// nothing and logs nowhere.
type Options struct {
	// Ignore reports events to drop, typically the gateway's own writes.
	Ignore   func(path string) bool
	Debounce time.Duration
	Logger   logrus.FieldLogger
}

// Watcher calls onChange once per burst of external edits to key files in a
// directory.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func()
	ignore   func(string) bool
	debounce time.Duration
	log      logrus.FieldLogger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New starts watching dir, creating it if needed.
func New(dir string, onChange func(), opts Options) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		fsw:      fsw,
		onChange: onChange,
		ignore:   opts.Ignore,
		debounce: opts.Debounce,
		log:      opts.Logger,
		done:     make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		w.log = l
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Close stops the watcher. Pending notifications are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watch error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if !isKeyFile(event.Name) {
		return
	}
	if w.ignore != nil && w.ignore(event.Name) {
		w.log.WithField("path", event.Name).Trace("skipping own write")
		return
	}
	w.log.WithFields(logrus.Fields{"path": event.Name, "op": event.Op.String()}).Debug("external change")

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if !closed {
		w.onChange()
	}
}

// isKeyFile matches the files the file gateway stores values in, skipping
// its temp files and backups.
func isKeyFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), ".txt")
}
