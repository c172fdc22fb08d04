package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func newTestFile(t *testing.T) (*File, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewFile(fs, "/data/todo"), fs
}

func TestFileGetMissingKey(t *testing.T) {
	f, _ := newTestFile(t)
	v, ok, err := f.Get(context.Background(), KeyTasks)
	if err != nil {
		t.Fatalf("get missing failed: %v", err)
	}
	if ok || v != "" {
		t.Fatalf("expected absent key, got %q", v)
	}
}

func TestFileSetThenGet(t *testing.T) {
	ctx := context.Background()
	f, fs := newTestFile(t)

	if err := f.Set(ctx, KeyTasks, `[{"id":"1"}]`); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, ok, err := f.Get(ctx, KeyTasks)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if v != `[{"id":"1"}]` {
		t.Fatalf("unexpected value %q", v)
	}
	if got := f.Path(KeyTasks); got != filepath.Join("/data/todo", "@tasks.txt") {
		t.Fatalf("unexpected path %q", got)
	}

	leftovers, err := afero.Glob(fs, filepath.Join("/data/todo", "*.tmp-*"))
	if err != nil {
		t.Fatalf("glob temp files failed: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected temp files to be cleaned up, got %v", leftovers)
	}
}

func TestFileSetKeepsBackupOfPreviousValue(t *testing.T) {
	ctx := context.Background()
	f, fs := newTestFile(t)

	if err := f.Set(ctx, KeyTasks, "old"); err != nil {
		t.Fatalf("initial set failed: %v", err)
	}
	if err := f.Set(ctx, KeyTasks, "new"); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	backup, err := afero.ReadFile(fs, f.Path(KeyTasks)+".bak")
	if err != nil {
		t.Fatalf("read backup failed: %v", err)
	}
	if string(backup) != "old" {
		t.Fatalf("expected backup of previous value, got %q", backup)
	}
}

func TestFileRotatingBackupsArePruned(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t)

	if err := f.Set(ctx, KeyTasks, "seed"); err != nil {
		t.Fatalf("seed set failed: %v", err)
	}
	for i := 0; i < 15; i++ {
		if err := f.Set(ctx, KeyTasks, fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("set %d failed: %v", i, err)
		}
		time.Sleep(1 * time.Millisecond)
	}

	files, err := f.Backups(KeyTasks)
	if err != nil {
		t.Fatalf("list backups failed: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected rotating backups, found none")
	}
	if len(files) > maxRotatingBackups {
		t.Fatalf("expected at most %d rotating backups, got %d", maxRotatingBackups, len(files))
	}
}

func TestFileRemove(t *testing.T) {
	ctx := context.Background()
	f, fs := newTestFile(t)

	if err := f.Remove(ctx, KeyTasks); err != nil {
		t.Fatalf("remove of absent key failed: %v", err)
	}
	if err := f.Set(ctx, KeyTasks, "[]"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := f.Remove(ctx, KeyTasks); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, ok, _ := f.Get(ctx, KeyTasks); ok {
		t.Fatalf("expected key to be gone")
	}
	if exists, _ := afero.Exists(fs, f.Path(KeyTasks)+".bak"); !exists {
		t.Fatalf("expected removed value to be backed up")
	}
}

func TestFileOwnWrite(t *testing.T) {
	ctx := context.Background()
	f, fs := newTestFile(t)
	path := f.Path(KeyTasks)

	if f.OwnWrite(path) {
		t.Fatalf("unknown path should not count as own write")
	}
	if err := f.Set(ctx, KeyTasks, "mine"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !f.OwnWrite(path) {
		t.Fatalf("expected own write after Set")
	}
	if err := afero.WriteFile(fs, path, []byte("theirs"), 0o644); err != nil {
		t.Fatalf("external write failed: %v", err)
	}
	if f.OwnWrite(path) {
		t.Fatalf("external edit must not count as own write")
	}
	if err := f.Remove(ctx, KeyTasks); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !f.OwnWrite(path) {
		t.Fatalf("expected own write after Remove")
	}
}
