package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-app/store"
)

// chdir moves into an empty directory so no stray .env or .todo.yaml is
// picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "todo:", cfg.Redis.Prefix)
	assert.True(t, cfg.Watch)
	assert.NotEmpty(t, cfg.Data.Dir)
}

func TestEnvOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("TODO_BACKEND", "SQLite")
	t.Setenv("TODO_SQLITE_PATH", "/tmp/elsewhere.db")
	t.Setenv("TODO_WATCH", "false")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "/tmp/elsewhere.db", cfg.SQLite.Path)
	assert.False(t, cfg.Watch)
}

func TestConfigFileAndDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".todo.yaml"), []byte("backend: memory\nlog:\n  level: debug\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TODO_REDIS_PREFIX=from-dotenv:\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("TODO_REDIS_PREFIX") })

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-dotenv:", cfg.Redis.Prefix)
}

func TestExplicitConfigFileMustExist(t *testing.T) {
	dir := chdir(t)
	_, err := Load(New(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestInvalidBackendRejected(t *testing.T) {
	chdir(t)
	t.Setenv("TODO_BACKEND", "postgres")
	_, err := Load(New(), "")
	assert.Error(t, err)
}

func TestOpenGatewayPerBackend(t *testing.T) {
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{Backend: BackendMemory}},
		{"file", Config{Backend: BackendFile, Data: DataConfig{Dir: filepath.Join(dir, "files")}}},
		{"sqlite", Config{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: filepath.Join(dir, "db", "todo.db")}}},
		{"redis", Config{Backend: BackendRedis, Redis: RedisConfig{URL: "redis://" + mr.Addr() + "/0", Prefix: "t:"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw, closeFn, err := tc.cfg.OpenGateway()
			require.NoError(t, err)
			defer func() { assert.NoError(t, closeFn()) }()

			ctx := context.Background()
			require.NoError(t, gw.Set(ctx, store.KeyTasks, "[]"))
			got, ok, err := gw.Get(ctx, store.KeyTasks)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "[]", got)
		})
	}

	_, _, err := Config{Backend: "tape"}.OpenGateway()
	assert.Error(t, err)
}
