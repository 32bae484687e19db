package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FACESEED_BACKEND", "FACESEED_MODES", "FACESEED_PYTHON", "FACESEED_WORKER_SCRIPT",
		"FACESEED_MODEL_DIR", "FACESEED_WORKER_TIMEOUT", "FACESEED_BINARY",
		"FACESEED_LOG_LEVEL", "FACESEED_LOG_FORMAT", "FACESEED_DB",
		"POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("does-not-exist.yaml")
	require.NoError(t, err)

	assert.Equal(t, "python", cfg.Detector.Backend)
	assert.Equal(t, []string{"hog", "cnn"}, cfg.Detector.Modes)
	assert.Zero(t, cfg.Detector.Timeout, "no worker timeout unless configured")
	assert.True(t, cfg.Output.Binary)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "faceseed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
detector:
  backend: dlib
  modes: [cnn]
  timeout: 5s
output:
  binary: false
log:
  level: debug
  format: json
`), 0644))

	t.Setenv("FACESEED_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dlib", cfg.Detector.Backend)
	assert.Equal(t, []string{"cnn"}, cfg.Detector.Modes)
	assert.Equal(t, Duration(5*time.Second), cfg.Detector.Timeout)
	assert.False(t, cfg.Output.Binary)
	assert.Equal(t, "warn", cfg.Log.Level, "env overrides YAML")
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FACESEED_MODES=cnn,hog\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("FACESEED_MODES") })
	os.Unsetenv("FACESEED_MODES")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"cnn", "hog"}, cfg.Detector.Modes)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDatabaseURLFromEnv(t *testing.T) {
	clearEnv(t)

	assert.Empty(t, databaseURLFromEnv())

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "faces")
	assert.Equal(t, "postgres://u:p@db:5432/faces", databaseURLFromEnv())

	t.Setenv("FACESEED_DB", "postgres://explicit/db")
	assert.Equal(t, "postgres://explicit/db", databaseURLFromEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Detector.Backend = "opencv" }, true},
		{"no modes", func(c *Config) { c.Detector.Modes = nil }, true},
		{"unknown mode", func(c *Config) { c.Detector.Modes = []string{"hog", "mtcnn"} }, true},
		{"timeout", func(c *Config) { c.Detector.Timeout = Duration(time.Minute) }, false},
		{"negative timeout", func(c *Config) { c.Detector.Timeout = Duration(-time.Second) }, true},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newDefaults()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"hog", "cnn"}, SplitList(" hog, ,cnn "))
	assert.Nil(t, SplitList(""))
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
