package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/faceseed/internal/config"
	"github.com/andresmejia3/faceseed/internal/event"
	"github.com/andresmejia3/faceseed/internal/faces"
	"github.com/andresmejia3/faceseed/internal/faces/facestest"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.yaml")))

	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		event.Log.SetOutput(os.Stderr)
		event.Log.SetLevel(logrus.InfoLevel)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// useFakeProvider makes generate run against fake (a fresh one when nil).
func useFakeProvider(t *testing.T, fake faces.Provider) {
	t.Helper()

	if fake == nil {
		fake = facestest.New()
	}

	orig := newProvider
	newProvider = func(context.Context, *config.Config) (faces.Provider, error) {
		return fake, nil
	}
	t.Cleanup(func() { newProvider = orig })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load("")
	require.NoError(t, err)
	return c
}
