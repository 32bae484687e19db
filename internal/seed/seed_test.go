package seed

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/andresmejia3/faceseed/internal/event"
)

// captureLog records log entries of the shared logger for the duration of the test.
func captureLog(t *testing.T) *test.Hook {
	t.Helper()

	out := event.Log.Out
	level := event.Log.GetLevel()
	event.Log.SetOutput(io.Discard)
	event.Log.SetLevel(logrus.DebugLevel)
	hook := test.NewLocal(event.Log)

	t.Cleanup(func() {
		event.Log.ReplaceHooks(make(logrus.LevelHooks))
		event.Log.SetOutput(out)
		event.Log.SetLevel(level)
	})

	return hook
}

// messages returns the messages logged at level that contain substr.
func messages(hook *test.Hook, level logrus.Level, substr string) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			out = append(out, e.Message)
		}
	}
	return out
}
