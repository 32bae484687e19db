package event

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the shared application logger.
var Log = logrus.StandardLogger()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})
}

// Configure sets level, output format ("text" or "json") and destination of the shared logger.
func Configure(level, format string, out io.Writer) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch strings.ToLower(format) {
	case "", "text":
		Log.SetFormatter(&logrus.TextFormatter{
			DisableColors:    true,
			DisableTimestamp: true,
		})
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q (use text or json)", format)
	}

	if out != nil {
		Log.SetOutput(out)
	}

	Log.SetLevel(lvl)

	return nil
}
