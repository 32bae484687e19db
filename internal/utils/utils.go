package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (Python logs)
// so crash information survives a dying worker.
type SafeCommand struct {
	*exec.Cmd
	Stderr *SyncBuffer
}

// NewSafeCommand initializes a command bound to ctx and attaches a buffer to its Stderr.
// It prepares the command for execution but does not start it.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &SyncBuffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// Logs returns the captured stderr, trimmed.
func (s *SafeCommand) Logs() string {
	if s == nil || s.Stderr == nil {
		return ""
	}
	return strings.TrimSpace(s.Stderr.String())
}

// SyncBuffer is a bytes.Buffer safe for the exec copier goroutine and readers.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *SyncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// --- 2. Error Reporting ---

// ErrorLogger is implemented by errors that carry the logs of a failed worker process.
type ErrorLogger interface {
	error
	Logs() string
}

// ShowError prints a formatted error box to w and dumps worker logs if err carries any.
func ShowError(w io.Writer, context string, err error) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "FACESEED ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(w, "DETAILS: %v\n", err)
	}

	var withLogs ErrorLogger
	if errors.As(err, &withLogs) {
		if logs := withLogs.Logs(); logs != "" {
			fmt.Fprintf(w, "\nWORKER LOGS:\n%s\n", logs)
		}
	}
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}
