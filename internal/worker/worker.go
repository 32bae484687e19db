package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/faceseed/internal/event"
	"github.com/andresmejia3/faceseed/internal/faces"
	"github.com/andresmejia3/faceseed/internal/types"
	"github.com/andresmejia3/faceseed/internal/utils" // Using the SafeCommand wrapper
)

var log = event.Log

// maxFrame caps a single response so a corrupted header cannot trigger a huge allocation.
const maxFrame = 64 << 20

// Options configures the Python worker process.
type Options struct {
	Python  string
	Script  string
	Timeout time.Duration // per request, zero disables
}

// CrashError is returned when the worker process stops answering. It carries the worker's
// stderr so the cause (usually a Python traceback) can be shown to the user.
type CrashError struct {
	ID   int
	Err  error
	logs string
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("face worker %d: %v", e.ID, e.Err)
}

func (e *CrashError) Unwrap() error { return e.Err }

// Logs returns the worker's captured stderr.
func (e *CrashError) Logs() string { return e.logs }

// PythonWorker talks to python/worker.py, which wraps the face_recognition library.
// Requests go to stdin, responses come back on FD 3. Both use [uint32 big-endian length][JSON].
type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
	Timeout  time.Duration

	mu     sync.Mutex
	broken *CrashError // set once the pipe is out of sync, every later call fails with it
}

// NewPythonWorker starts the worker process. It is killed when ctx is cancelled.
func NewPythonWorker(ctx context.Context, id int, opts Options) (*PythonWorker, error) {
	py := utils.NewSafeCommand(ctx, opts.Python, "-u", opts.Script)

	// Create a side-channel pipe (FD 3) so library prints on stdout cannot corrupt responses
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	log.Debugf("worker: started %s %s (pid %d)", opts.Python, opts.Script, py.Process.Pid)

	return &PythonWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
		Timeout:  opts.Timeout,
	}, nil
}

// Broken returns the crash that put the worker out of service, or nil.
func (w *PythonWorker) Broken() *CrashError {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.broken
}

// Communicate sends one frame and waits for the reply frame.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	if d, ok := w.DataPipe.(interface{ SetReadDeadline(time.Time) error }); ok && w.Timeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(w.Timeout)); err == nil {
			defer d.SetReadDeadline(time.Time{})
		}
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxFrame {
		return nil, fmt.Errorf("response frame of %d bytes exceeds limit", respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// call performs one request/response round trip.
func (w *PythonWorker) call(ctx context.Context, req types.Request) (types.Response, error) {
	var resp types.Response

	if err := ctx.Err(); err != nil {
		return resp, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}

	w.mu.Lock()
	if crash := w.broken; crash != nil {
		w.mu.Unlock()
		return resp, crash
	}
	raw, err := w.Communicate(payload)
	var crash *CrashError
	if err != nil {
		crash = &CrashError{ID: w.ID, Err: err, logs: w.Cmd.Logs()}
		w.broken = crash
	}
	w.mu.Unlock()

	if crash != nil {
		// a cancelled context kills the process, which breaks the pipe
		if ctxErr := ctx.Err(); ctxErr != nil {
			return resp, ctxErr
		}
		return resp, crash
	}

	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("decoding worker response: %w", err)
	}

	if !resp.OK {
		switch resp.Kind {
		case types.KindUnreadable:
			return resp, fmt.Errorf("%w: %s", faces.ErrUnreadable, resp.Error)
		case types.KindEncode:
			return resp, fmt.Errorf("%w (encoding failed: %s)", faces.ErrNoFace, resp.Error)
		}
		return resp, fmt.Errorf("python worker error: %s", resp.Error)
	}

	return resp, nil
}

// Locate implements faces.Detector.
func (w *PythonWorker) Locate(ctx context.Context, path string, mode faces.Mode) ([]faces.Box, error) {
	resp, err := w.call(ctx, types.Request{Op: types.OpLocate, Path: path, Model: string(mode)})
	if err != nil {
		return nil, err
	}

	boxes := make([]faces.Box, 0, len(resp.Boxes))
	for _, loc := range resp.Boxes {
		if len(loc) != 4 {
			return nil, fmt.Errorf("python worker returned malformed box %v", loc)
		}
		boxes = append(boxes, faces.Box{Top: loc[0], Right: loc[1], Bottom: loc[2], Left: loc[3]})
	}
	return boxes, nil
}

// Encode implements faces.Encoder.
func (w *PythonWorker) Encode(ctx context.Context, path string, boxes []faces.Box) ([][]float32, error) {
	locs := make([][]int, len(boxes))
	for i, b := range boxes {
		locs[i] = []int{b.Top, b.Right, b.Bottom, b.Left}
	}

	resp, err := w.call(ctx, types.Request{Op: types.OpEncode, Path: path, Boxes: locs})
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(resp.Vecs))
	for i, v := range resp.Vecs {
		vecs[i] = make([]float32, len(v))
		for j, x := range v {
			vecs[i][j] = float32(x)
		}
	}
	return vecs, nil
}

// Close ends the worker by closing its stdin and waits for it to exit.
func (w *PythonWorker) Close() error {
	var errs []error
	if err := w.Stdin.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.DataPipe.Close(); err != nil {
		errs = append(errs, err)
	}
	if w.Cmd != nil {
		if w.broken != nil && w.Cmd.Process != nil {
			// a timed out worker may still be busy with the abandoned request
			_ = w.Cmd.Process.Kill()
			w.Cmd.Wait()
			return errors.Join(errs...)
		}
		if err := w.Cmd.Wait(); err != nil {
			errs = append(errs, &CrashError{ID: w.ID, Err: err, logs: w.Cmd.Logs()})
		}
	}
	return errors.Join(errs...)
}
