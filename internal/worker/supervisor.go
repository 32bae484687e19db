package worker

import (
	"context"
	"sync"

	"github.com/andresmejia3/faceseed/internal/faces"
)

// Supervisor serves requests from one PythonWorker at a time. When the current worker crashes
// or times out, the request in flight fails and the next request starts a fresh worker.
type Supervisor struct {
	// ctx bounds the lifetime of every worker process the supervisor starts
	ctx   context.Context
	opts  Options
	start func(ctx context.Context, id int, opts Options) (*PythonWorker, error)

	mu       sync.Mutex
	current  *PythonWorker
	restarts int
}

// NewSupervisor starts the first worker.
func NewSupervisor(ctx context.Context, opts Options) (*Supervisor, error) {
	return newSupervisor(ctx, opts, NewPythonWorker)
}

func newSupervisor(ctx context.Context, opts Options, start func(context.Context, int, Options) (*PythonWorker, error)) (*Supervisor, error) {
	s := &Supervisor{ctx: ctx, opts: opts, start: start}

	w, err := start(ctx, 0, opts)
	if err != nil {
		return nil, err
	}
	s.current = w
	return s, nil
}

// Restarts returns how many times a broken worker was replaced.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// worker returns the live worker, replacing a broken one first.
func (s *Supervisor) worker() (*PythonWorker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		cause := s.current.Broken()
		if cause == nil {
			return s.current, nil
		}

		log.Errorf("worker: %s, starting a new one", cause)
		if logs := cause.Logs(); logs != "" {
			log.Errorf("worker: logs of worker %d:\n%s", cause.ID, logs)
		}
		if err := s.current.Close(); err != nil {
			log.Debugf("worker: closing worker %d: %s", cause.ID, err)
		}
		s.current = nil
	}

	s.restarts++
	w, err := s.start(s.ctx, s.restarts, s.opts)
	if err != nil {
		return nil, err
	}
	s.current = w
	return w, nil
}

// Locate implements faces.Detector.
func (s *Supervisor) Locate(ctx context.Context, path string, mode faces.Mode) ([]faces.Box, error) {
	w, err := s.worker()
	if err != nil {
		return nil, err
	}
	return w.Locate(ctx, path, mode)
}

// Encode implements faces.Encoder.
func (s *Supervisor) Encode(ctx context.Context, path string, boxes []faces.Box) ([][]float32, error) {
	w, err := s.worker()
	if err != nil {
		return nil, err
	}
	return w.Encode(ctx, path, boxes)
}

// Close shuts down the current worker.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	return err
}
