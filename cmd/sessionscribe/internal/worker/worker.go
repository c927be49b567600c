// Package worker runs one OS process per audio file, bounded by a
// weighted semaphore. Each worker re-invokes this binary's hidden
// per-file subcommand; status flows back through the shared status
// directory, results through a channel the orchestrator polls.
//
// Cancellation is abrupt: Kill force-terminates every live worker
// process group. Workers may sit inside non-interruptible model
// inference, so a cooperative shutdown request is not reliable.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Job is one file assignment for a worker process.
type Job struct {
	// Name is the job key in the status registry.
	Name string

	// Args are the full argument list for the worker subcommand.
	Args []string
}

// Result is the terminal outcome of one worker, delivered exactly once.
type Result struct {
	Name string
	Err  error
}

// ErrKilled marks workers terminated by cancellation.
var ErrKilled = errors.New("worker killed")

// Supervisor launches and tracks worker processes.
type Supervisor struct {
	binary  string
	workers int64
	log     *slog.Logger

	mu     sync.Mutex
	procs  map[string]*exec.Cmd
	killed bool
}

// NewSupervisor creates a supervisor spawning binary with the given
// parallelism.
func NewSupervisor(binary string, workers int, log *slog.Logger) *Supervisor {
	if workers < 1 {
		workers = 1
	}
	return &Supervisor{
		binary:  binary,
		workers: int64(workers),
		log:     log,
		procs:   make(map[string]*exec.Cmd),
	}
}

// Start launches all jobs, at most the configured number concurrently,
// and returns a channel delivering one Result per job. The channel is
// closed after the last result. Start never blocks on job completion;
// the caller polls the channel alongside its status rendering.
func (s *Supervisor) Start(ctx context.Context, jobs []Job) <-chan Result {
	results := make(chan Result, len(jobs))
	sem := semaphore.NewWeighted(s.workers)

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- Result{Name: job.Name, Err: err}
				return
			}
			defer sem.Release(1)
			results <- Result{Name: job.Name, Err: s.runOne(job)}
		}(job)
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// runOne spawns a single worker process and waits for it. Worker
// stdout is discarded so the progress table owns the terminal; a
// bounded stderr tail is kept for the failure message.
func (s *Supervisor) runOne(job Job) error {
	cmd := exec.Command(s.binary, job.Args...)
	cmd.SysProcAttr = procAttr()
	cmd.Stdout = io.Discard
	stderr := &tailWriter{limit: 4096}
	cmd.Stderr = stderr

	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return ErrKilled
	}
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}
	s.procs[job.Name] = cmd
	s.mu.Unlock()

	s.log.Debug("worker started", "file", job.Name, "pid", cmd.Process.Pid)
	err := cmd.Wait()

	s.mu.Lock()
	delete(s.procs, job.Name)
	wasKilled := s.killed
	s.mu.Unlock()

	if wasKilled {
		return ErrKilled
	}
	if err != nil {
		if tail := stderr.String(); tail != "" {
			return fmt.Errorf("%w: %s", err, lastLine(tail))
		}
		return err
	}
	return nil
}

// Kill force-terminates every live worker process group. Workers that
// have not started yet will refuse to start afterwards.
func (s *Supervisor) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killed = true
	for name, cmd := range s.procs {
		s.log.Warn("killing worker", "file", name, "pid", cmd.Process.Pid)
		killProcessGroup(cmd)
	}
}

// Live returns the number of currently running worker processes.
func (s *Supervisor) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// tailWriter keeps only the last limit bytes written to it.
type tailWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	if w.buf.Len() > w.limit {
		data := w.buf.Bytes()
		trimmed := make([]byte, w.limit)
		copy(trimmed, data[len(data)-w.limit:])
		w.buf.Reset()
		w.buf.Write(trimmed)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func lastLine(s string) string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
