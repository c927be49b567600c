// Package extern runs the external collaborators of the pipeline —
// ffmpeg, ffprobe, the voice-activity CLI and the whisper CLI — through
// one narrow contract: a request with args and a timeout, a response
// with captured output and an exit code. Nothing else in the module
// shells out directly.
package extern

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Request describes one invocation of an external tool.
type Request struct {
	// Tool is the binary name or alias (e.g. "ffmpeg", "whisper").
	Tool string

	// Args are the command-line arguments.
	Args []string

	// Env holds additional environment variables.
	Env map[string]string

	// Timeout caps execution time; zero means the runner default.
	Timeout time.Duration
}

// Response is the outcome of an invocation.
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes tool requests. The production implementation shells
// out; tests substitute fakes.
type Runner interface {
	// Run executes req and returns the captured result. A non-zero
	// exit is returned as an error alongside the response.
	Run(ctx context.Context, req Request) (Response, error)

	// Check verifies that all configured tools can be resolved.
	Check() error
}

// LocalRunner resolves tools from an explicit path table first, then
// from PATH, and executes them with exec.CommandContext.
type LocalRunner struct {
	// BinaryPaths maps tool aliases to absolute paths. Unmapped tools
	// fall back to PATH lookup under their alias name.
	BinaryPaths map[string]string

	// DefaultTimeout applies when a request carries none.
	DefaultTimeout time.Duration
}

// NewLocalRunner creates a runner with the given path table.
func NewLocalRunner(binaryPaths map[string]string, defaultTimeout time.Duration) *LocalRunner {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Minute
	}
	return &LocalRunner{BinaryPaths: binaryPaths, DefaultTimeout: defaultTimeout}
}

func (r *LocalRunner) resolve(tool string) (string, error) {
	if path, ok := r.BinaryPaths[tool]; ok && path != "" {
		return path, nil
	}
	return exec.LookPath(tool)
}

// Run executes the request, capturing stdout and stderr separately.
func (r *LocalRunner) Run(ctx context.Context, req Request) (Response, error) {
	binary, err := r.resolve(req.Tool)
	if err != nil {
		return Response{ExitCode: -1}, fmt.Errorf("resolve %s: %w", req.Tool, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, req.Args...)
	if len(req.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range req.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	resp := Response{
		ExitCode: exitCode(runErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return resp, fmt.Errorf("%s timed out after %v", req.Tool, timeout)
	}
	if runErr != nil {
		return resp, fmt.Errorf("%s failed (exit %d): %s", req.Tool, resp.ExitCode, firstLine(stderr.String()))
	}
	return resp, nil
}

// Check resolves every configured tool, reporting the first failure.
func (r *LocalRunner) Check() error {
	for tool, path := range r.BinaryPaths {
		lookup := path
		if lookup == "" {
			lookup = tool
		}
		if _, err := exec.LookPath(lookup); err != nil {
			return fmt.Errorf("tool %s not available at %s: %w", tool, lookup, err)
		}
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
