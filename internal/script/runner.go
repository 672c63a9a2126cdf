package script

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultInterpreter = "bash"
	// DefaultMaxConcurrent leaves the number of in-flight scripts unbounded.
	DefaultMaxConcurrent = 0
)

// Runner executes a script file and returns its trimmed standard output.
type Runner interface {
	Run(ctx context.Context, path string) (string, error)
}

// ExitError is returned when a script could not be started or exited non-zero.
type ExitError struct {
	Path     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command exited with error: %s", e.Stderr)
	}
	return fmt.Sprintf("command exited with error: %s", e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ProcessRunner runs scripts as child processes of a fixed interpreter. Each execution happens on its
// own goroutine, so a hung script only blocks the caller that started it. When maxConcurrent is
// positive, in-flight processes are capped by a weighted semaphore; a caller waiting for a slot
// gives up when its context ends.
type ProcessRunner struct {
	interpreter string
	slots       *semaphore.Weighted // nil when unbounded
}

var _ Runner = (*ProcessRunner)(nil)

func NewProcessRunner(interpreter string, maxConcurrent int64) *ProcessRunner {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	r := &ProcessRunner{interpreter: interpreter}
	if maxConcurrent > 0 {
		r.slots = semaphore.NewWeighted(maxConcurrent)
	}
	return r
}

type runResult struct {
	out string
	err error
}

func (r *ProcessRunner) Run(ctx context.Context, path string) (string, error) {
	if r.slots != nil {
		if err := r.slots.Acquire(ctx, 1); err != nil {
			return "", err
		}
	}

	done := make(chan runResult, 1)
	go func() {
		if r.slots != nil {
			defer r.slots.Release(1)
		}
		out, err := r.exec(ctx, path)
		done <- runResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *ProcessRunner) exec(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, r.interpreter, path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Msgf("running script %s with %s", path, r.interpreter)
	err := cmd.Run()
	if err != nil {
		exitErr := &ExitError{
			Path:     path,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		if ee, ok := err.(*exec.ExitError); ok {
			exitErr.ExitCode = ee.ExitCode()
		}
		return "", exitErr
	}
	return strings.TrimSpace(stdout.String()), nil
}
