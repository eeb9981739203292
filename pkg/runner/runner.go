// Package runner executes the external MySQL client tools.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// maxStderr bounds the captured diagnostic output of a tool
const maxStderr = 64 * 1024

// Command describes one invocation. Args are passed to the binary as a
// discrete argument vector; no shell is involved.
type Command struct {
	Name   string
	Args   []string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
}

// String renders the command for logging. Environment values are omitted
// because they carry credentials.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds what the process reported
type Result struct {
	ExitCode int
	Stderr   string
}

// Runner runs a command to completion
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError reports a process that exited with a non-zero status
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
}

// ExecRunner runs commands as child processes
type ExecRunner struct{}

// Run starts the process, waits for it and kills it if ctx ends first. A
// killed process returns ctx.Err().
func (ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	stderr := &limitedBuffer{limit: maxStderr}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return Result{ExitCode: -1, Stderr: stderr.String()}, ctx.Err()
	case err := <-done:
		res := Result{Stderr: strings.TrimSpace(stderr.String())}
		if err == nil {
			return res, nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitCode(exitErr)
			return res, &ExitError{Command: c.Name, Code: res.ExitCode, Stderr: res.Stderr}
		}
		res.ExitCode = -1
		return res, fmt.Errorf("%s failed: %w", c.Name, err)
	}
}

func exitCode(err *exec.ExitError) int {
	if status, ok := err.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return err.ExitCode()
}

// limitedBuffer keeps the first limit bytes written and discards the rest
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
