// internal/tool/runner.go
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Command is one external program invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration // 0 = no limit beyond ctx
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is what a finished process left behind.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
	TimedOut bool
}

// OK reports a zero exit within the time limit.
func (r Result) OK() bool { return r.ExitCode == 0 && !r.TimedOut }

// Output returns stderr followed by stdout, for diagnostics.
func (r Result) Output() []byte {
	if len(r.Stdout) == 0 {
		return r.Stderr
	}
	if len(r.Stderr) == 0 {
		return r.Stdout
	}
	out := make([]byte, 0, len(r.Stderr)+len(r.Stdout)+1)
	out = append(out, r.Stderr...)
	if r.Stderr[len(r.Stderr)-1] != '\n' {
		out = append(out, '\n')
	}
	return append(out, r.Stdout...)
}

// Runner starts a process and waits for it.
//
// A non-zero exit or an expired Command.Timeout is reported through Result,
// not as an error. The error return is reserved for processes that could not
// be started and for cancellation of ctx itself.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct{}

// Run executes cmd, capturing stdout and stderr. On timeout or cancellation
// the whole process group is killed so helper children do not linger.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, errors.New("tool: empty command")
	}
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	setProcessGroup(c)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	if err := c.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", cmd.Name, err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	var err error
	select {
	case <-runCtx.Done():
		killProcessGroup(c)
		<-done
		res := Result{ExitCode: -1, Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: time.Since(start)}
		if ctx.Err() != nil {
			return res, fmt.Errorf("%s cancelled: %w", cmd.Name, ctx.Err())
		}
		res.TimedOut = true
		return res, nil
	case err = <-done:
	}

	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: time.Since(start)}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("run %s: %w", cmd.Name, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}
