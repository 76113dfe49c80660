package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oshokin/pkg-assembler/internal/domain/build"
	"github.com/oshokin/pkg-assembler/internal/logger"
)

// maxStderrInError bounds how much tool output is embedded in an error message.
const maxStderrInError = 2048

// Command is a single tool invocation.
type Command struct {
	// Path is the resolved executable.
	Path string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the current environment as KEY=VALUE pairs.
	Env []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(filepath.Base(c.Path) + " " + strings.Join(c.Args, " "))
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands. Tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ToolError reports a tool that could not start or exited non-zero.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements error.
func (e *ToolError) Error() string {
	commandString := strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))

	stderr := strings.TrimSpace(e.Stderr)
	if len(stderr) > maxStderrInError {
		stderr = "..." + stderr[len(stderr)-maxStderrInError:]
	}

	switch {
	case stderr != "":
		return fmt.Sprintf("%s: exit code %d: %s", commandString, e.ExitCode, stderr)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", commandString, e.Err)
	default:
		return fmt.Sprintf("%s: exit code %d", commandString, e.ExitCode)
	}
}

// Unwrap exposes the failure category and the underlying cause.
func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{build.ErrToolInvocationFailure}
	}

	return []error{build.ErrToolInvocationFailure, e.Err}
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and waits for it. A non-zero exit status yields a *ToolError
// together with the captured Result.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	ctx = logger.WithName(ctx, "toolexec")

	var stdout, stderr bytes.Buffer

	command := exec.CommandContext(ctx, cmd.Path, cmd.Args...) //nolint:gosec // tools are resolved by the probe.
	command.Dir = cmd.Dir
	command.Stdout = &stdout
	command.Stderr = &stderr

	if len(cmd.Env) > 0 {
		command.Env = append(os.Environ(), cmd.Env...)
	}

	logger.DebugKV(ctx, "running tool", "command", cmd.String(), "dir", cmd.Dir)

	err := command.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: command.ProcessState.ExitCode(),
	}

	if err == nil {
		return result, nil
	}

	toolErr := &ToolError{
		Tool:     filepath.Base(cmd.Path),
		Args:     cmd.Args,
		ExitCode: result.ExitCode,
		Stderr:   result.Stderr,
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		toolErr.Err = err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		toolErr.Err = ctxErr
	}

	return result, toolErr
}
