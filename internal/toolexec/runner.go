package toolexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"reelsmith/internal/services"
)

// Command describes a single external tool invocation.
type Command struct {
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Result captures the outcome of a completed invocation.
type Result struct {
	Output   []byte
	Duration time.Duration
}

// Runner executes external tools. Every subprocess in the pipeline goes
// through this interface so timeout and error policy live in one place.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// NewRunner returns the production runner backed by os/exec.
func NewRunner() Runner {
	return execRunner{}
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	binary := strings.TrimSpace(cmd.Binary)
	if binary == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "toolexec", "run", "binary name required", nil)
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	start := time.Now()
	execCmd := exec.CommandContext(runCtx, binary, cmd.Args...)
	if cmd.Dir != "" {
		execCmd.Dir = cmd.Dir
	}
	output, err := execCmd.CombinedOutput()
	result := Result{Output: output, Duration: time.Since(start)}

	if err != nil {
		if runCtx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			return result, services.Wrap(
				services.ErrTimeout, "toolexec", binary,
				fmt.Sprintf("exceeded %s", cmd.Timeout), runCtx.Err())
		}
		return result, services.Wrap(
			services.ErrExternalTool, "toolexec", binary,
			Tail(output, 400), err)
	}
	return result, nil
}

// Tail returns the last n bytes of tool output as a trimmed single line,
// enough to diagnose a failure without dumping full tool logs into errors.
func Tail(output []byte, n int) string {
	text := strings.TrimSpace(string(output))
	if len(text) > n {
		text = text[len(text)-n:]
	}
	return strings.Join(strings.Fields(text), " ")
}
