package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Result captures the output of a completed tool invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes an external binary and returns its captured output.
// Implementations must treat a non-zero exit status as an error carrying
// the stderr tail.
type Runner interface {
	Run(ctx context.Context, binary string, args ...string) (Result, error)
}

// NewRunner returns the os/exec-backed Runner used in production.
func NewRunner() Runner {
	return execRunner{}
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, binary string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return result, fmt.Errorf("%s: %w: %s", binary, err, stderrTail(result.Stderr))
	}
	return result, nil
}

// stderrTail keeps error messages readable when a tool dumps pages of
// diagnostics before failing.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	const keep = 5
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.TrimSpace(strings.Join(lines, " / "))
}
