package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command is a single CLI invocation.
type Command struct {
	Name string
	Args []string
	// Env is appended to the current process environment.
	Env []string
}

// String renders the command without its environment.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands.
type Runner interface {
	// Run executes cmd and waits for it to exit.
	Run(ctx context.Context, cmd Command) ([]byte, error)
	// Start launches a long-running cmd and returns once it survived the
	// startup grace period.
	Start(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Grace is how long Start watches a new process for an early exit.
	Grace time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	// #nosec G204 - binary and arguments come from the node configuration
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", c, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Start implements Runner. The process is not bound to ctx so it outlives
// the bootstrap run.
func (r ExecRunner) Start(ctx context.Context, c Command) error {
	grace := r.Grace
	if grace == 0 {
		grace = 3 * time.Second
	}

	// #nosec G204 - binary and arguments come from the node configuration
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", c, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err == nil {
			err = errors.New("exited during startup")
		}
		return fmt.Errorf("%s: %w", c, err)
	case <-time.After(grace):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
