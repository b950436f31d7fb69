package executor

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"syscall"
)

// CommandRunner abstracts the scheduler commands (sbatch, sacct, scancel) so
// the batch executor can be tested without a Slurm installation.
type CommandRunner interface {
	// Run executes name with args and returns captured stdout. A nonzero
	// exit or a failure to start is reported as a *CommandError.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ShellCommandRunner runs commands through os/exec.
type ShellCommandRunner struct{}

func NewShellCommandRunner() *ShellCommandRunner {
	return &ShellCommandRunner{}
}

func (s *ShellCommandRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Own process group, so killing the command cannot signal the worker.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Run(); err != nil {
		return "", &CommandError{
			Command: name,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return stdout.String(), nil
}
