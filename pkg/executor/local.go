package executor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// LocalTemplateID names the script template for foreground execution.
const LocalTemplateID = "local.sh.tmpl"

// LocalExecutor runs the rendered job script as a child process on the
// current host. Useful for validating a job before handing it to Slurm.
type LocalExecutor struct {
	base
}

func NewLocalExecutor(cfg Config) *LocalExecutor {
	return &LocalExecutor{base: newBase(cfg, LocalTemplateID)}
}

// ExecuteJob spawns the rendered script with sh, waits for it racing the
// timeout, logs captured output and returns the exit code. A killed process
// with no observable exit code yields ExitUnknown.
func (e *LocalExecutor) ExecuteJob(ctx context.Context, timeout time.Duration, vars map[string]any) (int, error) {
	script, err := e.WriteScript(vars)
	if err != nil {
		return ExitUnknown, err
	}

	cmd := exec.Command("sh", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// New process group so a timeout kill takes the whole script tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return ExitUnknown, &CommandError{Command: "sh " + script, Err: err}
	}
	pid := cmd.Process.Pid
	e.log.Info("created a local process", zap.Int("pid", pid))

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-runCtx.Done():
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-done // reap
		e.logStreams(stdout.String(), stderr.String())
		e.saveStreams(stdout.Bytes(), stderr.Bytes())
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return ExitUnknown, &TimeoutError{Kind: "process", ID: strconv.Itoa(pid)}
		}
		return ExitUnknown, ctx.Err()

	case waitErr := <-done:
		e.logStreams(stdout.String(), stderr.String())
		e.saveStreams(stdout.Bytes(), stderr.Bytes())
		if waitErr != nil {
			if _, ok := waitErr.(*exec.ExitError); !ok {
				return ExitUnknown, &CommandError{Command: "sh " + script, Err: waitErr}
			}
		}
		// ExitCode reports -1 when the process was signalled, which is
		// exactly the sentinel the callers expect.
		return cmd.ProcessState.ExitCode(), nil
	}
}

// saveStreams mirrors captured output into the conventional output files so
// callers can collect local and batch runs the same way. Best effort.
func (e *LocalExecutor) saveStreams(stdout, stderr []byte) {
	if e.workDir == "" {
		return
	}
	if err := os.WriteFile(filepath.Join(e.workDir, StdoutFileName), stdout, 0o644); err != nil {
		e.log.Debug("could not save stdout", zap.Error(err))
	}
	if err := os.WriteFile(filepath.Join(e.workDir, StderrFileName), stderr, 0o644); err != nil {
		e.log.Debug("could not save stderr", zap.Error(err))
	}
}
