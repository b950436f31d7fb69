package executor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"slurmnode/pkg/artifact"
	"slurmnode/pkg/metrics"
)

// BatchTemplateID names the script template for Slurm submission.
const BatchTemplateID = "batch.slurm.tmpl"

// MetricsArtifactKey is the artifact key the final job metrics record is
// reported under.
const MetricsArtifactKey = "slurm-job-metrics"

// DefaultPollInterval is how often sacct is queried while a job is pending
// or running.
const DefaultPollInterval = 10 * time.Second

// BatchExecutor submits the rendered script to Slurm with sbatch and polls
// sacct until the job reaches a terminal state. It must run on a host where
// the Slurm client commands are available, unless a custom CommandRunner is
// injected.
type BatchExecutor struct {
	base
	runner       CommandRunner
	reporter     artifact.Reporter
	pollInterval time.Duration
	lastStatus   *StatusRecord
}

// BatchOption customizes a BatchExecutor.
type BatchOption func(*BatchExecutor)

// WithCommandRunner replaces the scheduler command transport.
func WithCommandRunner(r CommandRunner) BatchOption {
	return func(e *BatchExecutor) { e.runner = r }
}

// WithPollInterval overrides the sacct polling interval.
func WithPollInterval(d time.Duration) BatchOption {
	return func(e *BatchExecutor) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithReporter sets the sink for the final job metrics record.
func WithReporter(r artifact.Reporter) BatchOption {
	return func(e *BatchExecutor) { e.reporter = r }
}

func NewBatchExecutor(cfg Config, opts ...BatchOption) *BatchExecutor {
	e := &BatchExecutor{
		base:         newBase(cfg, BatchTemplateID),
		runner:       NewShellCommandRunner(),
		reporter:     artifact.NopReporter{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status returns the last terminal status record observed by ExecuteJob, or
// nil when the job never reached a terminal state (e.g. it was cancelled).
func (e *BatchExecutor) Status() *StatusRecord {
	return e.lastStatus
}

// ExecuteJob submits the job and waits for a terminal accounting record.
// On timeout the job is cancelled and a *TimeoutError naming the job id is
// returned. On external cancellation the job is cancelled and ExitUnknown
// is returned without an error; callers that care inspect ctx.Err() or
// Status().
func (e *BatchExecutor) ExecuteJob(ctx context.Context, timeout time.Duration, vars map[string]any) (int, error) {
	e.lastStatus = nil

	script, err := e.WriteScript(vars)
	if err != nil {
		return ExitUnknown, err
	}

	out, err := e.runner.Run(ctx, "sbatch", "--parsable", script)
	if err != nil {
		return ExitUnknown, err
	}
	jobID := strings.TrimSpace(out)
	e.log.Info("created batch job", zap.String("job_id", jobID))
	metrics.BatchSubmissions.Inc()

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	status, err := e.wait(waitCtx, jobID)
	if err != nil {
		return ExitUnknown, err
	}

	if status == nil {
		if waitCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return ExitUnknown, &TimeoutError{Kind: "job", ID: jobID}
		}
		// Cancelled from outside: empty status by contract, the cancel
		// command has already been issued.
		return ExitUnknown, nil
	}

	e.lastStatus = status
	e.collectOutput()
	e.report(ctx, jobID, status)

	code, _ := ParseExitCode(status.ExitCode)
	return code, nil
}

// wait polls scheduler accounting until a terminal record for the job
// itself (not a job step) shows up. On cancellation it issues a single
// scancel, logs a warning and returns a nil record with no error.
func (e *BatchExecutor) wait(ctx context.Context, jobID string) (*StatusRecord, error) {
	for {
		out, err := e.runner.Run(ctx, "sacct",
			"-j", jobID,
			"--format="+accountingFields,
			"--parsable2", "--noheader",
		)
		if err != nil {
			if ctx.Err() != nil {
				e.cancelJob(jobID)
				return nil, nil
			}
			return nil, err
		}
		metrics.AccountingPolls.Inc()

		if rec := firstTerminal(ParseAccounting(out)); rec != nil {
			code, _ := ParseExitCode(rec.ExitCode)
			e.log.Info("batch job finished",
				zap.String("job_id", jobID),
				zap.String("state", string(rec.State)),
				zap.Int("exit_code", code))
			return rec, nil
		}

		select {
		case <-ctx.Done():
			e.cancelJob(jobID)
			return nil, nil
		case <-time.After(e.pollInterval):
		}
	}
}

// cancelJob fires scancel with a fresh context; the caller's is already
// dead by the time we get here. Failures are logged and swallowed.
func (e *BatchExecutor) cancelJob(jobID string) {
	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.runner.Run(cctx, "scancel", jobID); err != nil {
		e.log.Error("failed to cancel batch job", zap.String("job_id", jobID), zap.Error(err))
	}
	e.log.Warn("batch job was cancelled", zap.String("job_id", jobID))
}

// collectOutput reads the conventional output files from the work directory
// and logs their truncated contents.
func (e *BatchExecutor) collectOutput() {
	var stdout, stderr string
	if data, err := os.ReadFile(filepath.Join(e.workDir, StdoutFileName)); err == nil {
		stdout = string(data)
	}
	if data, err := os.ReadFile(filepath.Join(e.workDir, StderrFileName)); err == nil {
		stderr = string(data)
	}
	e.logStreams(stdout, stderr)
}

// report hands the final metrics record to the result reporter.
func (e *BatchExecutor) report(ctx context.Context, jobID string, status *StatusRecord) {
	code, signal := ParseExitCode(status.ExitCode)
	header := []string{"job_id", "state", "exit_code", "signal", "elapsed_time", "allocated_cpus", "node_list"}
	row := []string{
		jobID,
		string(status.State),
		strconv.Itoa(code),
		strconv.Itoa(signal),
		status.Elapsed,
		status.AllocCPUS,
		status.NodeList,
	}
	if err := e.reporter.Table(ctx, MetricsArtifactKey, header, row); err != nil {
		e.log.Warn("failed to report job metrics artifact",
			zap.String("job_id", jobID), zap.Error(err))
	}
}
