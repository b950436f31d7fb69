package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"slurmnode/pkg/coordination"
	"slurmnode/pkg/executor"
	"slurmnode/pkg/metrics"
	"slurmnode/pkg/models"
	"slurmnode/pkg/resilience"
	"slurmnode/pkg/storage"
	"slurmnode/pkg/template"
)

// ConsumerGroup is the Redis stream consumer group all workers join.
const ConsumerGroup = "slurmnode-workers"

// Config tunes a worker instance.
type Config struct {
	// WorkRoot is where per-job work directories are created.
	WorkRoot string

	// Concurrency is how many jobs may run at once.
	Concurrency int

	// NodeTTL is the registration TTL in seconds; heartbeats refresh it.
	NodeTTL int

	HeartbeatInterval time.Duration

	// PollInterval is how often batch jobs are polled in accounting.
	PollInterval time.Duration
}

// Worker consumes queued submissions and drives them through an executor.
type Worker struct {
	ID       string
	Hostname string

	cfg         Config
	registry    coordination.Registry
	queue       storage.Queue
	statusStore storage.StatusStore
	logStore    storage.LogStore
	renderer    template.Renderer
	breaker     *resilience.CircuitBreaker
	tracer      trace.Tracer
	log         *zap.Logger
}

// New creates a worker with a unique node id derived from the hostname.
func New(cfg Config, registry coordination.Registry, queue storage.Queue,
	statusStore storage.StatusStore, logStore storage.LogStore, log *zap.Logger) (*Worker, error) {

	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.NodeTTL <= 0 {
		cfg.NodeTTL = 10
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Duration(cfg.NodeTTL) * time.Second / 2
	}

	renderer, err := template.NewScriptRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load script templates: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Worker{
		ID:          id,
		Hostname:    hostname,
		cfg:         cfg,
		registry:    registry,
		queue:       queue,
		statusStore: statusStore,
		logStore:    logStore,
		renderer:    renderer,
		breaker:     resilience.NewCircuitBreaker("log-archive", resilience.DefaultCircuitBreakerConfig()),
		tracer:      otel.Tracer("slurmnode-worker"),
		log:         log.With(zap.String("worker_id", id)),
	}, nil
}

// Start begins the heartbeat and work loops. Blocks until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("worker starting",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.String("work_root", w.cfg.WorkRoot))

	if err := w.queue.EnsureGroup(ctx, ConsumerGroup); err != nil {
		w.log.Warn("failed to ensure consumer group", zap.Error(err))
	}

	go w.heartbeatLoop(ctx)

	sem := make(chan struct{}, w.cfg.Concurrency)
	for {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
			go func() {
				defer func() { <-sem }()
				w.consumeOne(ctx)
			}()
		}
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.registry.RegisterNode(ctx, w.ID, w.cfg.NodeTTL); err != nil {
				w.log.Warn("heartbeat failed", zap.Error(err))
				continue
			}
			metrics.HeartbeatsSent.Inc()
		}
	}
}

// consumeOne pops and executes at most one submission. Pop blocks briefly
// server-side, so an empty queue is cheap.
func (w *Worker) consumeOne(ctx context.Context) {
	msgID, sub, err := w.queue.Pop(ctx, ConsumerGroup, w.ID)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("failed to pop submission", zap.Error(err))
			time.Sleep(time.Second)
		}
		return
	}
	if sub == nil {
		return
	}

	metrics.WorkerJobsRunning.Inc()
	defer metrics.WorkerJobsRunning.Dec()

	w.execute(ctx, sub)

	if err := w.queue.Ack(ctx, ConsumerGroup, msgID); err != nil {
		w.log.Error("failed to ack submission",
			zap.String("submission_id", sub.ID.String()), zap.Error(err))
	}
}

// execute runs one submission end to end: executor scope, script execution,
// log archival and the terminal status write.
func (w *Worker) execute(ctx context.Context, sub *models.Submission) {
	ctx, span := w.tracer.Start(ctx, "worker.execute",
		trace.WithAttributes(
			attribute.String("submission.id", sub.ID.String()),
			attribute.String("submission.backend", string(sub.Spec.Backend)),
		))
	defer span.End()

	log := w.log.With(zap.String("submission_id", sub.ID.String()))
	log.Info("picked up submission",
		zap.String("backend", string(sub.Spec.Backend)),
		zap.String("executable", sub.Spec.Executable))

	if err := w.statusStore.SetStatus(ctx, sub.ID, models.SubmissionRunning); err != nil {
		log.Warn("failed to mark submission running", zap.Error(err))
	}

	exec, err := executor.New(sub.Spec.Backend, executor.Config{
		RootDir:  w.cfg.WorkRoot,
		Renderer: w.renderer,
		Logger:   log,
	}, executor.WithPollInterval(w.cfg.PollInterval))
	if err != nil {
		w.finish(ctx, sub, &models.SubmissionResult{
			ID:     sub.ID,
			Status: models.SubmissionFailed,
			Error:  err.Error(),
		})
		return
	}

	if err := exec.EnterScope(); err != nil {
		w.finish(ctx, sub, &models.SubmissionResult{
			ID:     sub.ID,
			Status: models.SubmissionFailed,
			Error:  err.Error(),
		})
		return
	}

	start := time.Now()
	exitCode, execErr := exec.ExecuteJob(ctx, sub.Timeout, sub.Spec.Variables())
	duration := time.Since(start)

	result := w.buildResult(ctx, sub, exec, exitCode, execErr)
	failed := result.Status != models.SubmissionSucceeded

	result.LogRef = w.archiveLogs(ctx, sub, exec.WorkDir(), log)

	if err := exec.ExitScope(failed); err != nil {
		log.Warn("failed to exit executor scope", zap.Error(err))
	}

	metrics.RecordExecution(string(sub.Spec.Backend), string(result.Status), duration.Seconds())
	span.SetAttributes(attribute.String("submission.status", string(result.Status)))

	w.finish(ctx, sub, result)
	log.Info("submission finished",
		zap.String("status", string(result.Status)),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", duration))
}

// buildResult maps the executor outcome onto the submission result record.
func (w *Worker) buildResult(ctx context.Context, sub *models.Submission, exec executor.Executor, exitCode int, execErr error) *models.SubmissionResult {
	result := &models.SubmissionResult{
		ID:          sub.ID,
		ExitCode:    exitCode,
		NodeID:      w.ID,
		CompletedAt: time.Now().UTC(),
	}

	if batch, ok := exec.(*executor.BatchExecutor); ok {
		if status := batch.Status(); status != nil {
			result.BatchJobID = status.JobID
			result.SchedulerState = string(status.State)
			result.Elapsed = status.Elapsed
		}
	}

	var timeoutErr *executor.TimeoutError
	switch {
	case execErr == nil && ctx.Err() != nil:
		result.Status = models.SubmissionCancelled
	case errors.Is(execErr, context.Canceled):
		result.Status = models.SubmissionCancelled
	case errors.As(execErr, &timeoutErr):
		result.Status = models.SubmissionTimedOut
		result.Error = timeoutErr.Error()
	case execErr != nil:
		result.Status = models.SubmissionFailed
		result.Error = execErr.Error()
	case exitCode == 0:
		result.Status = models.SubmissionSucceeded
	default:
		result.Status = models.SubmissionFailed
	}

	return result
}

// archiveLogs reads the conventional output files from the work directory
// and ships them to the log store through the circuit breaker. Returns the
// storage reference, or "" when nothing was archived.
func (w *Worker) archiveLogs(ctx context.Context, sub *models.Submission, workDir string, log *zap.Logger) string {
	if workDir == "" || w.logStore == nil {
		return ""
	}

	stdout, _ := os.ReadFile(filepath.Join(workDir, executor.StdoutFileName))
	stderr, _ := os.ReadFile(filepath.Join(workDir, executor.StderrFileName))
	if len(stdout) == 0 && len(stderr) == 0 {
		return ""
	}

	payload := fmt.Sprintf("STDOUT:\n%s\nSTDERR:\n%s", stdout, stderr)

	var ref string
	err := w.breaker.Execute(ctx, func() error {
		var storeErr error
		ref, storeErr = w.logStore.Store(ctx, sub.ID.String(), []byte(payload))
		return storeErr
	})
	if err != nil {
		log.Warn("failed to archive job logs", zap.Error(err))
		return ""
	}
	return ref
}

// finish writes the terminal result. The work is already done at this point,
// so storage failures are logged, not propagated.
func (w *Worker) finish(ctx context.Context, sub *models.Submission, result *models.SubmissionResult) {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now().UTC()
	}
	if err := w.statusStore.SetResult(ctx, result); err != nil {
		w.log.Error("failed to record submission result",
			zap.String("submission_id", sub.ID.String()), zap.Error(err))
	}
}
