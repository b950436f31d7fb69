package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Backend selects which executor variant runs a job.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendSlurm Backend = "sbatch"
)

// Launcher controls how the executable is started inside the job script.
type Launcher string

const (
	LauncherSingle Launcher = "single"
	LauncherSrun   Launcher = "srun"
	LauncherMPIRun Launcher = "mpirun"
)

// walltime format is [[hour:]minute:]second
var walltimePattern = regexp.MustCompile(`^(\d+:)?(\d+:)?\d+$`)

// JobSpec describes a single computational job: the executable to run and
// the scheduler resources it needs. Fields other than Executable are
// optional; empty values are omitted from the template variables.
type JobSpec struct {
	Name        string            `json:"name"`
	Executable  string            `json:"executable" binding:"required"`
	Backend     Backend           `json:"backend"`
	Launcher    Launcher          `json:"launcher"`
	Partition   string            `json:"partition,omitempty"`
	QPU         string            `json:"qpu,omitempty"`
	NumNodes    int               `json:"num_nodes,omitempty"`
	MPIProcs    int               `json:"mpiprocs,omitempty"`
	MPIOptions  []string          `json:"mpi_options,omitempty"`
	OMPThreads  int               `json:"ompthreads,omitempty"`
	Walltime    string            `json:"walltime,omitempty"`
	Modules     []string          `json:"modules,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// Normalize fills in defaults for optional enum fields.
func (s *JobSpec) Normalize() {
	if s.Backend == "" {
		s.Backend = BackendLocal
	}
	if s.Launcher == "" {
		s.Launcher = LauncherSingle
	}
}

// Validate checks the spec for values the executors cannot work with.
func (s *JobSpec) Validate() error {
	if s.Executable == "" {
		return errors.New("executable is required")
	}
	if !filepath.IsAbs(s.Executable) {
		return fmt.Errorf("executable must be an absolute path, got %q", s.Executable)
	}
	switch s.Backend {
	case BackendLocal, BackendSlurm:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	switch s.Launcher {
	case LauncherSingle, LauncherSrun, LauncherMPIRun:
	default:
		return fmt.Errorf("unknown launcher %q", s.Launcher)
	}
	if s.NumNodes < 0 || s.MPIProcs < 0 || s.OMPThreads < 0 {
		return errors.New("node, process and thread counts must not be negative")
	}
	if s.Walltime != "" && !walltimePattern.MatchString(s.Walltime) {
		return fmt.Errorf("walltime %q is not in [[hour:]minute:]second format", s.Walltime)
	}
	return nil
}

// Variables builds the mapping fed into the job script template. Zero-valued
// optional fields are left out so the template's presence checks work.
func (s *JobSpec) Variables() map[string]any {
	vars := map[string]any{
		"executable": s.Executable,
		"launcher":   string(s.Launcher),
	}
	if s.Partition != "" {
		vars["partition"] = s.Partition
	}
	if s.QPU != "" {
		vars["qpu"] = s.QPU
	}
	if s.NumNodes > 0 {
		vars["num_nodes"] = s.NumNodes
	}
	if s.MPIProcs > 0 {
		vars["mpiprocs"] = s.MPIProcs
	}
	if len(s.MPIOptions) > 0 {
		vars["mpi_options"] = s.MPIOptions
	}
	if s.OMPThreads > 0 {
		vars["ompthreads"] = s.OMPThreads
	}
	if s.Walltime != "" {
		vars["walltime"] = s.Walltime
	}
	if len(s.Modules) > 0 {
		vars["modules"] = s.Modules
	}
	if len(s.Environment) > 0 {
		vars["environments"] = s.Environment
	}
	return vars
}

// SubmissionStatus is the lifecycle of a queued job request, as reported to
// API clients. Distinct from the scheduler-side job state, which lives in
// the executor's status record.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "PENDING"
	SubmissionRunning   SubmissionStatus = "RUNNING"
	SubmissionSucceeded SubmissionStatus = "SUCCEEDED"
	SubmissionFailed    SubmissionStatus = "FAILED"
	SubmissionCancelled SubmissionStatus = "CANCELLED"
	SubmissionTimedOut  SubmissionStatus = "TIMED_OUT"
)

// Submission is the unit pushed onto the queue by the API and consumed by a
// worker. Timeout of zero means no deadline.
type Submission struct {
	ID       uuid.UUID     `json:"id"`
	Spec     JobSpec       `json:"spec"`
	Timeout  time.Duration `json:"timeout"`
	QueuedAt time.Time     `json:"queued_at"`
}

// SubmissionResult is the terminal record a worker writes back for a
// submission. BatchJobID and the scheduler fields are empty for local runs.
type SubmissionResult struct {
	ID             uuid.UUID        `json:"id"`
	Status         SubmissionStatus `json:"status"`
	ExitCode       int              `json:"exit_code"`
	BatchJobID     string           `json:"batch_job_id,omitempty"`
	SchedulerState string           `json:"scheduler_state,omitempty"`
	Elapsed        string           `json:"elapsed,omitempty"`
	NodeID         string           `json:"node_id,omitempty"`
	LogRef         string           `json:"log_ref,omitempty"`
	CompletedAt    time.Time        `json:"completed_at"`
	Error          string           `json:"error,omitempty"`
}
