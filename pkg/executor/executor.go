// Package executor runs rendered job scripts either as local processes or
// as Slurm batch jobs, behind a single contract.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"slurmnode/pkg/models"
	"slurmnode/pkg/template"
)

// MaxLogSize caps the length of a single logged text. Longer payloads are
// truncated with an elision marker so downstream log sinks with body limits
// do not reject the entry.
const MaxLogSize = 10_000

// Conventional output file names the batch template writes into the work
// directory. The template and the executor agree on these by contract; a
// customized template that redirects elsewhere silently produces no logs.
const (
	StdoutFileName = "output.out"
	StderrFileName = "output.err"
)

// RetainedMarkerName is the file ExitScope drops into a work directory it
// retains after a failed job. Directories without it belong to an active
// scope and must not be touched by anyone else.
const RetainedMarkerName = ".retained"

// Executor is the shared contract of both execution back ends. An instance
// owns at most one work directory at a time; EnterScope/ExitScope bracket
// every job run.
type Executor interface {
	// EnterScope allocates a fresh work directory. Fails with a
	// *StateError when a scope is already active.
	EnterScope() error

	// ExitScope releases the scope. With failed=false the work directory
	// is deleted; with failed=true it is retained on disk for postmortem
	// inspection and a warning is logged.
	ExitScope(failed bool) error

	// WriteScript renders the back end's script template with vars (the
	// work directory path is injected) and writes it into the work
	// directory, returning the script path.
	WriteScript(vars map[string]any) (string, error)

	// ExecuteJob renders, dispatches and monitors one job, returning its
	// normalized exit code. A timeout of zero means no deadline; on expiry
	// the underlying process or batch job is terminated and a
	// *TimeoutError is returned.
	ExecuteJob(ctx context.Context, timeout time.Duration, vars map[string]any) (int, error)

	// WorkDir returns the active work directory, or "" outside a scope.
	WorkDir() string
}

// Config carries the collaborators and settings shared by both back ends.
type Config struct {
	// RootDir is the directory under which per-job work directories are
	// created.
	RootDir  string
	Renderer template.Renderer
	Logger   *zap.Logger
}

// New builds the executor variant for the given backend.
func New(backend models.Backend, cfg Config, opts ...BatchOption) (Executor, error) {
	switch backend {
	case models.BackendLocal:
		return NewLocalExecutor(cfg), nil
	case models.BackendSlurm:
		return NewBatchExecutor(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("no executor for backend %q", backend)
	}
}

// base implements the scope lifecycle and script rendering shared by both
// variants.
type base struct {
	root       string
	templateID string
	renderer   template.Renderer
	log        *zap.Logger
	workDir    string
}

func newBase(cfg Config, templateID string) base {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return base{
		root:       cfg.RootDir,
		templateID: templateID,
		renderer:   cfg.Renderer,
		log:        log,
	}
}

func (b *base) WorkDir() string { return b.workDir }

func (b *base) EnterScope() error {
	if b.workDir != "" {
		return &StateError{
			Op:     "enter_scope",
			Reason: "already inside an executor scope, scopes cannot be nested",
		}
	}
	dir, err := os.MkdirTemp(b.root, "job_")
	if err != nil {
		return fmt.Errorf("failed to create work directory under %s: %w", b.root, err)
	}
	b.workDir = dir
	b.log.Debug("created work directory", zap.String("work_dir", dir))
	return nil
}

func (b *base) ExitScope(failed bool) error {
	if b.workDir == "" {
		return &StateError{Op: "exit_scope", Reason: "no active scope"}
	}
	if failed {
		// Keep the directory, someone will want to look at it. The marker
		// releases it to the retention sweeper.
		b.log.Warn("job failed, retaining work directory for inspection",
			zap.String("work_dir", b.workDir))
		marker := filepath.Join(b.workDir, RetainedMarkerName)
		if err := os.WriteFile(marker, nil, 0o644); err != nil {
			b.log.Warn("failed to mark retained work directory",
				zap.String("work_dir", b.workDir), zap.Error(err))
		}
		return nil
	}
	if err := os.RemoveAll(b.workDir); err != nil {
		return fmt.Errorf("failed to remove work directory %s: %w", b.workDir, err)
	}
	b.log.Debug("removed work directory", zap.String("work_dir", b.workDir))
	b.workDir = ""
	return nil
}

// scriptName derives the on-disk script name from the template id
// (local.sh.tmpl -> local.sh).
func (b *base) scriptName() string {
	return strings.TrimSuffix(b.templateID, ".tmpl")
}

func (b *base) WriteScript(vars map[string]any) (string, error) {
	if b.workDir == "" {
		return "", &StateError{
			Op:     "write_script",
			Reason: "called outside an executor scope",
		}
	}

	merged := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		merged[k] = v
	}
	merged["work_dir"] = b.workDir

	text, err := b.renderer.Render(b.templateID, merged)
	if err != nil {
		return "", fmt.Errorf("failed to render job script: %w", err)
	}

	path := filepath.Join(b.workDir, b.scriptName())
	if err := os.WriteFile(path, []byte(text), 0o755); err != nil {
		return "", fmt.Errorf("failed to write job script: %w", err)
	}
	return path, nil
}

// Truncate caps text at MaxLogSize bytes, appending a marker that says how
// much was cut. The cut never splits a UTF-8 sequence.
func Truncate(text string) string {
	if len(text) <= MaxLogSize {
		return text
	}
	cut := MaxLogSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + fmt.Sprintf("... (truncated %d chars)", utf8.RuneCountInString(text[cut:]))
}

// logStreams emits captured job output at the conventional levels: stdout
// at info, stderr at error. Empty streams are skipped.
func (b *base) logStreams(stdout, stderr string) {
	if stdout != "" {
		b.log.Info(Truncate(stdout))
	}
	if stderr != "" {
		b.log.Error(Truncate(stderr))
	}
}
