// Package janitor sweeps work directories that were retained after failed
// jobs once they outlive the retention window.
package janitor

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"slurmnode/pkg/executor"
	"slurmnode/pkg/metrics"
)

// workDirPrefix matches the directories the executors create.
const workDirPrefix = "job_"

// Config controls what the janitor sweeps and when.
type Config struct {
	// Root is the directory holding the per-job work directories.
	Root string

	// Retention is how long a retained directory may live before removal.
	Retention time.Duration

	// Schedule is a cron expression (robfig/cron syntax, descriptors
	// allowed, e.g. "@hourly").
	Schedule string
}

// Janitor periodically removes expired work directories.
type Janitor struct {
	cfg  Config
	cron *cron.Cron
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Janitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{
		cfg:  cfg,
		cron: cron.New(),
		log:  log,
	}
}

// Start registers the sweep on the cron schedule and begins running it.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		if err := j.Sweep(); err != nil {
			j.log.Error("sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("janitor started",
		zap.String("root", j.cfg.Root),
		zap.String("schedule", j.cfg.Schedule),
		zap.Duration("retention", j.cfg.Retention))
	return nil
}

// Stop halts the schedule, letting a running sweep finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep removes retained work directories older than the retention window.
func (j *Janitor) Sweep() error {
	entries, err := os.ReadDir(j.cfg.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-j.cfg.Retention)
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), workDirPrefix) {
			continue
		}
		path := filepath.Join(j.cfg.Root, entry.Name())

		// Only directories a finished scope released carry the marker.
		// Anything else is in flight or foreign and stays untouched.
		marker, err := os.Stat(filepath.Join(path, executor.RetainedMarkerName))
		if err != nil {
			continue
		}
		if marker.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			j.log.Warn("failed to remove work directory", zap.String("path", path), zap.Error(err))
			continue
		}
		metrics.WorkDirsSwept.Inc()
		j.log.Info("removed expired work directory",
			zap.String("path", path),
			zap.Time("retained_at", marker.ModTime()))
	}
	return nil
}
