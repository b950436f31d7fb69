package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "/tmp/slurmnode", cfg.WorkRoot)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, "6379", cfg.RedisPort)
	assert.Equal(t, []string{"localhost:2379"}, cfg.EtcdEndpoints)
	assert.Equal(t, 10, cfg.NodeTTL)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.DefaultJobTimeout)
	assert.Equal(t, 72*time.Hour, cfg.WorkDirRetention)
	assert.Equal(t, "@hourly", cfg.SweepSchedule)
	assert.Equal(t, "local", cfg.LogStoreBackend)
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("WORK_ROOT", "/scratch/jobs")
	t.Setenv("WORKER_CONCURRENCY", "16")
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("DEFAULT_JOB_TIMEOUT", "30m")
	t.Setenv("LOG_STORE", "s3")
	t.Setenv("S3_BUCKET", "job-logs")

	cfg := LoadConfig()

	assert.Equal(t, "/scratch/jobs", cfg.WorkRoot)
	assert.Equal(t, 16, cfg.WorkerConcurrency)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.DefaultJobTimeout)
	assert.Equal(t, "s3", cfg.LogStoreBackend)
	assert.Equal(t, "job-logs", cfg.S3Bucket)
}

func TestLoadConfig_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")
	t.Setenv("POLL_INTERVAL", "soon")

	cfg := LoadConfig()

	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
}
