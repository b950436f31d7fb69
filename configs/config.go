package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// WorkRoot is where per-job work directories are created.
	WorkRoot string

	APIPort   string
	RedisHost string
	RedisPort string

	EtcdEndpoints []string
	NodeTTL       int // seconds

	WorkerConcurrency int
	PollInterval      time.Duration // sacct polling
	DefaultJobTimeout time.Duration // 0 = no deadline

	// Retention for work directories kept after failed jobs.
	WorkDirRetention time.Duration
	SweepSchedule    string // cron spec for the janitor

	// Log archive: "local" or "s3".
	LogStoreBackend string
	LogDir          string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string

	JWTSecret string
	LogLevel  string
}

func LoadConfig() *Config {
	return &Config{
		WorkRoot:          getEnv("WORK_ROOT", "/tmp/slurmnode"),
		APIPort:           getEnv("API_PORT", "8080"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		EtcdEndpoints:     []string{getEnv("ETCD_ENDPOINTS", "localhost:2379")},
		NodeTTL:           getEnvAsInt("NODE_TTL", 10),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		PollInterval:      getEnvAsDuration("POLL_INTERVAL", 10*time.Second),
		DefaultJobTimeout: getEnvAsDuration("DEFAULT_JOB_TIMEOUT", 0),
		WorkDirRetention:  getEnvAsDuration("WORK_DIR_RETENTION", 72*time.Hour),
		SweepSchedule:     getEnv("SWEEP_SCHEDULE", "@hourly"),
		LogStoreBackend:   getEnv("LOG_STORE", "local"),
		LogDir:            getEnv("LOG_DIR", "/var/log/slurmnode/jobs"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKey:       getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:       getEnv("S3_SECRET_KEY", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
