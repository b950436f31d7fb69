package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	config "slurmnode/configs"
	"slurmnode/pkg/coordination/etcd"
	"slurmnode/pkg/janitor"
	"slurmnode/pkg/logger"
	tracing "slurmnode/pkg/observability"
	"slurmnode/pkg/storage"
	"slurmnode/pkg/storage/redis"
	"slurmnode/pkg/worker"
)

func main() {
	cfg := config.LoadConfig()

	lcfg := logger.DefaultConfig("slurmnode-worker")
	lcfg.Level = cfg.LogLevel
	log, err := logger.Init(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	tp, err := tracing.Init(ctx, tracing.DefaultConfig("slurmnode-worker"))
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
		log.Fatal("failed to create work root", zap.Error(err))
	}

	logHostResources(log)

	redisAddr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
	queue, err := redis.NewRedisQueue(redisAddr)
	if err != nil {
		log.Fatal("failed to initialize redis queue", zap.Error(err))
	}
	defer queue.Close()
	statusStore := redis.NewRedisStatusStore(queue.Client())
	log.Info("redis connected", zap.String("addr", redisAddr))

	registry, err := etcd.NewEtcdRegistry(cfg.EtcdEndpoints)
	if err != nil {
		log.Fatal("failed to connect to etcd", zap.Error(err))
	}
	defer registry.Close()
	log.Info("etcd connected", zap.Strings("endpoints", cfg.EtcdEndpoints))

	logStore, err := newLogStore(cfg)
	if err != nil {
		log.Fatal("failed to initialize log store", zap.Error(err))
	}

	sweeper := janitor.New(janitor.Config{
		Root:      cfg.WorkRoot,
		Retention: cfg.WorkDirRetention,
		Schedule:  cfg.SweepSchedule,
	}, logger.Named("janitor"))
	if err := sweeper.Start(); err != nil {
		log.Fatal("failed to start janitor", zap.Error(err))
	}
	defer sweeper.Stop()

	w, err := worker.New(worker.Config{
		WorkRoot:     cfg.WorkRoot,
		Concurrency:  cfg.WorkerConcurrency,
		NodeTTL:      cfg.NodeTTL,
		PollInterval: cfg.PollInterval,
	}, registry, queue, statusStore, logStore, logger.Named("worker"))
	if err != nil {
		log.Fatal("failed to create worker", zap.Error(err))
	}

	w.Start(ctx)
	log.Info("worker stopped")
}

func logHostResources(log *zap.Logger) {
	fields := []zap.Field{}
	if count, err := cpu.Counts(true); err == nil {
		fields = append(fields, zap.Int("cpus", count))
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields = append(fields, zap.Uint64("memory_total_mb", vm.Total/1024/1024))
	}
	log.Info("host resources", fields...)
}

func newLogStore(cfg *config.Config) (storage.LogStore, error) {
	if cfg.LogStoreBackend == "s3" {
		return storage.NewS3LogStore(storage.S3LogStoreConfig{
			Bucket:          cfg.S3Bucket,
			Prefix:          "logs/jobs/",
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
	}
	return storage.NewLocalLogStore(cfg.LogDir)
}
