package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "slurmnode/configs"
	"slurmnode/pkg/api"
	"slurmnode/pkg/auth"
	"slurmnode/pkg/coordination/etcd"
	"slurmnode/pkg/logger"
	tracing "slurmnode/pkg/observability"
	"slurmnode/pkg/storage"
	"slurmnode/pkg/storage/redis"
)

func main() {
	cfg := config.LoadConfig()

	lcfg := logger.DefaultConfig("slurmnode-api")
	lcfg.Level = cfg.LogLevel
	log, err := logger.Init(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	tp, err := tracing.Init(ctx, tracing.DefaultConfig("slurmnode-api"))
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

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

	var jwtService *auth.JWTService
	var apiKeyStore auth.APIKeyStore
	if cfg.JWTSecret != "" {
		jwtCfg := auth.DefaultJWTConfig()
		jwtCfg.SecretKey = cfg.JWTSecret
		jwtService, err = auth.NewJWTService(jwtCfg)
		if err != nil {
			log.Fatal("failed to initialize JWT service", zap.Error(err))
		}
		apiKeyStore = auth.NewRedisAPIKeyStore(queue.Client())
	} else {
		log.Warn("JWT_SECRET not set, API authentication is disabled")
	}

	server := api.NewServer(api.Config{
		Port:           cfg.APIPort,
		Queue:          queue,
		StatusStore:    statusStore,
		LogStore:       logStore,
		Registry:       registry,
		JWTService:     jwtService,
		APIKeyStore:    apiKeyStore,
		DefaultTimeout: cfg.DefaultJobTimeout,
		Logger:         logger.Named("api"),
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	sig := <-sigChan
	log.Info("received signal, shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
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
