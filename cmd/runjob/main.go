// Command runjob executes a single job in the foreground, without the queue
// or the API. Useful for validating a job spec and for running on a login
// node where only the scheduler client commands are available.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"slurmnode/pkg/artifact"
	"slurmnode/pkg/executor"
	"slurmnode/pkg/logger"
	"slurmnode/pkg/models"
	"slurmnode/pkg/template"
)

type envFlags map[string]string

func (e envFlags) String() string { return "" }

func (e envFlags) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("environment entry %q is not KEY=VALUE", value)
	}
	e[key] = val
	return nil
}

func main() {
	var (
		backend      = flag.String("backend", "local", "execution backend: local or sbatch")
		launcher     = flag.String("launcher", "single", "launcher: single, srun or mpirun")
		partition    = flag.String("partition", "", "scheduler partition")
		qpu          = flag.String("qpu", "", "QPU resource name")
		numNodes     = flag.Int("nodes", 0, "number of nodes")
		mpiProcs     = flag.Int("mpiprocs", 0, "MPI processes per node")
		ompThreads   = flag.Int("ompthreads", 0, "OpenMP threads per process")
		walltime     = flag.String("walltime", "", "walltime limit, [[hour:]minute:]second")
		modules      = flag.String("modules", "", "comma-separated modules to load")
		timeout      = flag.Duration("timeout", 0, "overall execution timeout, 0 = none")
		workRoot     = flag.String("work-root", os.TempDir(), "directory for the job work directory")
		pollInterval = flag.Duration("poll-interval", executor.DefaultPollInterval, "accounting poll interval for batch jobs")
		logLevel     = flag.String("log-level", "info", "log level")
		keep         = flag.Bool("keep", false, "retain the work directory even on success")
	)
	env := envFlags{}
	flag.Var(env, "env", "environment entry KEY=VALUE, repeatable")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: runjob [flags] /path/to/executable")
		flag.PrintDefaults()
		os.Exit(2)
	}

	lcfg := logger.DefaultConfig("runjob")
	lcfg.Level = *logLevel
	lcfg.Encoding = "console"
	log, err := logger.Init(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	spec := models.JobSpec{
		Executable:  flag.Arg(0),
		Backend:     models.Backend(*backend),
		Launcher:    models.Launcher(*launcher),
		Partition:   *partition,
		QPU:         *qpu,
		NumNodes:    *numNodes,
		MPIProcs:    *mpiProcs,
		OMPThreads:  *ompThreads,
		Walltime:    *walltime,
		Environment: env,
	}
	if *modules != "" {
		spec.Modules = strings.Split(*modules, ",")
	}
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		log.Fatal("invalid job spec", zap.Error(err))
	}

	renderer, err := template.NewScriptRenderer()
	if err != nil {
		log.Fatal("failed to load script templates", zap.Error(err))
	}

	exec, err := executor.New(spec.Backend, executor.Config{
		RootDir:  *workRoot,
		Renderer: renderer,
		Logger:   log,
	},
		executor.WithPollInterval(*pollInterval),
		executor.WithReporter(artifact.NewLogReporter(log)),
	)
	if err != nil {
		log.Fatal("failed to build executor", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := exec.EnterScope(); err != nil {
		log.Fatal("failed to enter scope", zap.Error(err))
	}

	start := time.Now()
	exitCode, execErr := exec.ExecuteJob(ctx, *timeout, spec.Variables())

	failed := execErr != nil || exitCode != 0 || *keep
	if err := exec.ExitScope(failed); err != nil {
		log.Warn("failed to exit scope", zap.Error(err))
	}

	if execErr != nil {
		log.Error("job failed", zap.Error(execErr), zap.Duration("duration", time.Since(start)))
		if exitCode < 0 {
			exitCode = 1
		}
		os.Exit(exitCode)
	}

	log.Info("job finished",
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", time.Since(start)))
	if exitCode < 0 {
		exitCode = 1
	}
	os.Exit(exitCode)
}
