package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() JobSpec {
	return JobSpec{
		Executable: "/opt/app/solver",
		Backend:    BackendLocal,
		Launcher:   LauncherSingle,
	}
}

func TestNormalize_Defaults(t *testing.T) {
	spec := JobSpec{Executable: "/opt/app/solver"}
	spec.Normalize()

	assert.Equal(t, BackendLocal, spec.Backend)
	assert.Equal(t, LauncherSingle, spec.Launcher)
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	spec := JobSpec{Executable: "/opt/app/solver", Backend: BackendSlurm, Launcher: LauncherMPIRun}
	spec.Normalize()

	assert.Equal(t, BackendSlurm, spec.Backend)
	assert.Equal(t, LauncherMPIRun, spec.Launcher)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*JobSpec)
		wantErr string
	}{
		{"valid", func(s *JobSpec) {}, ""},
		{"missing executable", func(s *JobSpec) { s.Executable = "" }, "executable is required"},
		{"relative executable", func(s *JobSpec) { s.Executable = "bin/solver" }, "absolute path"},
		{"unknown backend", func(s *JobSpec) { s.Backend = "pbs" }, "unknown backend"},
		{"unknown launcher", func(s *JobSpec) { s.Launcher = "torchrun" }, "unknown launcher"},
		{"negative nodes", func(s *JobSpec) { s.NumNodes = -1 }, "must not be negative"},
		{"negative threads", func(s *JobSpec) { s.OMPThreads = -4 }, "must not be negative"},
		{"bad walltime", func(s *JobSpec) { s.Walltime = "1h30m" }, "walltime"},
		{"walltime seconds", func(s *JobSpec) { s.Walltime = "90" }, ""},
		{"walltime minutes", func(s *JobSpec) { s.Walltime = "15:00" }, ""},
		{"walltime hours", func(s *JobSpec) { s.Walltime = "2:30:00" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			err := spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestVariables_OmitsEmptyFields(t *testing.T) {
	spec := validSpec()
	vars := spec.Variables()

	require.Equal(t, "/opt/app/solver", vars["executable"])
	require.Equal(t, "single", vars["launcher"])

	for _, key := range []string{"partition", "qpu", "num_nodes", "mpiprocs",
		"mpi_options", "ompthreads", "walltime", "modules", "environments"} {
		_, present := vars[key]
		assert.False(t, present, "expected %q to be omitted", key)
	}
}

func TestVariables_IncludesSetFields(t *testing.T) {
	spec := JobSpec{
		Executable:  "/opt/app/solver",
		Backend:     BackendSlurm,
		Launcher:    LauncherMPIRun,
		Partition:   "compute",
		QPU:         "lucy",
		NumNodes:    2,
		MPIProcs:    16,
		MPIOptions:  []string{"--bind-to", "core"},
		OMPThreads:  4,
		Walltime:    "01:00:00",
		Modules:     []string{"gcc/12"},
		Environment: map[string]string{"MODE": "fast"},
	}

	vars := spec.Variables()
	assert.Equal(t, "compute", vars["partition"])
	assert.Equal(t, "lucy", vars["qpu"])
	assert.Equal(t, 2, vars["num_nodes"])
	assert.Equal(t, 16, vars["mpiprocs"])
	assert.Equal(t, []string{"--bind-to", "core"}, vars["mpi_options"])
	assert.Equal(t, 4, vars["ompthreads"])
	assert.Equal(t, "01:00:00", vars["walltime"])
	assert.Equal(t, []string{"gcc/12"}, vars["modules"])
	assert.Equal(t, map[string]string{"MODE": "fast"}, vars["environments"])
}
