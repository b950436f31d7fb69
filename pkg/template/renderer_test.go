package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, templateID string, vars map[string]any) string {
	t.Helper()
	r, err := NewScriptRenderer()
	require.NoError(t, err)
	out, err := r.Render(templateID, vars)
	require.NoError(t, err)
	return out
}

func TestRender_UnknownTemplate(t *testing.T) {
	r, err := NewScriptRenderer()
	require.NoError(t, err)

	_, err = r.Render("pbs.sh.tmpl", nil)
	assert.ErrorContains(t, err, "unknown job script template")
}

func TestRender_LocalMinimal(t *testing.T) {
	out := render(t, "local.sh.tmpl", map[string]any{
		"executable": "/opt/app/solver",
		"launcher":   "single",
		"work_dir":   "/tmp/job_1",
	})

	assert.True(t, strings.HasPrefix(out, "#!/bin/sh\n"))
	assert.Contains(t, out, "cd /tmp/job_1\n")
	assert.Contains(t, out, "\n/opt/app/solver")
	assert.NotContains(t, out, "module load")
	assert.NotContains(t, out, "OMP_NUM_THREADS")
	assert.NotContains(t, out, "mpirun")
	assert.NotContains(t, out, "srun")
}

func TestRender_LocalMPIRun(t *testing.T) {
	out := render(t, "local.sh.tmpl", map[string]any{
		"executable":  "/opt/app/solver",
		"launcher":    "mpirun",
		"work_dir":    "/tmp/job_2",
		"mpiprocs":    8,
		"mpi_options": []string{"--bind-to", "core"},
		"modules":     []string{"gcc/12", "openmpi"},
		"ompthreads":  4,
	})

	assert.Contains(t, out, "module load gcc/12\n")
	assert.Contains(t, out, "module load openmpi\n")
	assert.Contains(t, out, "export OMP_NUM_THREADS=4\n")
	assert.Contains(t, out, "mpirun -np 8 --bind-to core /opt/app/solver")
}

func TestRender_LocalSrun(t *testing.T) {
	out := render(t, "local.sh.tmpl", map[string]any{
		"executable":  "/opt/app/solver",
		"launcher":    "srun",
		"work_dir":    "/tmp/job_3",
		"mpi_options": []string{"--exclusive"},
	})

	assert.Contains(t, out, "srun --exclusive /opt/app/solver")
}

func TestRender_LocalEnvironment(t *testing.T) {
	out := render(t, "local.sh.tmpl", map[string]any{
		"executable":   "/opt/app/solver",
		"launcher":     "single",
		"work_dir":     "/tmp/job_4",
		"environments": map[string]string{"TOKEN": "abc", "MODE": "fast"},
	})

	assert.Contains(t, out, "export MODE=fast\n")
	assert.Contains(t, out, "export TOKEN=abc\n")
}

func TestRender_BatchDirectives(t *testing.T) {
	out := render(t, "batch.slurm.tmpl", map[string]any{
		"executable": "/opt/app/solver",
		"launcher":   "single",
		"work_dir":   "/tmp/job_5",
		"partition":  "compute",
		"num_nodes":  2,
		"mpiprocs":   16,
		"ompthreads": 2,
		"walltime":   "01:30:00",
	})

	assert.True(t, strings.HasPrefix(out, "#!/bin/bash\n"))
	assert.Contains(t, out, "#SBATCH --partition=compute\n")
	assert.Contains(t, out, "#SBATCH --nodes=2\n")
	assert.Contains(t, out, "#SBATCH --ntasks-per-node=16\n")
	assert.Contains(t, out, "#SBATCH --cpus-per-task=2\n")
	assert.Contains(t, out, "#SBATCH --time=01:30:00\n")
	assert.Contains(t, out, "#SBATCH --chdir=/tmp/job_5\n")
	assert.Contains(t, out, "#SBATCH --output=/tmp/job_5/output.out\n")
	assert.Contains(t, out, "#SBATCH --error=/tmp/job_5/output.err\n")
	assert.Contains(t, out, "module load intel impi\n")
}

func TestRender_BatchOmitsEmptyDirectives(t *testing.T) {
	out := render(t, "batch.slurm.tmpl", map[string]any{
		"executable": "/opt/app/solver",
		"launcher":   "single",
		"work_dir":   "/tmp/job_6",
	})

	assert.NotContains(t, out, "--partition")
	assert.NotContains(t, out, "--nodes")
	assert.NotContains(t, out, "--ntasks-per-node")
	assert.NotContains(t, out, "--time")
	// The fixed directives are always present.
	assert.Contains(t, out, "#SBATCH --chdir=/tmp/job_6\n")
}

func TestRender_BatchQPU(t *testing.T) {
	out := render(t, "batch.slurm.tmpl", map[string]any{
		"executable": "/opt/app/solver",
		"launcher":   "single",
		"work_dir":   "/tmp/job_7",
		"qpu":        "lucy",
	})

	assert.Contains(t, out, "export SLURM_JOB_QPU_RESOURCES=lucy\n")
}
