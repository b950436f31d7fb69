package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slurmnode/pkg/executor"
	"slurmnode/pkg/template"
)

// makeRetainedDir lays out a work directory the way a failed scope leaves
// it: marker present, backdated to the given age.
func makeRetainedDir(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.Mkdir(path, 0o755))
	marker := filepath.Join(path, executor.RetainedMarkerName)
	require.NoError(t, os.WriteFile(marker, nil, 0o644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(marker, stamp, stamp))
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	return path
}

func TestSweep_RemovesExpiredWorkDirs(t *testing.T) {
	root := t.TempDir()
	expired := makeRetainedDir(t, root, "job_expired", 48*time.Hour)
	fresh := makeRetainedDir(t, root, "job_fresh", time.Hour)

	j := New(Config{Root: root, Retention: 24 * time.Hour, Schedule: "@hourly"}, nil)
	require.NoError(t, j.Sweep())

	assert.NoDirExists(t, expired)
	assert.DirExists(t, fresh)
}

func TestSweep_SparesUnreleasedWorkDirs(t *testing.T) {
	root := t.TempDir()
	inFlight := filepath.Join(root, "job_inflight")
	require.NoError(t, os.Mkdir(inFlight, 0o755))
	stamp := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(inFlight, stamp, stamp))

	j := New(Config{Root: root, Retention: 24 * time.Hour, Schedule: "@hourly"}, nil)
	require.NoError(t, j.Sweep())

	assert.DirExists(t, inFlight)
}

func TestSweep_SparesActiveScope(t *testing.T) {
	root := t.TempDir()

	renderer, err := template.NewScriptRenderer()
	require.NoError(t, err)
	exec := executor.NewLocalExecutor(executor.Config{RootDir: root, Renderer: renderer})
	require.NoError(t, exec.EnterScope())

	workDir := exec.WorkDir()
	stamp := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(workDir, stamp, stamp))

	j := New(Config{Root: root, Retention: time.Hour, Schedule: "@hourly"}, nil)
	require.NoError(t, j.Sweep())
	assert.DirExists(t, workDir, "in-flight work directory must survive a sweep")

	require.NoError(t, exec.ExitScope(true))
	marker := filepath.Join(workDir, executor.RetainedMarkerName)
	require.NoError(t, os.Chtimes(marker, stamp, stamp))
	require.NoError(t, j.Sweep())
	assert.NoDirExists(t, workDir, "retained directory is fair game once released")
}

func TestSweep_IgnoresForeignEntries(t *testing.T) {
	root := t.TempDir()
	other := filepath.Join(root, "scratch")
	require.NoError(t, os.Mkdir(other, 0o755))
	file := filepath.Join(root, "job_notadir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	stamp := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(other, stamp, stamp))
	require.NoError(t, os.Chtimes(file, stamp, stamp))

	j := New(Config{Root: root, Retention: 24 * time.Hour, Schedule: "@hourly"}, nil)
	require.NoError(t, j.Sweep())

	assert.DirExists(t, other)
	assert.FileExists(t, file)
}

func TestSweep_MissingRootIsNotAnError(t *testing.T) {
	j := New(Config{
		Root:      filepath.Join(t.TempDir(), "does-not-exist"),
		Retention: time.Hour,
		Schedule:  "@hourly",
	}, nil)
	assert.NoError(t, j.Sweep())
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	j := New(Config{Root: t.TempDir(), Retention: time.Hour, Schedule: "not a schedule"}, nil)
	assert.Error(t, j.Start())
}

func TestStartAndStop(t *testing.T) {
	j := New(Config{Root: t.TempDir(), Retention: time.Hour, Schedule: "@hourly"}, nil)
	require.NoError(t, j.Start())
	j.Stop()
}
