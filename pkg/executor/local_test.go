package executor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLocal(t *testing.T, script string, timeout time.Duration) (int, error) {
	t.Helper()
	e := NewLocalExecutor(Config{RootDir: t.TempDir(), Renderer: &stubRenderer{text: script}})
	require.NoError(t, e.EnterScope())
	t.Cleanup(func() { _ = os.RemoveAll(e.WorkDir()) })
	return e.ExecuteJob(context.Background(), timeout, nil)
}

func TestLocalExecutor_Success(t *testing.T) {
	code, err := runLocal(t, "#!/bin/sh\necho hello\n", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestLocalExecutor_NonzeroExit(t *testing.T) {
	code, err := runLocal(t, "#!/bin/sh\nexit 3\n", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestLocalExecutor_Timeout(t *testing.T) {
	start := time.Now()
	code, err := runLocal(t, "#!/bin/sh\nsleep 10\n", 100*time.Millisecond)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, ExitUnknown, code)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "process", timeoutErr.Kind)
	// The error names the process that was killed.
	if _, convErr := strconv.Atoi(timeoutErr.ID); convErr != nil {
		t.Errorf("expected a pid in the timeout error, got %q", timeoutErr.ID)
	}
}

func TestLocalExecutor_ContextCancellation(t *testing.T) {
	e := NewLocalExecutor(Config{RootDir: t.TempDir(), Renderer: &stubRenderer{text: "#!/bin/sh\nsleep 10\n"}})
	require.NoError(t, e.EnterScope())
	t.Cleanup(func() { _ = os.RemoveAll(e.WorkDir()) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	code, err := e.ExecuteJob(ctx, 0, nil)
	assert.Equal(t, ExitUnknown, code)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalExecutor_SavesOutputFiles(t *testing.T) {
	e := NewLocalExecutor(Config{
		RootDir:  t.TempDir(),
		Renderer: &stubRenderer{text: "#!/bin/sh\necho stdout-line\necho stderr-line >&2\n"},
	})
	require.NoError(t, e.EnterScope())
	t.Cleanup(func() { _ = os.RemoveAll(e.WorkDir()) })

	code, err := e.ExecuteJob(context.Background(), 0, nil)
	require.NoError(t, err)
	require.Equal(t, 0, code)

	stdout, err := os.ReadFile(filepath.Join(e.WorkDir(), StdoutFileName))
	require.NoError(t, err)
	assert.Equal(t, "stdout-line\n", string(stdout))

	stderr, err := os.ReadFile(filepath.Join(e.WorkDir(), StderrFileName))
	require.NoError(t, err)
	assert.Equal(t, "stderr-line\n", string(stderr))
}

func TestLocalExecutor_RenderFailure(t *testing.T) {
	e := NewLocalExecutor(Config{
		RootDir:  t.TempDir(),
		Renderer: &stubRenderer{err: assert.AnError},
	})
	require.NoError(t, e.EnterScope())
	t.Cleanup(func() { _ = os.RemoveAll(e.WorkDir()) })

	code, err := e.ExecuteJob(context.Background(), 0, nil)
	assert.Equal(t, ExitUnknown, code)
	assert.ErrorIs(t, err, assert.AnError)
}
