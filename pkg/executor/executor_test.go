package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRenderer renders a canned script regardless of template id.
type stubRenderer struct {
	text string
	err  error
	vars map[string]any
}

func (r *stubRenderer) Render(templateID string, vars map[string]any) (string, error) {
	r.vars = vars
	return r.text, r.err
}

func newTestBase(t *testing.T, text string) (*base, *stubRenderer) {
	t.Helper()
	r := &stubRenderer{text: text}
	b := newBase(Config{RootDir: t.TempDir(), Renderer: r}, "local.sh.tmpl")
	return &b, r
}

func TestTruncate_ShortTextUnchanged(t *testing.T) {
	text := "hello world"
	if got := Truncate(text); got != text {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestTruncate_ExactLimitUnchanged(t *testing.T) {
	text := strings.Repeat("a", MaxLogSize)
	if got := Truncate(text); got != text {
		t.Errorf("expected text at the limit to pass through unchanged")
	}
}

func TestTruncate_LongTextGetsMarker(t *testing.T) {
	text := strings.Repeat("a", MaxLogSize+250)
	got := Truncate(text)

	want := text[:MaxLogSize] + fmt.Sprintf("... (truncated %d chars)", 250)
	if got != want {
		t.Errorf("unexpected truncation result, got tail %q", got[len(got)-40:])
	}
}

func TestTruncate_CutsOnRuneBoundary(t *testing.T) {
	// Three-byte runes that do not divide the limit evenly, so a naive
	// byte slice would land mid-sequence.
	text := strings.Repeat("界", MaxLogSize)
	got := Truncate(text)

	marker := strings.Index(got, "... (truncated")
	if marker < 0 {
		t.Fatalf("expected a truncation marker")
	}
	if !utf8.ValidString(got[:marker]) {
		t.Errorf("truncation split a UTF-8 sequence")
	}
	want := fmt.Sprintf("... (truncated %d chars)", MaxLogSize-utf8.RuneCountInString(got[:marker]))
	if !strings.HasSuffix(got, want) {
		t.Errorf("unexpected marker, got tail %q", got[marker:])
	}
}

func TestEnterScope_CreatesWorkDir(t *testing.T) {
	b, _ := newTestBase(t, "#!/bin/sh\n")

	require.NoError(t, b.EnterScope())
	require.NotEmpty(t, b.WorkDir())

	info, err := os.Stat(b.WorkDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, strings.HasPrefix(filepath.Base(b.WorkDir()), "job_"))
}

func TestEnterScope_RejectsNesting(t *testing.T) {
	b, _ := newTestBase(t, "#!/bin/sh\n")

	require.NoError(t, b.EnterScope())
	err := b.EnterScope()

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "enter_scope", stateErr.Op)
}

func TestExitScope_CleanRemovesWorkDir(t *testing.T) {
	b, _ := newTestBase(t, "#!/bin/sh\n")
	require.NoError(t, b.EnterScope())
	dir := b.WorkDir()

	require.NoError(t, b.ExitScope(false))

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, b.WorkDir())
}

func TestExitScope_FailedRetainsWorkDir(t *testing.T) {
	b, _ := newTestBase(t, "#!/bin/sh\n")
	require.NoError(t, b.EnterScope())
	dir := b.WorkDir()

	require.NoError(t, b.ExitScope(true))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, filepath.Join(dir, RetainedMarkerName))
}

func TestEnterScope_LeavesNoRetainedMarker(t *testing.T) {
	b, _ := newTestBase(t, "#!/bin/sh\n")
	require.NoError(t, b.EnterScope())

	assert.NoFileExists(t, filepath.Join(b.WorkDir(), RetainedMarkerName))
}

func TestExitScope_WithoutScopeFails(t *testing.T) {
	b, _ := newTestBase(t, "#!/bin/sh\n")

	var stateErr *StateError
	require.ErrorAs(t, b.ExitScope(false), &stateErr)
	assert.Equal(t, "exit_scope", stateErr.Op)
}

func TestWriteScript_WritesRenderedBytes(t *testing.T) {
	script := "#!/bin/sh\necho hi\n"
	b, r := newTestBase(t, script)
	require.NoError(t, b.EnterScope())

	path, err := b.WriteScript(map[string]any{"executable": "/bin/echo"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(b.WorkDir(), "local.sh"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, script, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	// The work directory is injected without mutating the caller's map.
	assert.Equal(t, b.WorkDir(), r.vars["work_dir"])
	assert.Equal(t, "/bin/echo", r.vars["executable"])
}

func TestWriteScript_OutsideScopeFails(t *testing.T) {
	b, _ := newTestBase(t, "#!/bin/sh\n")

	_, err := b.WriteScript(nil)

	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "write_script", stateErr.Op)
}

func TestNew_PicksBackend(t *testing.T) {
	cfg := Config{RootDir: t.TempDir(), Renderer: &stubRenderer{}}

	local, err := New("local", cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalExecutor{}, local)

	batch, err := New("sbatch", cfg)
	require.NoError(t, err)
	assert.IsType(t, &BatchExecutor{}, batch)

	_, err = New("pbs", cfg)
	assert.Error(t, err)
}
