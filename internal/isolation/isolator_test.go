package isolation

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

// ---------------------------------------------------------------------------
// ProcessIsolator
// ---------------------------------------------------------------------------

func TestProcessIsolator_Wrap_PreservesFields(t *testing.T) {
	skipWithoutShell(t)
	var stdout bytes.Buffer
	cmd := exec.Command("/bin/sh", "-c", "pwd")
	cmd.Dir = t.TempDir()
	cmd.Stdout = &stdout

	wrapped, cleanup, err := NewProcessIsolator().Wrap(context.Background(), cmd, Limits{})
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, cmd.Args, wrapped.Args)
	assert.Equal(t, cmd.Dir, wrapped.Dir)
	require.NoError(t, wrapped.Run())
	resolved, err := filepath.EvalSymlinks(cmd.Dir)
	require.NoError(t, err)
	assert.Contains(t, []string{cmd.Dir, resolved}, strings.TrimSpace(stdout.String()))
}

func TestProcessIsolator_Wrap_ReplacesEnv(t *testing.T) {
	skipWithoutShell(t)
	t.Setenv("PDC_SECRET_FOR_TEST", "leak")
	var stdout bytes.Buffer
	cmd := exec.Command("/bin/sh", "-c", "echo \"[$PDC_SECRET_FOR_TEST][$ONLY]\"")
	cmd.Stdout = &stdout

	wrapped, cleanup, err := NewProcessIsolator().Wrap(context.Background(), cmd, Limits{Env: []string{"ONLY=yes"}})
	require.NoError(t, err)
	defer cleanup()
	require.NoError(t, wrapped.Run())
	assert.Equal(t, "[][yes]", strings.TrimSpace(stdout.String()))
}

func TestProcessIsolator_Wrap_CancelledCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewProcessIsolator().Wrap(ctx, exec.Command("/bin/true"), Limits{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessIsolator_Wrap_TimeoutKills(t *testing.T) {
	skipWithoutShell(t)
	cmd := exec.Command("/bin/sh", "-c", "exec sleep 10")
	wrapped, cleanup, err := NewProcessIsolator().Wrap(context.Background(), cmd, Limits{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer cleanup()

	start := time.Now()
	err = wrapped.Run()
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_Stdout(t *testing.T) {
	skipWithoutShell(t)
	cmd := exec.Command("/bin/sh", "-c", "exec /bin/cat")
	cmd.Stdin = strings.NewReader("graph TD\n")

	out, err := Run(context.Background(), NewProcessIsolator(), cmd, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n", string(out))
}

func TestRun_NonZeroExitIncludesStderr(t *testing.T) {
	skipWithoutShell(t)
	cmd := exec.Command("/bin/sh", "-c", "echo 'parse error' >&2; exit 2")
	_, err := Run(context.Background(), NewProcessIsolator(), cmd, DefaultLimits())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")
}

func TestRun_Timeout(t *testing.T) {
	skipWithoutShell(t)
	cmd := exec.Command("/bin/sh", "-c", "exec sleep 10")
	_, err := Run(context.Background(), NewProcessIsolator(), cmd, Limits{Timeout: 100 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_OutputLimit(t *testing.T) {
	skipWithoutShell(t)
	cmd := exec.Command("/bin/sh", "-c", "printf '0123456789abcdef'")
	_, err := Run(context.Background(), NewProcessIsolator(), cmd, Limits{Timeout: 5 * time.Second, MaxOutputBytes: 8})
	assert.ErrorIs(t, err, ErrOutputLimit)
}

func TestCappedBuffer(t *testing.T) {
	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, b.overflow)

	n, err = b.Write([]byte("cdef"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, b.overflow)
	assert.Equal(t, "abcd", b.String())

	unbounded := &cappedBuffer{}
	_, _ = unbounded.Write(bytes.Repeat([]byte("x"), 1<<12))
	assert.False(t, unbounded.overflow)
	assert.Equal(t, 1<<12, unbounded.Len())
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func TestContain(t *testing.T) {
	root := t.TempDir()

	got, err := Contain(root, "artifacts/a/b.svg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "artifacts", "a", "b.svg"), got)

	for _, rel := range []string{"../escape", "a/../../escape", ".", "", "a\x00b"} {
		_, err := Contain(root, rel)
		assert.Error(t, err, "rel %q", rel)
	}
}

func TestContain_SymlinkEscape(t *testing.T) {
	skipWithoutShell(t)
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	_, err := Contain(root, "link/file.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestContain_SymlinkedRoot(t *testing.T) {
	skipWithoutShell(t)
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "root")
	require.NoError(t, os.Symlink(target, link))

	got, err := Contain(link, "x/y.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(link, "x", "y.png"), got)
}

func TestIsUnder(t *testing.T) {
	assert.True(t, IsUnder("/data", "/data"))
	assert.True(t, IsUnder("/data/a/b", "/data"))
	assert.False(t, IsUnder("/other", "/data"))
	assert.False(t, IsUnder("/database", "/data"))
	assert.True(t, IsUnder("/data/..hidden", "/data"))
}
