package inference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReloader struct {
	calls atomic.Int32
	err   error
}

func (r *countingReloader) Reload(context.Context) (*Bundle, error) {
	r.calls.Add(1)
	return nil, r.err
}

func TestWatcherReloadsOnArtifactWrite(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "model.safetensors")
	require.NoError(t, os.WriteFile(artifact, []byte("v1"), 0o644))

	r := &countingReloader{}
	w, err := NewWatcher([]string{artifact}, r, nil, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	for i := range 5 {
		require.NoError(t, os.WriteFile(artifact, []byte{byte('a' + i)}, 0o644))
	}
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	// writes within one debounce window collapse into a single reload
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 1, r.calls.Load())
	stats := w.Stats()
	assert.Equal(t, 1, stats.Reloads)
	assert.GreaterOrEqual(t, stats.Events, 1)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "vocab.json")
	require.NoError(t, os.WriteFile(artifact, []byte("{}"), 0o644))

	r := &countingReloader{}
	w, err := NewWatcher([]string{artifact}, r, nil, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, r.calls.Load())
	assert.Zero(t, w.Stats().Events)
}

func TestWatcherCountsFailedReloads(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "model.safetensors")
	require.NoError(t, os.WriteFile(artifact, []byte("v1"), 0o644))

	r := &countingReloader{err: errors.New("corrupt")}
	w, err := NewWatcher([]string{artifact}, r, nil, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(artifact, []byte("v2"), 0o644))
	require.Eventually(t, func() bool { return w.Stats().Failures == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, w.Stats().Reloads)
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w, err := NewWatcher([]string{filepath.Join(t.TempDir(), "m")}, &countingReloader{}, nil, 0)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
	assert.Error(t, w.Start(context.Background()))

	_, err = NewWatcher(nil, &countingReloader{}, nil, 0)
	assert.Error(t, err)
}
