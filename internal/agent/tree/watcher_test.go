package tree

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const soloTree = `
name: solo
instruction: first
`

func createTempTreeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type reloads struct {
	mu    sync.Mutex
	specs []*AgentSpec
}

func (r *reloads) callback(spec *AgentSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = append(r.specs, spec)
	return nil
}

func (r *reloads) last() (*AgentSpec, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.specs) == 0 {
		return nil, 0
	}
	return r.specs[len(r.specs)-1], len(r.specs)
}

func TestNewWatcherValidation(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{}, func(*AgentSpec) error { return nil })
	assert.Error(t, err)

	_, err = NewWatcher(WatcherConfig{FilePath: "tree.yaml"}, nil)
	assert.Error(t, err)

	w, err := NewWatcher(WatcherConfig{FilePath: "tree.yaml"}, func(*AgentSpec) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 500, w.config.DebounceMillis)
}

func TestWatcherInitialLoad(t *testing.T) {
	path := createTempTreeFile(t, soloTree)
	var r reloads

	w, err := NewWatcher(WatcherConfig{FilePath: path, DebounceMillis: 20}, r.callback)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	spec, n := r.last()
	assert.Equal(t, 1, n)
	assert.Equal(t, "first", spec.Instruction)
}

func TestWatcherStartFailsOnInvalidTree(t *testing.T) {
	path := createTempTreeFile(t, "name: solo\n")
	w, err := NewWatcher(WatcherConfig{FilePath: path}, func(*AgentSpec) error { return nil })
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := createTempTreeFile(t, soloTree)
	var r reloads

	w, err := NewWatcher(WatcherConfig{FilePath: path, DebounceMillis: 20}, r.callback)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, os.WriteFile(path, []byte("name: solo\ninstruction: second\n"), 0o600))

	assert.Eventually(t, func() bool {
		spec, _ := r.last()
		return spec != nil && spec.Instruction == "second"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcherKeepsPreviousTreeOnInvalidChange(t *testing.T) {
	path := createTempTreeFile(t, soloTree)
	var r reloads

	w, err := NewWatcher(WatcherConfig{
		FilePath:       path,
		DebounceMillis: 20,
		Validator:      knownTools,
	}, r.callback)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, os.WriteFile(path, []byte("name: solo\ninstruction: x\ntools: [reboot]\n"), 0o600))
	time.Sleep(300 * time.Millisecond)

	spec, n := r.last()
	assert.Equal(t, 1, n)
	assert.Equal(t, "first", spec.Instruction)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := createTempTreeFile(t, soloTree)
	w, err := NewWatcher(WatcherConfig{FilePath: path}, func(*AgentSpec) error { return nil })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop(context.Background()))
	assert.NoError(t, w.Stop(context.Background()))
}

func TestWatcherAbortedStartReleasesResources(t *testing.T) {
	path := createTempTreeFile(t, soloTree)
	w, err := NewWatcher(WatcherConfig{FilePath: path}, func(*AgentSpec) error { return nil })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	stopped := w.stopped

	w.abortStart()
	assert.Nil(t, w.cancel)
	assert.Nil(t, w.watcher)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop kept running after aborted start")
	}

	began := time.Now()
	assert.NoError(t, w.Stop(context.Background()))
	assert.Less(t, time.Since(began), time.Second)

	require.NoError(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop(context.Background()))
}
