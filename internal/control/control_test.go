package control

import (
	"bytes"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenlogd/internal/runtime"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(bytes.NewBuffer(nil))
	return l
}

func waitForEvent(t *testing.T, m *Mapper) runtime.ControlEvent {
	t.Helper()
	select {
	case ev := <-m.Events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control event")
		return nil
	}
}

func TestSigtermPostsShutdown(t *testing.T) {
	m := NewMapper()
	ListenSignals(m, filepath.Join(t.TempDir(), "missing.yaml"), testLogger())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	ev := waitForEvent(t, m)
	assert.IsType(t, runtime.Shutdown{}, ev)
}

func TestSighupPostsReloadWithParsedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zenlogd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("severity: 3\npipelines: {}\n"), 0o644))

	m := NewMapper()
	ListenSignals(m, path, testLogger())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGHUP))

	ev := waitForEvent(t, m)
	reload, ok := ev.(runtime.Reload)
	require.True(t, ok)
	assert.Equal(t, 3, reload.Config.Severity)
}

func TestSigusr1PostsReopenOutputs(t *testing.T) {
	m := NewMapper()
	ListenSignals(m, filepath.Join(t.TempDir(), "missing.yaml"), testLogger())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	ev := waitForEvent(t, m)
	assert.IsType(t, runtime.ReopenOutputs{}, ev)
}

func TestSigusr2NeverPostsToEventsChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zenlogd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("severity: 0\npipelines: {}\n"), 0o644))

	logger := testLogger()
	m := NewMapper()
	ListenSignals(m, path, logger)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR2))

	time.Sleep(100 * time.Millisecond)
	select {
	case ev := <-m.Events:
		t.Fatalf("expected no control event from SIGUSR2, got %#v", ev)
	default:
	}
	assert.Equal(t, logrus.ErrorLevel, logger.GetLevel())
}

func TestWatchConfigFilePostsReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zenlogd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("severity: 2\npipelines: {}\n"), 0o644))

	m := NewMapper()
	watcher, err := WatchConfigFile(m, path, testLogger())
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte("severity: 1\npipelines: {}\n"), 0o644))

	ev := waitForEvent(t, m)
	reload, ok := ev.(runtime.Reload)
	require.True(t, ok)
	assert.Equal(t, 1, reload.Config.Severity)
}
