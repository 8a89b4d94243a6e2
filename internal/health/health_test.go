package health

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
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

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

type recordingPoster struct {
	events []runtime.ControlEvent
}

func (p *recordingPoster) Post(event runtime.ControlEvent) bool {
	p.events = append(p.events, event)
	return true
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	addr := freeAddr(t)
	s := NewServer(addr, nil, testLogger())
	s.Start()
	defer s.Close()

	waitForListener(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	addr := freeAddr(t)
	s := NewServer(addr, nil, testLogger())
	s.Start()
	defer s.Close()

	waitForListener(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "zenlogd_")
}

func TestReopenEndpointWithoutPosterIsUnavailable(t *testing.T) {
	addr := freeAddr(t)
	s := NewServer(addr, nil, testLogger())
	s.Start()
	defer s.Close()

	waitForListener(t, addr)

	resp, err := http.Post(fmt.Sprintf("http://%s/reopen", addr), "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestReopenEndpointPostsControlEvent(t *testing.T) {
	addr := freeAddr(t)
	poster := &recordingPoster{}
	s := NewServer(addr, poster, testLogger())
	s.Start()
	defer s.Close()

	waitForListener(t, addr)

	resp, err := http.Post(fmt.Sprintf("http://%s/reopen", addr), "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, poster.events, 1)
	assert.IsType(t, runtime.ReopenOutputs{}, poster.events[0])
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	for i := 0; i < 50; i++ {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s never started listening", addr)
}
