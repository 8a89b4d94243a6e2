package source

import (
	"bufio"
	"context"
	"sync"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/pkg/record"
)

// DockerSource attaches to one container's combined stdout/stderr log
// stream and emits one record per line.
type DockerSource struct {
	cli         *client.Client
	containerID string
	tx          Tx
	logger      *logrus.Logger
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewDockerSource attaches to container's log stream and starts forwarding
// lines.
func NewDockerSource(container string, tx Tx, logger *logrus.Logger) (*DockerSource, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &DockerSource{cli: cli, containerID: container, tx: tx, logger: logger, cancel: cancel}

	logStream, err := cli.ContainerLogs(ctx, container, dockertypes.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		cancel()
		cli.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.run(logStream)

	logger.WithFields(logrus.Fields{"source": "docker", "container": container}).Info("attached to container log stream")
	return s, nil
}

func (s *DockerSource) TypeName() string { return "docker" }

type lineWriter struct {
	emit func(line string)
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := indexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func (s *DockerSource) run(logStream interface {
	Read([]byte) (int, error)
	Close() error
}) {
	defer s.wg.Done()
	defer logStream.Close()

	forward := func(line string) {
		rec := record.NewObject([]record.Field{
			{Key: "message", Value: record.NewString(line)},
			{Key: "container_id", Value: record.NewString(s.containerID)},
		})
		s.tx <- rec
	}

	stdout := &lineWriter{emit: forward}
	stderr := &lineWriter{emit: forward}

	_, err := stdcopy.StdCopy(stdout, stderr, bufio.NewReader(logStream))
	if err != nil && err != context.Canceled {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"source":       "docker",
			"container_id": s.containerID,
		}).Warn("log stream ended")
		metrics.SourceErrorsTotal.WithLabelValues("docker").Inc()
	}
}

// Close cancels the attached log stream's context and joins the forwarding
// goroutine.
func (s *DockerSource) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.cli.Close()
}
