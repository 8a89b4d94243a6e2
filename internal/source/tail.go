package source

import (
	"sync"

	"github.com/nxadm/tail"
	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/pkg/record"
)

// TailSource follows a log file on disk, emitting one record per line.
type TailSource struct {
	tailer *tail.Tail
	path   string
	tx     Tx
	logger *logrus.Logger
	wg     sync.WaitGroup
}

// NewTailSource starts tailing path from its current end, following
// rotations (truncate/recreate) transparently.
func NewTailSource(path string, tx Tx, logger *logrus.Logger) (*TailSource, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     false,
		Location: &tail.SeekInfo{Whence: 2},
	})
	if err != nil {
		return nil, err
	}

	s := &TailSource{tailer: t, path: path, tx: tx, logger: logger}
	s.wg.Add(1)
	go s.run()

	logger.WithFields(logrus.Fields{"source": "tail", "path": path}).Info("tailing file")
	return s, nil
}

func (s *TailSource) TypeName() string { return "tail" }

func (s *TailSource) run() {
	defer s.wg.Done()

	for line := range s.tailer.Lines {
		if line.Err != nil {
			s.logger.WithError(line.Err).WithField("source", "tail").Warn("tail read error")
			metrics.SourceErrorsTotal.WithLabelValues("tail").Inc()
			continue
		}
		rec := record.NewObject([]record.Field{
			{Key: "message", Value: record.NewString(line.Text)},
			{Key: "path", Value: record.NewString(s.path)},
		})
		s.tx <- rec
	}
}

// Close stops the tailer and joins the forwarding goroutine.
func (s *TailSource) Close() error {
	err := s.tailer.Stop()
	s.wg.Wait()
	return err
}
