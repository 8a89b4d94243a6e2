package sink

import (
	"io"

	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/pkg/record"
)

// StreamSink JSON-marshals each record and writes it as one line to an
// output writer (os.Stdout, or os.Stderr when configured). It owns no goroutine: Handle
// runs synchronously on the dispatch goroutine.
type StreamSink struct {
	w      io.Writer
	logger *logrus.Logger
}

// NewStreamSink wraps w for line-delimited JSON output.
func NewStreamSink(w io.Writer, logger *logrus.Logger) *StreamSink {
	return &StreamSink{w: w, logger: logger}
}

func (s *StreamSink) Handle(rec *record.Record) {
	b, err := rec.MarshalJSON()
	if err != nil {
		s.logger.WithError(err).WithField("sink", "stream").Warn("dropping record: marshal failed")
		metrics.SinkHandledTotal.WithLabelValues("stream", "error").Inc()
		return
	}
	b = append(b, '\n')
	if _, err := s.w.Write(b); err != nil {
		s.logger.WithError(err).WithField("sink", "stream").Warn("dropping record: write failed")
		metrics.SinkHandledTotal.WithLabelValues("stream", "error").Inc()
		return
	}
	metrics.SinkHandledTotal.WithLabelValues("stream", "ok").Inc()
}

// ReopenChannel reports no reopen-able state.
func (s *StreamSink) ReopenChannel() chan<- struct{} { return nil }

// Close is a no-op: the sink owns no goroutine and the underlying writer's
// lifetime belongs to its caller.
func (s *StreamSink) Close() error { return nil }
