package source

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/pkg/record"
)

// StdinSource decodes a continuous stream of JSON values from os.Stdin.
type StdinSource struct {
	tx     Tx
	logger *logrus.Logger
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewStdinSource starts reading os.Stdin on a background goroutine.
func NewStdinSource(tx Tx, logger *logrus.Logger) *StdinSource {
	s := &StdinSource{
		tx:     tx,
		logger: logger,
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *StdinSource) TypeName() string { return "stdin" }

func (s *StdinSource) run() {
	defer s.wg.Done()

	dec := json.NewDecoder(os.Stdin)
	for {
		var rec record.Record
		if err := dec.Decode(&rec); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.WithError(err).WithField("source", "stdin").Warn("discarding malformed input")
				metrics.SourceErrorsTotal.WithLabelValues("stdin").Inc()
			}
			return
		}

		select {
		case <-s.done:
			return
		default:
		}
		select {
		case s.tx <- &rec:
		case <-s.done:
			return
		}
	}
}

// Close marks the source stopped. Stdin itself closes with the process, and
// a pending Decode on os.Stdin cannot be interrupted from here, so Close does
// not join the read goroutine — it only stops records it may still emit from
// reaching tx after shutdown has begun.
func (s *StdinSource) Close() error {
	close(s.done)
	return nil
}
