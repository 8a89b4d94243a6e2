package source

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/pkg/record"
)

// TcpSource accepts connections and decodes a whitespace-delimited JSON
// stream from each one. Connection-reader goroutines are detached: a slow
// or hung client does not block shutdown of the listener.
type TcpSource struct {
	listener net.Listener
	tx       Tx
	logger   *logrus.Logger
	aborted  atomic.Bool
	wg       sync.WaitGroup
}

// NewTcpSource listens on addr and starts accepting connections.
func NewTcpSource(addr string, tx Tx, logger *logrus.Logger) (*TcpSource, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &TcpSource{listener: ln, tx: tx, logger: logger}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

func (s *TcpSource) TypeName() string { return "tcp" }

func (s *TcpSource) accept() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.aborted.Load() {
				return
			}
			s.logger.WithError(err).WithField("source", "tcp").Warn("accept failed")
			metrics.SourceErrorsTotal.WithLabelValues("tcp").Inc()
			continue
		}
		go s.readConn(conn)
	}
}

func (s *TcpSource) readConn(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	for {
		var rec record.Record
		if err := dec.Decode(&rec); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.WithError(err).WithField("source", "tcp").Warn("discarding malformed input")
				metrics.SourceErrorsTotal.WithLabelValues("tcp").Inc()
			}
			return
		}
		if s.aborted.Load() {
			return
		}
		if !s.send(&rec) {
			return
		}
	}
}

// send forwards rec to tx, recovering from the panic that a send on a
// closed channel raises. Close can close the listener and return before a
// detached readConn has noticed s.aborted, so a shutdown or reload racing
// live traffic must not crash the whole daemon — only this one connection's
// reader gives up.
func (s *TcpSource) send(rec *record.Record) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()
	s.tx <- rec
	return true
}

// Close sets the abort flag, closes the listener (unblocking Accept), and
// joins the acceptor goroutine. Already-accepted connection readers are not
// joined — they exit on their own as clients disconnect.
func (s *TcpSource) Close() error {
	s.aborted.Store(true)
	err := s.listener.Close()
	s.wg.Wait()
	return err
}
