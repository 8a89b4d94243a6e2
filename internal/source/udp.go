package source

import (
	"errors"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/pkg/record"
)

const udpReadBufferSize = 16 * 1024

// UdpSource reads one JSON value per UDP datagram.
type UdpSource struct {
	conn   *net.UDPConn
	tx     Tx
	logger *logrus.Logger
	wg     sync.WaitGroup
}

// NewUdpSource binds addr and starts reading datagrams.
func NewUdpSource(addr string, tx Tx, logger *logrus.Logger) (*UdpSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	s := &UdpSource{conn: conn, tx: tx, logger: logger}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *UdpSource) TypeName() string { return "udp" }

func (s *UdpSource) run() {
	defer s.wg.Done()

	buf := make([]byte, udpReadBufferSize)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.WithError(err).WithField("source", "udp").Warn("read failed")
			metrics.SourceErrorsTotal.WithLabelValues("udp").Inc()
			continue
		}

		var rec record.Record
		if err := rec.UnmarshalJSON(buf[:n]); err != nil {
			s.logger.WithError(err).WithField("source", "udp").Warn("discarding malformed datagram")
			metrics.SourceErrorsTotal.WithLabelValues("udp").Inc()
			continue
		}
		s.tx <- &rec
	}
}

// Close closes the socket, which unblocks the pending read with
// net.ErrClosed, then joins the reader goroutine.
func (s *UdpSource) Close() error {
	err := s.conn.Close()
	s.wg.Wait()
	return err
}
