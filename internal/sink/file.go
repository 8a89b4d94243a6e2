package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/internal/template"
	"zenlogd/pkg/record"
)

// FileSink writes each record's evaluated line pattern into a file whose
// path is itself evaluated per record, appending. Open file handles are
// cached by path and released on reopen (e.g. after external log rotation).
// When maxBytes is positive, a file that grows to maxBytes or beyond is
// gzip-compressed to path+".1.gz" (replacing any earlier backup) and a fresh
// file is opened in its place.
type FileSink struct {
	pathGen    *template.Generator
	patternGen *template.Generator
	logger     *logrus.Logger
	maxBytes   int64

	queue  chan *record.Record
	reopen chan struct{}
	wg     sync.WaitGroup

	name string
}

const fileSinkQueueDepth = 4096

type openFile struct {
	f    *os.File
	size int64
}

// NewFileSink builds a sink that evaluates pathTemplate to choose a target
// file per record and patternTemplate to render the line written to it.
// maxBytes of 0 disables size-based rotation.
func NewFileSink(name, pathTemplate, patternTemplate string, maxBytes int64, logger *logrus.Logger) (*FileSink, error) {
	pathGen, err := template.Parse(pathTemplate)
	if err != nil {
		return nil, err
	}
	patternGen, err := template.Parse(patternTemplate)
	if err != nil {
		return nil, err
	}

	s := &FileSink{
		pathGen:    pathGen,
		patternGen: patternGen,
		logger:     logger,
		maxBytes:   maxBytes,
		queue:      make(chan *record.Record, fileSinkQueueDepth),
		reopen:     make(chan struct{}),
		name:       name,
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *FileSink) Handle(rec *record.Record) {
	select {
	case s.queue <- rec:
	default:
		s.logger.WithField("sink", "file").Warn("dropping record: writer queue full")
		metrics.SinkHandledTotal.WithLabelValues("file", "dropped").Inc()
	}
}

func (s *FileSink) ReopenChannel() chan<- struct{} { return s.reopen }

// run is the sink's only writer goroutine. It exits once queue is closed
// and drained, guaranteeing every record already accepted by Handle is
// written before Close returns.
func (s *FileSink) run() {
	defer s.wg.Done()

	files := make(map[string]*openFile)
	closeAll := func() {
		for path, of := range files {
			of.f.Close()
			delete(files, path)
		}
	}
	defer closeAll()

	for {
		select {
		case rec, ok := <-s.queue:
			if !ok {
				return
			}
			s.write(files, rec)
		case <-s.reopen:
			closeAll()
			metrics.FileSinkReopensTotal.WithLabelValues(s.name).Inc()
		}
	}
}

func (s *FileSink) write(files map[string]*openFile, rec *record.Record) {
	pathBytes, err := s.pathGen.Evaluate(rec)
	if err != nil {
		s.logger.WithError(err).WithField("sink", "file").Warn("dropping record: path evaluation failed")
		metrics.SinkHandledTotal.WithLabelValues("file", "error").Inc()
		return
	}
	path := string(pathBytes)

	of, ok := files[path]
	if !ok {
		f, err := s.openFresh(path)
		if err != nil {
			s.logger.WithError(err).WithField("sink", "file").WithField("path", path).Warn("dropping record: open failed")
			metrics.SinkHandledTotal.WithLabelValues("file", "error").Inc()
			return
		}
		of = &openFile{f: f}
		if fi, err := f.Stat(); err == nil {
			of.size = fi.Size()
		}
		files[path] = of
	}

	line, err := s.patternGen.Evaluate(rec)
	if err != nil {
		s.logger.WithError(err).WithField("sink", "file").Warn("dropping record: pattern evaluation failed")
		metrics.SinkHandledTotal.WithLabelValues("file", "error").Inc()
		return
	}
	line = append(line, '\n')

	n, err := of.f.Write(line)
	if err != nil {
		s.logger.WithError(err).WithField("sink", "file").WithField("path", path).Warn("dropping record: write failed")
		metrics.SinkHandledTotal.WithLabelValues("file", "error").Inc()
		return
	}
	of.size += int64(n)
	metrics.SinkHandledTotal.WithLabelValues("file", "ok").Inc()

	if s.maxBytes > 0 && of.size >= s.maxBytes {
		s.rotate(files, path, of)
	}
}

func (s *FileSink) openFresh(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// rotate gzip-compresses the current file to path+".1.gz" and reopens path
// fresh. Compression errors are logged; the file is then left untruncated and
// reopened in append mode, so its content is kept.
func (s *FileSink) rotate(files map[string]*openFile, path string, of *openFile) {
	of.f.Close()
	delete(files, path)

	if err := gzipRotate(path); err != nil {
		s.logger.WithError(err).WithField("sink", "file").WithField("path", path).Warn("rotation failed")
	}

	f, err := s.openFresh(path)
	if err != nil {
		s.logger.WithError(err).WithField("sink", "file").WithField("path", path).Warn("reopen after rotation failed")
		return
	}
	files[path] = &openFile{f: f}
}

func gzipRotate(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(fmt.Sprintf("%s.1.gz", path))
	if err != nil {
		return err
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return os.Truncate(path, 0)
}

// Close closes the inbound queue, letting the writer goroutine drain every
// already-accepted record before it exits, then joins it. Safe to call only
// once Handle is guaranteed not to be called again concurrently — the
// pipeline dispatch loop enforces that by closing sinks after it has
// already stopped.
func (s *FileSink) Close() error {
	close(s.queue)
	s.wg.Wait()
	return nil
}
