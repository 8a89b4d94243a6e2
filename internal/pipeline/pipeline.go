// Package pipeline assembles one runtime pipeline — a set of sources
// feeding a single dispatch loop that fans each record out to every sink —
// from a registry and a declarative spec.
package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/internal/registry"
	"zenlogd/internal/sink"
	"zenlogd/internal/source"
	"zenlogd/pkg/record"
)

// DefaultQueueDepth is used when a pipeline spec does not set QueueDepth.
// Go has no unbounded channel primitive; per the routing contract a send
// must not block in practice, so the inbound channel is given a large fixed
// buffer instead, with its occupancy exposed via PipelineQueueDepth.
const DefaultQueueDepth = 65536

// Config is the declarative description of one pipeline: the sources that
// feed it and the sinks it fans out to.
type Config struct {
	Name       string
	Sources    []registry.ComponentSpec
	Outputs    []registry.ComponentSpec
	QueueDepth int
}

// Handle is a running pipeline. Close tears it down in the order required
// to guarantee every in-flight record reaches every sink: sources first,
// then the channel closes, then the dispatch loop exits, then sinks close.
type Handle struct {
	name    string
	sources []source.Source
	sinks   []sink.Sink
	reopens []chan<- struct{}
	tx      chan *record.Record
	done    chan struct{}
	logger  *logrus.Logger
}

// Assemble builds every source and sink named in cfg via reg, wires them to
// a shared inbound channel, and starts the dispatch goroutine. On any
// failure, every source/sink already built is closed before returning the
// error.
func Assemble(cfg Config, reg *registry.Registry, logger *logrus.Logger) (*Handle, error) {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	ch := make(chan *record.Record, depth)
	metrics.PipelineQueueCapacity.WithLabelValues(cfg.Name).Set(float64(depth))

	var sources []source.Source
	unwindSources := func() {
		for _, s := range sources {
			s.Close()
		}
	}

	for _, spec := range cfg.Sources {
		src, err := reg.Lookup(spec, ch)
		if err != nil {
			unwindSources()
			return nil, fmt.Errorf("pipeline %q: %w", cfg.Name, err)
		}
		sources = append(sources, src)
	}

	var sinks []sink.Sink
	var reopens []chan<- struct{}
	unwindAll := func() {
		unwindSources()
		for _, s := range sinks {
			s.Close()
		}
	}

	for _, spec := range cfg.Outputs {
		snk, err := reg.LookupSink(spec)
		if err != nil {
			unwindAll()
			return nil, fmt.Errorf("pipeline %q: %w", cfg.Name, err)
		}
		sinks = append(sinks, snk)
		if rc := snk.ReopenChannel(); rc != nil {
			reopens = append(reopens, rc)
		}
	}

	h := &Handle{
		name:    cfg.Name,
		sources: sources,
		sinks:   sinks,
		reopens: reopens,
		tx:      ch,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go h.dispatchLoop(ch)
	return h, nil
}

// dispatchLoop is the single consumer of the pipeline's inbound channel. It
// fans each record out to every sink in registration order and exits when
// the channel closes. A panicking sink is allowed to crash this goroutine —
// there is no recover here by design.
func (h *Handle) dispatchLoop(ch <-chan *record.Record) {
	defer close(h.done)

	for rec := range ch {
		metrics.PipelineQueueDepth.WithLabelValues(h.name).Set(float64(len(ch)))

		msg, ok := rec.Lookup("message")
		if !ok {
			h.logger.WithField("pipeline", h.name).Warn("record has no \"message\" field")
			metrics.RecordsDroppedTotal.WithLabelValues(h.name, "no_message_field").Inc()
			continue
		}
		if msg.Kind() != record.KindString {
			h.logger.WithField("pipeline", h.name).Warn("\"message\" field is not a string")
			metrics.RecordsDroppedTotal.WithLabelValues(h.name, "message_not_string").Inc()
			continue
		}

		metrics.RecordsProcessedTotal.WithLabelValues(h.name).Inc()
		for _, snk := range h.sinks {
			snk.Handle(rec)
		}
	}
}

// Reopen signals every sink with reopen-able state, best-effort: a failed
// send is logged and does not abort the remaining sinks.
func (h *Handle) Reopen() {
	for _, rc := range h.reopens {
		select {
		case rc <- struct{}{}:
		default:
			h.logger.WithField("pipeline", h.name).Warn("sink reopen channel send would block, skipping")
		}
	}
}

// Close tears down the pipeline: sources close first (so nothing is still
// sending), the inbound channel is then closed, which the dispatch
// goroutine observes and exits on, and only then do sinks close.
func (h *Handle) Close() error {
	for _, s := range h.sources {
		s.Close()
	}
	close(h.tx)
	<-h.done
	for _, snk := range h.sinks {
		snk.Close()
	}
	return nil
}
