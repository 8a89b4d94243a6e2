// Package sink implements the delivery half of a pipeline: each Sink
// receives every record the dispatcher distributes and forwards it
// somewhere (stdout, a file, a Kafka topic).
package sink

import "zenlogd/pkg/record"

// Sink handles records handed to it by the dispatch loop. Handle must
// return quickly — it runs on the single dispatch goroutine shared by every
// sink in the pipeline.
type Sink interface {
	// Handle processes one record. It must not block for long.
	Handle(rec *record.Record)

	// ReopenChannel returns a channel the runtime can signal to make this
	// sink release and reacquire any open file/connection handles (e.g. for
	// external log rotation). Sinks with no such state return nil.
	ReopenChannel() chan<- struct{}

	// Close flushes and releases the sink's owned resources, joining any
	// goroutines it started.
	Close() error
}
