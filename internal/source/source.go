// Package source implements the ingestion half of a pipeline: each Source
// pushes decoded records into a channel for as long as it is alive, and
// stops cleanly on Close.
package source

import "zenlogd/pkg/record"

// Source is a running producer of records. Close stops ingestion and joins
// the goroutines the source owns before returning. Two exceptions: the stdin
// source cannot interrupt a pending read and does not join its reader, and
// the tcp source leaves per-connection readers detached.
type Source interface {
	TypeName() string
	Close() error
}

// Tx is the send half of a pipeline's inbound record channel, as handed to
// every source factory.
type Tx = chan<- *record.Record
