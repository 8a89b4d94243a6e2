package pipeline

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"zenlogd/internal/registry"
	"zenlogd/internal/sink"
	"zenlogd/internal/source"
	"zenlogd/pkg/record"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(bytes.NewBuffer(nil))
	return l
}

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register("random", func(spec registry.ComponentSpec, tx chan<- *record.Record) (source.Source, error) {
		return source.NewRandomSource(1000, [2]uint16{1, 4}, tx, testLogger())
	})
	return reg
}

type captureSink struct {
	records chan *record.Record
	closed  chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{records: make(chan *record.Record, 16), closed: make(chan struct{})}
}

func (c *captureSink) Handle(rec *record.Record)         { c.records <- rec }
func (c *captureSink) ReopenChannel() chan<- struct{}    { return nil }
func (c *captureSink) Close() error                      { close(c.closed); return nil }

func TestAssembleAndCloseJoinsAllGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := testRegistry()
	cap := newCaptureSink()
	reg.RegisterSink("capture", func(spec registry.ComponentSpec) (sink.Sink, error) {
		return cap, nil
	})

	h, err := Assemble(Config{
		Name:    "test",
		Sources: []registry.ComponentSpec{{"type": "random"}},
		Outputs: []registry.ComponentSpec{{"type": "capture"}},
	}, reg, testLogger())
	require.NoError(t, err)

	select {
	case <-cap.records:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a record to reach the sink")
	}

	require.NoError(t, h.Close())

	select {
	case <-cap.closed:
	default:
		t.Fatal("sink was not closed")
	}
}

func TestAssembleUnwindsOnSinkFailure(t *testing.T) {
	reg := testRegistry()
	reg.RegisterSink("broken", func(spec registry.ComponentSpec) (sink.Sink, error) {
		return nil, assert.AnError
	})

	_, err := Assemble(Config{
		Name:    "test",
		Sources: []registry.ComponentSpec{{"type": "random"}},
		Outputs: []registry.ComponentSpec{{"type": "broken"}},
	}, reg, testLogger())
	require.Error(t, err)
}

func TestAssembleFailsOnUnknownSourceType(t *testing.T) {
	reg := registry.New()
	_, err := Assemble(Config{
		Name:    "test",
		Sources: []registry.ComponentSpec{{"type": "does-not-exist"}},
	}, reg, testLogger())
	require.ErrorIs(t, err, registry.ErrUnknownType)
}

func TestMissingMessageFieldIsDroppedNotDelivered(t *testing.T) {
	reg := registry.New()
	cap := newCaptureSink()
	reg.RegisterSink("capture", func(spec registry.ComponentSpec) (sink.Sink, error) {
		return cap, nil
	})

	h, err := Assemble(Config{
		Name:    "test",
		Outputs: []registry.ComponentSpec{{"type": "capture"}},
	}, reg, testLogger())
	require.NoError(t, err)
	defer h.Close()

	h.tx <- record.NewObject([]record.Field{{Key: "severity", Value: record.NewInt(1)}})

	select {
	case <-cap.records:
		t.Fatal("record without a message field should not reach the sink")
	case <-time.After(100 * time.Millisecond):
	}
}
