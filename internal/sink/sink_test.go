package sink

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenlogd/pkg/record"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(bytes.NewBuffer(nil))
	return l
}

func mustRecord(t *testing.T, src string) *record.Record {
	t.Helper()
	var rec record.Record
	require.NoError(t, json.Unmarshal([]byte(src), &rec))
	return &rec
}

func TestStreamSinkWritesOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamSink(&buf, testLogger())

	s.Handle(mustRecord(t, `{"message":"hi"}`))
	s.Handle(mustRecord(t, `{"message":"bye"}`))

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"message":"hi"}`, string(lines[0]))
	assert.JSONEq(t, `{"message":"bye"}`, string(lines[1]))

	assert.Nil(t, s.ReopenChannel())
	assert.NoError(t, s.Close())
}

func TestFileSinkWritesEvaluatedPathAndPattern(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink("test", filepath.Join(dir, "{host}.log"), "{message}", 0, testLogger())
	require.NoError(t, err)

	s.Handle(mustRecord(t, `{"host":"box1","message":"first"}`))
	s.Handle(mustRecord(t, `{"host":"box1","message":"second"}`))
	s.Handle(mustRecord(t, `{"host":"box2","message":"third"}`))
	require.NoError(t, s.Close())

	b1, err := os.ReadFile(filepath.Join(dir, "box1.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(b1))

	b2, err := os.ReadFile(filepath.Join(dir, "box2.log"))
	require.NoError(t, err)
	assert.Equal(t, "third\n", string(b2))
}

func TestFileSinkReopenClearsFileCache(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink("test", filepath.Join(dir, "out.log"), "{message}", 0, testLogger())
	require.NoError(t, err)

	s.Handle(mustRecord(t, `{"message":"one"}`))

	reopen := s.ReopenChannel()
	require.NotNil(t, reopen)
	reopen <- struct{}{}

	s.Handle(mustRecord(t, `{"message":"two"}`))
	require.NoError(t, s.Close())

	b, err := os.ReadFile(filepath.Join(dir, "out.log"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(b))
}

func TestFileSinkDropsRecordOnPathEvaluationFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink("test", filepath.Join(dir, "{missing}.log"), "{message}", 0, testLogger())
	require.NoError(t, err)
	defer s.Close()

	s.Handle(mustRecord(t, `{"message":"orphan"}`))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
