package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalPreservesFieldOrder(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"b":1,"a":2,"c":3}`), &rec)
	require.NoError(t, err)

	fields := rec.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "b", fields[0].Key)
	assert.Equal(t, "a", fields[1].Key)
	assert.Equal(t, "c", fields[2].Key)
}

func TestUnmarshalDuplicateKeyKeepsPositionOverwritesValue(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"a":1,"b":2,"a":3}`), &rec)
	require.NoError(t, err)

	fields := rec.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Key)
	v, ok := fields[0].Value.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
}

func TestLookupNestedPath(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"a":{"b":{"c":42}}}`), &rec)
	require.NoError(t, err)

	a, ok := rec.Lookup("a")
	require.True(t, ok)
	b, ok := a.Lookup("b")
	require.True(t, ok)
	c, ok := b.Lookup("c")
	require.True(t, ok)
	v, ok := c.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	_, ok = rec.Lookup("missing")
	assert.False(t, ok)
}

func TestLookupOnlyAppliesToObjects(t *testing.T) {
	arr := NewArray([]*Record{NewInt(1)})
	_, ok := arr.Lookup("0")
	assert.False(t, ok)
}

func TestNaturalStringProjection(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
		want string
	}{
		{"null", NewNull(), "null"},
		{"bool", NewBool(true), "true"},
		{"int", NewInt(-7), "-7"},
		{"uint", NewUint(7), "7"},
		{"float", NewFloat(1.5), "1.5"},
		{"string", NewString("hi"), "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rec.NaturalString()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNaturalStringRejectsComposites(t *testing.T) {
	_, err := NewArray(nil).NaturalString()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = NewObject(nil).NaturalString()
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestRoundTripMarshalPreservesOrder(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":2}`), &rec))

	out, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2}`, string(out))
}

func TestCloneIsIndependent(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"a":1}`), &rec))

	clone := rec.Clone()
	clone.obj[0].Value = NewInt(999)

	v, _ := rec.Lookup("a")
	got, _ := v.AsInt()
	assert.Equal(t, int64(1), got, "mutating the clone must not affect the original")
}

func TestWithFieldDoesNotMutateReceiver(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"message":"hi"}`), &rec))

	augmented := rec.WithField("hostname", NewString("box-1"))

	_, ok := rec.Lookup("hostname")
	assert.False(t, ok, "original record must stay untouched")

	host, ok := augmented.Lookup("hostname")
	require.True(t, ok)
	s, _ := host.AsString()
	assert.Equal(t, "box-1", s)
}

func TestHashIsStableAndContentSensitive(t *testing.T) {
	var a, b, c Record
	require.NoError(t, json.Unmarshal([]byte(`{"message":"hi"}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"message":"hi"}`), &b))
	require.NoError(t, json.Unmarshal([]byte(`{"message":"bye"}`), &c))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestMissingMessageFieldDoesNotSatisfyLookup(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"severity":"error"}`), &rec))

	_, ok := rec.Lookup("message")
	assert.False(t, ok)
}
