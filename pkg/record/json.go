package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes one JSON value into the receiver, preserving object
// key insertion order by walking encoding/json's token stream by hand
// instead of decoding into a map[string]interface{}.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	rec, err := decodeValue(dec, tok)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}

// decodeValue interprets a token already read from dec, recursing into dec
// for composite values (object/array).
func decodeValue(dec *json.Decoder, tok json.Token) (*Record, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("record: unexpected delimiter %q", v)
		}
	case string:
		return NewString(v), nil
	case bool:
		return NewBool(v), nil
	case json.Number:
		return decodeNumber(v)
	case nil:
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("record: unsupported JSON token %T", tok)
	}
}

func decodeNumber(n json.Number) (*Record, error) {
	if i, err := n.Int64(); err == nil {
		return NewInt(i), nil
	}
	if u, err := parseUint(string(n)); err == nil {
		return NewUint(u), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("record: invalid number %q: %w", n, err)
	}
	return NewFloat(f), nil
}

func parseUint(s string) (uint64, error) {
	var v uint64
	if s == "" {
		return 0, fmt.Errorf("record: empty number")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("record: not an unsigned integer: %q", s)
		}
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}

func decodeObject(dec *json.Decoder) (*Record, error) {
	var fields []Field
	index := make(map[string]int)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("record: object key must be a string, got %T", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(dec, valTok)
		if err != nil {
			return nil, err
		}

		if i, seen := index[key]; seen {
			fields[i].Value = val
		} else {
			index[key] = len(fields)
			fields = append(fields, Field{Key: key, Value: val})
		}
	}

	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return &Record{kind: KindObject, obj: fields}, nil
}

func decodeArray(dec *json.Decoder) (*Record, error) {
	var items []*Record

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(dec, tok)
		if err != nil {
			return nil, err
		}
		items = append(items, val)
	}

	// Consume the closing ']'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return &Record{kind: KindArray, arr: items}, nil
}

// MarshalJSON encodes the receiver, preserving object field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Record) writeJSON(buf *bytes.Buffer) error {
	if r == nil {
		buf.WriteString("null")
		return nil
	}
	switch r.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		b, _ := json.Marshal(r.b)
		buf.Write(b)
	case KindInt:
		b, _ := json.Marshal(r.i)
		buf.Write(b)
	case KindUint:
		b, _ := json.Marshal(r.u)
		buf.Write(b)
	case KindFloat:
		b, err := json.Marshal(r.f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		b, _ := json.Marshal(r.s)
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range r.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range r.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := f.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("record: unknown kind %d", r.kind)
	}
	return nil
}
