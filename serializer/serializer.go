// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

// Package serializer encodes request bodies sent to the search cluster.
// Paginated search bodies always start with "from" then "size" so that two
// identical queries produce the same bytes.
package serializer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// SerializationError carries the value that could not be encoded.
type SerializationError struct {
	Value interface{}
	Cause error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("unable to serialize %T: %v", e.Value, e.Cause)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// Field is one key of an ordered request body.
type Field struct {
	Key   string
	Value interface{}
}

// Body is a request body whose keys are encoded in slice order.
type Body []Field

func (b Body) Get(key string) (interface{}, bool) {
	for _, f := range b {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (b Body) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeBody(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode returns the wire form of a request body. Strings, byte slices and
// json.RawMessage are considered already encoded and returned unchanged.
// A nil body encodes to nil.
func Encode(body interface{}) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case Body:
		if _, ok := v.Get("size"); ok {
			v = paginated(v)
		}
		return encodeBody(v)
	case map[string]interface{}:
		b := fromMap(v)
		if _, ok := v["size"]; ok {
			b = paginated(b)
		}
		return encodeBody(b)
	}
	return encodeValue(body)
}

// paginated moves "from" (0 when absent) and "size" in front of the other
// fields, which keep their relative order.
func paginated(b Body) Body {
	from, ok := b.Get("from")
	if !ok {
		from = 0
	}
	size, _ := b.Get("size")

	ordered := make(Body, 0, len(b)+1)
	ordered = append(ordered, Field{Key: "from", Value: from}, Field{Key: "size", Value: size})
	for _, f := range b {
		if f.Key == "from" || f.Key == "size" {
			continue
		}
		ordered = append(ordered, f)
	}
	return ordered
}

// fromMap orders a plain map the way encoding/json would, by key.
func fromMap(m map[string]interface{}) Body {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := make(Body, 0, len(keys))
	for _, k := range keys {
		b = append(b, Field{Key: k, Value: m[k]})
	}
	return b
}

func encodeBody(b Body) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeBody(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBody(buf *bytes.Buffer, b Body) error {
	buf.WriteByte('{')
	for i, f := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Key)
		buf.Write(key)
		buf.WriteByte(':')

		value, err := encodeValue(f.Value)
		if err != nil {
			return err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return nil
}

func encodeValue(v interface{}) ([]byte, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return encodeBody(fromMap(m))
	}

	out, err := json.Marshal(v)
	if err != nil {
		var inner *SerializationError
		if errors.As(err, &inner) {
			return nil, inner
		}
		return nil, &SerializationError{Value: v, Cause: err}
	}
	return out, nil
}
