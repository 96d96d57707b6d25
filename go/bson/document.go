/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bson

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"time"
)

type (
	// E is a single element of an ordered document.
	E struct {
		Key   string
		Value any
	}

	// D is an ordered document. Key order is significant (e.g. for
	// compound sort specifications) and is kept from decoding to encoding.
	D []E

	// A is an array of values.
	A []any

	// ObjectID is a 12-byte document identifier.
	ObjectID [12]byte
)

// Values held by a D or an A are one of: nil, bool, int32, int64, float64,
// string, time.Time, []byte, ObjectID, D or A.

// Len returns the number of elements of the document.
func (d D) Len() int {
	return len(d)
}

// Lookup returns the value stored under key, if any. If the key occurs more
// than once, the first occurrence wins.
func (d D) Lookup(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys of the document in order.
func (d D) Keys() []string {
	keys := make([]string, 0, len(d))
	for _, e := range d {
		keys = append(keys, e.Key)
	}
	return keys
}

// MarshalJSON encodes the document as a JSON object, preserving key order.
func (d D) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := marshalValue(&buf, e.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the array, using extended JSON for dates.
func (a A) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalValue(&buf, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalValue(buf *bytes.Buffer, v any) error {
	if t, ok := v.(time.Time); ok {
		v = D{{Key: "$date", Value: t.UTC().Format(time.RFC3339Nano)}}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(out)
	return nil
}

// MarshalJSON encodes the id in extended JSON form.
func (id ObjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"$oid": hex.EncodeToString(id[:])})
}

// Hex returns the hex encoding of the id.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// AsArray returns v as an array if it holds one. Both A and a plain []any
// are accepted.
func AsArray(v any) (A, bool) {
	switch v := v.(type) {
	case A:
		return v, true
	case []any:
		return v, true
	}
	return nil, false
}

// IsNumber reports whether v holds one of the numeric value types.
func IsNumber(v any) bool {
	switch v.(type) {
	case int32, int64, float64, int:
		return true
	}
	return false
}

// NumberEquals reports whether v is numeric and equal to n.
func NumberEquals(v any, n int64) bool {
	switch v := v.(type) {
	case int32:
		return int64(v) == n
	case int64:
		return v == n
	case int:
		return int64(v) == n
	case float64:
		return v == float64(n)
	}
	return false
}
