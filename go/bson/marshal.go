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
	"math"
	"strconv"
	"time"
)

// Marshal encodes an ordered document as BSON.
func Marshal(doc D) (out []byte, err error) {
	defer handleError(&err)

	var buf bytes.Buffer
	encodeDocument(&buf, doc)
	return buf.Bytes(), nil
}

// MarshalArray encodes an array as a top-level BSON document keyed "0", "1", ...
func MarshalArray(arr A) ([]byte, error) {
	return Marshal(arrayAsDocument(arr))
}

func arrayAsDocument(arr A) D {
	doc := make(D, 0, len(arr))
	for i, v := range arr {
		doc = append(doc, E{Key: strconv.Itoa(i), Value: v})
	}
	return doc
}

func encodeDocument(buf *bytes.Buffer, doc D) {
	start := buf.Len()
	buf.Write(make([]byte, WORD32))
	for _, e := range doc {
		encodeElement(buf, e.Key, e.Value)
	}
	buf.WriteByte(EOO)
	Pack.PutUint32(buf.Bytes()[start:], uint32(buf.Len()-start))
}

func encodePrefix(buf *bytes.Buffer, kind byte, key string) {
	buf.WriteByte(kind)
	buf.WriteString(key)
	buf.WriteByte(0)
}

func encodeElement(buf *bytes.Buffer, key string, val any) {
	var scratch [WORD64]byte
	switch v := val.(type) {
	case nil:
		encodePrefix(buf, Null, key)
	case float64:
		encodePrefix(buf, Number, key)
		Pack.PutUint64(scratch[:], math.Float64bits(v))
		buf.Write(scratch[:WORD64])
	case string:
		encodePrefix(buf, String, key)
		Pack.PutUint32(scratch[:], uint32(len(v)+1))
		buf.Write(scratch[:WORD32])
		buf.WriteString(v)
		buf.WriteByte(0)
	case D:
		encodePrefix(buf, Object, key)
		encodeDocument(buf, v)
	case A:
		encodePrefix(buf, Array, key)
		encodeDocument(buf, arrayAsDocument(v))
	case []byte:
		encodePrefix(buf, Binary, key)
		Pack.PutUint32(scratch[:], uint32(len(v)))
		buf.Write(scratch[:WORD32])
		buf.WriteByte(0)
		buf.Write(v)
	case ObjectID:
		encodePrefix(buf, OID, key)
		buf.Write(v[:])
	case bool:
		encodePrefix(buf, Boolean, key)
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case time.Time:
		encodePrefix(buf, Datetime, key)
		Pack.PutUint64(scratch[:], uint64(v.UnixMilli()))
		buf.Write(scratch[:WORD64])
	case int32:
		encodePrefix(buf, Int, key)
		Pack.PutUint32(scratch[:], uint32(v))
		buf.Write(scratch[:WORD32])
	case int64:
		encodePrefix(buf, Long, key)
		Pack.PutUint64(scratch[:], uint64(v))
		buf.Write(scratch[:WORD64])
	case int:
		encodeElement(buf, key, int64(v))
	default:
		panic(NewBsonError("unsupported type %T for key %q", val, key))
	}
}
