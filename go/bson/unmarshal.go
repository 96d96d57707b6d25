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
	"io"
	"math"
	"time"
)

// Unmarshal decodes a single BSON document into an ordered D.
func Unmarshal(b []byte) (doc D, err error) {
	return UnmarshalFromBuffer(bytes.NewBuffer(b))
}

// UnmarshalFromStream reads one length-prefixed BSON document from reader
// and decodes it.
func UnmarshalFromStream(reader io.Reader) (D, error) {
	lenbuf := make([]byte, WORD32)
	if _, err := io.ReadFull(reader, lenbuf); err != nil {
		return nil, err
	}
	length := Pack.Uint32(lenbuf)
	if length < 5 {
		return nil, NewBsonError("invalid document length %d", length)
	}
	b := make([]byte, length)
	Pack.PutUint32(b, length)
	if _, err := io.ReadFull(reader, b[WORD32:]); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return Unmarshal(b)
}

// UnmarshalFromBuffer decodes the document at the head of buf.
func UnmarshalFromBuffer(buf *bytes.Buffer) (doc D, err error) {
	defer handleError(&err)

	doc = decodeDocument(buf)
	return doc, nil
}

func decodeDocument(buf *bytes.Buffer) D {
	length := int(Pack.Uint32(Next(buf, WORD32)))
	if length-WORD32 > buf.Len() {
		panic(NewBsonError("document length %d exceeds remaining %d bytes", length, buf.Len()+WORD32))
	}
	doc := D{}
	for kind := NextByte(buf); kind != EOO; kind = NextByte(buf) {
		key := ReadCString(buf)
		doc = append(doc, E{Key: key, Value: decodeValue(buf, kind)})
	}
	return doc
}

func decodeArray(buf *bytes.Buffer) A {
	doc := decodeDocument(buf)
	arr := make(A, 0, len(doc))
	for _, e := range doc {
		arr = append(arr, e.Value)
	}
	return arr
}

func decodeValue(buf *bytes.Buffer, kind byte) any {
	switch kind {
	case Number:
		return math.Float64frombits(Pack.Uint64(Next(buf, WORD64)))
	case String:
		return decodeString(buf)
	case Object:
		return decodeDocument(buf)
	case Array:
		return decodeArray(buf)
	case Binary:
		l := int(Pack.Uint32(Next(buf, WORD32)))
		Next(buf, 1) // subtype
		return append([]byte(nil), Next(buf, l)...)
	case Undefined, Null:
		return nil
	case OID:
		var id ObjectID
		copy(id[:], Next(buf, len(id)))
		return id
	case Boolean:
		return NextByte(buf) != 0
	case Datetime:
		ms := int64(Pack.Uint64(Next(buf, WORD64)))
		return time.UnixMilli(ms).UTC()
	case Int:
		return int32(Pack.Uint32(Next(buf, WORD32)))
	case Long:
		return int64(Pack.Uint64(Next(buf, WORD64)))
	}
	panic(NewBsonError("unsupported kind: 0x%02x", kind))
}

func decodeString(buf *bytes.Buffer) string {
	l := int(Pack.Uint32(Next(buf, WORD32)))
	if l < 1 {
		panic(NewBsonError("invalid string length %d", l))
	}
	s := Next(buf, l)
	return string(s[:l-1])
}

// Next returns the next n bytes of buf, or panics with a BsonError if the
// buffer is too short.
func Next(buf *bytes.Buffer, n int) []byte {
	if n < 0 || buf.Len() < n {
		panic(NewBsonError("unexpected EOF"))
	}
	return buf.Next(n)
}

// NextByte returns the next byte of buf.
func NextByte(buf *bytes.Buffer) byte {
	b, err := buf.ReadByte()
	if err != nil {
		panic(NewBsonError("unexpected EOF"))
	}
	return b
}

// ReadCString reads a NUL terminated string.
func ReadCString(buf *bytes.Buffer) string {
	s, err := buf.ReadString(0)
	if err != nil {
		panic(NewBsonError("unterminated cstring"))
	}
	return s[:len(s)-1]
}
