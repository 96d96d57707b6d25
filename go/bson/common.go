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

// Package bson implements the ordered document model used for pipeline
// stages, and encoding and decoding of BSON objects into that model.
package bson

import (
	"encoding/binary"
	"fmt"
)

// Pack is the BSON binary packing protocol.
// It's little endian.
var Pack = binary.LittleEndian

// Words size in bytes.
const (
	WORD32 = 4
	WORD64 = 8
)

const (
	EOO           = 0x00
	Number        = 0x01
	String        = 0x02
	Object        = 0x03
	Array         = 0x04
	Binary        = 0x05
	Undefined     = 0x06 // deprecated
	OID           = 0x07
	Boolean       = 0x08
	Datetime      = 0x09
	Null          = 0x0A
	Regex         = 0x0B // unsupported
	Ref           = 0x0C // deprecated
	Code          = 0x0D // unsupported
	Symbol        = 0x0E // unsupported
	CodeWithScope = 0x0F // unsupported
	Int           = 0x10
	Timestamp     = 0x11 // unsupported
	Long          = 0x12
	MinKey        = 0xFF // unsupported
	MaxKey        = 0x7F // unsupported
)

type BsonError struct {
	Message string
}

func NewBsonError(format string, args ...any) BsonError {
	return BsonError{fmt.Sprintf(format, args...)}
}

func (err BsonError) Error() string {
	return err.Message
}

// handleError turns a BsonError panic raised while walking a buffer into a
// returned error. Any other panic is re-raised.
func handleError(err *error) {
	if x := recover(); x != nil {
		bsonErr, ok := x.(BsonError)
		if !ok {
			panic(x)
		}
		*err = bsonErr
	}
}
