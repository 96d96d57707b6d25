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

package opterrors

// ErrCode is the coarse error class of an optimizer error. The values follow
// the canonical RPC code numbering so they can be mapped onto transports.
type ErrCode int32

const (
	OK               ErrCode = 0
	Canceled         ErrCode = 1
	Unknown          ErrCode = 2
	InvalidArgument  ErrCode = 3
	DeadlineExceeded ErrCode = 4
	Unimplemented    ErrCode = 12
	Internal         ErrCode = 13
)

var codeNames = map[ErrCode]string{
	OK:               "OK",
	Canceled:         "CANCELED",
	Unknown:          "UNKNOWN",
	InvalidArgument:  "INVALID_ARGUMENT",
	DeadlineExceeded: "DEADLINE_EXCEEDED",
	Unimplemented:    "UNIMPLEMENTED",
	Internal:         "INTERNAL",
}

func (c ErrCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
