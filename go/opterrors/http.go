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

import (
	"fmt"
	"net/http"
)

// This file converts errors to HTTP statuses so the service can answer with
// a status that matches the error code.

// maxMessageLen bounds the size of error messages returned to HTTP clients.
const maxMessageLen = 4 * 1024

// HTTPStatus returns the HTTP status for the code of err.
func HTTPStatus(err error) int {
	switch Code(err) {
	case OK:
		return http.StatusOK
	case InvalidArgument:
		return http.StatusBadRequest
	case Unimplemented:
		return http.StatusUnprocessableEntity
	case Canceled:
		return 499
	case DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the message of err, truncated for transport.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= maxMessageLen {
		return msg
	}
	return fmt.Sprintf("%v [...] [remainder of the error is truncated]", msg[:maxMessageLen])
}
