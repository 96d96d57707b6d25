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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/log"
	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/optimizer"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/pipelineio"
)

// RequestIDHeader carries the id of a request. A client supplied id is kept,
// otherwise one is generated.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// marshalBSON encodes an /optimize answer as a BSON document with the same
// fields as Response.
func marshalBSON(res optimizer.Result) ([]byte, error) {
	order := make(bson.A, 0, len(res.Order))
	for _, id := range res.Order {
		order = append(order, int64(id))
	}
	doc := bson.D{
		{Key: "pipeline", Value: pipelineArray(res.Pipeline)},
		{Key: "optimized", Value: res.Optimized},
		{Key: "removed", Value: int64(res.Removed)},
		{Key: "order", Value: order},
	}
	if res.Err != nil {
		doc = append(doc, bson.E{Key: "error", Value: opterrors.Message(res.Err)})
	}
	return bson.Marshal(doc)
}

func pipelineArray(docs []bson.D) bson.A {
	arr := make(bson.A, 0, len(docs))
	for _, doc := range docs {
		arr = append(arr, doc)
	}
	return arr
}

func writeResult(w http.ResponseWriter, output pipelineio.Format, body []byte) {
	if output == pipelineio.FormatBSON {
		write(w, http.StatusOK, "application/bson", body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	write(w, status, "application/json", body)
}

func write(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.DebugS("writing response", "error", err)
	}
}

// recoveryLogger reports handler panics through the structured logger.
type recoveryLogger struct{}

func (recoveryLogger) Println(args ...any) {
	log.ErrorS("handler panicked", "panic", args)
}
