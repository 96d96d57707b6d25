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

package pipelineio

import (
	"bytes"
	"io"
	"strconv"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
)

// DecodeBSON parses BSON input. The input is either one document whose
// keys are "0", "1", ... and whose values are the stages, the way BSON
// stores an array, or a sequence of stage documents.
func DecodeBSON(data []byte) ([]bson.D, error) {
	r := bytes.NewReader(data)
	var docs []bson.D
	for {
		doc, err := bson.UnmarshalFromStream(r)
		if err == io.EOF && len(docs) > 0 {
			break
		}
		if err != nil {
			return nil, malformed("invalid BSON in stage %d: %v", len(docs), err)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 1 && isArrayDocument(docs[0]) {
		items := make([]any, 0, len(docs[0]))
		for _, e := range docs[0] {
			items = append(items, e.Value)
		}
		return stages(items)
	}
	return docs, nil
}

// EncodeBSON encodes a pipeline as a single array document, the first form
// DecodeBSON accepts.
func EncodeBSON(docs []bson.D) ([]byte, error) {
	items := make(bson.A, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc)
	}
	return bson.MarshalArray(items)
}

func isArrayDocument(doc bson.D) bool {
	for i, e := range doc {
		if e.Key != strconv.Itoa(i) {
			return false
		}
	}
	return true
}
