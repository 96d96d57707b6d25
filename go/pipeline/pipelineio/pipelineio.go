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

// Package pipelineio reads pipelines from JSON, YAML and BSON input and
// writes them back as JSON or BSON.
package pipelineio

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
)

// Format names an input encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatBSON Format = "bson"
)

// ParseFormat parses a format name. "yml" is accepted for YAML.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "bson":
		return FormatBSON, nil
	}
	return "", opterrors.Errorf(opterrors.InvalidArgument, "unknown input format %q", name)
}

// Decode parses data in the given format into a list of stage documents.
func Decode(data []byte, format Format) ([]bson.D, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatYAML:
		return DecodeYAML(data)
	case FormatBSON:
		return DecodeBSON(data)
	}
	return nil, opterrors.Errorf(opterrors.InvalidArgument, "unknown input format %q", format)
}

// ParseOutputFormat parses the name of an output encoding. Only JSON and
// BSON can be written.
func ParseOutputFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json", "":
		return FormatJSON, nil
	case "bson":
		return FormatBSON, nil
	}
	return "", opterrors.Errorf(opterrors.InvalidArgument, "unknown output format %q", name)
}

// Encode writes a pipeline in the given output format. The indent only
// applies to JSON.
func Encode(docs []bson.D, format Format, indent string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return EncodeJSON(docs, indent)
	case FormatBSON:
		return EncodeBSON(docs)
	}
	return nil, opterrors.Errorf(opterrors.InvalidArgument, "unknown output format %q", format)
}

func malformed(format string, args ...any) error {
	return opterrors.NewErrorf(opterrors.InvalidArgument, opterrors.MalformedPipeline, format, args...)
}

// stages checks that every item of a decoded pipeline is a document.
func stages(items []any) ([]bson.D, error) {
	docs := make([]bson.D, 0, len(items))
	for i, item := range items {
		doc, ok := item.(bson.D)
		if !ok {
			return nil, malformed("stage %d is not a document", i)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// EncodeJSON encodes a pipeline as a JSON array, keeping key order. Dates
// and object ids use extended JSON. A non-empty indent pretty prints.
func EncodeJSON(docs []bson.D, indent string) ([]byte, error) {
	if docs == nil {
		docs = []bson.D{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(docs); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
