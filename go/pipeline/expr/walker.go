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

// Package expr extracts the field paths an aggregation expression reads.
package expr

import (
	"strings"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
)

const sigil = "$"

// Fields returns the field paths referenced by value, with the leading '$'
// removed. Variables such as "$$ROOT" are not fields and are never returned.
//
// When extractKeys is set, plain keys of documents are field usages too, as
// in a query filter. Otherwise they are output labels and only their values
// are walked.
func Fields(value any, extractKeys bool) (*pipeline.FieldSet, error) {
	w := walker{fields: pipeline.NewFieldSet(), extractKeys: extractKeys}
	if err := w.walk(value); err != nil {
		return nil, err
	}
	return w.fields, nil
}

type walker struct {
	fields      *pipeline.FieldSet
	extractKeys bool
}

// FieldPath strips one leading '$' from ref. It returns false for variables
// and for empty paths.
func FieldPath(ref string) (string, bool) {
	path := strings.TrimPrefix(ref, sigil)
	if path == "" || strings.HasPrefix(path, sigil) {
		return "", false
	}
	return path, true
}

func (w *walker) record(field string) {
	if path, ok := FieldPath(field); ok {
		w.fields.Add(path)
	}
}

func (w *walker) walk(value any) error {
	switch v := value.(type) {
	case string:
		if isFieldRef(v) {
			w.record(v)
		}
	case bson.D:
		for _, e := range v {
			if err := w.walkKey(e.Key, e.Value); err != nil {
				return err
			}
		}
	default:
		if arr, ok := bson.AsArray(value); ok {
			return w.walkEach(arr)
		}
	}
	return nil
}

func (w *walker) walkEach(arr bson.A) error {
	for _, item := range arr {
		if err := w.walk(item); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkKey(key string, value any) error {
	switch classifyKey(key, value) {
	case opIgnored:
		return nil
	case opLogical, opExpr, opAddToSet, opMath, opArrayOperand:
		return w.walk(value)
	case opIterate:
		if doc, ok := value.(bson.D); ok {
			input, _ := doc.Lookup("input")
			return w.walk(input)
		}
		return nil
	case opMergeObjects:
		if s, ok := value.(string); ok {
			return w.walk(s)
		}
		arr, _ := bson.AsArray(value)
		for _, item := range arr {
			if s, ok := item.(string); ok && isFieldRef(s) {
				w.record(s)
			}
		}
		return nil
	case opCond:
		if doc, ok := value.(bson.D); ok {
			for _, branch := range []string{"if", "then", "else"} {
				v, _ := doc.Lookup(branch)
				if err := w.walk(v); err != nil {
					return err
				}
			}
			return nil
		}
		return w.walk(value)
	case opArrayElemAt:
		if arr, ok := bson.AsArray(value); ok && len(arr) > 0 {
			return w.walk(arr[0])
		}
		return nil
	case opFunction:
		doc, _ := value.(bson.D)
		args, _ := doc.Lookup("args")
		arr, _ := bson.AsArray(args)
		for _, arg := range arr {
			if s, ok := arg.(string); ok && isFieldRef(s) {
				w.record(s)
			}
		}
		return nil
	case opSwitch:
		return w.walkSwitch(value)
	case opDate:
		if doc, ok := value.(bson.D); ok {
			if date, ok := doc.Lookup("date"); ok {
				return w.walk(date)
			}
		}
		return w.walk(value)
	case opAccumulator:
		switch v := value.(type) {
		case string:
			if isFieldRef(v) {
				w.record(v)
			}
		case bson.D:
			if len(v) == 1 && isFieldRef(v[0].Key) {
				return w.walk(v)
			}
		}
		return nil
	case opPlainKey:
		if w.extractKeys {
			w.record(key)
		}
		if _, ok := value.(bson.D); ok {
			return w.walk(value)
		}
		if arr, ok := bson.AsArray(value); ok {
			return w.walkEach(arr)
		}
		return nil
	case opUnsupported:
	}
	return opterrors.NewErrorf(opterrors.Unimplemented, opterrors.UnsupportedOperator, "unsupported operator: %q", key)
}

func (w *walker) walkSwitch(value any) error {
	doc, ok := value.(bson.D)
	if !ok {
		return nil
	}
	branches, _ := doc.Lookup("branches")
	arr, _ := bson.AsArray(branches)
	for _, b := range arr {
		branch, ok := b.(bson.D)
		if !ok {
			continue
		}
		c, _ := branch.Lookup("case")
		if err := w.walk(c); err != nil {
			return err
		}
	}
	def, _ := doc.Lookup("default")
	return w.walk(def)
}

func isFieldRef(s string) bool {
	return strings.HasPrefix(s, sigil)
}
