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

package classify

import (
	"strings"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
)

func classifySortByCount(s *pipeline.Stage) error {
	if key, ok := s.Payload.(string); ok {
		addPath(s.Used, key)
		return nil
	}
	return addWalked(s.Used, s.Payload, false)
}

// isExpression reports whether a projection value computes something rather
// than including or excluding a field.
func isExpression(v any) bool {
	switch v := v.(type) {
	case bson.D:
		return true
	case string:
		return strings.HasPrefix(v, "$")
	}
	_, ok := bson.AsArray(v)
	return ok
}

func isInclusion(v any) bool {
	return v == true || bson.NumberEquals(v, 1)
}

func isExclusion(v any) bool {
	return v == false || bson.NumberEquals(v, 0)
}

func classifyProjection(s *pipeline.Stage) error {
	doc, err := payloadDoc(s)
	if err != nil {
		return err
	}
	for _, e := range doc {
		switch {
		case isInclusion(e.Value):
			s.Used.Add(e.Key)
			s.Produced.Add(e.Key)
		case isExclusion(e.Value):
			s.Removed.Add(e.Key)
		default:
			s.Produced.Add(e.Key)
			if isExpression(e.Value) {
				if err := addWalked(s.Used, e.Value, false); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func classifyCompute(s *pipeline.Stage) error {
	doc, err := payloadDoc(s)
	if err != nil {
		return err
	}
	for _, e := range doc {
		if err := addWalked(s.Used, e.Value, false); err != nil {
			return err
		}
		s.Produced.Add(e.Key)
	}
	return nil
}

func classifyUnset(s *pipeline.Stage) error {
	var names []string
	switch v := s.Payload.(type) {
	case string:
		names = append(names, v)
	default:
		arr, ok := bson.AsArray(v)
		if !ok {
			return malformed("$unset expects a field name or an array of names, got %T", v)
		}
		for _, item := range arr {
			name, ok := item.(string)
			if !ok {
				return malformed("$unset field names must be strings, got %T", item)
			}
			names = append(names, name)
		}
	}
	s.Used.Add(names...)
	s.Removed.Add(names...)
	return nil
}

func classifyLookup(s *pipeline.Stage) error {
	doc, err := payloadDoc(s)
	if err != nil {
		return err
	}
	if local, ok := doc.Lookup("localField"); ok {
		if ref, ok := local.(string); ok {
			addPath(s.Used, ref)
		}
	}
	if let, ok := doc.Lookup("let"); ok {
		bindings, ok := let.(bson.D)
		if !ok {
			return malformed("$lookup.let expects a document, got %T", let)
		}
		for _, b := range bindings {
			if err := addWalked(s.Used, b.Value, false); err != nil {
				return err
			}
		}
	}
	if sub, ok := doc.Lookup("pipeline"); ok {
		if err := addSubPipeline(s.Used, sub); err != nil {
			return err
		}
	}
	if as, ok := doc.Lookup("as"); ok {
		if alias, ok := as.(string); ok {
			s.Produced.Add(alias)
		}
	}
	return nil
}

// addSubPipeline classifies every stage of an embedded pipeline on its own
// and merges the fields they read into used.
func addSubPipeline(used *pipeline.FieldSet, value any) error {
	arr, ok := bson.AsArray(value)
	if !ok {
		return malformed("embedded pipeline must be an array, got %T", value)
	}
	for i, item := range arr {
		doc, ok := item.(bson.D)
		if !ok {
			return malformed("embedded pipeline stage %d must be a document, got %T", i, item)
		}
		sub, err := Stage(i, doc)
		if err != nil {
			return err
		}
		used.AddAll(sub.Used)
	}
	return nil
}

func classifyBucket(s *pipeline.Stage) error {
	doc, err := payloadDoc(s)
	if err != nil {
		return err
	}
	groupBy, _ := doc.Lookup("groupBy")
	ref, ok := groupBy.(string)
	if !ok || !strings.HasPrefix(ref, "$") {
		return malformed("%s.groupBy must be a field reference, got %v", s.Operator, groupBy)
	}
	addPath(s.Used, ref)

	out, ok := doc.Lookup("output")
	if !ok {
		return nil
	}
	outputs, ok := out.(bson.D)
	if !ok {
		return malformed("%s.output expects a document, got %T", s.Operator, out)
	}
	for _, e := range outputs {
		s.Produced.Add(e.Key)
		if err := addWalked(s.Used, e.Value, false); err != nil {
			return err
		}
	}
	return nil
}

func classifyUnwind(s *pipeline.Stage) error {
	path := s.Payload
	if doc, ok := s.Payload.(bson.D); ok {
		path, _ = doc.Lookup("path")
	}
	ref, ok := path.(string)
	if !ok {
		return malformed("$unwind expects a path, got %T", path)
	}
	addPath(s.Used, ref)
	addPath(s.Produced, ref)
	return nil
}

func classifyFacet(s *pipeline.Stage) error {
	doc, err := payloadDoc(s)
	if err != nil {
		return err
	}
	for _, branch := range doc {
		s.Produced.Add(branch.Key)
		if err := addSubPipeline(s.Used, branch.Value); err != nil {
			return err
		}
	}
	return nil
}

func classifyGraphLookup(s *pipeline.Stage) error {
	doc, err := payloadDoc(s)
	if err != nil {
		return err
	}
	if start, ok := doc.Lookup("startWith"); ok {
		if err := addWalked(s.Used, start, false); err != nil {
			return err
		}
	}
	for _, key := range []string{"connectFromField", "connectToField"} {
		if v, ok := doc.Lookup(key); ok {
			if ref, ok := v.(string); ok {
				addPath(s.Used, ref)
			}
		}
	}
	if as, ok := doc.Lookup("as"); ok {
		if alias, ok := as.(string); ok {
			s.Produced.Add(alias)
		}
	}
	return nil
}

func classifyCount(s *pipeline.Stage) error {
	name, ok := s.Payload.(string)
	if !ok || name == "" {
		return malformed("$count expects a field name, got %v", s.Payload)
	}
	s.Produced.Add(name)
	return nil
}

func classifySort(s *pipeline.Stage) error {
	doc, err := payloadDoc(s)
	if err != nil {
		return err
	}
	s.Used.Add(doc.Keys()...)
	return nil
}
