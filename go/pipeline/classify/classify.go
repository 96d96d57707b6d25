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

// Package classify determines, for every pipeline stage, which fields it
// reads, writes and deletes, and whether it replaces the document shape.
package classify

import (
	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/expr"
)

// Pipeline classifies every stage of docs. The returned stages are indexed
// by their position in docs.
func Pipeline(docs []bson.D) ([]*pipeline.Stage, error) {
	stages := make([]*pipeline.Stage, 0, len(docs))
	for id, doc := range docs {
		s, err := Stage(id, doc)
		if err != nil {
			return nil, opterrors.Wrapf(err, "stage %d", id)
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// Stage classifies a single stage document. The document must hold exactly
// one operator key.
func Stage(id int, doc bson.D) (*pipeline.Stage, error) {
	if len(doc) != 1 {
		return nil, malformed("stage must have exactly one operator, found %d keys", len(doc))
	}
	kind, ok := pipeline.KindOf(doc[0].Key)
	if !ok {
		return nil, opterrors.NewErrorf(opterrors.Unimplemented, opterrors.UnsupportedStage, "unsupported stage: %q", doc[0].Key)
	}

	s := pipeline.NewStage(id, kind, doc)
	var err error
	switch kind {
	case pipeline.KindMatch:
		err = addWalked(s.Used, s.Payload, true)
	case pipeline.KindSortByCount:
		err = classifySortByCount(s)
	case pipeline.KindProject, pipeline.KindGroup:
		err = classifyProjection(s)
	case pipeline.KindAddFields, pipeline.KindSet:
		err = classifyCompute(s)
	case pipeline.KindUnset:
		err = classifyUnset(s)
	case pipeline.KindLookup:
		err = classifyLookup(s)
	case pipeline.KindBucket, pipeline.KindBucketAuto:
		s.Destructive = true
		err = classifyBucket(s)
	case pipeline.KindUnwind:
		err = classifyUnwind(s)
	case pipeline.KindFacet:
		s.Destructive = true
		err = classifyFacet(s)
	case pipeline.KindGraphLookup:
		err = classifyGraphLookup(s)
	case pipeline.KindCount:
		s.Destructive = true
		err = classifyCount(s)
	case pipeline.KindSort:
		err = classifySort(s)
	case pipeline.KindReplaceWith:
		// the replacement document is not decomposed
		s.Destructive = true
	case pipeline.KindSearch, pipeline.KindLimit, pipeline.KindSkip, pipeline.KindSample:
	default:
		err = opterrors.Errorf(opterrors.Internal, "no classification rule for %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func malformed(format string, args ...any) error {
	return opterrors.NewErrorf(opterrors.InvalidArgument, opterrors.MalformedStage, format, args...)
}

func addWalked(fs *pipeline.FieldSet, value any, extractKeys bool) error {
	fields, err := expr.Fields(value, extractKeys)
	if err != nil {
		return err
	}
	fs.AddAll(fields)
	return nil
}

func addPath(fs *pipeline.FieldSet, ref string) {
	if path, ok := expr.FieldPath(ref); ok {
		fs.Add(path)
	}
}

func payloadDoc(s *pipeline.Stage) (bson.D, error) {
	doc, ok := s.Payload.(bson.D)
	if !ok {
		return nil, malformed("%s expects a document, got %T", s.Operator, s.Payload)
	}
	return doc, nil
}
