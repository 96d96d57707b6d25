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

// Package pipeline holds the model shared by the optimizer passes: the
// stage arena entry, its operator kind, and the field and stage sets that
// link stages together.
package pipeline

import (
	"fmt"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
)

// Kind identifies the operator of a stage.
type Kind int8

const (
	KindMatch Kind = iota
	KindSortByCount
	KindUnwind
	KindProject
	KindSearch
	KindSort
	KindLimit
	KindSkip
	KindAddFields
	KindSet
	KindLookup
	KindGraphLookup
	KindGroup
	KindBucket
	KindBucketAuto
	KindFacet
	KindCount
	KindUnset
	KindSample
	KindReplaceWith

	numKinds
)

var kindOperators = [numKinds]string{
	KindMatch:       "$match",
	KindSortByCount: "$sortByCount",
	KindUnwind:      "$unwind",
	KindProject:     "$project",
	KindSearch:      "$search",
	KindSort:        "$sort",
	KindLimit:       "$limit",
	KindSkip:        "$skip",
	KindAddFields:   "$addFields",
	KindSet:         "$set",
	KindLookup:      "$lookup",
	KindGraphLookup: "$graphLookup",
	KindGroup:       "$group",
	KindBucket:      "$bucket",
	KindBucketAuto:  "$bucketAuto",
	KindFacet:       "$facet",
	KindCount:       "$count",
	KindUnset:       "$unset",
	KindSample:      "$sample",
	KindReplaceWith: "$replaceWith",
}

var operatorKinds = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k, op := range kindOperators {
		m[op] = Kind(k)
	}
	return m
}()

// KindOf returns the kind for a stage operator such as "$match".
func KindOf(operator string) (Kind, bool) {
	k, ok := operatorKinds[operator]
	return k, ok
}

// String returns the stage operator, including the leading '$'.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindOperators[k]
}

// Stage is one pipeline element. Stages live in an arena indexed by ID, their
// position in the original input, and refer to each other only by ID.
type Stage struct {
	ID       int
	Kind     Kind
	Operator string
	// Payload is the operator argument. It is opaque to the graph passes.
	Payload any
	// Doc is the stage document as supplied by the caller. It is handed back
	// untouched in the optimized pipeline.
	Doc bson.D

	Used     *FieldSet
	Produced *FieldSet
	Removed  *FieldSet

	// Destructive stages discard or replace the document shape and act as
	// reorder barriers.
	Destructive bool

	Dependencies StageSet
	Dependents   StageSet
}

// NewStage creates a stage with empty field sets.
func NewStage(id int, kind Kind, doc bson.D) *Stage {
	s := &Stage{
		ID:       id,
		Kind:     kind,
		Operator: kind.String(),
		Doc:      doc,
		Used:     NewFieldSet(),
		Produced: NewFieldSet(),
		Removed:  NewFieldSet(),
	}
	if len(doc) == 1 {
		s.Payload = doc[0].Value
	}
	return s
}

func (s *Stage) String() string {
	return fmt.Sprintf("%d:%s", s.ID, s.Operator)
}

// Docs returns the caller documents of stages, in the given order.
func Docs(stages []*Stage) []bson.D {
	docs := make([]bson.D, 0, len(stages))
	for _, s := range stages {
		docs = append(docs, s.Doc)
	}
	return docs
}
