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

// Package schedule linearizes a stage dependency graph.
package schedule

import (
	"cmp"
	"slices"

	"github.com/gammazero/deque"

	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/depgraph"
)

// canonical is the preferred position of each kind among stages that are
// ready at the same time. Cheap filters come first, joins late.
var canonical = [][]pipeline.Kind{
	{pipeline.KindMatch},
	{pipeline.KindSortByCount},
	{pipeline.KindUnwind},
	{pipeline.KindProject},
	{pipeline.KindSearch},
	{pipeline.KindSort},
	{pipeline.KindLimit},
	{pipeline.KindSkip},
	{pipeline.KindAddFields, pipeline.KindSet},
	{pipeline.KindLookup},
	{pipeline.KindGraphLookup},
	{pipeline.KindGroup},
	{pipeline.KindBucket},
	{pipeline.KindBucketAuto},
	{pipeline.KindFacet},
	{pipeline.KindCount},
	{pipeline.KindUnset},
	{pipeline.KindSample},
}

var priorities = func() map[pipeline.Kind]int {
	m := make(map[pipeline.Kind]int)
	for pos, kinds := range canonical {
		for _, k := range kinds {
			m[k] = pos
		}
	}
	return m
}()

// Priority returns the canonical position of kind. Kinds without a position
// rank after every listed kind.
func Priority(kind pipeline.Kind) int {
	if pos, ok := priorities[kind]; ok {
		return pos
	}
	return len(canonical)
}

// Compare orders two ready stages: destructive stages first, then by
// canonical priority, then by original position.
func Compare(a, b *pipeline.Stage) int {
	if a.Destructive != b.Destructive {
		if a.Destructive {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(Priority(a.Kind), Priority(b.Kind)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Order returns the stages of g in an order that respects every dependency.
// Stages unblocked by the stage just scheduled go ahead of stages that were
// already waiting, so chains of dependent stages stay together.
func Order(g *depgraph.Graph) ([]*pipeline.Stage, error) {
	stages := g.Stages()
	pending := make(map[int]int, len(stages))

	var seed []*pipeline.Stage
	for _, s := range stages {
		n := 0
		s.Dependencies.ForEach(func(id int) {
			if g.Stage(id) != nil {
				n++
			}
		})
		pending[s.ID] = n
		if n == 0 {
			seed = append(seed, s)
		}
	}
	slices.SortStableFunc(seed, Compare)

	var ready deque.Deque[*pipeline.Stage]
	for _, s := range seed {
		ready.PushBack(s)
	}

	out := make([]*pipeline.Stage, 0, len(stages))
	for ready.Len() > 0 {
		s := ready.PopFront()
		out = append(out, s)

		var wave []*pipeline.Stage
		s.Dependents.ForEach(func(id int) {
			dep := g.Stage(id)
			if dep == nil {
				return
			}
			pending[id]--
			if pending[id] == 0 {
				wave = append(wave, dep)
			}
		})
		slices.SortStableFunc(wave, Compare)
		for i := len(wave) - 1; i >= 0; i-- {
			ready.PushFront(wave[i])
		}
	}

	if len(out) != len(stages) {
		return nil, opterrors.NewErrorf(opterrors.Internal, opterrors.UnscheduledStage,
			"scheduled %d of %d stages", len(out), len(stages))
	}
	return out, nil
}
