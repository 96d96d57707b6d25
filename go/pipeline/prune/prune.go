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

// Package prune drops stages that cannot influence the result of a
// pipeline ending in $count.
package prune

import (
	"github.com/gammazero/deque"

	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/depgraph"
)

// countAltering are the kinds that may change how many documents reach the
// final $count. They are never pruned.
var countAltering = map[pipeline.Kind]bool{
	pipeline.KindMatch:      true,
	pipeline.KindUnwind:     true,
	pipeline.KindSearch:     true,
	pipeline.KindLimit:      true,
	pipeline.KindSkip:       true,
	pipeline.KindGroup:      true,
	pipeline.KindBucket:     true,
	pipeline.KindBucketAuto: true,
	pipeline.KindFacet:      true,
	pipeline.KindCount:      true,
	pipeline.KindSample:     true,
}

// Applies reports whether the pipeline in g ends in a $count stage.
func Applies(g *depgraph.Graph) bool {
	last := g.Last()
	return last != nil && last.Kind == pipeline.KindCount
}

// Prunable reports whether s can be removed from g without changing the
// count: it does not change the number of documents and nothing but a
// $count reads what it does.
func Prunable(g *depgraph.Graph, s *pipeline.Stage) bool {
	if countAltering[s.Kind] {
		return false
	}
	switch s.Dependents.Len() {
	case 0:
		return true
	case 1:
		dep := g.Stage(s.Dependents.IDs()[0])
		return dep != nil && dep.Kind == pipeline.KindCount
	}
	return false
}

// Count removes prunable stages from g until none is left and returns the
// ids it removed, in removal order. It does nothing unless the pipeline ends
// in $count.
func Count(g *depgraph.Graph) []int {
	if !Applies(g) {
		return nil
	}

	var (
		queue   deque.Deque[int]
		queued  pipeline.StageSet
		removed []int
	)
	enqueue := func(s *pipeline.Stage) {
		if s != nil && !queued.Has(s.ID) && Prunable(g, s) {
			queue.PushBack(s.ID)
			queued = queued.With(s.ID)
		}
	}

	for _, s := range g.Stages() {
		enqueue(s)
	}
	for queue.Len() > 0 {
		id := queue.PopFront()
		deps := g.Stage(id).Dependencies
		g.Remove(id)
		removed = append(removed, id)
		deps.ForEach(func(dep int) {
			enqueue(g.Stage(dep))
		})
	}
	return removed
}
