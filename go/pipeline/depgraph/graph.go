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

// Package depgraph links classified stages into a dependency DAG. An edge
// from stage j to stage i means j must run before i.
package depgraph

import (
	"slices"

	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
)

// mustFollow lists, per kind, the kinds that may never move after it.
// A $limit after a $sort keeps the top documents; swapping them changes
// the result.
var mustFollow = map[pipeline.Kind][]pipeline.Kind{
	pipeline.KindLimit:  {pipeline.KindSort, pipeline.KindSkip, pipeline.KindSample, pipeline.KindMatch},
	pipeline.KindSort:   {pipeline.KindLimit, pipeline.KindSkip, pipeline.KindSample},
	pipeline.KindSkip:   {pipeline.KindSort, pipeline.KindLimit, pipeline.KindSample, pipeline.KindMatch},
	pipeline.KindSample: {pipeline.KindSort, pipeline.KindLimit, pipeline.KindSkip, pipeline.KindMatch},
	pipeline.KindGroup:  {pipeline.KindMatch},
	pipeline.KindMatch: {
		pipeline.KindLimit, pipeline.KindSkip, pipeline.KindSample,
		pipeline.KindGroup, pipeline.KindBucket, pipeline.KindBucketAuto, pipeline.KindFacet,
	},
}

// Graph is an arena of stages indexed by their original position, linked
// through their Dependencies and Dependents sets.
type Graph struct {
	stages  []*pipeline.Stage
	removed pipeline.StageSet
}

// Build links stages, which must be indexed by ID, and returns the graph.
// Any existing links on the stages are replaced.
func Build(stages []*pipeline.Stage) *Graph {
	for _, s := range stages {
		s.Dependencies, s.Dependents = "", ""
	}
	barrier := -1
	for i, s := range stages {
		for j := 0; j < i; j++ {
			if (barrier >= 0 && j >= barrier) || DependsOn(s, stages[j]) {
				link(stages[j], s)
			}
		}
		if s.Destructive {
			barrier = i
		}
	}
	return &Graph{stages: stages}
}

func link(before, after *pipeline.Stage) {
	after.Dependencies = after.Dependencies.With(before.ID)
	before.Dependents = before.Dependents.With(after.ID)
}

// DependsOn reports whether stage i has to stay after the earlier stage j,
// ignoring barriers. Apart from destructive stages the relation is
// symmetric: swapping i and j gives the same answer, so a reordered
// pipeline rebuilds into the same graph.
func DependsOn(i, j *pipeline.Stage) bool {
	switch {
	case i.Destructive:
		return true
	case slices.Contains(mustFollow[i.Kind], j.Kind):
		return true
	case j.Produced.Collides(i.Used), j.Removed.Collides(i.Used):
		// i reads what j writes or deletes
		return true
	case i.Produced.Collides(j.Used), i.Removed.Collides(j.Used):
		// i overwrites or deletes what j reads
		return true
	case i.Produced.Collides(j.Produced), i.Produced.Collides(j.Removed):
		return true
	}
	return i.Removed.Collides(j.Produced)
}

// Stage returns the stage with the given id, or nil if it was removed.
func (g *Graph) Stage(id int) *pipeline.Stage {
	if id < 0 || id >= len(g.stages) || g.removed.Has(id) {
		return nil
	}
	return g.stages[id]
}

// Stages returns the remaining stages in original order.
func (g *Graph) Stages() []*pipeline.Stage {
	out := make([]*pipeline.Stage, 0, g.Len())
	for _, s := range g.stages {
		if !g.removed.Has(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of remaining stages.
func (g *Graph) Len() int {
	return len(g.stages) - g.removed.Len()
}

// Last returns the remaining stage with the highest id.
func (g *Graph) Last() *pipeline.Stage {
	for i := len(g.stages) - 1; i >= 0; i-- {
		if s := g.Stage(i); s != nil {
			return s
		}
	}
	return nil
}

// Remove drops a stage and every edge that touches it.
func (g *Graph) Remove(id int) {
	s := g.Stage(id)
	if s == nil {
		return
	}
	s.Dependencies.ForEach(func(dep int) {
		if d := g.Stage(dep); d != nil {
			d.Dependents = d.Dependents.Without(id)
		}
	})
	s.Dependents.ForEach(func(dep int) {
		if d := g.Stage(dep); d != nil {
			d.Dependencies = d.Dependencies.Without(id)
		}
	})
	g.removed = g.removed.With(id)
}

// Removed returns the ids of the stages dropped from the graph.
func (g *Graph) Removed() pipeline.StageSet {
	return g.removed
}
