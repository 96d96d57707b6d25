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

// Package optimizer reorders and trims aggregation pipelines.
//
// A pipeline is classified stage by stage, the stages are linked into a
// dependency graph, stages that cannot affect a terminal $count are pruned,
// and the remaining stages are scheduled in a canonical order that respects
// every dependency. The stage documents themselves are never modified.
package optimizer

import (
	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/classify"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/depgraph"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/prune"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/schedule"
)

// Plan is the outcome of optimizing one pipeline.
type Plan struct {
	// Stages holds every input stage, indexed by original position.
	Stages []*pipeline.Stage
	Graph  *depgraph.Graph
	// Order is the optimized stage order.
	Order []*pipeline.Stage
	// Removed holds the ids of pruned stages in removal order.
	Removed []int
}

// Build runs every optimizer pass over docs.
func Build(docs []bson.D) (*Plan, error) {
	stages, err := classify.Pipeline(docs)
	if err != nil {
		return nil, err
	}
	g := depgraph.Build(stages)
	removed := prune.Count(g)
	order, err := schedule.Order(g)
	if err != nil {
		return nil, err
	}
	return &Plan{Stages: stages, Graph: g, Order: order, Removed: removed}, nil
}

// Pipeline returns the optimized stage documents.
func (p *Plan) Pipeline() []bson.D {
	return pipeline.Docs(p.Order)
}

// Optimize returns an equivalent pipeline with stages reordered and, for
// pipelines ending in $count, irrelevant stages removed. Any stage or
// operator it does not understand is an error.
func Optimize(docs []bson.D) ([]bson.D, error) {
	plan, err := Build(docs)
	if err != nil {
		return nil, err
	}
	return plan.Pipeline(), nil
}
