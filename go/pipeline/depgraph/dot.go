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

package depgraph

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
)

type stageNode struct {
	s *pipeline.Stage
}

var _ encoding.Attributer = stageNode{}

func (n stageNode) ID() int64 {
	return int64(n.s.ID)
}

func (n stageNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "label", Value: n.s.String()}}
	if n.s.Destructive {
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "box"})
	}
	return attrs
}

func (g *Graph) directed() *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for _, s := range g.Stages() {
		dg.AddNode(stageNode{s})
	}
	for _, s := range g.Stages() {
		s.Dependents.ForEach(func(id int) {
			if to := g.Stage(id); to != nil {
				dg.SetEdge(dg.NewEdge(stageNode{s}, stageNode{to}))
			}
		})
	}
	return dg
}

// DOT renders the graph in Graphviz format. Destructive stages are drawn as
// boxes.
func (g *Graph) DOT() ([]byte, error) {
	return dot.Marshal(g.directed(), "pipeline", "", "\t")
}

// Verify checks that the graph is acyclic, that every edge points from a
// smaller id to a larger one, and that dependents mirror dependencies.
func (g *Graph) Verify() error {
	for _, s := range g.Stages() {
		var problems []string
		s.Dependencies.ForEach(func(id int) {
			dep := g.Stage(id)
			switch {
			case dep == nil:
				problems = append(problems, fmt.Sprintf("depends on removed stage %d", id))
			case id >= s.ID:
				problems = append(problems, fmt.Sprintf("depends on later stage %d", id))
			case !dep.Dependents.Has(s.ID):
				problems = append(problems, fmt.Sprintf("missing from dependents of stage %d", id))
			}
		})
		s.Dependents.ForEach(func(id int) {
			if dep := g.Stage(id); dep == nil || !dep.Dependencies.Has(s.ID) {
				problems = append(problems, fmt.Sprintf("dependent %d does not depend on it", id))
			}
		})
		if len(problems) > 0 {
			return opterrors.Errorf(opterrors.Internal, "stage %v: %s", s, strings.Join(problems, "; "))
		}
	}
	if _, err := topo.Sort(g.directed()); err != nil {
		return opterrors.Errorf(opterrors.Internal, "dependency graph has a cycle: %v", err)
	}
	return nil
}
