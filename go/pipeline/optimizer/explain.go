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

package optimizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
)

// Explain describes how docs would be optimized: what every stage reads
// and writes, what it has to follow, and the final order.
func Explain(docs []bson.D) (string, error) {
	plan, err := Build(docs)
	if err != nil {
		return "", err
	}
	return plan.Tree(), nil
}

// Tree renders the plan as a text tree.
func (p *Plan) Tree() string {
	root := treeprint.NewWithRoot(fmt.Sprintf("pipeline (%d stages, %d removed)", len(p.Stages), len(p.Removed)))

	stages := root.AddBranch("stages")
	for _, s := range p.Stages {
		label := s.String()
		if s.Destructive {
			label += " (destructive)"
		}
		if p.Graph.Stage(s.ID) == nil {
			label += " [pruned]"
		}
		branch := stages.AddBranch(label)
		addFieldNode(branch, "used", s.Used)
		addFieldNode(branch, "produced", s.Produced)
		addFieldNode(branch, "removed", s.Removed)
		if !s.Dependencies.IsEmpty() {
			branch.AddNode("after: " + joinIDs(s.Dependencies))
		}
	}

	order := root.AddBranch("order")
	for _, s := range p.Order {
		order.AddNode(s.String())
	}
	return root.String()
}

func addFieldNode(branch treeprint.Tree, name string, fs *pipeline.FieldSet) {
	if fs.Len() == 0 {
		return
	}
	branch.AddNode(name + ": " + strings.Join(fs.Values(), ", "))
}

func joinIDs(ss pipeline.StageSet) string {
	ids := ss.IDs()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ", ")
}
