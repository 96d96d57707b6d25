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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liqd-js/mongodb-query-optimizer/go/flagutil"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/classify"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/depgraph"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/optimizer"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/prune"
)

func newExplainCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [file]",
		Short: "Shows the fields, dependencies and final order of every stage.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readPipeline(cmd, v, inputName(args))
			if err != nil {
				return err
			}
			tree, err := optimizer.Explain(docs)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), tree)
			return err
		},
	}
}

func newGraphCommand(v *viper.Viper) *cobra.Command {
	var pruned bool
	cmd := &cobra.Command{
		Use:     "graph [file]",
		Short:   "Prints the stage dependency graph in Graphviz DOT format.",
		Example: "pipeopt graph pipeline.json | dot -Tsvg > pipeline.svg",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readPipeline(cmd, v, inputName(args))
			if err != nil {
				return err
			}
			stages, err := classify.Pipeline(docs)
			if err != nil {
				return err
			}
			g := depgraph.Build(stages)
			if pruned {
				prune.Count(g)
			}
			if err := g.Verify(); err != nil {
				return err
			}
			out, err := g.DOT()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	flagutil.SetFlagBoolVar(cmd.Flags(), &pruned, "pruned", false, "Leave out stages that cannot change a terminal $count.")
	return cmd
}
