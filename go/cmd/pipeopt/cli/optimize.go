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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/flagutil"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/optimizer"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/pipelineio"
)

func newOptimizeCommand(v *viper.Viper) *cobra.Command {
	var (
		strict       bool
		indent       int
		concurrency  int
		outputFormat string
	)
	cmd := &cobra.Command{
		Use:   "optimize [file ...]",
		Short: "Prints the optimized form of one or more pipelines.",
		Long: "Reads pipelines from the given files, or from standard input when no file or `-` is given,\n" +
			"and prints each optimized pipeline as JSON. With several files one compact JSON document is\n" +
			"printed per line, in argument order.\n\n" +
			"Pipelines that cannot be optimized are printed unchanged unless --strict is set.\n\n" +
			"With --output-format bson each pipeline is written as one BSON array document instead,\n" +
			"the form --input-format bson reads.",
		Example: "pipeopt optimize pipeline.json\n" +
			"cat pipeline.yaml | pipeopt optimize --input-format yaml --indent 2",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return optimizeBatch(cmd, v, args)
			}
			docs, err := readPipeline(cmd, v, inputName(args))
			if err != nil {
				return err
			}

			var out []bson.D
			if v.GetBool(keyStrict) {
				if out, err = optimizer.Optimize(docs); err != nil {
					return err
				}
			} else {
				out = optimizer.BestEffort(docs).Pipeline
			}
			return printPipeline(cmd, v, out, v.GetInt(keyIndent))
		},
	}

	fs := cmd.Flags()
	flagutil.SetFlagBoolVar(fs, &strict, keyStrict, false, "Fail instead of printing the input when a pipeline cannot be optimized.")
	flagutil.SetFlagIntVar(fs, &indent, keyIndent, 0, "Indent JSON output by this many spaces. Zero prints compact JSON.")
	flagutil.SetFlagIntVar(fs, &concurrency, "concurrency", 4, "Number of pipelines optimized at once when several files are given.")
	flagutil.SetFlagStringVar(fs, &outputFormat, keyOutputFormat, "json", "Output encoding: json or bson.")
	bindFlag(v, keyStrict, fs.Lookup(keyStrict))
	bindFlag(v, keyIndent, fs.Lookup(keyIndent))
	bindFlag(v, keyBatchConcurrency, fs.Lookup("concurrency"))
	bindFlag(v, keyOutputFormat, fs.Lookup(keyOutputFormat))
	return cmd
}

func optimizeBatch(cmd *cobra.Command, v *viper.Viper, names []string) error {
	pipelines := make([][]bson.D, 0, len(names))
	for _, name := range names {
		docs, err := readPipeline(cmd, v, name)
		if err != nil {
			return err
		}
		pipelines = append(pipelines, docs)
	}

	results, err := optimizer.OptimizeAll(cmd.Context(), pipelines, optimizer.Options{
		Concurrency: v.GetInt(keyBatchConcurrency),
	})
	if err != nil {
		return err
	}
	for i, res := range results {
		if res.Err != nil && v.GetBool(keyStrict) {
			return fmt.Errorf("%s: %w", names[i], res.Err)
		}
	}
	for _, res := range results {
		if err := printPipeline(cmd, v, res.Pipeline, 0); err != nil {
			return err
		}
	}
	return nil
}

// printPipeline writes docs in the configured output format. JSON output
// ends with a newline; BSON output is the bare document.
func printPipeline(cmd *cobra.Command, v *viper.Viper, docs []bson.D, indent int) error {
	format, err := pipelineio.ParseOutputFormat(v.GetString(keyOutputFormat))
	if err != nil {
		return err
	}
	out, err := pipelineio.Encode(docs, format, strings.Repeat(" ", max(indent, 0)))
	if err != nil {
		return err
	}
	if format == pipelineio.FormatJSON {
		out = append(out, '\n')
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
