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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/require"

	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/pipelineio"
	"github.com/liqd-js/mongodb-query-optimizer/go/test/utils"
)

type planTest struct {
	Comment  string          `json:"comment,omitempty"`
	Pipeline json.RawMessage `json:"pipeline,omitempty"`
	Plan     json.RawMessage `json:"plan,omitempty"`
	Skip     bool            `json:"skip,omitempty"`
}

func TestPlan(t *testing.T) {
	testOutputTempDir := utils.MakeTestOutput(t, "", "plan_test")
	testFile(t, "reorder_cases.json", testOutputTempDir)
	testFile(t, "count_cases.json", testOutputTempDir)
	testFile(t, "unsupported_cases.json", testOutputTempDir)
}

func testFile(t *testing.T, filename, tempDir string) {
	opts := jsondiff.DefaultConsoleOptions()

	t.Run(filename, func(t *testing.T) {
		var expected []planTest
		for _, tcase := range readJSONTests(t, filename) {
			current := planTest{
				Comment:  tcase.Comment,
				Pipeline: tcase.Pipeline,
			}
			out := getPlanOutput(tcase.Pipeline)

			t.Run(tcase.Comment, func(t *testing.T) {
				compare, s := jsondiff.Compare(tcase.Plan, []byte(out), &opts)
				if compare != jsondiff.FullMatch {
					message := fmt.Sprintf("%s\nDiff:\n%s\n[%s] \n[%s]", filename, s, tcase.Plan, out)
					if tcase.Skip {
						t.Skip(message)
					} else {
						t.Error(message)
					}
				} else if tcase.Skip {
					t.Errorf("pipeline is correct even though it is skipped:\n %s", tcase.Comment)
				}
				current.Plan = []byte(out)
			})
			expected = append(expected, current)
		}
		if tempDir != "" {
			name := strings.TrimSuffix(filename, filepath.Ext(filename))
			file, err := os.Create(filepath.Join(tempDir, name+".json"))
			require.NoError(t, err)
			defer file.Close()
			enc := json.NewEncoder(file)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			require.NoError(t, enc.Encode(expected))
		}
	})
}

func readJSONTests(t *testing.T, filename string) []planTest {
	var output []planTest
	file, err := os.Open(filepath.Join("testdata", filename))
	require.NoError(t, err)
	defer file.Close()
	dec := json.NewDecoder(file)
	dec.DisallowUnknownFields()
	require.NoError(t, dec.Decode(&output))
	return output
}

type planOutput struct {
	Pipeline json.RawMessage `json:"pipeline,omitempty"`
	Removed  []int           `json:"removed,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func getPlanOutput(input json.RawMessage) string {
	var out planOutput
	docs, err := pipelineio.DecodeJSON(input)
	if err == nil {
		var plan *Plan
		if plan, err = Build(docs); err == nil {
			out.Pipeline, err = pipelineio.EncodeJSON(plan.Pipeline(), "")
			out.Removed = plan.Removed
		}
	}
	if err != nil {
		out = planOutput{Error: err.Error()}
	}
	b, err := json.Marshal(out)
	if err != nil {
		panic(err)
	}
	return string(b)
}
