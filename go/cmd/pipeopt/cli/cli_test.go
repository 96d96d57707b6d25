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
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/pipelineio"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/server"
	"github.com/liqd-js/mongodb-query-optimizer/go/test/utils"
)

const (
	joinFirst   = `[{"$lookup":{"from":"users","localField":"userId","foreignField":"_id","as":"user"}},{"$sort":{"createdAt":-1}},{"$limit":10}]`
	joinLast    = `[{"$sort":{"createdAt":-1}},{"$limit":10},{"$lookup":{"from":"users","localField":"userId","foreignField":"_id","as":"user"}}]`
	unsupported = `[{"$match":{"a":1}},{"unsupported_op":{}}]`
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOptimizeStdin(t *testing.T) {
	out, err := run(t, joinFirst, "optimize")
	require.NoError(t, err)
	assert.Equal(t, joinLast+"\n", out)

	out, err = run(t, joinFirst, "optimize", "-")
	require.NoError(t, err)
	assert.Equal(t, joinLast+"\n", out)
}

func TestOptimizeIndent(t *testing.T) {
	out, err := run(t, `[{"$limit":10}]`, "optimize", "--indent", "2")
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"$limit\": 10\n  }\n]\n", out)
}

func TestOptimizeFormats(t *testing.T) {
	path := writeFile(t, "pipeline.yaml", "- $addFields: {x: 1}\n- $count: n\n")
	out, err := run(t, "", "optimize", path)
	require.NoError(t, err)
	assert.Equal(t, `[{"$count":"n"}]`+"\n", out)

	out, err = run(t, "- $limit: 3\n", "optimize", "--input-format", "yml")
	require.NoError(t, err)
	assert.Equal(t, `[{"$limit":3}]`+"\n", out)

	_, err = run(t, joinFirst, "optimize", "--input-format", "xml")
	assert.ErrorContains(t, err, `unknown input format "xml"`)

	_, err = run(t, "", "optimize", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "missing.json")
}

func TestOptimizeBSONOutput(t *testing.T) {
	out, err := run(t, joinFirst, "optimize", "--output-format", "bson")
	require.NoError(t, err)

	got, err := pipelineio.DecodeBSON([]byte(out))
	require.NoError(t, err)
	want, err := pipelineio.DecodeJSON([]byte(joinLast))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// the output reads back as input
	out, err = run(t, out, "optimize", "--input-format", "bson")
	require.NoError(t, err)
	assert.Equal(t, joinLast+"\n", out)

	_, err = run(t, joinFirst, "optimize", "--output-format", "yaml")
	assert.ErrorContains(t, err, `unknown output format "yaml"`)
}

func TestOptimizeStrict(t *testing.T) {
	out, err := run(t, unsupported, "optimize")
	require.NoError(t, err)
	assert.Equal(t, unsupported+"\n", out)

	_, err = run(t, unsupported, "optimize", "--strict")
	assert.EqualError(t, err, `stage 1: unsupported stage: "unsupported_op"`)

	t.Setenv("PIPEOPT_STRICT", "true")
	_, err = run(t, unsupported, "optimize")
	assert.Error(t, err)
}

func TestOptimizeBatch(t *testing.T) {
	first := writeFile(t, "first.json", joinFirst)
	second := writeFile(t, "second.json", unsupported)

	out, err := run(t, "", "optimize", "--concurrency", "2", first, second)
	require.NoError(t, err)
	assert.Equal(t, joinLast+"\n"+unsupported+"\n", out)

	_, err = run(t, "", "optimize", "--strict", first, second)
	assert.ErrorContains(t, err, "second.json")
}

func TestConfigFile(t *testing.T) {
	cfg := writeFile(t, "pipeopt.yaml", "input-format: yaml\nindent: 1\n")
	out, err := run(t, "- $limit: 3\n", "optimize", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "[\n {\n  \"$limit\": 3\n }\n]\n", out)

	// flags win over the config file
	out, err = run(t, `[{"$limit":3}]`, "optimize", "--config", cfg, "--input-format", "json", "--indent", "0")
	require.NoError(t, err)
	assert.Equal(t, `[{"$limit":3}]`+"\n", out)

	_, err = run(t, "", "optimize", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestExplainCommand(t *testing.T) {
	out, err := run(t, joinFirst, "explain")
	require.NoError(t, err)
	assert.Contains(t, out, "pipeline (3 stages, 0 removed)")
	assert.Contains(t, out, "produced: user")

	_, err = run(t, unsupported, "explain")
	assert.Error(t, err)
}

func TestGraphCommand(t *testing.T) {
	in := `[{"$lookup":{"from":"users","localField":"userId","foreignField":"_id","as":"user"}},{"$match":{"a":1}},{"$count":"n"}]`
	out, err := run(t, in, "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph pipeline {")
	assert.Contains(t, out, "0:$lookup")

	out, err = run(t, in, "graph", "--pruned")
	require.NoError(t, err)
	assert.NotContains(t, out, "0:$lookup")
	assert.Contains(t, out, "1 -> 2")
}

func TestServe(t *testing.T) {
	defer utils.EnsureNoLeaks(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, server.New(server.Options{}))
	}()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Post("http://"+ln.Addr().String()+"/optimize", "application/json", strings.NewReader(joinFirst))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"optimized":true`)

	cancel()
	require.NoError(t, <-done)
}
