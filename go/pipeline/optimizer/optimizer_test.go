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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/log"
	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/test/utils"
)

type d = bson.D

var (
	lookupUsers = d{{Key: "$lookup", Value: d{
		{Key: "from", Value: "users"},
		{Key: "localField", Value: "userId"},
		{Key: "foreignField", Value: "_id"},
		{Key: "as", Value: "user"},
	}}}
	sortCreated = d{{Key: "$sort", Value: d{{Key: "createdAt", Value: int64(-1)}}}}
	limit10     = d{{Key: "$limit", Value: int64(10)}}
	matchActive = d{{Key: "$match", Value: d{{Key: "status", Value: "active"}}}}
	countTotal  = d{{Key: "$count", Value: "total"}}
	addTotal    = d{{Key: "$addFields", Value: d{{Key: "total", Value: int64(1)}}}}
	unsupported = d{{Key: "unsupported_op", Value: d{}}}

	unsetA    = d{{Key: "$unset", Value: "a"}}
	addAFromB = d{{Key: "$addFields", Value: d{{Key: "a", Value: "$b"}}}}
	setUserID = d{{Key: "$addFields", Value: d{{Key: "userId", Value: "$other"}}}}
	projectA  = d{{Key: "$project", Value: d{{Key: "a", Value: int64(1)}, {Key: "status", Value: int64(1)}}}}
	setB      = d{{Key: "$set", Value: d{{Key: "b", Value: "$c"}}}}

	graphLookupA = d{{Key: "$graphLookup", Value: d{
		{Key: "from", Value: "org"},
		{Key: "startWith", Value: "$a"},
		{Key: "connectFromField", Value: "manager"},
		{Key: "connectToField", Value: "name"},
		{Key: "as", Value: "chain"},
	}}}
)

// samples are pipelines that optimize without error.
var samples = [][]d{
	{sortCreated, limit10},
	{lookupUsers, sortCreated, limit10},
	{addTotal, countTotal},
	{lookupUsers, matchActive, countTotal},
	{lookupUsers, matchActive, sortCreated, limit10, addTotal},
	{
		addTotal,
		matchActive,
		{{Key: "$group", Value: d{{Key: "_id", Value: "$status"}, {Key: "n", Value: d{{Key: "$sum", Value: "$total"}}}}}},
		lookupUsers,
		{{Key: "$facet", Value: d{{Key: "top", Value: bson.A{sortCreated, limit10}}}}},
		matchActive,
		{{Key: "$unset", Value: "top"}},
	},
	{
		{{Key: "$project", Value: d{{Key: "password", Value: int64(0)}}}},
		lookupUsers,
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$sample", Value: d{{Key: "size", Value: int64(3)}}}},
		{{Key: "$replaceWith", Value: "$user"}},
		matchActive,
		{{Key: "$skip", Value: int64(1)}},
	},
	{unsetA, addAFromB},
	{lookupUsers, setUserID},
	{graphLookupA, projectA, setB, sortCreated},
	{matchActive, {{Key: "$group", Value: d{{Key: "_id", Value: "$status"}}}}},
}

func TestOptimizeScenarios(t *testing.T) {
	tcases := []struct {
		name string
		in   []d
		want []d
	}{
		{"sort and limit", []d{sortCreated, limit10}, []d{sortCreated, limit10}},
		{"join moved last", []d{lookupUsers, sortCreated, limit10}, []d{sortCreated, limit10, lookupUsers}},
		{"unused field before count", []d{addTotal, countTotal}, []d{countTotal}},
		{"unused join before count", []d{lookupUsers, matchActive, countTotal}, []d{matchActive, countTotal}},
		{"field written after it was removed", []d{unsetA, addAFromB}, []d{unsetA, addAFromB}},
		{"join key overwritten after the join", []d{lookupUsers, setUserID}, []d{lookupUsers, setUserID}},
		{"traversal input overwritten by a projection", []d{graphLookupA, projectA, setB, sortCreated}, []d{sortCreated, setB, graphLookupA, projectA}},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Optimize(tc.in)
			require.NoError(t, err)
			utils.MustMatch(t, tc.want, got)
		})
	}

	in := []d{matchActive, sortCreated, unsupported}
	res := BestEffort(in)
	assert.Equal(t, in, res.Pipeline)
	assert.False(t, res.Optimized)
	assert.Equal(t, opterrors.UnsupportedStage, opterrors.ErrState(res.Err))
}

func TestOptimizeIsIdempotent(t *testing.T) {
	for i, p := range samples {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			once, err := Optimize(p)
			require.NoError(t, err)
			twice, err := Optimize(once)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}

func TestNoOpPipelineKeepsOrder(t *testing.T) {
	in := []d{
		matchActive,
		{{Key: "$project", Value: d{{Key: "name", Value: int64(1)}}}},
		sortCreated,
	}
	got, err := Optimize(in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestStagesOnlyRemovedWhenCounting(t *testing.T) {
	for i, p := range samples {
		if p[len(p)-1][0].Key == "$count" {
			continue
		}
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			res := BestEffort(p)
			require.NoError(t, res.Err)
			assert.Zero(t, res.Removed)
			order := slices.Clone(res.Order)
			slices.Sort(order)
			for id := range p {
				assert.Equal(t, id, order[id])
			}
		})
	}
}

func TestBarriersAreRespected(t *testing.T) {
	for i, p := range samples {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			plan, err := Build(p)
			require.NoError(t, err)
			assertBarriers(t, plan)
		})
	}
}

// assertBarriers checks that no stage of plan crossed a destructive stage.
func assertBarriers(t *testing.T, plan *Plan) {
	t.Helper()
	position := make(map[int]int, len(plan.Order))
	for pos, s := range plan.Order {
		position[s.ID] = pos
	}
	for _, s := range plan.Order {
		if !s.Destructive {
			continue
		}
		for id := range s.ID {
			if pos, ok := position[id]; ok {
				assert.Less(t, pos, position[s.ID], "stage %d must stay before %v", id, s)
			}
		}
		for id := s.ID + 1; id < len(plan.Stages); id++ {
			if pos, ok := position[id]; ok {
				assert.Greater(t, pos, position[s.ID], "stage %d must stay after %v", id, s)
			}
		}
	}
	require.NoError(t, plan.Graph.Verify())
}

// stagePool holds at least one stage of every supported kind. The stages
// share a handful of field names so that random pipelines built from them
// have plenty of field conflicts.
var stagePool = []d{
	matchActive,
	{{Key: "$match", Value: d{{Key: "a", Value: d{{Key: "$gt", Value: int64(1)}}}}}},
	{{Key: "$match", Value: d{{Key: "user.name", Value: "John"}}}},
	{{Key: "$sortByCount", Value: "$status"}},
	{{Key: "$unwind", Value: "$user"}},
	{{Key: "$unwind", Value: d{{Key: "path", Value: "$b"}}}},
	projectA,
	{{Key: "$project", Value: d{{Key: "b", Value: int64(0)}}}},
	{{Key: "$project", Value: d{{Key: "c", Value: "$a"}}}},
	{{Key: "$search", Value: d{{Key: "text", Value: d{{Key: "query", Value: "x"}}}}}},
	sortCreated,
	{{Key: "$sort", Value: d{{Key: "a", Value: int64(1)}}}},
	limit10,
	{{Key: "$skip", Value: int64(5)}},
	addTotal,
	addAFromB,
	setUserID,
	setB,
	lookupUsers,
	{{Key: "$lookup", Value: d{
		{Key: "from", Value: "orders"},
		{Key: "let", Value: d{{Key: "id", Value: "$userId"}}},
		{Key: "pipeline", Value: bson.A{d{{Key: "$match", Value: d{{Key: "status", Value: "open"}}}}}},
		{Key: "as", Value: "b"},
	}}},
	graphLookupA,
	{{Key: "$group", Value: d{{Key: "_id", Value: "$status"}, {Key: "n", Value: d{{Key: "$sum", Value: "$total"}}}}}},
	{{Key: "$bucket", Value: d{{Key: "groupBy", Value: "$a"}, {Key: "boundaries", Value: bson.A{int64(0), int64(10)}}}}},
	{{Key: "$bucketAuto", Value: d{{Key: "groupBy", Value: "$total"}, {Key: "buckets", Value: int64(4)}}}},
	{{Key: "$facet", Value: d{{Key: "top", Value: bson.A{sortCreated, limit10}}}}},
	countTotal,
	unsetA,
	{{Key: "$unset", Value: bson.A{"user", "c"}}},
	{{Key: "$sample", Value: d{{Key: "size", Value: int64(3)}}}},
	{{Key: "$replaceWith", Value: "$user"}},
}

func TestGeneratedPipelines(t *testing.T) {
	r := rand.New(rand.NewPCG(20, 26))
	for n := range 3000 {
		p := make([]d, 1+r.IntN(8))
		for i := range p {
			p[i] = stagePool[r.IntN(len(stagePool))]
		}

		plan, err := Build(p)
		require.NoError(t, err, "pipeline %d: %v", n, p)
		once := plan.Pipeline()
		assertBarriers(t, plan)

		if p[len(p)-1][0].Key == "$count" {
			assert.LessOrEqual(t, len(once), len(p), "pipeline %d: %v", n, p)
			assert.Equal(t, "$count", once[len(once)-1][0].Key, "pipeline %d: %v", n, p)
		} else {
			assert.Len(t, once, len(p), "pipeline %d: %v", n, p)
		}

		twice, err := Optimize(once)
		require.NoError(t, err, "pipeline %d: %v", n, once)
		assert.Equal(t, once, twice, "pipeline %d: %v", n, p)

		if t.Failed() {
			break
		}
	}
}

func TestBestEffort(t *testing.T) {
	var buf bytes.Buffer
	restore := log.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer restore()

	res := BestEffort([]d{lookupUsers, matchActive, countTotal})
	require.NoError(t, res.Err)
	assert.True(t, res.Optimized)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, []int{1, 2}, res.Order)
	assert.True(t, res.Changed())
	assert.Empty(t, buf.String())

	in := []d{matchActive, {{Key: "$match", Value: d{{Key: "name", Value: d{{Key: "$regex", Value: "^a"}}}}}}}
	res = BestEffort(in)
	assert.Equal(t, in, res.Pipeline)
	assert.Equal(t, []int{0, 1}, res.Order)
	assert.False(t, res.Changed())
	assert.Equal(t, opterrors.UnsupportedOperator, opterrors.ErrState(res.Err))
	assert.Contains(t, buf.String(), `"msg":"pipeline not optimized, using it as is"`)
	assert.Contains(t, buf.String(), `"stages":2`)
}

func TestOptimizeAll(t *testing.T) {
	ctx := utils.LeakCheckContext(t)

	var pipelines [][]d
	for range 5 {
		pipelines = append(pipelines, samples...)
	}
	pipelines = append(pipelines, []d{unsupported})

	results, err := OptimizeAll(ctx, pipelines, Options{Concurrency: 4})
	require.NoError(t, err)
	require.Len(t, results, len(pipelines))
	for i, p := range pipelines[:len(pipelines)-1] {
		want := BestEffort(p)
		assert.Equal(t, want.Pipeline, results[i].Pipeline, "pipeline %d", i)
		assert.True(t, results[i].Optimized)
	}
	last := results[len(results)-1]
	assert.False(t, last.Optimized)
	assert.Error(t, last.Err)
}

func TestOptimizeAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := OptimizeAll(ctx, samples, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExplain(t *testing.T) {
	out, err := Explain([]d{lookupUsers, matchActive, countTotal})
	require.NoError(t, err)
	for _, want := range []string{
		"pipeline (3 stages, 1 removed)",
		"0:$lookup [pruned]",
		"used: userId",
		"produced: user",
		"2:$count (destructive)",
		"after: 0, 1",
		"order",
		"1:$match",
	} {
		assert.Contains(t, out, want)
	}

	_, err = Explain([]d{unsupported})
	assert.Error(t, err)
}
