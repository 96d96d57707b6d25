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

package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/classify"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/depgraph"
)

type d = bson.D

func order(t *testing.T, docs ...d) []int {
	t.Helper()
	stages, err := classify.Pipeline(docs)
	require.NoError(t, err)
	out, err := Order(depgraph.Build(stages))
	require.NoError(t, err)
	ids := make([]int, 0, len(out))
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	return ids
}

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
)

func TestPriority(t *testing.T) {
	assert.Equal(t, 0, Priority(pipeline.KindMatch))
	assert.Equal(t, Priority(pipeline.KindAddFields), Priority(pipeline.KindSet))
	assert.Equal(t, 17, Priority(pipeline.KindSample))
	assert.Equal(t, 18, Priority(pipeline.KindReplaceWith))
}

func TestCompare(t *testing.T) {
	match := &pipeline.Stage{ID: 5, Kind: pipeline.KindMatch}
	lookup := &pipeline.Stage{ID: 0, Kind: pipeline.KindLookup}
	count := &pipeline.Stage{ID: 9, Kind: pipeline.KindCount, Destructive: true}
	replace := &pipeline.Stage{ID: 1, Kind: pipeline.KindReplaceWith}
	sample := &pipeline.Stage{ID: 2, Kind: pipeline.KindSample}
	otherMatch := &pipeline.Stage{ID: 7, Kind: pipeline.KindMatch}

	assert.Negative(t, Compare(count, match), "destructive first")
	assert.Negative(t, Compare(match, lookup), "match is a regular position")
	assert.Positive(t, Compare(replace, sample), "unlisted kinds rank last")
	assert.Negative(t, Compare(match, otherMatch))
	assert.Zero(t, Compare(match, match))
}

func TestOrder(t *testing.T) {
	tcases := []struct {
		name string
		docs []d
		want []int
	}{{
		name: "sort and limit keep their order",
		docs: []d{sortCreated, limit10},
		want: []int{0, 1},
	}, {
		name: "lookup moves after sort and limit",
		docs: []d{lookupUsers, sortCreated, limit10},
		want: []int{1, 2, 0},
	}, {
		name: "match moves ahead of unrelated lookup",
		docs: []d{lookupUsers, matchActive},
		want: []int{1, 0},
	}, {
		name: "match on joined field stays behind",
		docs: []d{lookupUsers, {{Key: "$match", Value: d{{Key: "user.active", Value: true}}}}},
		want: []int{0, 1},
	}, {
		name: "unblocked stages run before waiting ones",
		docs: []d{
			{{Key: "$addFields", Value: d{{Key: "a", Value: int64(1)}}}},
			{{Key: "$lookup", Value: d{{Key: "from", Value: "x"}, {Key: "localField", Value: "k"}, {Key: "as", Value: "b"}}}},
			{{Key: "$sort", Value: d{{Key: "a", Value: int64(1)}}}},
		},
		// addFields unblocks sort, which goes ahead of the pending lookup
		want: []int{0, 2, 1},
	}, {
		name: "barrier keeps earlier stages in place",
		docs: []d{
			lookupUsers,
			{{Key: "$group", Value: d{{Key: "_id", Value: "$user"}}}},
			{{Key: "$count", Value: "n"}},
			matchActive,
		},
		want: []int{0, 1, 2, 3},
	}, {
		name: "no-op pipeline",
		docs: []d{matchActive, {{Key: "$project", Value: d{{Key: "name", Value: int64(1)}}}}, sortCreated},
		want: []int{0, 1, 2},
	}}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, order(t, tc.docs...))
		})
	}
}

func TestOrderSkipsRemovedStages(t *testing.T) {
	stages, err := classify.Pipeline([]d{lookupUsers, matchActive, {{Key: "$count", Value: "n"}}})
	require.NoError(t, err)
	g := depgraph.Build(stages)
	g.Remove(0)

	out, err := Order(g)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].ID)
	assert.Equal(t, 2, out[1].ID)
}

func TestOrderReportsUnscheduledStages(t *testing.T) {
	stages, err := classify.Pipeline([]d{sortCreated, limit10})
	require.NoError(t, err)
	g := depgraph.Build(stages)
	// a self dependency can never be satisfied
	g.Stage(0).Dependencies = g.Stage(0).Dependencies.With(0)

	_, err = Order(g)
	require.Error(t, err)
	assert.Equal(t, opterrors.UnscheduledStage, opterrors.ErrState(err))
	assert.Equal(t, opterrors.Internal, opterrors.Code(err))
}
