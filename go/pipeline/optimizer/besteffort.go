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
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/log"
)

// Result is the outcome of BestEffort. When optimization fails, Pipeline is
// the input pipeline and Err says why.
type Result struct {
	Pipeline []bson.D
	// Order holds the original position of every stage in Pipeline.
	Order     []int
	Optimized bool
	Removed   int
	Err       error
}

// Changed reports whether stages were moved or removed.
func (r Result) Changed() bool {
	return r.Removed > 0 || !slices.IsSorted(r.Order)
}

// BestEffort optimizes docs and falls back to docs unchanged if that fails.
// Fallbacks are logged.
func BestEffort(docs []bson.D) Result {
	plan, err := Build(docs)
	if err != nil {
		log.WarnS("pipeline not optimized, using it as is", "stages", len(docs), "error", err)
		order := make([]int, len(docs))
		for i := range order {
			order[i] = i
		}
		return Result{Pipeline: docs, Order: order, Err: err}
	}
	return plan.Result()
}

// Result summarizes the plan as a successful optimization.
func (p *Plan) Result() Result {
	order := make([]int, 0, len(p.Order))
	for _, s := range p.Order {
		order = append(order, s.ID)
	}
	return Result{Pipeline: p.Pipeline(), Order: order, Optimized: true, Removed: len(p.Removed)}
}

// Options tune OptimizeAll.
type Options struct {
	// Concurrency bounds the number of pipelines optimized at once. Values
	// below one mean one.
	Concurrency int
}

// OptimizeAll runs BestEffort on every pipeline and returns the results in
// input order. It stops early and returns the context error if ctx is done.
func OptimizeAll(ctx context.Context, pipelines [][]bson.D, opts Options) ([]Result, error) {
	results := make([]Result, len(pipelines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, docs := range pipelines {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = BestEffort(docs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
