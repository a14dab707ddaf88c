// Copyright 2022 VectisDB
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package colexec

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/vectisdb/vectis/pkg/container/batch"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/vector"
	"github.com/vectisdb/vectis/pkg/vm/process"
)

// Runner evaluates independent batches concurrently on a goroutine
// pool. An EvalCtx is single-threaded; the runner gives every batch its
// own process, context and expression set, which is the only supported
// form of parallelism.
type Runner struct {
	pool *ants.Pool
}

func NewRunner(parallelism int) (*Runner, error) {
	pool, err := ants.NewPool(parallelism)
	if err != nil {
		return nil, err
	}
	return &Runner{pool: pool}, nil
}

func (r *Runner) Close() {
	r.pool.Release()
}

// Run evaluates a fresh expression set against every batch. newProc and
// newExprSet are invoked once per batch so no state is shared across
// goroutines. Results are positionally aligned with batches. If any batch
// fails, Run returns the first error recorded and no results.
func (r *Runner) Run(newProc func() *process.Process, newExprSet func() *ExprSet, batches []*batch.Batch) ([][]*vector.Vector, error) {
	results := make([][]*vector.Vector, len(batches))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range batches {
		i := i
		wg.Add(1)
		submitErr := r.pool.Submit(func() {
			defer wg.Done()
			proc := newProc()
			exprs := newExprSet()
			ctx := NewEvalCtx(proc, exprs, batches[i])
			rows := sel.New(batches[i].RowCount())
			out := make([]*vector.Vector, len(exprs.Exprs()))
			if err := exprs.Eval(ctx, rows, out); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = out
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
