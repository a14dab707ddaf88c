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

package process

import (
	"context"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/vectisdb/vectis/pkg/common/mpool"
	"github.com/vectisdb/vectis/pkg/config"
	"github.com/vectisdb/vectis/pkg/container/sel"
	"github.com/vectisdb/vectis/pkg/container/vector"
	"github.com/vectisdb/vectis/pkg/logutil"
)

const DefaultBatchSize = 8192

// Process carries the per-query execution state: the memory pool and
// the recycling pools every evaluation draws scratch objects from. A
// Process serves one evaluator at a time; run independent batches on
// independent processes.
type Process struct {
	id  string
	ctx context.Context

	mp     *mpool.MPool
	logger *zap.Logger

	cacheCfg config.CacheConfig

	vecPool struct {
		tree  *btree.BTree
		seq   int
		count int
		limit int
	}
	selPool     []*sel.Selection
	decodedPool []*vector.DecodedVector
}

// pooledVector orders free vectors by byte capacity so GetVector can
// take the smallest one that fits.
type pooledVector struct {
	capBytes int
	seq      int
	vec      *vector.Vector
}

func (p *pooledVector) Less(than btree.Item) bool {
	o := than.(*pooledVector)
	if p.capBytes != o.capBytes {
		return p.capBytes < o.capBytes
	}
	return p.seq < o.seq
}

func New(ctx context.Context, mp *mpool.MPool, cfg config.Config) *Process {
	proc := &Process{
		ctx:      ctx,
		mp:       mp,
		logger:   logutil.GetGlobalLogger(),
		cacheCfg: cfg.Cache,
	}
	proc.vecPool.tree = btree.New(2)
	proc.vecPool.limit = cfg.VectorPoolSize
	return proc
}

// NewForTest builds a process from config.Default(), so the vector pool
// is capped at its default size.
func NewForTest() *Process {
	return New(context.Background(), mpool.MustNewNoFixed("test_proc_mp"), config.Default())
}

func (proc *Process) QueryId() string {
	return proc.id
}

func (proc *Process) SetQueryId(id string) {
	proc.id = id
}

func (proc *Process) Ctx() context.Context {
	if proc == nil || proc.ctx == nil {
		return context.Background()
	}
	return proc.ctx
}

// Fallback pool for eval paths invoked without a process, test only.
var xxxProcMp = mpool.MustNewNoFixed("fallback_proc_mp")

func (proc *Process) GetMPool() *mpool.MPool {
	if proc == nil {
		return xxxProcMp
	}
	return proc.mp
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.GetMPool()
}

// CacheEnabled reports whether shared-subexpression result caching is on.
func (proc *Process) CacheEnabled() bool {
	return proc.cacheCfg.Enabled
}

// MaxSharedSubexprResultsCached caps memoized results per subexpression.
func (proc *Process) MaxSharedSubexprResultsCached() int {
	return proc.cacheCfg.MaxSharedSubexprResultsCached
}

func (proc *Process) SetVectorPoolSize(limit int) {
	proc.vecPool.limit = limit
}
