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

package mpool

import (
	"context"
	"sync/atomic"

	"github.com/vectisdb/vectis/pkg/common/verr"
)

// Mo's extremely simple memory pool. It tracks allocation against a cap
// so that a runaway evaluation fails with OOM instead of taking down the
// process. Buffers are plain go slices; the garbage collector reclaims
// them, the pool only accounts.
type MPool struct {
	tag string
	cap int64

	currNB  int64
	highNB  int64
	allocCnt int64
	freeCnt  int64
}

// NoFixed pools have no cap at all.
const NoCap int64 = 0

func NewMPool(tag string, cap int64) (*MPool, error) {
	if cap < 0 {
		return nil, verr.NewInvalidArg(context.Background(), "mpool cap", cap)
	}
	return &MPool{tag: tag, cap: cap}, nil
}

func MustNewZero() *MPool {
	mp, err := NewMPool("zero_mp", NoCap)
	if err != nil {
		panic(err)
	}
	return mp
}

func MustNewNoFixed(tag string) *MPool {
	mp, err := NewMPool(tag, NoCap)
	if err != nil {
		panic(err)
	}
	return mp
}

func (mp *MPool) Tag() string {
	return mp.tag
}

func (mp *MPool) Cap() int64 {
	return mp.cap
}

// CurrNB returns the number of bytes currently accounted to the pool.
func (mp *MPool) CurrNB() int64 {
	return atomic.LoadInt64(&mp.currNB)
}

func (mp *MPool) HighWaterMark() int64 {
	return atomic.LoadInt64(&mp.highNB)
}

func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 {
		return nil, verr.NewInvalidArg(context.Background(), "mpool alloc size", sz)
	}
	if sz == 0 {
		return nil, nil
	}
	nb := atomic.AddInt64(&mp.currNB, int64(sz))
	if mp.cap != NoCap && nb > mp.cap {
		atomic.AddInt64(&mp.currNB, -int64(sz))
		return nil, verr.NewOOM(context.Background())
	}
	for {
		high := atomic.LoadInt64(&mp.highNB)
		if nb <= high || atomic.CompareAndSwapInt64(&mp.highNB, high, nb) {
			break
		}
	}
	atomic.AddInt64(&mp.allocCnt, 1)
	return make([]byte, sz), nil
}

func (mp *MPool) Free(bs []byte) {
	if bs == nil {
		return
	}
	atomic.AddInt64(&mp.currNB, -int64(cap(bs)))
	atomic.AddInt64(&mp.freeCnt, 1)
}

// Grow reallocates bs to at least sz bytes, carrying the old content.
func (mp *MPool) Grow(bs []byte, sz int) ([]byte, error) {
	if sz <= cap(bs) {
		return bs[:sz], nil
	}
	newBs, err := mp.Alloc(sz)
	if err != nil {
		return nil, err
	}
	copy(newBs, bs)
	mp.Free(bs)
	return newBs, nil
}
