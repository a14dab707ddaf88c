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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectisdb/vectis/pkg/common/verr"
)

func TestAllocFree(t *testing.T) {
	mp, err := NewMPool("test", NoCap)
	require.NoError(t, err)

	buf, err := mp.Alloc(1024)
	require.NoError(t, err)
	require.Equal(t, 1024, len(buf))
	require.Equal(t, int64(1024), mp.CurrNB())

	mp.Free(buf)
	require.Equal(t, int64(0), mp.CurrNB())
	require.Equal(t, int64(1024), mp.HighWaterMark())
}

func TestAllocCap(t *testing.T) {
	mp, err := NewMPool("capped", 100)
	require.NoError(t, err)

	buf, err := mp.Alloc(60)
	require.NoError(t, err)

	_, err = mp.Alloc(60)
	require.Error(t, err)
	require.True(t, verr.IsErrCode(err, verr.ErrOOM))
	require.Equal(t, int64(60), mp.CurrNB())

	mp.Free(buf)
	_, err = mp.Alloc(100)
	require.NoError(t, err)
}

func TestGrow(t *testing.T) {
	mp := MustNewZero()
	buf, err := mp.Alloc(8)
	require.NoError(t, err)
	copy(buf, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	grown, err := mp.Grow(buf, 64)
	require.NoError(t, err)
	require.Equal(t, 64, len(grown))
	require.Equal(t, byte(3), grown[2])
}

func TestConcurrentAccounting(t *testing.T) {
	mp := MustNewNoFixed("concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				buf, err := mp.Alloc(64)
				if err != nil {
					panic(err)
				}
				mp.Free(buf)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(0), mp.CurrNB())
}
