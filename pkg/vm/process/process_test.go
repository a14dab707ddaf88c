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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

func TestVectorPoolReuse(t *testing.T) {
	proc := NewForTest()

	vec, err := proc.GetVector(types.New(types.T_int64, 0, 0), 100)
	require.NoError(t, err)
	require.Equal(t, 100, vec.Length())

	require.True(t, proc.ReleaseVector(vec))

	// A smaller request takes the recycled buffer.
	got, err := proc.GetVector(types.New(types.T_int64, 0, 0), 50)
	require.NoError(t, err)
	require.Same(t, vec, got)
	require.Equal(t, 50, got.Length())
	require.False(t, got.HasNulls())
}

func TestVectorPoolBestFit(t *testing.T) {
	proc := NewForTest()

	small, err := proc.GetVector(types.New(types.T_int64, 0, 0), 8)
	require.NoError(t, err)
	large, err := proc.GetVector(types.New(types.T_int64, 0, 0), 1024)
	require.NoError(t, err)
	proc.ReleaseVector(large)
	proc.ReleaseVector(small)

	// Asking for 8 rows must take the small buffer, not the large one.
	got, err := proc.GetVector(types.New(types.T_int64, 0, 0), 8)
	require.NoError(t, err)
	require.Same(t, small, got)
}

func TestVectorPoolTypeChange(t *testing.T) {
	proc := NewForTest()
	vec, err := proc.GetVector(types.New(types.T_int64, 0, 0), 64)
	require.NoError(t, err)
	proc.ReleaseVector(vec)

	got, err := proc.GetVector(types.New(types.T_bool, 0, 0), 10)
	require.NoError(t, err)
	require.True(t, got.GetType().Oid == types.T_bool)
	col := vector.MustFixedCol[bool](got)
	require.GreaterOrEqual(t, len(col), 10)
}

func TestVectorPoolLimit(t *testing.T) {
	proc := NewForTest()
	proc.SetVectorPoolSize(1)

	a, err := proc.GetVector(types.New(types.T_int64, 0, 0), 8)
	require.NoError(t, err)
	b, err := proc.GetVector(types.New(types.T_int64, 0, 0), 8)
	require.NoError(t, err)

	require.True(t, proc.ReleaseVector(a))
	require.False(t, proc.ReleaseVector(b))
}

func TestSelectionPool(t *testing.T) {
	proc := NewForTest()
	s := proc.GetSelectionVector(10)
	require.Equal(t, 10, s.CountSelected())
	proc.ReleaseSelectionVector(s)

	got := proc.GetSelectionVector(5)
	require.Same(t, s, got)
	require.Equal(t, 5, got.Len())
	require.Equal(t, 5, got.CountSelected())
}

func TestDecodedPool(t *testing.T) {
	proc := NewForTest()
	d := proc.GetDecodedVector()
	proc.ReleaseDecodedVector(d)
	require.Same(t, d, proc.GetDecodedVector())
}

func TestCacheConfig(t *testing.T) {
	proc := NewForTest()
	require.True(t, proc.CacheEnabled())
	require.Equal(t, 10, proc.MaxSharedSubexprResultsCached())
}
