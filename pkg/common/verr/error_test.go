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

package verr

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserErrorClassification(t *testing.T) {
	ctx := context.Background()

	require.True(t, NewDivByZero(ctx).IsUserError())
	require.True(t, NewOutOfRange(ctx, "decimal(6,2)", "overflow").IsUserError())
	require.True(t, NewInvalidInput(ctx, "bad literal").IsUserError())

	require.False(t, NewInternalError(ctx, "corrupt state").IsUserError())
	require.False(t, NewInvalidState(ctx, "bad caller").IsUserError())
	require.False(t, NewOOM(ctx).IsUserError())
}

func TestIsErrCode(t *testing.T) {
	err := NewDivByZero(context.Background())
	require.True(t, IsErrCode(err, ErrDivByZero))
	require.False(t, IsErrCode(err, ErrOutOfRange))
	require.False(t, IsErrCode(errors.New("plain"), ErrDivByZero))
}

func TestConvertGoError(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, ConvertGoError(ctx, nil))

	ve := NewDivByZero(ctx)
	require.Equal(t, error(ve), ConvertGoError(ctx, ve))

	converted := ConvertGoError(ctx, io.ErrUnexpectedEOF)
	me, ok := converted.(*Error)
	require.True(t, ok)
	require.Equal(t, ErrInternal, me.ErrorCode())
	require.False(t, me.IsUserError())
}

func TestConvertPanicError(t *testing.T) {
	err := ConvertPanicError(context.Background(), "boom")
	require.Equal(t, ErrInternal, err.ErrorCode())
	require.Contains(t, err.Error(), "boom")
}

func TestMessageFormatting(t *testing.T) {
	err := NewOutOfRange(context.Background(), "decimal(6,2)", "value %d too wide", 42)
	require.Contains(t, err.Error(), "decimal(6,2)")
	require.Contains(t, err.Error(), "value 42 too wide")
}
