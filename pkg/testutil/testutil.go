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

// Package testutil builds batches and vectors for tests.
package testutil

import (
	"context"
	"strconv"
	"strings"

	"github.com/matrixorigin/simdcsv"

	"github.com/vectisdb/vectis/pkg/common/mpool"
	"github.com/vectisdb/vectis/pkg/common/verr"
	"github.com/vectisdb/vectis/pkg/container/batch"
	"github.com/vectisdb/vectis/pkg/container/nulls"
	"github.com/vectisdb/vectis/pkg/container/types"
	"github.com/vectisdb/vectis/pkg/container/vector"
)

func TestMPool() *mpool.MPool {
	return mpool.MustNewNoFixed("test_mp")
}

// NewInt64Vector builds a flat int64 vector; nullRows marks null rows.
func NewInt64Vector(mp *mpool.MPool, values []int64, nullRows ...uint64) *vector.Vector {
	vec := vector.NewVec(types.New(types.T_int64, 0, 0))
	for _, v := range values {
		if err := vector.AppendFixed(vec, v, false, mp); err != nil {
			panic(err)
		}
	}
	nulls.Add(vec.GetNulls(), nullRows...)
	return vec
}

func NewBoolVector(mp *mpool.MPool, values []bool, nullRows ...uint64) *vector.Vector {
	vec := vector.NewVec(types.New(types.T_bool, 0, 0))
	for _, v := range values {
		if err := vector.AppendFixed(vec, v, false, mp); err != nil {
			panic(err)
		}
	}
	nulls.Add(vec.GetNulls(), nullRows...)
	return vec
}

func NewStringVector(mp *mpool.MPool, values []string, nullRows ...uint64) *vector.Vector {
	vec := vector.NewVec(types.New(types.T_varchar, 0, 0))
	if err := vector.AppendStringList(vec, values, nil, mp); err != nil {
		panic(err)
	}
	nulls.Add(vec.GetNulls(), nullRows...)
	return vec
}

// NewDecimal64Vector builds a flat decimal vector of (precision, scale)
// from unscaled values.
func NewDecimal64Vector(mp *mpool.MPool, precision, scale int32, unscaled []int64, nullRows ...uint64) *vector.Vector {
	vec := vector.NewVec(types.New(types.T_decimal64, precision, scale))
	for _, v := range unscaled {
		if err := vector.AppendFixed(vec, types.Decimal64(v), false, mp); err != nil {
			panic(err)
		}
	}
	nulls.Add(vec.GetNulls(), nullRows...)
	return vec
}

func NewDecimal128Vector(mp *mpool.MPool, precision, scale int32, unscaled []types.Decimal128, nullRows ...uint64) *vector.Vector {
	vec := vector.NewVec(types.New(types.T_decimal128, precision, scale))
	for _, v := range unscaled {
		if err := vector.AppendFixed(vec, v, false, mp); err != nil {
			panic(err)
		}
	}
	nulls.Add(vec.GetNulls(), nullRows...)
	return vec
}

func NewConstInt64(mp *mpool.MPool, val int64, length int) *vector.Vector {
	vec, err := vector.NewConstFixed(types.New(types.T_int64, 0, 0), val, length, mp)
	if err != nil {
		panic(err)
	}
	return vec
}

func NewConstBool(mp *mpool.MPool, val bool, length int) *vector.Vector {
	vec, err := vector.NewConstFixed(types.New(types.T_bool, 0, 0), val, length, mp)
	if err != nil {
		panic(err)
	}
	return vec
}

func NewConstInt32(mp *mpool.MPool, val int32, length int) *vector.Vector {
	vec, err := vector.NewConstFixed(types.New(types.T_int32, 0, 0), val, length, mp)
	if err != nil {
		panic(err)
	}
	return vec
}

// NewBatch wraps columns into a batch.
func NewBatch(vecs ...*vector.Vector) *batch.Batch {
	bat := batch.NewWithSize(len(vecs))
	rows := 0
	for i, vec := range vecs {
		bat.Vecs[i] = vec
		if vec.Length() > rows {
			rows = vec.Length()
		}
	}
	bat.SetRowCount(rows)
	return bat
}

// BatchFromCSV parses csv content into a batch with the given column
// types. Empty fields become nulls. The reader is the simd csv parser
// the load path uses.
func BatchFromCSV(mp *mpool.MPool, content string, typs []types.Type) (*batch.Batch, error) {
	reader := simdcsv.NewReaderWithOptions(strings.NewReader(content), ',', '#', true, true)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	bat := batch.NewWithSize(len(typs))
	for i, typ := range typs {
		bat.Vecs[i] = vector.NewVec(typ)
	}
	for _, record := range records {
		if len(record) != len(typs) {
			return nil, verr.NewInvalidInput(context.Background(),
				"csv row has %d fields, want %d", len(record), len(typs))
		}
		for i, field := range record {
			if err := appendField(bat.Vecs[i], typs[i], field, mp); err != nil {
				return nil, err
			}
		}
	}
	bat.SetRowCount(len(records))
	return bat, nil
}

func appendField(vec *vector.Vector, typ types.Type, field string, mp *mpool.MPool) error {
	if field == "" {
		switch typ.Oid {
		case types.T_char, types.T_varchar:
			return vector.AppendBytes(vec, nil, true, mp)
		case types.T_bool:
			return vector.AppendFixed(vec, false, true, mp)
		case types.T_decimal64:
			return vector.AppendFixed(vec, types.Decimal64(0), true, mp)
		case types.T_decimal128:
			return vector.AppendFixed(vec, types.Decimal128{}, true, mp)
		default:
			return vector.AppendFixed(vec, int64(0), true, mp)
		}
	}
	switch typ.Oid {
	case types.T_bool:
		v, err := strconv.ParseBool(field)
		if err != nil {
			return verr.NewInvalidInput(context.Background(), "bad bool %q", field)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_int32:
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return verr.NewInvalidInput(context.Background(), "bad int32 %q", field)
		}
		return vector.AppendFixed(vec, int32(v), false, mp)
	case types.T_int64:
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return verr.NewInvalidInput(context.Background(), "bad int64 %q", field)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_float64:
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return verr.NewInvalidInput(context.Background(), "bad float64 %q", field)
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_decimal64:
		v, err := types.ParseDecimal64(field, typ.Width, typ.Scale)
		if err != nil {
			return err
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_decimal128:
		v, err := types.ParseDecimal128(field, typ.Width, typ.Scale)
		if err != nil {
			return err
		}
		return vector.AppendFixed(vec, v, false, mp)
	case types.T_char, types.T_varchar:
		return vector.AppendBytes(vec, []byte(field), false, mp)
	}
	return verr.NewNotSupported(context.Background(), "csv load of type "+typ.Oid.String())
}
