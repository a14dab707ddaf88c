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
	"fmt"
)

const (
	// 0 - 99 is OK. They do not contain info and are handled with static
	// instances, no alloc.
	Ok uint16 = 0

	OkMax uint16 = 99

	// Group 1: internal errors. Never eligible for per-row capture.
	ErrStart            uint16 = 20100
	ErrInternal         uint16 = 20101
	ErrNYI              uint16 = 20102
	ErrOOM              uint16 = 20103
	ErrQueryInterrupted uint16 = 20104
	ErrNotSupported     uint16 = 20105

	// Group 2: numeric and functions. User-level, row-capturable.
	ErrDivByZero     uint16 = 20200
	ErrOutOfRange    uint16 = 20201
	ErrDataTruncated uint16 = 20202
	ErrInvalidArg    uint16 = 20203

	// Group 3: invalid input. User-level, row-capturable.
	ErrInvalidInput uint16 = 20301
	ErrSyntaxError  uint16 = 20302
	ErrParseError   uint16 = 20303

	// Group 4: unexpected state. Never eligible for per-row capture.
	ErrInvalidState uint16 = 20400
	ErrEmptyVector  uint16 = 20404
	ErrSizeNotMatch uint16 = 20409
)

type errorMsgItem struct {
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]errorMsgItem{
	Ok: {"ok"},

	ErrInternal:         {"internal error: %s"},
	ErrNYI:              {"%s is not yet implemented"},
	ErrOOM:              {"out of memory"},
	ErrQueryInterrupted: {"query interrupted"},
	ErrNotSupported:     {"%s is not supported"},

	ErrDivByZero:     {"division by zero"},
	ErrOutOfRange:    {"data out of range: data type %s, %s"},
	ErrDataTruncated: {"data truncated: data type %s, %s"},
	ErrInvalidArg:    {"invalid argument %s, bad value %s"},

	ErrInvalidInput: {"invalid input: %s"},
	ErrSyntaxError:  {"SQL syntax error: %s"},
	ErrParseError:   {"SQL parser error: %s"},

	ErrInvalidState: {"invalid state %s"},
	ErrEmptyVector:  {"vector is empty"},
	ErrSizeNotMatch: {"size does not match: %s"},
}

// Error is the single error type this engine raises. The code decides
// whether an error is a user-level failure that may be recorded per row
// or an internal fault that must abort the batch.
type Error struct {
	code    uint16
	message string
}

func newError(_ context.Context, code uint16, args ...any) *Error {
	item, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Errorf("not exist error code %d", code))
	}
	var err *Error
	if len(args) == 0 {
		err = &Error{code: code, message: item.errorMsgOrFormat}
	} else {
		err = &Error{
			code:    code,
			message: fmt.Sprintf(item.errorMsgOrFormat, args...),
		}
	}
	return err
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Succeeded() bool {
	return e.code <= OkMax
}

// IsUserError reports whether the error is a domain-level failure raised
// on behalf of bad data (groups 2 and 3). Internal faults (group 1 and 4)
// are not user errors and are never captured per row.
func (e *Error) IsUserError() bool {
	return e.code >= ErrDivByZero && e.code < ErrInvalidState
}

// IsErrCode reports whether e is a *Error carrying the given code.
func IsErrCode(e error, code uint16) bool {
	if me, ok := e.(*Error); ok {
		return me.code == code
	}
	return false
}

// IsUserError reports whether e is a *Error eligible for per-row capture.
// Errors of any other dynamic type are not classified here; callers wrap
// them through ConvertGoError first.
func IsUserError(e error) bool {
	var me *Error
	if errors.As(e, &me) {
		return me.IsUserError()
	}
	return false
}

// DowncastError returns e as *Error, wrapping foreign errors as internal.
func DowncastError(e error) *Error {
	if err, ok := e.(*Error); ok {
		return err
	}
	return newError(context.Background(), ErrInternal,
		"downcast error failed: "+e.Error())
}

// ConvertPanicError converts a recovered panic value into an internal error.
func ConvertPanicError(ctx context.Context, v interface{}) *Error {
	if err, ok := v.(*Error); ok {
		return err
	}
	return newError(ctx, ErrInternal, fmt.Sprintf("panic %v", v))
}

// ConvertGoError converts a generic go error into an *Error. A *Error
// passes through unchanged.
func ConvertGoError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return newError(ctx, ErrInternal, err.Error())
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInternal, fmt.Sprintf(msg, args...))
}

func NewNYI(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrNYI, fmt.Sprintf(msg, args...))
}

func NewNotSupported(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrNotSupported, fmt.Sprintf(msg, args...))
}

func NewOOM(ctx context.Context) *Error {
	return newError(ctx, ErrOOM)
}

func NewQueryInterrupted(ctx context.Context) *Error {
	return newError(ctx, ErrQueryInterrupted)
}

func NewDivByZero(ctx context.Context) *Error {
	return newError(ctx, ErrDivByZero)
}

func NewOutOfRange(ctx context.Context, typ string, msg string, args ...any) *Error {
	return newError(ctx, ErrOutOfRange, typ, fmt.Sprintf(msg, args...))
}

func NewDataTruncated(ctx context.Context, typ string, msg string, args ...any) *Error {
	return newError(ctx, ErrDataTruncated, typ, fmt.Sprintf(msg, args...))
}

func NewInvalidArg(ctx context.Context, arg string, val any) *Error {
	return newError(ctx, ErrInvalidArg, arg, fmt.Sprintf("%v", val))
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidInput, fmt.Sprintf(msg, args...))
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidState, fmt.Sprintf(msg, args...))
}

func NewEmptyVector(ctx context.Context) *Error {
	return newError(ctx, ErrEmptyVector)
}

func NewSizeNotMatch(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrSizeNotMatch, fmt.Sprintf(msg, args...))
}
