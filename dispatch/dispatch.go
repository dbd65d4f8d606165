// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dispatch provides the operator registry and boxed calling convention.
//
// Operators are declared with a schema string such as
//
//	add(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor
//
// and implemented per dispatch Key. Calls move Values over a Stack.
package dispatch

import (
	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/tensor"
)

// Core types.
type (
	Dispatcher = dispatch.Dispatcher
	Operator   = dispatch.Operator
	Kernel     = dispatch.Kernel
	Key        = dispatch.Key
	Stack      = dispatch.Stack
	Value      = dispatch.Value
	Schema     = dispatch.Schema
)

// Dispatch keys.
const (
	KeyCPU     Key = dispatch.KeyCPU
	KeyBatched Key = dispatch.KeyBatched
)

// Errors returned by the dispatcher; match them with errors.Is.
var (
	ErrUnknownOperator = dispatch.ErrUnknownOperator
	ErrDuplicateOp     = dispatch.ErrDuplicateOp
	ErrNoKernel        = dispatch.ErrNoKernel
	ErrBadSchema       = dispatch.ErrBadSchema
	ErrStackUnderflow  = dispatch.ErrStackUnderflow
	ErrBadArguments    = dispatch.ErrBadArguments
	ErrReturnCount     = dispatch.ErrReturnCount
)

// New creates an empty dispatcher.
func New() *Dispatcher { return dispatch.New() }

// ParseSchema parses an operator signature.
func ParseSchema(text string) (*Schema, error) { return dispatch.ParseSchema(text) }

// NewStack creates a stack holding values.
func NewStack(values ...Value) *Stack { return dispatch.NewStack(values...) }

// TensorValue boxes a tensor; a nil tensor gives an undefined value.
func TensorValue(t tensor.Tensor) Value { return dispatch.TensorValue(t) }

// Undefined returns a tensor value holding no tensor.
func Undefined() Value { return dispatch.Undefined() }

// TensorList boxes a list of tensors.
func TensorList(ts ...tensor.Tensor) Value { return dispatch.TensorList(ts...) }

// Int boxes an integer.
func Int(i int64) Value { return dispatch.Int(i) }

// Float boxes a float.
func Float(f float64) Value { return dispatch.Float(f) }

// Bool boxes a bool.
func Bool(b bool) Value { return dispatch.Bool(b) }

// None returns the None value.
func None() Value { return dispatch.None() }
