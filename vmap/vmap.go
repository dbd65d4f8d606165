// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vmap provides vectorized map over the operators of a dispatcher.
//
// # Overview
//
// Vmap turns a function of single examples into a function of batches. Inside
// the mapped function, inputs are batched tensors; operators called on them run
// their batching rule when one is registered and otherwise the fallback, which
// calls the plain operator once per example and stacks the results.
//
// # Basic Usage
//
//	d, err := vmap.New()
//	if err != nil {
//	    return err
//	}
//	add := func(args ...tensor.Tensor) ([]tensor.Tensor, error) {
//	    outs, err := d.Call("add", dispatch.TensorValue(args[0]), dispatch.TensorValue(args[1]))
//	    if err != nil {
//	        return nil, err
//	    }
//	    return []tensor.Tensor{outs[0].ToTensor()}, nil
//	}
//	// x: (B, 3), bias: (3)
//	outs, err := vmap.Vmap(d, add, []int{0, vmap.NotBatched}, nil)(x, bias)
//
// # Configuration
//
// The fallback can be disabled, and its performance warning silenced, with
// SetFallbackEnabled and SetFallbackWarningEnabled or through the environment:
//
//	BORN_VMAP_FALLBACK=false       operators without a batching rule fail
//	BORN_VMAP_FALLBACK_WARN=false  no warning the first time an operator falls back
package vmap

import (
	"github.com/born-ml/vmap/backend/cpu"
	"github.com/born-ml/vmap/dispatch"
	"github.com/born-ml/vmap/internal/vmap"
	"github.com/born-ml/vmap/tensor"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvFallback     = vmap.EnvFallback
	EnvFallbackWarn = vmap.EnvFallbackWarn
)

// NotBatched as an in-dim passes an input through unbatched.
const NotBatched = vmap.NotBatched

// Func is a function of tensors, the unit Vmap transforms.
type Func = vmap.Func

// BatchedTensor is the value operators see inside Vmap.
type BatchedTensor = vmap.BatchedTensor

// Config groups the process-wide fallback flags.
type Config = vmap.Config

// Errors reported by the fallback; match them with errors.Is.
var (
	ErrUnsupportedOp       = vmap.ErrUnsupportedOp
	ErrInplaceIncompatible = vmap.ErrInplaceIncompatible
	ErrFallbackDisabled    = vmap.ErrFallbackDisabled
	ErrMixedUndefined      = vmap.ErrMixedUndefined
	ErrZeroBatch           = vmap.ErrZeroBatch
)

// New returns a dispatcher with the CPU operators and the vmap fallback registered.
func New() (*dispatch.Dispatcher, error) {
	d := dispatch.New()
	if err := cpu.Register(d); err != nil {
		return nil, err
	}
	Register(d)
	return d, nil
}

// Register installs the per-example fallback for batched calls on d.
func Register(d *dispatch.Dispatcher) {
	vmap.Register(d)
}

// Vmap returns fn mapped over dimension inDims[i] of its i-th argument, with the
// batch dimension of output i at outDims[i] (nil puts it first).
func Vmap(d *dispatch.Dispatcher, fn Func, inDims, outDims []int) Func {
	return vmap.Vmap(d, fn, inDims, outDims)
}

// Fallback is the kernel Register installs; exposed for dispatchers assembled by hand.
func Fallback(op *dispatch.Operator, stack *dispatch.Stack) error {
	return vmap.Fallback(op, stack)
}

// MaybeBatched reports whether t is a batched tensor.
func MaybeBatched(t tensor.Tensor) (*BatchedTensor, bool) {
	return vmap.MaybeBatched(t)
}

// SetFallbackEnabled turns the fallback on or off for the process.
func SetFallbackEnabled(enabled bool) { vmap.SetFallbackEnabled(enabled) }

// FallbackEnabled reports whether the fallback may run.
func FallbackEnabled() bool { return vmap.FallbackEnabled() }

// SetFallbackWarningEnabled controls the one-time performance warning per operator.
func SetFallbackWarningEnabled(enabled bool) { vmap.SetFallbackWarningEnabled(enabled) }

// FallbackWarningEnabled reports whether the performance warning is logged.
func FallbackWarningEnabled() bool { return vmap.FallbackWarningEnabled() }

// DefaultConfig returns the configuration in effect at startup.
func DefaultConfig() Config { return vmap.DefaultConfig() }

// CurrentConfig returns the flags in effect.
func CurrentConfig() Config { return vmap.CurrentConfig() }

// ConfigFromEnv reads BORN_VMAP_FALLBACK and BORN_VMAP_FALLBACK_WARN over DefaultConfig.
func ConfigFromEnv() (Config, error) { return vmap.ConfigFromEnv() }
