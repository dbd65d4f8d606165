// Package vmap implements vectorized map over a dispatcher.
//
// Inside Vmap, inputs are wrapped in BatchedTensors tagged with the vmap level.
// Operators called on them dispatch to KeyBatched: a per-operator batching rule
// when one is registered, otherwise Fallback, which runs the plain operator once
// per example and stacks the results. Vmap calls nest; each one adds a level.
package vmap

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/tensor"
)

// NotBatched as an in-dim passes the input through unbatched.
const NotBatched = math.MinInt

// Func is a function of tensors, the unit Vmap transforms.
type Func func(args ...tensor.Tensor) ([]tensor.Tensor, error)

// Register installs Fallback as the KeyBatched fallback of d.
func Register(d *dispatch.Dispatcher) {
	d.RegisterFallback(dispatch.KeyBatched, Fallback)
}

// Vmap returns fn mapped over dimension inDims[i] of its i-th argument.
//
// Inputs with in-dim NotBatched are passed to fn as they are. Output i of the
// mapped function has the batch dimension at outDims[i]; a nil outDims puts it
// first for every output. Outputs fn computed without using any batched input
// are broadcast along the batch dimension. Undefined (nil) outputs stay nil.
func Vmap(d *dispatch.Dispatcher, fn Func, inDims, outDims []int) Func {
	return func(args ...tensor.Tensor) ([]tensor.Tensor, error) {
		if len(inDims) != len(args) {
			return nil, errors.Errorf("vmap: got %d in_dims for %d arguments", len(inDims), len(args))
		}
		batchSize := -1
		for i, arg := range args {
			if inDims[i] == NotBatched {
				continue
			}
			if arg == nil {
				return nil, errors.Errorf("vmap: argument %d is undefined but has in_dim %d", i, inDims[i])
			}
			shape := arg.Shape()
			dim, err := tensor.NormalizeDim(inDims[i], shape.Rank())
			if err != nil {
				return nil, errors.WithMessagef(err, "vmap: in_dim %d of argument %d", inDims[i], i)
			}
			switch {
			case batchSize < 0:
				batchSize = shape[dim]
			case batchSize != shape[dim]:
				return nil, errors.Errorf("vmap: expected all batched arguments to have batch size %d, argument %d has %d",
					batchSize, i, shape[dim])
			}
		}
		if batchSize < 0 {
			return nil, errors.New("vmap: at least one argument must be batched")
		}

		level, err := d.Layers().Push()
		if err != nil {
			return nil, err
		}
		defer d.Layers().Pop(level)

		wrapped := make([]tensor.Tensor, len(args))
		for i, arg := range args {
			if inDims[i] == NotBatched {
				wrapped[i] = arg
				continue
			}
			if wrapped[i], err = AddBatchDim(arg, level, inDims[i]); err != nil {
				return nil, errors.WithMessagef(err, "argument %d", i)
			}
		}

		results, err := fn(wrapped...)
		if err != nil {
			return nil, err
		}
		if outDims != nil && len(outDims) != len(results) {
			return nil, errors.Errorf("vmap: got %d out_dims for %d outputs", len(outDims), len(results))
		}
		outs := make([]tensor.Tensor, len(results))
		for i, r := range results {
			if r == nil {
				continue
			}
			outDim := 0
			if outDims != nil {
				outDim = outDims[i]
			}
			if outs[i], err = removeBatchDim(r, level, batchSize, outDim); err != nil {
				return nil, errors.WithMessagef(err, "output %d", i)
			}
		}
		return outs, nil
	}
}
