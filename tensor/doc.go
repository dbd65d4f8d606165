// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the array values vmap computes on.
//
// # Overview
//
// A RawTensor is a strided view over a flat, typed storage buffer:
//   - Select, Narrow, Permute, Expand and friends return views sharing storage
//   - Clone and Contiguous copy
//   - Shapes may contain zero-sized dimensions
//
// Views are what make the vmap fallback work: a per-example slice of a batched
// input is a view, so in-place operators called on it write through to the
// original tensor.
//
// # Basic Usage
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	if err != nil {
//	    return err
//	}
//	row := x.Select(0, 1)               // [4 5 6], shares storage with x
//	col := x.Transpose(0, 1).Select(0, 2) // [3 6]
//
// # Supported Data Types
//
//   - float32, float64, int32, int64 (arithmetic)
//   - uint8, bool (storage only)
package tensor
