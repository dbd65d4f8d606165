// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU kernels of the built-in operators.
//
// # Operators
//
//   - add, sub, mul (broadcasting, alpha scaling for add/sub)
//   - add_, mul_ (in-place, write through views)
//   - add.out, transpose, sum, sum.dim, matmul, aminmax, cat, size
//   - relu, relu_backward
//
// # Basic Usage
//
//	d := dispatch.New()
//	if err := cpu.Register(d); err != nil {
//	    return err
//	}
//	outs, err := d.Call("add", dispatch.TensorValue(x), dispatch.TensorValue(y))
package cpu

import (
	"github.com/born-ml/vmap/dispatch"
	internalcpu "github.com/born-ml/vmap/internal/backend/cpu"
)

// Register defines the built-in operators on d with their CPU kernels.
func Register(d *dispatch.Dispatcher) error {
	return internalcpu.Register(d)
}
