// Package cpu implements the plain CPU kernels of the built-in operators.
//
// Kernels work on unbatched *tensor.RawTensor values of any stride layout and
// report misuse by panicking with exceptions.Panicf; the dispatcher turns those
// panics into errors.
package cpu

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/parallel"
	"github.com/born-ml/vmap/internal/tensor"
)

// Schemas of the operators Register defines, with their KeyCPU kernels.
var operators = []struct {
	schema string
	kernel dispatch.Kernel
}{
	{"add(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor", binaryKernel(opAdd, false)},
	{"sub(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor", binaryKernel(opSub, false)},
	{"mul(Tensor self, Tensor other) -> Tensor", binaryKernel(opMul, false)},
	{"add_(Tensor(a!) self, Tensor other, *, Scalar alpha=1) -> Tensor(a!)", binaryKernel(opAdd, true)},
	{"mul_(Tensor(a!) self, Tensor other) -> Tensor(a!)", binaryKernel(opMul, true)},
	{"add.out(Tensor self, Tensor other, *, Scalar alpha=1, Tensor(a!) out) -> Tensor(a!)", addOutKernel},
	{"transpose(Tensor(a) self, int dim0, int dim1) -> Tensor(a)", transposeKernel},
	{"sum(Tensor self) -> Tensor", sumKernel},
	{"sum.dim(Tensor self, int dim, bool keepdim=False) -> Tensor", sumDimKernel},
	{"matmul(Tensor self, Tensor other) -> Tensor", matmulKernel},
	{"aminmax(Tensor self) -> (Tensor min, Tensor max)", aminmaxKernel},
	{"cat(Tensor[] tensors, int dim=0) -> Tensor", catKernel},
	{"size(Tensor self, int dim) -> int", sizeKernel},
	{"relu(Tensor self) -> Tensor", reluKernel},
	{"relu_backward(Tensor? grad_output, Tensor self) -> Tensor", reluBackwardKernel},
}

// workers splits element loops of the kernels across goroutines.
var workers = parallel.DefaultConfig()

// rowWorkers is workers for loops whose every index costs about rowCost elements.
func rowWorkers(rowCost int) parallel.Config {
	cfg := workers
	cfg.MinChunk = max(1, cfg.MinChunk/max(1, rowCost))
	return cfg
}

// Register defines the built-in operators on d with their CPU kernels.
func Register(d *dispatch.Dispatcher) error {
	for _, entry := range operators {
		if _, err := d.Define(entry.schema, dispatch.KeyCPU, entry.kernel); err != nil {
			return errors.WithMessage(err, "cpu: registering operators")
		}
	}
	return nil
}

// popArgs removes the operator's arguments from the stack.
func popArgs(op *dispatch.Operator, stack *dispatch.Stack) []dispatch.Value {
	args, err := stack.PopN(len(op.Schema().Arguments))
	if err != nil {
		panic(err)
	}
	return args
}

// rawArg returns argument i as a plain tensor; nil if it is undefined.
func rawArg(op *dispatch.Operator, args []dispatch.Value, i int) *tensor.RawTensor {
	t := args[i].ToTensor()
	if t == nil {
		return nil
	}
	raw, ok := t.(*tensor.RawTensor)
	if !ok {
		exceptions.Panicf("%s: argument %q must be a plain tensor, got %T",
			op.Name(), op.Schema().Arguments[i].Name, t)
	}
	return raw
}

// requireArg is rawArg for arguments that must be defined.
func requireArg(op *dispatch.Operator, args []dispatch.Value, i int) *tensor.RawTensor {
	raw := rawArg(op, args, i)
	if raw == nil {
		exceptions.Panicf("%s: argument %q is undefined", op.Name(), op.Schema().Arguments[i].Name)
	}
	return raw
}

func newResult(op *dispatch.Operator, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		exceptions.Panicf("%s: failed to create result tensor: %v", op.Name(), err)
	}
	return out
}

func requireNumeric(op *dispatch.Operator, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if !t.DType().IsNumeric() {
			exceptions.Panicf("%s: unsupported dtype %s", op.Name(), t.DType())
		}
		if t.DType() != ts[0].DType() {
			exceptions.Panicf("%s: dtype mismatch %s vs %s", op.Name(), ts[0].DType(), t.DType())
		}
	}
}
