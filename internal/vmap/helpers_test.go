package vmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/vmap/internal/backend/cpu"
	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/tensor"
)

// newDispatcher returns a dispatcher with the CPU operators and the batched fallback.
func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	d := dispatch.New()
	require.NoError(t, cpu.Register(d))
	Register(d)
	return d
}

// forwardingOp defines name with schema on d. Its CPU kernel counts the calls
// and forwards the arguments to the built-in operator target.
func forwardingOp(t *testing.T, d *dispatch.Dispatcher, name, schema, target string) *int {
	t.Helper()
	calls := new(int)
	_, err := d.Define(schema, dispatch.KeyCPU, func(op *dispatch.Operator, stack *dispatch.Stack) error {
		*calls++
		args, err := stack.PopN(len(op.Schema().Arguments))
		if err != nil {
			return err
		}
		outs, err := op.Dispatcher().Call(target, args...)
		if err != nil {
			return err
		}
		stack.Push(outs...)
		return nil
	})
	require.NoError(t, err, name)
	return calls
}

// call runs op on tensors and returns its tensor results.
func call(d *dispatch.Dispatcher, op string, ts ...tensor.Tensor) ([]tensor.Tensor, error) {
	args := make([]dispatch.Value, len(ts))
	for i, t := range ts {
		args[i] = dispatch.TensorValue(t)
	}
	outs, err := d.Call(op, args...)
	if err != nil {
		return nil, err
	}
	results := make([]tensor.Tensor, len(outs))
	for i, v := range outs {
		results[i] = v.ToTensor()
	}
	return results, nil
}

// opFunc is the Func calling op on its arguments.
func opFunc(d *dispatch.Dispatcher, op string) Func {
	return func(args ...tensor.Tensor) ([]tensor.Tensor, error) {
		return call(d, op, args...)
	}
}

func raw(t *testing.T, x tensor.Tensor) *tensor.RawTensor {
	t.Helper()
	r, ok := x.(*tensor.RawTensor)
	require.True(t, ok, "expected a plain tensor, got %T", x)
	return r
}
