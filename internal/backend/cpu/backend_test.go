package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/tensor"
)

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	d := dispatch.New()
	require.NoError(t, Register(d))
	return d
}

// call runs op on plain tensors and returns its single tensor result.
func call(t *testing.T, d *dispatch.Dispatcher, op string, args ...dispatch.Value) *tensor.RawTensor {
	t.Helper()
	outs, err := d.Call(op, args...)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	raw, ok := outs[0].ToTensor().(*tensor.RawTensor)
	require.True(t, ok, "%s returned %s", op, outs[0])
	return raw
}

func tv(t tensor.Tensor) dispatch.Value { return dispatch.TensorValue(t) }

func TestRegister(t *testing.T) {
	d := newDispatcher(t)
	for _, entry := range operators {
		schema := dispatch.MustParseSchema(entry.schema)
		op, err := d.FindOp(schema.OperatorName())
		require.NoError(t, err)
		require.True(t, op.HasKernel(dispatch.KeyCPU), op.Name())
	}
	require.Error(t, Register(d), "operators already defined")
}
