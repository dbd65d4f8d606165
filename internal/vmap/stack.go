package vmap

import (
	"github.com/pkg/errors"

	"github.com/born-ml/vmap/internal/tensor"
)

// stackShards joins the per-example results of one return slot.
//
// All defined: stacked along a new leading dim. All undefined: nil, the
// undefined result (for example a missing gradient). A mix of both is an error.
func stackShards(opName string, shards []*tensor.RawTensor) (*tensor.RawTensor, error) {
	defined := 0
	for _, s := range shards {
		if s != nil {
			defined++
		}
	}
	switch defined {
	case len(shards):
		out, err := tensor.Stack(shards)
		if err != nil {
			return nil, errors.WithMessagef(err, "vmap: stacking results of %s", opName)
		}
		return out, nil
	case 0:
		return nil, nil
	default:
		return nil, errors.Wrapf(ErrMixedUndefined, "%s returned %d defined and %d undefined per-example results",
			opName, defined, len(shards)-defined)
	}
}
