package vmap

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/layers"
	"github.com/born-ml/vmap/internal/tensor"
)

// BatchDim records that physical dimension Dim of a batched tensor's value is
// the batch dimension introduced by vmap level Level.
type BatchDim struct {
	Level layers.Level
	Dim   int
}

// BatchedTensor is a tensor seen through one or more vmap levels.
//
// Its value is the physical tensor holding every example; its logical shape,
// the one user code sees inside vmap, is the value's shape without the batch dims.
type BatchedTensor struct {
	value *tensor.RawTensor
	bdims []BatchDim // sorted by level, one per level
}

// MakeBatched wraps value with the given batch dims.
func MakeBatched(value *tensor.RawTensor, bdims []BatchDim) (*BatchedTensor, error) {
	if value == nil {
		return nil, errors.New("vmap: cannot batch an undefined tensor")
	}
	if len(bdims) == 0 {
		return nil, errors.New("vmap: a batched tensor needs at least one batch dim")
	}
	bdims = slices.Clone(bdims)
	slices.SortFunc(bdims, func(a, b BatchDim) int { return int(a.Level) - int(b.Level) })
	usedDims := make(map[int]bool, len(bdims))
	for i, bd := range bdims {
		if bd.Level < 1 || int(bd.Level) >= layers.MaxLevels {
			return nil, errors.Errorf("vmap: batch level %d out of range [1, %d)", bd.Level, layers.MaxLevels)
		}
		if i > 0 && bdims[i-1].Level == bd.Level {
			return nil, errors.Errorf("vmap: level %d appears twice in batch dims", bd.Level)
		}
		if bd.Dim < 0 || bd.Dim >= value.Rank() {
			return nil, errors.Errorf("vmap: batch dim %d out of range for tensor of rank %d", bd.Dim, value.Rank())
		}
		if usedDims[bd.Dim] {
			return nil, errors.Errorf("vmap: dimension %d is the batch dim of two levels", bd.Dim)
		}
		usedDims[bd.Dim] = true
	}
	return &BatchedTensor{value: value, bdims: bdims}, nil
}

// MaybeBatched returns t as a *BatchedTensor if it is one.
func MaybeBatched(t tensor.Tensor) (*BatchedTensor, bool) {
	b, ok := t.(*BatchedTensor)
	return b, ok && b != nil
}

// Value returns the physical tensor.
func (b *BatchedTensor) Value() *tensor.RawTensor {
	return b.value
}

// BatchDims returns a copy of the batch dims, sorted by level.
func (b *BatchedTensor) BatchDims() []BatchDim {
	return slices.Clone(b.bdims)
}

// Shape returns the logical shape.
func (b *BatchedTensor) Shape() tensor.Shape {
	shape := make(tensor.Shape, 0, b.value.Rank()-len(b.bdims))
	for d, size := range b.value.Shape() {
		if !b.isBatchDim(d) {
			shape = append(shape, size)
		}
	}
	return shape
}

// DType returns the element type.
func (b *BatchedTensor) DType() tensor.DataType {
	return b.value.DType()
}

// DispatchKey routes operators on batched tensors to the batching kernels.
func (b *BatchedTensor) DispatchKey() dispatch.Key {
	return dispatch.KeyBatched
}

// Levels returns the set of levels b is batched at.
func (b *BatchedTensor) Levels() LevelSet {
	var s LevelSet
	for _, bd := range b.bdims {
		s |= NewLevelSet(bd.Level)
	}
	return s
}

// Level returns the highest level b is batched at.
func (b *BatchedTensor) Level() layers.Level {
	return b.bdims[len(b.bdims)-1].Level
}

// BatchDim returns the physical dim of level, if b is batched at it.
func (b *BatchedTensor) BatchDim(level layers.Level) (int, bool) {
	for _, bd := range b.bdims {
		if bd.Level == level {
			return bd.Dim, true
		}
	}
	return 0, false
}

// BatchSize returns the size of level's batch dim, or 0 if b is not batched at it.
func (b *BatchedTensor) BatchSize(level layers.Level) int {
	if d, ok := b.BatchDim(level); ok {
		return b.value.Shape()[d]
	}
	return 0
}

// String implements fmt.Stringer.
func (b *BatchedTensor) String() string {
	return fmt.Sprintf("BatchedTensor(bdims=%v, value=%v)", b.bdims, b.value)
}

func (b *BatchedTensor) isBatchDim(d int) bool {
	for _, bd := range b.bdims {
		if bd.Dim == d {
			return true
		}
	}
	return false
}

// physicalPosition maps logical dim k of a tensor with the given physical rank and
// batch dims to its physical dim. k == logical rank maps to the physical rank, the
// position for appending a new trailing dim.
func physicalPosition(bdims []BatchDim, rank, k int) int {
	isBatch := make([]bool, rank)
	for _, bd := range bdims {
		isBatch[bd.Dim] = true
	}
	logical := 0
	for d := 0; d < rank; d++ {
		if isBatch[d] {
			continue
		}
		if logical == k {
			return d
		}
		logical++
	}
	return rank
}

// AddBatchDim marks logical dim dim of t as the batch dim of level.
// t may be a raw tensor or a tensor already batched at lower levels.
func AddBatchDim(t tensor.Tensor, level layers.Level, dim int) (*BatchedTensor, error) {
	logicalRank := len(t.Shape())
	d, err := tensor.NormalizeDim(dim, logicalRank)
	if err != nil {
		return nil, errors.WithMessagef(err, "vmap: in_dim %d", dim)
	}
	switch v := t.(type) {
	case *tensor.RawTensor:
		return MakeBatched(v, []BatchDim{{Level: level, Dim: d}})
	case *BatchedTensor:
		if level <= v.Level() {
			return nil, errors.Errorf("vmap: cannot add level %d to a tensor batched at level %d", level, v.Level())
		}
		bdims := append(v.BatchDims(), BatchDim{Level: level, Dim: physicalPosition(v.bdims, v.value.Rank(), d)})
		return MakeBatched(v.value, bdims)
	default:
		return nil, errors.Errorf("vmap: unsupported tensor type %T", t)
	}
}

// physicalOf splits t into its physical value and batch dims (nil for raw tensors).
func physicalOf(t tensor.Tensor) (*tensor.RawTensor, []BatchDim, error) {
	switch v := t.(type) {
	case *tensor.RawTensor:
		return v, nil, nil
	case *BatchedTensor:
		return v.value, v.BatchDims(), nil
	default:
		return nil, nil, errors.Errorf("vmap: unsupported tensor type %T", t)
	}
}

// fromPhysical rebuilds a logical tensor from a physical value and batch dims.
func fromPhysical(value *tensor.RawTensor, bdims []BatchDim) (tensor.Tensor, error) {
	if len(bdims) == 0 {
		return value, nil
	}
	return MakeBatched(value, bdims)
}

// removeBatchDim takes level out of t, placing its batch dim at logical position
// outDim of the result. If t is not batched at level, the result is t broadcast
// along a new dim of size batchSize at outDim.
func removeBatchDim(t tensor.Tensor, level layers.Level, batchSize, outDim int) (tensor.Tensor, error) {
	value, bdims, err := physicalOf(t)
	if err != nil {
		return nil, err
	}
	logicalRank := value.Rank() - len(bdims)
	k, err := tensor.NormalizeDim(outDim, logicalRank+1)
	if err != nil {
		return nil, errors.WithMessagef(err, "vmap: out_dim %d", outDim)
	}

	idx := slices.IndexFunc(bdims, func(bd BatchDim) bool { return bd.Level == level })
	if idx < 0 {
		p := physicalPosition(bdims, value.Rank(), k)
		expanded := value.Unsqueeze(p)
		target := make(tensor.Shape, expanded.Rank())
		for i := range target {
			target[i] = -1
		}
		target[p] = batchSize
		return fromPhysical(expanded.Expand(target), shiftFrom(bdims, p, +1))
	}

	src := bdims[idx].Dim
	rest := slices.Delete(bdims, idx, idx+1)
	last := value.Rank() - 1
	moved := value.MoveDim(src, last)
	for i := range rest {
		if rest[i].Dim > src {
			rest[i].Dim--
		}
	}
	p := physicalPosition(rest, last, k)
	moved = moved.MoveDim(last, p)
	return fromPhysical(moved, shiftFrom(rest, p, +1))
}

// shiftFrom returns bdims with every dim >= from moved by delta.
func shiftFrom(bdims []BatchDim, from, delta int) []BatchDim {
	out := slices.Clone(bdims)
	for i := range out {
		if out[i].Dim >= from {
			out[i].Dim += delta
		}
	}
	return out
}
