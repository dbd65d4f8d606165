package vmap

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/vmap/internal/layers"
	"github.com/born-ml/vmap/internal/tensor"
)

// PhysicalView is a raw view of a batched tensor with all batch dims at the
// front, one per level of the transform, ordered by level.
type PhysicalView struct {
	Tensor *tensor.RawTensor
	Levels LevelSet
}

// NumBatchDims returns the number of leading batch dims.
func (v PhysicalView) NumBatchDims() int {
	return v.Levels.Len()
}

// BatchSizes returns the sizes of the leading batch dims.
func (v PhysicalView) BatchSizes() []int {
	return slices.Clone(v.Tensor.Shape()[:v.NumBatchDims()])
}

// PhysicalToLogicalMap turns physical results, with batch dims at the front,
// back into batched tensors at the same levels.
type PhysicalToLogicalMap struct {
	levels LevelSet
}

// Apply wraps a physical result. Results of a transform with no levels are returned unchanged.
func (m PhysicalToLogicalMap) Apply(physical *tensor.RawTensor) (tensor.Tensor, error) {
	levels := m.levels.Levels()
	if len(levels) == 0 {
		return physical, nil
	}
	if physical.Rank() < len(levels) {
		return nil, errors.Errorf("vmap: physical result of rank %d cannot hold %d batch dims", physical.Rank(), len(levels))
	}
	bdims := make([]BatchDim, len(levels))
	for i, l := range levels {
		bdims[i] = BatchDim{Level: l, Dim: i}
	}
	return MakeBatched(physical, bdims)
}

// LogicalToPhysical aligns tensors for batched execution.
//
// Every input is viewed with the union of all inputs' levels at the front, in
// level order. A level an input is not batched at becomes a size-1 dim expanded
// to the level's batch size, so all views share the same leading batch shape
// and slicing them at one batch index yields unbatched tensors. No data is copied.
//
// Tensors sharing a level are expected to agree on its size; the size is taken
// from the first tensor carrying the level.
func LogicalToPhysical(ts []tensor.Tensor) ([]PhysicalView, PhysicalToLogicalMap, error) {
	var union LevelSet
	sizes := make(map[layers.Level]int)
	for _, t := range ts {
		b, ok := MaybeBatched(t)
		if !ok {
			continue
		}
		union |= b.Levels()
		for _, bd := range b.bdims {
			if _, seen := sizes[bd.Level]; !seen {
				sizes[bd.Level] = b.value.Shape()[bd.Dim]
			}
		}
	}
	levels := union.Levels()

	views := make([]PhysicalView, len(ts))
	for i, t := range ts {
		value, bdims, err := physicalOf(t)
		if err != nil {
			return nil, PhysicalToLogicalMap{}, err
		}
		views[i] = PhysicalView{Tensor: alignBatchDims(value, bdims, levels, sizes), Levels: union}
	}
	return views, PhysicalToLogicalMap{levels: union}, nil
}

// alignBatchDims views value with one leading dim per level in levels.
func alignBatchDims(value *tensor.RawTensor, bdims []BatchDim, levels []layers.Level, sizes map[layers.Level]int) *tensor.RawTensor {
	order := make([]int, 0, value.Rank())
	for _, bd := range bdims {
		order = append(order, bd.Dim)
	}
	for d := 0; d < value.Rank(); d++ {
		if !slices.Contains(order, d) {
			order = append(order, d)
		}
	}
	v := value.Permute(order...)

	has := NewLevelSet()
	for _, bd := range bdims {
		has |= NewLevelSet(bd.Level)
	}
	target := make(tensor.Shape, 0, len(levels)+value.Rank()-len(bdims))
	for i, l := range levels {
		if !has.Has(l) {
			v = v.Unsqueeze(i)
		}
		target = append(target, sizes[l])
	}
	for d := len(levels); d < v.Rank(); d++ {
		target = append(target, -1)
	}
	return v.Expand(target)
}
