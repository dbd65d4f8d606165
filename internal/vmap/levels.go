package vmap

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/vmap/internal/layers"
	"github.com/born-ml/vmap/internal/tensor"
)

// LevelSet is a bit vector of vmap levels; bit l is set when a value is batched at level l.
type LevelSet uint64

// NewLevelSet returns the set holding levels.
func NewLevelSet(levels ...layers.Level) LevelSet {
	var s LevelSet
	for _, l := range levels {
		s |= LevelSet(1) << uint(l)
	}
	return s
}

// Has reports whether level is in the set.
func (s LevelSet) Has(level layers.Level) bool {
	return s&(LevelSet(1)<<uint(level)) != 0
}

// Len returns the number of levels in the set.
func (s LevelSet) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Highest returns the highest level in the set, or 0 when empty.
func (s LevelSet) Highest() layers.Level {
	if s == 0 {
		return 0
	}
	return layers.Level(bits.Len64(uint64(s)) - 1)
}

// Levels lists the levels in increasing order.
func (s LevelSet) Levels() []layers.Level {
	out := make([]layers.Level, 0, s.Len())
	for rest := uint64(s); rest != 0; rest &= rest - 1 {
		out = append(out, layers.Level(bits.TrailingZeros64(rest)))
	}
	return out
}

// String formats the set as "{1, 3}".
func (s LevelSet) String() string {
	parts := make([]string, 0, s.Len())
	for _, l := range s.Levels() {
		parts = append(parts, fmt.Sprint(int(l)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// LevelsOf returns the levels t is batched at; empty for unbatched tensors.
func LevelsOf(t tensor.Tensor) LevelSet {
	if b, ok := MaybeBatched(t); ok {
		return b.Levels()
	}
	return 0
}

// CheckInplaceCompatible verifies that an in-place op writing self can take other.
//
// If other is batched at a level where self is not, other logically holds more
// elements than self and there is no in-place result: the call is rejected,
// naming the highest such level.
func CheckInplaceCompatible(opName string, self, other tensor.Tensor) error {
	selfLevels := LevelsOf(self)
	otherLevels := LevelsOf(other)
	if selfLevels == selfLevels|otherLevels {
		return nil
	}
	offending := ((selfLevels | otherLevels) ^ selfLevels).Highest()
	return errors.Wrapf(ErrInplaceIncompatible,
		"vmap: %s(self, *extra_args) is not possible because there exists a Tensor `other` in extra_args "+
			"that has more elements than `self`. This happened due to `other` being vmapped over but `self` "+
			"not being vmapped over at level %d. Please try to use out-of-place operators instead of %s",
		opName, offending, opName)
}
