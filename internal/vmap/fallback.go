package vmap

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/vmap/internal/dispatch"
	"github.com/born-ml/vmap/internal/layers"
	"github.com/born-ml/vmap/internal/tensor"
)

// Fallback is the batched kernel for operators that have no batching rule.
//
// It slices the batched arguments along their batch dims, runs the operator once
// per batch index with the current level suspended, and stacks the per-example
// results back into batched tensors. Operators whose arguments are not batched
// at the current level are passed through untouched.
func Fallback(op *dispatch.Operator, stack *dispatch.Stack) error {
	schema := op.Schema()
	if !allReturnsAreTensors(schema) || anyTensorListArgument(schema) {
		return errors.Wrapf(ErrUnsupportedOp, "%s: we could not generate a fallback", op.Name())
	}
	args, err := stack.Last(len(schema.Arguments))
	if err != nil {
		return err
	}

	level, ok := op.Dispatcher().Layers().Current()
	if !ok {
		panic(fmt.Sprintf("vmap: batched fallback for %s called outside of vmap", op.Name()))
	}
	if !slices.ContainsFunc(args, func(v dispatch.Value) bool { return participates(v, level) }) {
		if klog.V(3).Enabled() {
			klog.Infof("vmap: %s does not participate in level %d, passing through", op.Name(), level)
		}
		return callSuspended(op, stack)
	}
	klog.V(2).Infof("vmap: %s taking the per-example fallback at level %d", op.Name(), level)

	if schema.IsInplace() {
		return inplaceLoop(op, stack)
	}
	if schema.IsMutable() || schema.HasAnyAliasInfo() {
		return errors.Wrapf(ErrUnsupportedOp, "%s: the fallback path doesn't work on out= or view ops", op.Name())
	}
	if len(schema.Returns) == 0 {
		return errors.Wrapf(ErrUnsupportedOp, "%s: the fallback path does not support operations with no returns", op.Name())
	}
	if err := warnFallback(op.Name()); err != nil {
		return err
	}
	return generalLoop(op, stack)
}

func allReturnsAreTensors(schema *dispatch.Schema) bool {
	for _, ret := range schema.Returns {
		if ret.Type != dispatch.TypeTensor {
			return false
		}
	}
	return true
}

func anyTensorListArgument(schema *dispatch.Schema) bool {
	return slices.ContainsFunc(schema.Arguments, func(arg dispatch.Argument) bool {
		return arg.Type.IsTensorList()
	})
}

// participates reports whether v is a tensor batched at level.
func participates(v dispatch.Value, level layers.Level) bool {
	if !v.IsDefined() {
		return false
	}
	b, ok := MaybeBatched(v.ToTensor())
	return ok && b.Levels().Has(level)
}

var (
	warnedOps sync.Map
	warnf     = klog.Warningf
)

// warnFallback fails when the fallback is disabled, and otherwise logs the
// performance warning the first time opName takes the fallback.
func warnFallback(opName string) error {
	if !FallbackEnabled() {
		return errors.Wrapf(ErrFallbackDisabled, "%s hit the vmap fallback which is currently disabled", opName)
	}
	if !FallbackWarningEnabled() {
		return nil
	}
	if _, warned := warnedOps.LoadOrStore(opName, true); !warned {
		warnf("There is a performance drop because we have not yet implemented the batching rule for %s.", opName)
	}
	return nil
}

// batchedArguments returns the positions and values of the batched tensor arguments.
func batchedArguments(args []dispatch.Value) (positions []int, inputs []tensor.Tensor) {
	for i, v := range args {
		if !v.IsDefined() {
			continue
		}
		if b, ok := MaybeBatched(v.ToTensor()); ok {
			positions = append(positions, i)
			inputs = append(inputs, b)
		}
	}
	return positions, inputs
}

// physicalViews runs the transform on the batched inputs and returns the views
// with the batch sizes shared by all of them.
func physicalViews(opName string, inputs []tensor.Tensor) ([]PhysicalView, PhysicalToLogicalMap, []int, error) {
	views, toLogical, err := LogicalToPhysical(inputs)
	if err != nil {
		return nil, toLogical, nil, err
	}
	sizes := views[0].BatchSizes()
	if numBatches(sizes) == 0 {
		return nil, toLogical, nil, errors.WithMessagef(ErrZeroBatch, "%s (batch sizes %v)", opName, sizes)
	}
	return views, toLogical, sizes, nil
}

// pushSlices pushes one call's arguments: the originals, with each batched
// argument replaced by its physical view at index.
func pushSlices(stack *dispatch.Stack, args []dispatch.Value, positions []int, views []PhysicalView, index []int) {
	next := 0
	for i, arg := range args {
		if next < len(positions) && positions[next] == i {
			stack.Push(dispatch.TensorValue(views[next].Tensor.Index(index...)))
			next++
			continue
		}
		stack.Push(arg)
	}
}

// callSuspended calls op with the current vmap level suspended.
func callSuspended(op *dispatch.Operator, stack *dispatch.Stack) error {
	restore := op.Dispatcher().Layers().Suspend()
	defer restore()
	return op.CallBoxed(stack)
}

// inplaceLoop runs an in-place operator per example, writing through the
// physical views of self, and returns self.
func inplaceLoop(op *dispatch.Operator, stack *dispatch.Stack) error {
	if err := warnFallback(op.Name()); err != nil {
		return err
	}
	last, err := stack.Last(len(op.Schema().Arguments))
	if err != nil {
		return err
	}
	args := slices.Clone(last)
	self := args[0].ToTensor()

	positions, inputs := batchedArguments(args)
	for _, other := range inputs {
		if err := CheckInplaceCompatible(op.Schema().Name, self, other); err != nil {
			return err
		}
	}
	views, _, sizes, err := physicalViews(op.Name(), inputs)
	if err != nil {
		return err
	}

	n := numBatches(sizes)
	for linear := 0; linear < n; linear++ {
		pushSlices(stack, args, positions, views, ComputeIndex(linear, sizes))
		if err := callSuspended(op, stack); err != nil {
			return err
		}
		if err := stack.Drop(1); err != nil {
			return err
		}
	}
	if err := stack.Drop(len(args)); err != nil {
		return err
	}
	stack.Push(dispatch.TensorValue(self))
	return nil
}

// generalLoop runs an out-of-place operator per example and stacks each return.
func generalLoop(op *dispatch.Operator, stack *dispatch.Stack) error {
	numReturns := len(op.Schema().Returns)
	last, err := stack.Last(len(op.Schema().Arguments))
	if err != nil {
		return err
	}
	args := slices.Clone(last)

	positions, inputs := batchedArguments(args)
	views, toLogical, sizes, err := physicalViews(op.Name(), inputs)
	if err != nil {
		return err
	}

	// Shards of one return are contiguous: [r*n + linear].
	n := numBatches(sizes)
	shards := make([]*tensor.RawTensor, numReturns*n)
	for linear := 0; linear < n; linear++ {
		pushSlices(stack, args, positions, views, ComputeIndex(linear, sizes))
		if err := callSuspended(op, stack); err != nil {
			return err
		}
		returns, err := stack.PopN(numReturns)
		if err != nil {
			return err
		}
		for r, v := range returns {
			shard, err := rawResult(op.Name(), v)
			if err != nil {
				return err
			}
			shards[r*n+linear] = shard
		}
	}
	if err := stack.Drop(len(args)); err != nil {
		return err
	}

	outs := make([]dispatch.Value, numReturns)
	for r := range outs {
		flat, err := stackShards(op.Name(), shards[r*n:(r+1)*n])
		if err != nil {
			return err
		}
		if flat == nil {
			outs[r] = dispatch.Undefined()
			continue
		}
		shape := append(tensor.Shape(slices.Clone(sizes)), flat.Shape()[1:]...)
		physical, err := flat.View(shape)
		if err != nil {
			return err
		}
		logical, err := toLogical.Apply(physical)
		if err != nil {
			return err
		}
		outs[r] = dispatch.TensorValue(logical)
	}
	stack.Push(outs...)
	return nil
}

// rawResult extracts a per-example return; nil means undefined.
func rawResult(opName string, v dispatch.Value) (*tensor.RawTensor, error) {
	if !v.IsDefined() {
		return nil, nil
	}
	raw, ok := v.ToTensor().(*tensor.RawTensor)
	if !ok {
		return nil, errors.Errorf("vmap: %s returned %T for a single example, expected an unbatched tensor", opName, v.ToTensor())
	}
	return raw, nil
}
