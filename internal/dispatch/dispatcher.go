// Package dispatch routes boxed operator calls to kernels.
//
// Operators are declared with a schema string and implemented per dispatch key.
// A call pushes its arguments on a Stack; the dispatcher picks the key from the
// arguments (KeyBatched when a vmap level is active and some tensor argument is
// batched, KeyCPU otherwise), runs the operator's kernel for that key, or the
// key's fallback when the operator has none, and leaves the returns on the stack.
//
// Example:
//
//	d := dispatch.New()
//	cpu.Register(d)
//	outs, err := d.Call("add", dispatch.TensorValue(x), dispatch.TensorValue(y))
package dispatch

import (
	"slices"
	"strconv"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/vmap/internal/layers"
	"github.com/born-ml/vmap/internal/tensor"
)

// Key selects which implementation of an operator runs.
type Key uint8

// Dispatch keys, in priority order.
const (
	KeyCPU Key = iota
	KeyBatched
)

// String returns the key name.
func (k Key) String() string {
	switch k {
	case KeyCPU:
		return "CPU"
	case KeyBatched:
		return "Batched"
	default:
		return "Unknown"
	}
}

// Keyed is implemented by tensor wrappers that need a dispatch key other than KeyCPU.
type Keyed interface {
	DispatchKey() Key
}

// Kernel implements an operator for one dispatch key. It consumes the operator's
// arguments from the top of stack and pushes exactly its declared returns.
type Kernel func(op *Operator, stack *Stack) error

// Operator is a registered operator: its schema and per-key kernels.
type Operator struct {
	schema  *Schema
	d       *Dispatcher
	kernels map[Key]Kernel
}

// Schema returns the operator's signature.
func (op *Operator) Schema() *Schema {
	return op.schema
}

// Name returns the operator name, including the overload.
func (op *Operator) Name() string {
	return op.schema.OperatorName()
}

// Dispatcher returns the dispatcher the operator is registered with.
func (op *Operator) Dispatcher() *Dispatcher {
	return op.d
}

// HasKernel reports whether the operator has its own kernel for key.
func (op *Operator) HasKernel(key Key) bool {
	op.d.mu.RLock()
	defer op.d.mu.RUnlock()
	_, ok := op.kernels[key]
	return ok
}

// Dispatcher holds the operator registry and the vmap level stack.
//
// The registry may be shared across goroutines; the level stack, and therefore
// calls, belong to one goroutine at a time.
type Dispatcher struct {
	mu        sync.RWMutex
	ops       map[string]*Operator
	fallbacks map[Key]Kernel
	layers    *layers.Stack
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		ops:       make(map[string]*Operator),
		fallbacks: make(map[Key]Kernel),
		layers:    layers.New(),
	}
}

// Layers returns the stack of active vmap levels.
func (d *Dispatcher) Layers() *layers.Stack {
	return d.layers
}

// Def declares an operator from its schema.
func (d *Dispatcher) Def(schema string) (*Operator, error) {
	s, err := ParseSchema(schema)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	name := s.OperatorName()
	if _, found := d.ops[name]; found {
		return nil, errors.Wrapf(ErrDuplicateOp, "%s", name)
	}
	op := &Operator{schema: s, d: d, kernels: make(map[Key]Kernel)}
	d.ops[name] = op
	return op, nil
}

// Impl registers the kernel of operator name for key, replacing any previous one.
func (d *Dispatcher) Impl(name string, key Key, kernel Kernel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	op, found := d.ops[name]
	if !found {
		return errors.Wrapf(ErrUnknownOperator, "%s", name)
	}
	op.kernels[key] = kernel
	return nil
}

// Define declares an operator and registers its kernel for key in one step.
func (d *Dispatcher) Define(schema string, key Key, kernel Kernel) (*Operator, error) {
	op, err := d.Def(schema)
	if err != nil {
		return nil, err
	}
	if err := d.Impl(op.Name(), key, kernel); err != nil {
		return nil, err
	}
	return op, nil
}

// RegisterFallback installs the kernel used for key by operators without their own.
func (d *Dispatcher) RegisterFallback(key Key, kernel Kernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallbacks[key] = kernel
}

// FindOp looks an operator up by name ("add", "add.out").
func (d *Dispatcher) FindOp(name string) (*Operator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	op, found := d.ops[name]
	if !found {
		return nil, errors.Wrapf(ErrUnknownOperator, "%s", name)
	}
	return op, nil
}

// Ops returns the sorted names of all registered operators.
func (d *Dispatcher) Ops() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.ops))
	for name := range d.ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DispatchKey computes the key a call with args would dispatch to.
func (d *Dispatcher) DispatchKey(args []Value) Key {
	if _, active := d.layers.Current(); !active {
		return KeyCPU
	}
	for _, v := range args {
		switch v.Kind() {
		case KindTensor:
			if keyOf(v.tensor) == KeyBatched {
				return KeyBatched
			}
		case KindTensorList:
			for _, t := range v.tensors {
				if keyOf(t) == KeyBatched {
					return KeyBatched
				}
			}
		}
	}
	return KeyCPU
}

func keyOf(t tensor.Tensor) Key {
	if k, ok := t.(Keyed); ok {
		return k.DispatchKey()
	}
	return KeyCPU
}

func (d *Dispatcher) kernelFor(op *Operator, key Key) Kernel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if k, ok := op.kernels[key]; ok {
		return k
	}
	return d.fallbacks[key]
}

// CallBoxed runs op on the arguments at the top of stack.
//
// On success the arguments are replaced by the operator's returns. On failure the
// stack is cut back to the height it had below the arguments, so callers never
// observe a half-consumed stack. Kernel panics carrying an error are converted to
// returned errors.
func (op *Operator) CallBoxed(stack *Stack) error {
	numArgs := len(op.schema.Arguments)
	if stack.Len() < numArgs {
		return errors.Wrapf(ErrStackUnderflow, "%s expects %d arguments, stack holds %d", op.Name(), numArgs, stack.Len())
	}
	base := stack.Len() - numArgs
	key := op.d.DispatchKey(stack.values[base:])
	kernel := op.d.kernelFor(op, key)
	if kernel == nil {
		stack.truncate(base)
		return errors.Wrapf(ErrNoKernel, "%s has no %s kernel", op.Name(), key)
	}
	if klog.V(3).Enabled() {
		klog.Infof("dispatch %s -> %s", op.Name(), key)
	}

	var err error
	if exception := exceptions.TryCatch[error](func() { err = kernel(op, stack) }); exception != nil {
		err = errors.WithMessagef(exception, "%s", op.Name())
	}
	if err != nil {
		stack.truncate(base)
		return err
	}
	if got := stack.Len() - base; got != len(op.schema.Returns) {
		stack.truncate(base)
		return errors.Wrapf(ErrReturnCount, "%s: %s kernel left %d values, schema declares %d",
			op.Name(), key, got, len(op.schema.Returns))
	}
	return nil
}

// Call runs the named operator on args and returns its results. Trailing
// arguments with schema defaults may be omitted.
func (d *Dispatcher) Call(name string, args ...Value) ([]Value, error) {
	op, err := d.FindOp(name)
	if err != nil {
		return nil, err
	}
	args, err = op.withDefaults(args)
	if err != nil {
		return nil, err
	}
	stack := NewStack(args...)
	if err := op.CallBoxed(stack); err != nil {
		return nil, err
	}
	return stack.PopN(stack.Len())
}

// withDefaults completes args with the schema's default values.
func (op *Operator) withDefaults(args []Value) ([]Value, error) {
	params := op.schema.Arguments
	if len(args) > len(params) {
		return nil, errors.Wrapf(ErrBadArguments, "%s takes %d arguments, %d given", op.Name(), len(params), len(args))
	}
	out := slices.Clone(args)
	for _, param := range params[len(args):] {
		if !param.HasDefault {
			return nil, errors.Wrapf(ErrBadArguments, "%s: missing argument %q", op.Name(), param.Name)
		}
		v, err := defaultValue(param)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s", op.Name())
		}
		out = append(out, v)
	}
	return out, nil
}

func defaultValue(param Argument) (Value, error) {
	text := param.Default
	if text == "None" {
		if param.Type.IsTensor() {
			return Undefined(), nil
		}
		return None(), nil
	}
	switch param.Type {
	case TypeInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, errors.Wrapf(ErrBadSchema, "default %q of %s", text, param.Name)
		}
		return Int(i), nil
	case TypeFloat, TypeScalar:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, errors.Wrapf(ErrBadSchema, "default %q of %s", text, param.Name)
		}
		return Float(f), nil
	case TypeBool:
		switch text {
		case "True", "true":
			return Bool(true), nil
		case "False", "false":
			return Bool(false), nil
		}
	case TypeString:
		s, err := strconv.Unquote(text)
		if err != nil {
			return String(text), nil
		}
		return String(s), nil
	}
	return Value{}, errors.Wrapf(ErrBadSchema, "unsupported default %q for %s %s", text, param.Type, param.Name)
}
