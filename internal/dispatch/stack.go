package dispatch

import "github.com/pkg/errors"

// Stack is the boxed calling convention: callers push an operator's arguments,
// the kernel consumes them and pushes its returns.
type Stack struct {
	values []Value
}

// NewStack creates a stack holding values, bottom first.
func NewStack(values ...Value) *Stack {
	return &Stack{values: append([]Value(nil), values...)}
}

// Len returns the number of values on the stack.
func (s *Stack) Len() int {
	return len(s.values)
}

// Push appends values on top of the stack.
func (s *Stack) Push(values ...Value) {
	s.values = append(s.values, values...)
}

// Pop removes and returns the top value.
func (s *Stack) Pop() (Value, error) {
	if len(s.values) == 0 {
		return Value{}, errors.Wrap(ErrStackUnderflow, "pop")
	}
	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, nil
}

// At returns the value at absolute position i (0 is the bottom).
func (s *Stack) At(i int) Value {
	return s.values[i]
}

// Last returns the top n values, bottom first, without removing them.
// The returned slice aliases the stack until the next Push or Drop.
func (s *Stack) Last(n int) ([]Value, error) {
	if n < 0 || n > len(s.values) {
		return nil, errors.Wrapf(ErrStackUnderflow, "last(%d) on stack of size %d", n, len(s.values))
	}
	return s.values[len(s.values)-n:], nil
}

// Drop removes the top n values.
func (s *Stack) Drop(n int) error {
	if n < 0 || n > len(s.values) {
		return errors.Wrapf(ErrStackUnderflow, "drop(%d) on stack of size %d", n, len(s.values))
	}
	clear(s.values[len(s.values)-n:])
	s.values = s.values[:len(s.values)-n]
	return nil
}

// PopN removes the top n values and returns them, bottom first.
func (s *Stack) PopN(n int) ([]Value, error) {
	last, err := s.Last(n)
	if err != nil {
		return nil, err
	}
	out := append([]Value(nil), last...)
	_ = s.Drop(n)
	return out, nil
}

// truncate restores the stack to height n, discarding anything above it.
func (s *Stack) truncate(n int) {
	if n < len(s.values) {
		clear(s.values[n:])
		s.values = s.values[:n]
	}
}
