// Package layers tracks the active vmap nesting levels.
//
// Each vmap pushes a level on entry and pops it on exit. The top of the stack
// is the current level: batched values of that level are intercepted by the
// dispatcher. Suspend temporarily removes the top level so that a nested call
// runs as ordinary execution for that level while enclosing levels stay active.
package layers

import "github.com/pkg/errors"

// Level identifies one vmap nesting. Levels start at 1; 0 means "no level".
type Level int

// MaxLevels bounds the nesting depth; level sets are 64-bit vectors.
const MaxLevels = 64

// ErrTooDeep is returned by Push when the nesting depth would exceed MaxLevels-1.
var ErrTooDeep = errors.New("vmap: maximum nesting depth exceeded")

// Stack is the stack of active levels. Not safe for concurrent use.
type Stack struct {
	levels []Level
}

// New creates an empty level stack.
func New() *Stack {
	return &Stack{}
}

// Push enters a new level, numbered by the resulting depth.
func (s *Stack) Push() (Level, error) {
	level := Level(len(s.levels) + 1)
	if int(level) >= MaxLevels {
		return 0, errors.Wrapf(ErrTooDeep, "cannot push level %d (max %d)", level, MaxLevels-1)
	}
	s.levels = append(s.levels, level)
	return level, nil
}

// Pop leaves the current level. It panics when the stack is empty or when the
// top is not the expected level, since that means a Push/Pop pair was broken.
func (s *Stack) Pop(expected Level) {
	if len(s.levels) == 0 {
		panic("layers: Pop on empty stack")
	}
	top := s.levels[len(s.levels)-1]
	if top != expected {
		panic(errors.Errorf("layers: Pop(%d) but current level is %d", expected, top))
	}
	s.levels = s.levels[:len(s.levels)-1]
}

// Current returns the active level, if any.
func (s *Stack) Current() (Level, bool) {
	if len(s.levels) == 0 {
		return 0, false
	}
	return s.levels[len(s.levels)-1], true
}

// Depth returns the number of active levels.
func (s *Stack) Depth() int {
	return len(s.levels)
}

// Suspend removes the current level until the returned restore function is called.
// Always defer the restore:
//
//	defer stack.Suspend()()
//
// Suspending an empty stack is a no-op.
func (s *Stack) Suspend() (restore func()) {
	if len(s.levels) == 0 {
		return func() {}
	}
	top := s.levels[len(s.levels)-1]
	s.levels = s.levels[:len(s.levels)-1]
	depth := len(s.levels)
	return func() {
		// Anything pushed during the suspension and not popped is discarded with it.
		s.levels = append(s.levels[:depth], top)
	}
}
