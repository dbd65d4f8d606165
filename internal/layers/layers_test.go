package layers

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	s := New()
	_, ok := s.Current()
	assert.False(t, ok)

	l1, err := s.Push()
	require.NoError(t, err)
	l2, err := s.Push()
	require.NoError(t, err)
	assert.Equal(t, Level(1), l1)
	assert.Equal(t, Level(2), l2)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, l2, current)
	assert.Equal(t, 2, s.Depth())

	assert.Panics(t, func() { s.Pop(l1) }, "popping out of order")
	s.Pop(l2)
	s.Pop(l1)
	assert.Equal(t, 0, s.Depth())
	assert.Panics(t, func() { s.Pop(l1) })
}

func TestPushTooDeep(t *testing.T) {
	s := New()
	for i := 1; i < MaxLevels; i++ {
		_, err := s.Push()
		require.NoError(t, err)
	}
	_, err := s.Push()
	assert.True(t, errors.Is(err, ErrTooDeep))
	assert.Equal(t, MaxLevels-1, s.Depth())
}

func TestSuspend(t *testing.T) {
	s := New()
	l1, _ := s.Push()
	l2, _ := s.Push()

	restore := s.Suspend()
	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, l1, current, "suspending exposes the enclosing level")

	// Suspensions nest: the inner one leaves no level active.
	inner := s.Suspend()
	_, ok = s.Current()
	assert.False(t, ok)
	inner()

	restore()
	current, _ = s.Current()
	assert.Equal(t, l2, current)
}

func TestSuspendRestoredOnPanic(t *testing.T) {
	s := New()
	l1, _ := s.Push()
	assert.Panics(t, func() {
		defer s.Suspend()()
		panic("kernel failure")
	})
	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, l1, current)

	empty := New()
	restore := empty.Suspend()
	restore()
	assert.Equal(t, 0, empty.Depth())
}
