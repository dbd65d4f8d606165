package vmap

import "github.com/pkg/errors"

// Errors returned by the batched fallback. Match them with errors.Is.
var (
	ErrUnsupportedOp       = errors.New("vmap: batching rule not implemented and no fallback possible")
	ErrInplaceIncompatible = errors.New("vmap: in-place operation incompatible with batched operand")
	ErrFallbackDisabled    = errors.New("vmap: fallback is disabled")
	ErrMixedUndefined      = errors.New("vmap: fallback received a mix of undefined and defined results")

	// ErrZeroBatch wraps ErrUnsupportedOp.
	ErrZeroBatch = errors.Wrap(ErrUnsupportedOp, "the fallback path does not support vmap over dims of size 0")
)
