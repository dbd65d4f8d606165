package dispatch

import "github.com/pkg/errors"

// Common errors.
var (
	ErrUnknownOperator = errors.New("unknown operator")
	ErrDuplicateOp     = errors.New("operator already registered")
	ErrNoKernel        = errors.New("no kernel registered for dispatch key")
	ErrBadSchema       = errors.New("malformed operator schema")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrBadArguments    = errors.New("bad operator arguments")
	ErrReturnCount     = errors.New("kernel left an unexpected number of returns")
)
