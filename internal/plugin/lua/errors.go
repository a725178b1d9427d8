package lua

import "errors"

// Runtime errors.
var (
	// ErrStateClosed is returned when using a closed State.
	ErrStateClosed = errors.New("lua: state is closed")

	// ErrNotAFunction is returned when a declared entry point is not a Lua
	// function.
	ErrNotAFunction = errors.New("lua: value is not a function")
)
