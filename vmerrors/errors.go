package vmerrors

import (
	"errors"
	"strings"
)

// Load (L) Errors
var (
	ErrLoad            = errors.New("L1|LoadFailed: Image bytes could not be obtained.")
	ErrEmptyImage      = errors.New("L2|EmptyImage: Image contains no code.")
	ErrEntryOutOfRange = errors.New("L3|EntryOutOfRange: Entry offset is not inside the image.")
	ErrNoInputLiteral  = errors.New("L4|NoInputLiteral: Image has no patchable input literal.")
	ErrNotCreated      = errors.New("L5|NotCreated: Engine.Create has not completed.")
)

// Execution (X) Errors
var (
	ErrOutOfBounds       = errors.New("X1|OutOfBounds: Access outside the image or stack buffer.")
	ErrMalformedProgram  = errors.New("X2|MalformedProgram: Instruction cannot be decoded or encoded.")
	ErrFrameMismatch     = errors.New("X3|FrameMismatch: Return size does not match the call site reservation.")
	ErrCallDepthExceeded = errors.New("X4|CallDepthExceeded: Host dispatch recursion limit reached.")
	ErrBadContinuation   = errors.New("X5|BadContinuation: Continuation tag has no resumption point.")
)

// Code returns the short error code ("X3") of a taxonomy error, or "" if err is not one.
func Code(err error) string {
	for _, known := range all {
		if errors.Is(err, known) {
			s := known.Error()
			if i := strings.IndexByte(s, '|'); i > 0 {
				return s[:i]
			}
		}
	}
	return ""
}

var all = []error{
	ErrLoad, ErrEmptyImage, ErrEntryOutOfRange, ErrNoInputLiteral, ErrNotCreated,
	ErrOutOfBounds, ErrMalformedProgram, ErrFrameMismatch, ErrCallDepthExceeded, ErrBadContinuation,
}
