package pngs

import "errors"

// ErrorCode classifies a decode failure.
type ErrorCode uint32

const (
	// Success means no failure occurred.
	Success ErrorCode = 0

	// ErrEngineInit means the decoding engine could not be initialized.
	// It is the only code surfaced as a negative ResultCode.
	ErrEngineInit ErrorCode = 1

	// ErrHeader means the image header could not be read, or the parsed
	// configuration is structurally invalid.
	ErrHeader ErrorCode = 2

	// ErrCapacity means the decoded dimensions exceed the destination
	// surface capacity.
	ErrCapacity ErrorCode = 3

	// ErrUnsupported means the caller's option/format combination has no
	// valid output strategy.
	ErrUnsupported ErrorCode = 4

	// ErrAllocation means the destination lock or a transient buffer
	// could not be obtained.
	ErrAllocation ErrorCode = 5

	// ErrFrame means the engine reported a decode-time error.
	ErrFrame ErrorCode = 6
)

// Error is a typed error carrying a decode failure code.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	return "pngs: decode error"
}

// ErrorCodeOf returns the failure code for err, or Success for nil.
//
// For non-*Error errors it returns ErrFrame as a conservative fallback.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrFrame
}

func newError(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}
