package shmvars

import "fmt"

type ErrorCode int

const (
	// Unknown marks faults raised by underlying OS or library calls that
	// no specific code claims.
	Unknown ErrorCode = iota
	// InvalidArgument covers malformed keys, names, sizes and format selectors.
	InvalidArgument
	// KeyExists is returned by Set without overwrite on a present key.
	KeyExists
	// KeyNotFound is returned by Get/Delete on an absent key.
	KeyNotFound
	// SegmentNotFound is returned when connecting or fetching a shared
	// memory segment that does not exist at the OS level.
	SegmentNotFound
	// CapacityExceeded is returned when header plus serialized payload
	// would overflow the segment.
	CapacityExceeded
	// DeserializationError is returned when payload bytes do not parse
	// under the declared format.
	DeserializationError
	// UnsupportedFormat is returned for a format selector that is not a
	// recognized serializer.
	UnsupportedFormat
)

func (c ErrorCode) String() string {
	switch c {
	case InvalidArgument:
		return "InvalidArgument"
	case KeyExists:
		return "KeyExists"
	case KeyNotFound:
		return "KeyNotFound"
	case SegmentNotFound:
		return "SegmentNotFound"
	case CapacityExceeded:
		return "CapacityExceeded"
	case DeserializationError:
		return "DeserializationError"
	case UnsupportedFormat:
		return "UnsupportedFormat"
	default:
		return "Unknown"
	}
}

// Error is the shmvars custom error. Context typically names the offending
// key or segment, UserData carries any payload useful to the caller.
type Error struct {
	Code     ErrorCode
	Err      error
	Context  string
	UserData any
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Code, e.Err, e.Context)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an *Error with a formatted cause.
func Errorf(code ErrorCode, context string, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...), Context: context}
}
