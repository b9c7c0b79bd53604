package shmvars

import (
	"errors"
	"fmt"
	"strings"
)

// State is the three-state outcome of an operation.
type State int

const (
	Succeeded State = iota
	Failed
	Canceled
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Canceled:
		return "canceled"
	default:
		return "failed"
	}
}

// Result is the uniform outcome contract returned by every public operation.
// It is passed and returned by value and never mutated after construction,
// so outcomes can be handed across layers without defensive copies.
//
// On failure, Error holds "<Code>: <message>", Context holds the source
// location or offending key/segment, and Data usually carries a *Fault with
// the structured failure detail.
type Result struct {
	State   State
	Code    ErrorCode
	Error   string
	Context string
	Data    any
}

// OK builds a successful Result carrying data.
func OK(data any) Result {
	return Result{State: Succeeded, Data: data}
}

// OKf builds a successful Result whose data is a formatted message.
func OKf(format string, args ...any) Result {
	return OK(fmt.Sprintf(format, args...))
}

// Fail builds a failed Result from an error. The error's code is taken via
// Classify so *Error causes keep their taxonomy.
func Fail(err error, context string, data any) Result {
	return Result{
		State:   Failed,
		Code:    Classify(err),
		Error:   fmt.Sprintf("%s: %v", Classify(err), err),
		Context: context,
		Data:    data,
	}
}

// Cancel builds a cancelled Result, used when an operation was abandoned
// (context cancellation or deadline) rather than having failed.
func Cancel(err error, context string) Result {
	return Result{
		State:   Canceled,
		Code:    Classify(err),
		Error:   fmt.Sprintf("canceled: %v", err),
		Context: context,
	}
}

// Success reports whether the operation succeeded.
func (r Result) Success() bool {
	return r.State == Succeeded
}

// Err converts the Result back into an error. It returns nil on success and
// an *Error carrying the code, message, context and data otherwise. This is
// the explicit unwrap path for callers that prefer error flow.
func (r Result) Err() error {
	if r.State == Succeeded {
		return nil
	}
	// Error already carries the "<Code>: " prefix that (*Error).Error()
	// renders, so strip it or the code prints twice.
	msg := strings.TrimPrefix(r.Error, r.Code.String()+": ")
	return &Error{
		Code:     r.Code,
		Err:      errors.New(msg),
		Context:  r.Context,
		UserData: r.Data,
	}
}

// Must returns the payload or panics with the Result's error. The panic is
// deliberate: it is the "re-raise" accessor for callers that treat failure
// as a programming error.
func (r Result) Must() any {
	if err := r.Err(); err != nil {
		panic(err)
	}
	return r.Data
}

// Classify maps an error to its ErrorCode: the code of the innermost *Error
// if there is one, Unknown otherwise.
func Classify(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
