package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a value returned by recover into base (ErrInternal
// when nil). The stack of the panicking goroutine goes into the details.
func RecoverPanic(r interface{}, base *Error) error {
	if r == nil {
		return nil
	}
	if base == nil {
		base = ErrInternal
	}

	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", r)
	}
	return base.WithCause(cause).WithDetails(map[string]interface{}{
		"panic":       true,
		"stack_trace": string(debug.Stack()),
	})
}
