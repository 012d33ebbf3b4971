package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error
// chain. If err is nil, Wrap returns nil. If err is already a structured
// Error, its code, category, and identifiers carry through.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var swarmErr *Error
	if errors.As(err, &swarmErr) {
		wrapped := &Error{
			code:       swarmErr.code,
			category:   swarmErr.category,
			message:    message,
			cause:      err,
			metadata:   swarmErr.Metadata(),
			retryable:  swarmErr.retryable,
			agentID:    swarmErr.agentID,
			decisionID: swarmErr.decisionID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var swarmErr *Error
	if errors.As(err, &swarmErr) {
		return swarmErr.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var swarmErr *Error
	if errors.As(err, &swarmErr) {
		return swarmErr.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable. Non-structured errors are
// treated as not retryable.
func IsRetryable(err error) bool {
	var swarmErr *Error
	if errors.As(err, &swarmErr) {
		return swarmErr.Retryable()
	}
	return false
}

// IsTransient checks if the error is transient.
func IsTransient(err error) bool {
	return IsCategory(err, CategoryTransient)
}

// IsProtocol checks if the error is a permanent protocol/validation failure.
func IsProtocol(err error) bool {
	return IsCategory(err, CategoryPermanent)
}

// Code extracts the error code from an error, or "" if not structured.
func Code(err error) ErrorCode {
	var swarmErr *Error
	if errors.As(err, &swarmErr) {
		return swarmErr.code
	}
	return ""
}

// Category extracts the error category, or "" if not structured.
func Category(err error) ErrorCategory {
	var swarmErr *Error
	if errors.As(err, &swarmErr) {
		return swarmErr.category
	}
	return ""
}

// RecoverPanic converts a recovered panic value into an Error.
// Returns nil if recovered is nil.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
