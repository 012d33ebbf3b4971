package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: bus publish failures, peer temporarily unreachable.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: malformed identity, out-of-bound health fields, unsupported
	// wire version.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates bandwidth or capacity exhaustion.
	// Examples: admission throttled, message dropped under congestion.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or recovered
	// panics. The safety gate treats these as a blocked verdict.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for the module's failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout         ErrorCode = "TIMEOUT"          // Operation timed out
	ErrCodePublishFailed   ErrorCode = "PUBLISH_FAILED"   // Bus publish was not acknowledged
	ErrCodePeerUnreachable ErrorCode = "PEER_UNREACHABLE" // Directed send found no receiver

	// Validation errors (construction-time, fail fast)
	ErrCodeInvalidIdentity ErrorCode = "INVALID_IDENTITY" // Malformed agent identity
	ErrCodeOutOfBounds     ErrorCode = "OUT_OF_BOUNDS"    // Health field outside its bound
	ErrCodeInvalidConfig   ErrorCode = "INVALID_CONFIG"   // Swarm configuration rejected
	ErrCodeCanceled        ErrorCode = "CANCELED"         // Operation was canceled

	// Protocol errors (decode path, explicit failures)
	ErrCodeTruncated          ErrorCode = "TRUNCATED"           // Payload shorter than header
	ErrCodeUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION" // Unknown wire version byte
	ErrCodeDecompression      ErrorCode = "DECOMPRESSION"       // Entropy stage failed to reverse
	ErrCodeBadEnvelope        ErrorCode = "BAD_ENVELOPE"        // Envelope failed to parse
	ErrCodeBadSignature       ErrorCode = "BAD_SIGNATURE"       // Envelope signature rejected

	// Resource errors (bandwidth admission)
	ErrCodeThrottled ErrorCode = "THROTTLED" // Send deferred, retry later
	ErrCodeDropped   ErrorCode = "DROPPED"   // Send rejected under congestion

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
	ErrCodePanic    ErrorCode = "PANIC"    // Recovered from panic

	// Safety-gate errors (always resolved to a blocked verdict)
	ErrCodeEvaluationFailed ErrorCode = "EVALUATION_FAILED" // Risk evaluation errored, fail closed
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodePublishFailed, ErrCodePeerUnreachable:
		return CategoryTransient

	case ErrCodeInvalidIdentity, ErrCodeOutOfBounds, ErrCodeInvalidConfig, ErrCodeCanceled,
		ErrCodeTruncated, ErrCodeUnsupportedVersion, ErrCodeDecompression,
		ErrCodeBadEnvelope, ErrCodeBadSignature:
		return CategoryPermanent

	case ErrCodeThrottled, ErrCodeDropped:
		return CategoryResource

	case ErrCodeInternal, ErrCodePanic, ErrCodeEvaluationFailed:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:            "operation timed out",
	ErrCodePublishFailed:      "bus publish not acknowledged",
	ErrCodePeerUnreachable:    "peer unreachable",
	ErrCodeInvalidIdentity:    "malformed agent identity",
	ErrCodeOutOfBounds:        "field outside its bound",
	ErrCodeInvalidConfig:      "invalid swarm configuration",
	ErrCodeCanceled:           "operation canceled",
	ErrCodeTruncated:          "payload truncated",
	ErrCodeUnsupportedVersion: "unsupported wire version",
	ErrCodeDecompression:      "entropy decompression failed",
	ErrCodeBadEnvelope:        "envelope failed to parse",
	ErrCodeBadSignature:       "envelope signature rejected",
	ErrCodeThrottled:          "send throttled by bandwidth governor",
	ErrCodeDropped:            "send dropped under congestion",
	ErrCodeInternal:           "unexpected internal error",
	ErrCodePanic:              "recovered from panic",
	ErrCodeEvaluationFailed:   "risk evaluation failed",
}

// Description returns a human-readable description of the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return string(c)
}
