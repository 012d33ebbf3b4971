package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// SwarmError is the interface for all structured errors in this module.
// It extends the standard error interface with the context that retry
// schedules and the fail-closed safety gate need.
type SwarmError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() ErrorCode

	// Category returns the error category for retry/handling decisions.
	Category() ErrorCategory

	// Retryable returns true if the operation may succeed on retry.
	Retryable() bool

	// Metadata returns additional context as key-value pairs.
	Metadata() map[string]string

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of SwarmError.
type Error struct {
	code       ErrorCode
	category   ErrorCategory
	message    string
	cause      error
	metadata   map[string]string
	retryable  *bool // nil means use default based on category
	timestamp  time.Time
	agentID    string // satellite serial of the agent involved, if applicable
	decisionID string // safety-gate decision, if applicable
}

// Ensure Error implements SwarmError and json.Marshaler/Unmarshaler.
var (
	_ SwarmError       = (*Error)(nil)
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable returns whether this error is retryable.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// AgentID returns the satellite serial involved, if set.
func (e *Error) AgentID() string {
	return e.agentID
}

// DecisionID returns the related safety-gate decision, if set.
func (e *Error) DecisionID() string {
	return e.decisionID
}

// errorJSON is the JSON representation of an Error.
type errorJSON struct {
	Code       ErrorCode         `json:"code"`
	Category   ErrorCategory     `json:"category"`
	Message    string            `json:"message"`
	Cause      string            `json:"cause,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Retryable  bool              `json:"retryable"`
	Timestamp  string            `json:"timestamp,omitempty"`
	AgentID    string            `json:"agent_id,omitempty"`
	DecisionID string            `json:"decision_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:       e.code,
		Category:   e.category,
		Message:    e.message,
		Metadata:   e.metadata,
		Retryable:  e.Retryable(),
		AgentID:    e.agentID,
		DecisionID: e.decisionID,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var j errorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.code = j.Code
	e.category = j.Category
	e.message = j.Message
	e.metadata = j.Metadata
	e.agentID = j.AgentID
	e.decisionID = j.DecisionID
	r := j.Retryable
	e.retryable = &r
	if j.Cause != "" {
		e.cause = fmt.Errorf("%s", j.Cause)
	}
	if j.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, j.Timestamp); err == nil {
			e.timestamp = t
		}
	}
	return nil
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithRetryable explicitly sets whether the error is retryable.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithAgentID sets the satellite serial of the agent involved.
func WithAgentID(serial string) Option {
	return func(e *Error) {
		e.agentID = serial
	}
}

// WithDecisionID sets the related safety-gate decision ID.
func WithDecisionID(id string) Option {
	return func(e *Error) {
		e.decisionID = id
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// PublishFailed creates a publish failure error for a topic.
func PublishFailed(topic string, cause error) *Error {
	return New(ErrCodePublishFailed, fmt.Sprintf("publish to %q failed", topic), WithCause(cause))
}

// Truncated creates a protocol error for a short payload.
func Truncated(got, want int) *Error {
	return Newf(ErrCodeTruncated, "payload truncated: %d bytes, need at least %d", got, want)
}

// UnsupportedVersion creates a protocol error for an unknown version byte.
func UnsupportedVersion(version byte) *Error {
	return Newf(ErrCodeUnsupportedVersion, "unsupported wire version %d", version)
}

// Throttled creates a resource error for a deferred send.
func Throttled(peer string, size int) *Error {
	return New(ErrCodeThrottled, fmt.Sprintf("send of %d bytes throttled", size), WithAgentID(peer))
}

// Dropped creates a resource error for a rejected send.
func Dropped(peer string, size int) *Error {
	return New(ErrCodeDropped, fmt.Sprintf("send of %d bytes dropped under congestion", size), WithAgentID(peer))
}

// EvaluationFailed creates a fail-closed safety evaluation error.
func EvaluationFailed(decisionID string, cause error) *Error {
	return New(ErrCodeEvaluationFailed, "risk evaluation failed, action blocked",
		WithDecisionID(decisionID), WithCause(cause))
}
