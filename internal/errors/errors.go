package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError is the fatal-error envelope surfaced to the host. Non-fatal
// conditions (malformed responses, suppressed shutdown conflicts) never
// become AppErrors: the loop recovers them silently.
type AppError struct {
	Code      string
	Message   string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// NewConflictError marks a 409 received while the session was still running:
// another consumer is long-polling with the same token, which is a
// misconfiguration the operator must resolve.
func NewConflictError(session string, cause error) *AppError {
	return &AppError{
		Code:      "E409",
		Message:   fmt.Sprintf("duplicate consumer detected for session %q", session),
		Severity:  SeverityCritical,
		Retryable: false,
		cause:     cause,
	}
}

// NewTransportError wraps any other fatal poll failure.
func NewTransportError(session string, cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:      "E300",
		Message:   fmt.Sprintf("transport error in session %q: %s", session, underlyingMsg),
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

// NewConfigError marks invalid or missing configuration detected at startup.
func NewConfigError(msg string) *AppError {
	return &AppError{
		Code:      "E100",
		Message:   msg,
		Severity:  SeverityMedium,
		Retryable: false,
		cause:     nil,
	}
}
