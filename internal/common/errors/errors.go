// Package errors provides standardized error handling for the dispatch pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Error Codes
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Resilience reason codes. Persisted verbatim on failed history records
	// so operators can distinguish "provider is down" from "provider
	// rejected this specific message".
	ErrCodeCircuitOpen    ErrorCode = "CIRCUIT_OPEN"
	ErrCodeRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
	ErrCodeTimeout        ErrorCode = "TIMEOUT"

	// Channel failures.
	ErrCodeChannelSendFailed ErrorCode = "CHANNEL_SEND_FAILED"
	ErrCodeInvalidRecipient  ErrorCode = "INVALID_RECIPIENT"
	ErrCodeProviderRejected  ErrorCode = "PROVIDER_REJECTED"

	// Ingestion failures.
	ErrCodeEventMalformed       ErrorCode = "EVENT_MALFORMED"
	ErrCodeEventSchemaViolation ErrorCode = "EVENT_SCHEMA_VIOLATION"

	// Storage failures.
	ErrCodeHistoryNotFound      ErrorCode = "HISTORY_NOT_FOUND"
	ErrCodeHistoryWriteFailed   ErrorCode = "HISTORY_WRITE_FAILED"
	ErrCodeInvalidTransition    ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeTemplateStoreFailure ErrorCode = "TEMPLATE_STORE_FAILURE"

	// Realtime failures.
	ErrCodeHandshakeRejected ErrorCode = "HANDSHAKE_REJECTED"
	ErrCodeConnectionClosed  ErrorCode = "CONNECTION_CLOSED"
)

// Severity classifies an error for the transport boundary.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// ==========================
// 2. StandardError
// ==========================

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  Severity               `json:"severity"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Reason returns the code as a plain string for persistence on history records.
func (e *StandardError) Reason() string {
	return string(e.Code)
}

// ==========================
// 3. Constructors
// ==========================

// NewCircuitOpenError marks a short-circuited call. Retryable: the provider
// may recover after the breaker's wait duration.
func NewCircuitOpenError(channel string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCircuitOpen,
		Message:   "Circuit breaker open for channel",
		Details:   fmt.Sprintf("channel: %s", channel),
		Severity:  SeverityWarn,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetryExhaustedError marks a call that failed every permitted attempt.
func NewRetryExhaustedError(channel string, attempts int, last error) *StandardError {
	details := fmt.Sprintf("channel: %s, attempts: %d", channel, attempts)
	if last != nil {
		details += ", last: " + last.Error()
	}
	return &StandardError{
		Code:      ErrCodeRetryExhausted,
		Message:   "Retries exhausted for channel call",
		Details:   details,
		Severity:  SeverityError,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError marks a call cancelled at the timeout boundary.
func NewTimeoutError(channel string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   "Channel call timed out",
		Details:   fmt.Sprintf("channel: %s, timeout: %s", channel, timeout),
		Severity:  SeverityWarn,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRecipientError marks a permanently undeliverable address.
func NewInvalidRecipientError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRecipient,
		Message:   "Recipient address is invalid for this channel",
		Details:   details,
		Severity:  SeverityWarn,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelSendFailedError marks a transient provider failure.
func NewChannelSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelSendFailed,
		Message:   "Channel sender returned an error",
		Details:   fmt.Sprintf("channel: %s, error: %v", channel, err),
		Severity:  SeverityError,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventMalformedError marks an inbound event that cannot be decoded.
func NewEventMalformedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventMalformed,
		Message:   "Inbound event could not be decoded",
		Details:   err.Error(),
		Severity:  SeverityWarn,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventSchemaViolationError marks an event that failed envelope validation.
func NewEventSchemaViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventSchemaViolation,
		Message:   "Inbound event violates the envelope schema",
		Details:   details,
		Severity:  SeverityWarn,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryNotFoundError marks a lookup for an unknown notification id.
func NewHistoryNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryNotFound,
		Message:   "No history record for notification id",
		Details:   fmt.Sprintf("notificationId: %s", id),
		Severity:  SeverityInfo,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError marks a rejected backward status move.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Status transition not permitted",
		Details:   fmt.Sprintf("%s -> %s", from, to),
		Severity:  SeverityError,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryWriteFailedError marks a storage failure on the audit path.
func NewHistoryWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryWriteFailed,
		Message:   "Failed to persist history record",
		Details:   err.Error(),
		Severity:  SeverityCritical,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHandshakeRejectedError marks a realtime connection refused before
// registration.
func NewHandshakeRejectedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeHandshakeRejected,
		Message:   "Realtime handshake rejected",
		Details:   details,
		Severity:  SeverityWarn,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Helpers
// ==========================

// IsRetryable reports whether err carries a retryable StandardError.
// Unknown error types are treated as transient.
func IsRetryable(err error) bool {
	if se, ok := err.(*StandardError); ok {
		return se.Retryable
	}
	return err != nil
}

// CodeOf extracts the ErrorCode from err, or ErrCodeChannelSendFailed for
// plain errors.
func CodeOf(err error) ErrorCode {
	if se, ok := err.(*StandardError); ok {
		return se.Code
	}
	return ErrCodeChannelSendFailed
}

// HTTPStatus maps a severity-bearing error to a transport status. The switch
// is exhaustive over the severity set.
func HTTPStatus(err error) int {
	se, ok := err.(*StandardError)
	if !ok {
		return 500
	}
	switch se.Code {
	case ErrCodeHistoryNotFound:
		return 404
	case ErrCodeHandshakeRejected:
		return 401
	case ErrCodeEventMalformed, ErrCodeEventSchemaViolation, ErrCodeInvalidRecipient:
		return 400
	}
	switch se.Severity {
	case SeverityInfo, SeverityWarn:
		return 409
	case SeverityError, SeverityCritical:
		return 500
	default:
		return 500
	}
}
