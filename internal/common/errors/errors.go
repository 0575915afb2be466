// Package errors provides the standardized error taxonomy of the placement engine
// and its mapping to BPMN errors for Camunda job workers.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Domain errors. None of these are retried by the engine.
const (
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrCodeBusinessRuleViolation ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeCapacityExceeded      ErrorCode = "CAPACITY_EXCEEDED"
	ErrCodeConflict              ErrorCode = "CONFLICT"
	ErrCodeInvalidInput          ErrorCode = "INVALID_INPUT"
)

// Infrastructure errors.
const (
	ErrCodeStorageFailure   ErrorCode = "STORAGE_FAILURE"
	ErrCodeLockUnavailable  ErrorCode = "LOCK_UNAVAILABLE"
	ErrCodeCompensation     ErrorCode = "COMPENSATION_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeSchemaValidation ErrorCode = "SCHEMA_VALIDATION_FAILED"
)

// StandardError represents a structured application error. Rule names the
// invariant or check that failed so callers can render an actionable message.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Rule      string                 `json:"rule,omitempty"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Code, e.Rule, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause of infrastructure errors.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches on code, and on rule when the target names one, so that
// errors.Is(err, ErrCapacityExceeded) works for any capacity error.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Rule == "" || t.Rule == e.Rule
}

// WithMetadata attaches a key/value to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound              = &StandardError{Code: ErrCodeNotFound}
	ErrUnauthorized          = &StandardError{Code: ErrCodeUnauthorized}
	ErrBusinessRuleViolation = &StandardError{Code: ErrCodeBusinessRuleViolation}
	ErrCapacityExceeded      = &StandardError{Code: ErrCodeCapacityExceeded}
	ErrConflict              = &StandardError{Code: ErrCodeConflict}
	ErrInvalidInput          = &StandardError{Code: ErrCodeInvalidInput}
	ErrStorageFailure        = &StandardError{Code: ErrCodeStorageFailure}
	ErrLockUnavailable       = &StandardError{Code: ErrCodeLockUnavailable}
)

// RuleIs builds a sentinel matching a specific rule of a code.
func RuleIs(code ErrorCode, rule string) *StandardError {
	return &StandardError{Code: code, Rule: rule}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, rule, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Rule:      rule,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports a referenced id that does not exist.
func NewNotFoundError(kind, id string) *StandardError {
	return newError(ErrCodeNotFound, strings.ToUpper(kind)+"_NOT_FOUND",
		fmt.Sprintf("%s not found", kind), fmt.Sprintf("%sId: %s", kind, id), false)
}

// NewUnauthorizedError reports an actor acting on an entity it does not own.
func NewUnauthorizedError(rule, message, details string) *StandardError {
	return newError(ErrCodeUnauthorized, rule, message, details, false)
}

// NewBusinessRuleError reports a named invariant that would be broken.
func NewBusinessRuleError(rule, message, details string) *StandardError {
	return newError(ErrCodeBusinessRuleViolation, rule, message, details, false)
}

// NewCapacityExceededError reports a lost race for the last slot.
func NewCapacityExceededError(opportunityID string, filled, total int) *StandardError {
	return newError(ErrCodeCapacityExceeded, "NO_SLOT_AVAILABLE", "internship has no remaining slots",
		fmt.Sprintf("opportunityId: %s, filledSlots: %d, totalSlots: %d", opportunityID, filled, total), false)
}

// NewConflictError reports a duplicate in-flight operation.
func NewConflictError(rule, message, details string) *StandardError {
	return newError(ErrCodeConflict, rule, message, details, false)
}

// NewInvalidInputError reports a missing or malformed required field.
func NewInvalidInputError(field, message string) *StandardError {
	return newError(ErrCodeInvalidInput, strings.ToUpper(field)+"_REQUIRED", message, "field: "+field, false)
}

// NewInvalidValueError reports a field that is present but out of range.
func NewInvalidValueError(field, message, details string) *StandardError {
	return newError(ErrCodeInvalidInput, "INVALID_"+strings.ToUpper(field), message, details, false)
}

// NewInvalidStateError reports an impossible ledger transition.
func NewInvalidStateError(rule, message, details string) *StandardError {
	return newError(ErrCodeBusinessRuleViolation, rule, message, details, false)
}

// NewStorageError wraps a record store failure. Storage failures are retryable.
func NewStorageError(operation string, err error) *StandardError {
	e := newError(ErrCodeStorageFailure, "", "record store operation failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true)
	e.cause = err
	return e
}

// NewLockUnavailableError reports a lease that could not be acquired in time.
func NewLockUnavailableError(key string, err error) *StandardError {
	e := newError(ErrCodeLockUnavailable, "", "resource is busy",
		fmt.Sprintf("key: %s, error: %v", key, err), true)
	e.cause = err
	return e
}

// NewCompensationError reports a saga whose rollback did not complete. The
// original failure stays reachable through errors.Is/As.
func NewCompensationError(operation string, original, compensation error) *StandardError {
	e := newError(ErrCodeCompensation, "", "operation failed and could not be fully reverted",
		fmt.Sprintf("operation: %s, error: %v, compensation: %v", operation, original, compensation), true)
	e.cause = original
	return e
}

// NewSchemaValidationError reports job variables that do not match the task contract.
func NewSchemaValidationError(details string) *StandardError {
	return newError(ErrCodeSchemaValidation, "", "input does not match task schema", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStorageFailure, ErrCodeLockUnavailable:
		return 3
	case ErrCodeCompensation:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// The BPMN code is the rule name when present so process models can catch
// individual rules ("LEVEL_INELIGIBLE") rather than the whole category.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	code := string(stdErr.Code)
	if stdErr.Rule != "" {
		code = stdErr.Rule
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      code,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard returns the StandardError in err's chain, or wraps err as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	e := newError(ErrCodeInternal, "", "unexpected error", err.Error(), false)
	e.cause = err
	return e
}

// CodeOf returns the error code of err, or "" when err is nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeNotFound, ErrCodeUnauthorized, ErrCodeInvalidInput, ErrCodeSchemaValidation:
		return "REQUEST"
	case ErrCodeBusinessRuleViolation, ErrCodeConflict:
		return "BUSINESS_RULE"
	case ErrCodeCapacityExceeded:
		return "CAPACITY"
	case ErrCodeStorageFailure, ErrCodeLockUnavailable, ErrCodeCompensation:
		return "INFRASTRUCTURE"
	default:
		return "OTHER"
	}
}
