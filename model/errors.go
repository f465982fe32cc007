package model

import (
	"errors"
	"fmt"
	"strings"
)

// Side names which participant of a commit became stale.
type Side string

const (
	SideSource Side = "source"
	SideItem   Side = "item"
)

// ConflictReason enumerates the expected runtime conflicts of the executor.
type ConflictReason string

const (
	ReasonAlreadyMatched ConflictReason = "already_matched"
	ReasonAmountDrift    ConflictReason = "amount_drift"
	ReasonAlreadyVoided  ConflictReason = "already_voided"
	// ReasonRetry marks a commit the store aborted on a deadlock or a
	// serialization failure. Nothing was written and the same request may be sent again.
	ReasonRetry ConflictReason = "retry"
)

// ConflictError is returned when a commit or reversal lost a race or the pool
// changed since the candidate was generated. Callers regenerate candidates
// instead of retrying with stale data.
type ConflictError struct {
	Reason    ConflictReason `json:"reason"`
	Side      Side           `json:"side"`
	RecordIDs []string       `json:"record_ids"`
	Expected  Amount         `json:"expected,omitempty"`
	Actual    Amount         `json:"actual,omitempty"`
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ReasonAmountDrift:
		return fmt.Sprintf("amount drift on %s %s: expected %s, got %s", e.Side, strings.Join(e.RecordIDs, ","), e.Expected, e.Actual)
	case ReasonAlreadyVoided:
		return fmt.Sprintf("match %s is already voided", strings.Join(e.RecordIDs, ","))
	case ReasonRetry:
		return fmt.Sprintf("%s %s is locked by a concurrent commit, retry", e.Side, strings.Join(e.RecordIDs, ","))
	}
	return fmt.Sprintf("%s %s already matched", e.Side, strings.Join(e.RecordIDs, ","))
}

// NewAlreadyMatched builds an AlreadyMatched conflict naming the stale side.
func NewAlreadyMatched(side Side, ids ...string) *ConflictError {
	return &ConflictError{Reason: ReasonAlreadyMatched, Side: side, RecordIDs: ids}
}

// NewAmountDrift builds an AmountDrift conflict.
func NewAmountDrift(side Side, expected, actual Amount, ids ...string) *ConflictError {
	return &ConflictError{Reason: ReasonAmountDrift, Side: side, RecordIDs: ids, Expected: expected, Actual: actual}
}

// NewRetry builds a retryable conflict for a commit the store aborted.
func NewRetry(side Side, ids ...string) *ConflictError {
	return &ConflictError{Reason: ReasonRetry, Side: side, RecordIDs: ids}
}

// ValidationError rejects malformed input before the store is touched.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError is returned when a referenced record does not exist for the tenant.
type NotFoundError struct {
	Kind RecordKind `json:"kind"`
	ID   string     `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsConflict reports whether err wraps a ConflictError with the given reason.
// An empty reason matches any conflict.
func IsConflict(err error, reason ConflictReason) bool {
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		return false
	}
	return reason == "" || conflict.Reason == reason
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
