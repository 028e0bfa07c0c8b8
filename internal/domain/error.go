package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Money
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrNegativeAmount   = errors.New("amount must not be negative")

	// Plan catalog
	ErrPlanNotFound    = errors.New("plan not found")
	ErrPlanUnavailable = errors.New("plan unavailable")

	// Payment
	ErrPaymentDeclined            = errors.New("payment declined")
	ErrPaymentProviderUnavailable = errors.New("payment provider unavailable")

	// Persistence after a captured charge
	ErrPersistenceFailure = errors.New("subscription persistence failed")

	// ErrValidation is returned by the request boundary; it never reaches the pipeline.
	ErrValidation = errors.New("validation error")
)

// ChargeFailure is the kind of a failed charge attempt.
type ChargeFailure string

const (
	ChargeDeclined    ChargeFailure = "declined"
	ChargeUnavailable ChargeFailure = "unavailable"
)

// ChargeError is returned by payment gateways. Kind decides whether the
// caller may retry; the message is informational only.
type ChargeError struct {
	Kind     ChargeFailure
	Provider string
	Code     string // provider decline/failure code, if any
	Err      error
}

func (e *ChargeError) Error() string {
	msg := fmt.Sprintf("%s: charge %s", e.Provider, e.Kind)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ChargeError) Unwrap() error { return e.Err }

func (e *ChargeError) Is(target error) bool {
	switch target {
	case ErrPaymentDeclined:
		return e.Kind == ChargeDeclined
	case ErrPaymentProviderUnavailable:
		return e.Kind == ChargeUnavailable
	}
	return false
}

// Declined builds a ChargeError of kind ChargeDeclined.
func Declined(provider, code string, err error) *ChargeError {
	return &ChargeError{Kind: ChargeDeclined, Provider: provider, Code: code, Err: err}
}

// Unavailable builds a ChargeError of kind ChargeUnavailable.
func Unavailable(provider string, err error) *ChargeError {
	return &ChargeError{Kind: ChargeUnavailable, Provider: provider, Err: err}
}

// PersistenceError reports a subscription write that failed after the
// customer was charged. TransactionID must be reconciled by an operator.
type PersistenceError struct {
	TransactionID string
	Provider      string
	Err           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("subscription not recorded after charge %s/%s: %v", e.Provider, e.TransactionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistenceFailure }

// Step names a stage of the subscription creation pipeline.
type Step string

const (
	StepResolvePlan Step = "resolve_plan"
	StepQuote       Step = "quote"
	StepCharge      Step = "charge"
	StepPersist     Step = "persist"
)

// StepError wraps the first failure of a pipeline run with the step it came from.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return string(e.Step) + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

// FailedStep returns the pipeline step recorded in err, or "" if none.
func FailedStep(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// Kind returns a stable label for the error taxonomy, used by metrics and the
// HTTP boundary.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence_failure"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidArgument):
		return "validation"
	case errors.Is(err, ErrPlanNotFound):
		return "plan_not_found"
	case errors.Is(err, ErrPlanUnavailable):
		return "plan_unavailable"
	case errors.Is(err, ErrPaymentDeclined):
		return "payment_declined"
	case errors.Is(err, ErrPaymentProviderUnavailable):
		return "payment_provider_unavailable"
	case errors.Is(err, ErrCurrencyMismatch):
		return "currency_mismatch"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
