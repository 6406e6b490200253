package domain

import "fmt"

// Error types for consistent error handling across the affiliate engine.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientBalance indicates the available balance does not cover
// the minimum withdrawal amount.
type ErrInsufficientBalance struct {
	Available float64
	Minimum   float64
}

func (e *ErrInsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient balance: available=%.2f minimum=%.2f", e.Available, e.Minimum)
}

// ErrPaymentMethodMissing indicates no payout destination is configured.
type ErrPaymentMethodMissing struct {
	AccountID string
}

func (e *ErrPaymentMethodMissing) Error() string {
	return fmt.Sprintf("no payment method configured for account %s", e.AccountID)
}

// ErrInvalidTransition indicates an illegal lifecycle transition,
// naming the current and the requested state.
type ErrInvalidTransition struct {
	Entity    string
	ID        string
	Current   string
	Requested string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid %s transition for %s: %s -> %s", e.Entity, e.ID, e.Current, e.Requested)
}

// ErrAccountSuspended indicates the affiliate account is suspended.
type ErrAccountSuspended struct {
	AccountID string
}

func (e *ErrAccountSuspended) Error() string {
	return fmt.Sprintf("account suspended: %s", e.AccountID)
}

// ErrWithdrawalOutstanding indicates a non-terminal withdrawal already exists.
type ErrWithdrawalOutstanding struct {
	AccountID    string
	WithdrawalID string
	Status       string
}

func (e *ErrWithdrawalOutstanding) Error() string {
	return fmt.Sprintf("account %s already has withdrawal %s in status %s", e.AccountID, e.WithdrawalID, e.Status)
}

// ErrDuplicate indicates a duplicate operation (idempotency check).
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate operation: %s", e.Key)
}

// ErrCycleRunning indicates a settlement cycle is already in flight.
type ErrCycleRunning struct{}

func (e *ErrCycleRunning) Error() string {
	return "settlement cycle already running"
}
