package errors

import (
	stderrors "errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if stderrors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

// InsufficientStockError is a business rule violation, never an infrastructure failure.
type InsufficientStockError struct {
	ProductID int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func NewInsufficientStockError(productID, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}

func IsInsufficientStockError(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if stderrors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

type NoCounterAssignedError struct {
	CashierID int
}

func (e *NoCounterAssignedError) Error() string {
	return fmt.Sprintf("cashier %d is not assigned to a counter", e.CashierID)
}

func NewNoCounterAssignedError(cashierID int) *NoCounterAssignedError {
	return &NoCounterAssignedError{CashierID: cashierID}
}

func IsNoCounterAssignedError(err error) (*NoCounterAssignedError, bool) {
	var nce *NoCounterAssignedError
	if stderrors.As(err, &nce) {
		return nce, true
	}
	return nil, false
}

// InvalidStateError reports an action that is illegal from the entity's current state.
type InvalidStateError struct {
	Entity string
	State  string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s in state %s", e.Action, e.Entity, e.State)
}

func NewInvalidStateError(entity, state, action string) *InvalidStateError {
	return &InvalidStateError{
		Entity: entity,
		State:  state,
		Action: action,
	}
}

func IsInvalidStateError(err error) (*InvalidStateError, bool) {
	var ise *InvalidStateError
	if stderrors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

type DuplicateNumberError struct {
	Message string
	Cause   error
}

func (e *DuplicateNumberError) Error() string {
	return e.Message
}

func (e *DuplicateNumberError) Unwrap() error {
	return e.Cause
}

func NewDuplicateNumberError(message string, cause error) *DuplicateNumberError {
	return &DuplicateNumberError{
		Message: message,
		Cause:   cause,
	}
}

func IsDuplicateNumberError(err error) (*DuplicateNumberError, bool) {
	var dne *DuplicateNumberError
	if stderrors.As(err, &dne) {
		return dne, true
	}
	return nil, false
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ConcurrencyConflictError is raised when a versioned row changed between read and write.
type ConcurrencyConflictError struct {
	Entity  string
	ID      int64
	Version int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %d was modified concurrently (expected version %d)", e.Entity, e.ID, e.Version)
}

func NewConcurrencyConflictError(entity string, id int64, version int) *ConcurrencyConflictError {
	return &ConcurrencyConflictError{
		Entity:  entity,
		ID:      id,
		Version: version,
	}
}

func IsConcurrencyConflictError(err error) (*ConcurrencyConflictError, bool) {
	var cce *ConcurrencyConflictError
	if stderrors.As(err, &cce) {
		return cce, true
	}
	return nil, false
}

type DeadlockError struct {
	Message string
	Cause   error
}

func (e *DeadlockError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DeadlockError) Unwrap() error {
	return e.Cause
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

// WrapDeadlockError keeps the last lock failure reachable through errors.Is and errors.As.
func WrapDeadlockError(message string, cause error) *DeadlockError {
	return &DeadlockError{Message: message, Cause: cause}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	var de *DeadlockError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// TransientError marks store unavailability; callers may retry the whole request.
type TransientError struct {
	Message string
	Cause   error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

func NewTransientError(message string, cause error) *TransientError {
	return &TransientError{
		Message: message,
		Cause:   cause,
	}
}

func IsTransientError(err error) (*TransientError, bool) {
	var te *TransientError
	if stderrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}
