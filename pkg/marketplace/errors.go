package marketplace

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the marketplace service.
var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrVoucherAlreadyConsumed  = errors.New("voucher already consumed")
	ErrLeadNotFound            = errors.New("lead not found")
	ErrAlreadyPurchased        = errors.New("lead already purchased")
	ErrProposalNotPending      = errors.New("proposal not pending")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBookingClosed           = errors.New("booking closed")
	ErrBookingExists           = errors.New("booking already exists")
	ErrProposalNotFound        = errors.New("proposal not found")
	ErrAssignmentNotFound      = errors.New("assignment not found")
	ErrAssignmentConflict      = errors.New("assignment state conflict")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrInvalidInstallerID      = errors.New("invalid installer id")
	ErrInvalidBookingID        = errors.New("invalid booking id")
	ErrInvalidProposalID       = errors.New("invalid proposal id")
	ErrInvalidIdempotencyKey   = errors.New("invalid idempotency key")
	ErrInvalidAmountCents      = errors.New("invalid amount cents")
	ErrInvalidMetadataJSON     = errors.New("invalid metadata json")
	ErrInvalidScheduleDate     = errors.New("invalid schedule date")
	ErrInvalidBookingStatus    = errors.New("invalid booking status")
	ErrInvalidProposalStatus   = errors.New("invalid proposal status")
	ErrInvalidProposerRole     = errors.New("invalid proposer role")
	ErrInvalidAssignmentStatus = errors.New("invalid assignment status")
	ErrInvalidVoucherStatus    = errors.New("invalid voucher status")
	ErrInvalidEntryType        = errors.New("invalid entry type")
	ErrInvalidContact          = errors.New("invalid customer contact")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
