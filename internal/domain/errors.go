package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTicketInvalid  = errors.New("ticket invalid")
	ErrTicketTooEarly = errors.New("boarding has not started")
	ErrTicketExpired  = errors.New("boarding window has ended")
)

// DomainError carries a generic machine code.
type DomainError struct {
	Code string
	Err  error
}

func (e DomainError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	if e.Code == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e DomainError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// SeatConflictError means at least one requested seat is already held
// or the trip has no capacity left for the request.
type SeatConflictError struct {
	TripID string
	Seats  []string
	Err    error
}

func (e SeatConflictError) Error() string {
	if len(e.Seats) == 0 {
		return "seats no longer available"
	}
	return fmt.Sprintf("seats no longer available: %s", strings.Join(e.Seats, ","))
}

func (e SeatConflictError) Unwrap() error { return e.Err }

type InsufficientPointsError struct {
	UserID    string
	Requested int64
	Balance   int64
}

func (e InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient loyalty points: requested %d, balance %d", e.Requested, e.Balance)
}

// PaymentGatewayError wraps a failed or timed out call to an external rail.
// Callers may retry.
type PaymentGatewayError struct {
	Provider Provider
	Op       string
	Err      error
}

func (e PaymentGatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e PaymentGatewayError) Unwrap() error { return e.Err }

// VerificationMismatchError is returned when a gateway reports success for an
// amount that differs from the booking total. The booking goes to manual review.
type VerificationMismatchError struct {
	BookingRef string
	Expected   string
	Confirmed  string
}

func (e VerificationMismatchError) Error() string {
	return fmt.Sprintf("payment under review: booking %s expected %s, gateway confirmed %s",
		e.BookingRef, e.Expected, e.Confirmed)
}

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsSeatConflict(err error) bool {
	var target SeatConflictError
	return errors.As(err, &target)
}

func IsInsufficientPoints(err error) bool {
	var target InsufficientPointsError
	return errors.As(err, &target)
}

func IsPaymentGateway(err error) bool {
	var target PaymentGatewayError
	return errors.As(err, &target)
}

func IsVerificationMismatch(err error) bool {
	var target VerificationMismatchError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
