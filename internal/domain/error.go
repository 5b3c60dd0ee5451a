package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECONFLICT     = "conflict"     // 409
	EINTERNAL     = "internal"     // 500, details hidden from callers
	EINVALID      = "invalid"      // 400
	ENOTFOUND     = "not_found"    // 404
	ETRANSIENT    = "transient"    // 503, safe to retry
	EUNAUTHORIZED = "unauthorized" // 401
	EFORBIDDEN    = "forbidden"    // 403
)

// Reason names the business rule that rejected an operation.
type Reason string

const (
	ReasonCartNotFound            Reason = "CartNotFound"
	ReasonCartEmpty               Reason = "CartEmpty"
	ReasonDeliveryUnavailable     Reason = "DeliveryUnavailable"
	ReasonProductNotFound         Reason = "ProductNotFound"
	ReasonOutOfStock              Reason = "OutOfStock"
	ReasonQuantityExceedsLimit    Reason = "QuantityExceedsLimit"
	ReasonInvalidQuantity         Reason = "InvalidQuantity"
	ReasonInsufficientStock       Reason = "InsufficientStock"
	ReasonNotCancellable          Reason = "NotCancellable"
	ReasonProductLinkMissing      Reason = "ProductLinkMissing"
	ReasonInvalidStatusTransition Reason = "InvalidStatusTransition"
	ReasonStatusUnchanged         Reason = "StatusUnchanged"
	ReasonNotCheckoutable         Reason = "NotCheckoutable"
)

// Code maps a business reason to the error code it is reported under.
func (r Reason) Code() string {
	switch r {
	case ReasonCartNotFound, ReasonProductNotFound, ReasonDeliveryUnavailable:
		return ENOTFOUND
	case ReasonInsufficientStock, ReasonProductLinkMissing, ReasonStatusUnchanged, ReasonNotCheckoutable:
		return ECONFLICT
	default:
		return EINVALID
	}
}

// Error is an application error carrying a code, an optional business
// reason and the operation it happened in.
type Error struct {
	Code    string
	Reason  Reason
	Message string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorReason extracts the business reason, if any.
func ErrorReason(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// ErrorMessage extracts a user-facing message. Internal errors get a generic one.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp extracts the operation from an error (for logging).
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Errorf creates a new domain error with formatted message.
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Rejected creates an error for a business rule violation.
// Example: domain.Rejected(domain.ReasonCartEmpty, "order.create", "cart %s is empty", id)
func Rejected(reason Reason, op, format string, args ...interface{}) error {
	return &Error{
		Code:    reason.Code(),
		Reason:  reason,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps err with a code and operation. Returns nil if err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

func Forbidden(op, message string) error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: message}
}

// Transient wraps a store fault the caller may retry.
func Transient(err error, op, message string) error {
	return &Error{Code: ETRANSIENT, Op: op, Message: message, Err: err}
}

// Internal wraps an unexpected fault. The message shown to users will be generic.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
