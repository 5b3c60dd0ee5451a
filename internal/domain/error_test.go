package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      &Error{Code: EINVALID, Message: "invalid input"},
			expected: "invalid input",
		},
		{
			name:     "with operation",
			err:      &Error{Code: EINVALID, Op: "order.create", Message: "invalid input"},
			expected: "order.create: invalid input",
		},
		{
			name:     "with wrapped error",
			err:      &Error{Code: EINTERNAL, Op: "order.create", Message: "failed to save", Err: errors.New("connection reset")},
			expected: "order.create: failed to save: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, EINTERNAL, ErrorCode(errors.New("plain")))
	assert.Equal(t, ENOTFOUND, ErrorCode(NotFound("order.get", "order", "1")))

	wrapped := fmt.Errorf("outer: %w", Transient(errors.New("deadlock"), "order.create", "store busy"))
	assert.Equal(t, ETRANSIENT, ErrorCode(wrapped))
	assert.True(t, IsCode(wrapped, ETRANSIENT))
}

func TestErrorMessage_HidesInternalDetails(t *testing.T) {
	err := Internal(errors.New("pq: relation does not exist"), "order.create", "failed to insert order")
	assert.Equal(t, "An internal error occurred. Please try again later.", ErrorMessage(err))
	assert.Equal(t, "An internal error occurred. Please try again later.", ErrorMessage(errors.New("raw")))
	assert.Equal(t, "bad quantity", ErrorMessage(Invalid("cart.update", "bad quantity")))
}

func TestRejected(t *testing.T) {
	tests := []struct {
		reason Reason
		code   string
	}{
		{ReasonCartNotFound, ENOTFOUND},
		{ReasonProductNotFound, ENOTFOUND},
		{ReasonCartEmpty, EINVALID},
		{ReasonDeliveryUnavailable, ENOTFOUND},
		{ReasonQuantityExceedsLimit, EINVALID},
		{ReasonOutOfStock, EINVALID},
		{ReasonInsufficientStock, ECONFLICT},
		{ReasonNotCancellable, EINVALID},
		{ReasonProductLinkMissing, ECONFLICT},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			err := Rejected(tt.reason, "order.create", "rejected %d", 1)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.Equal(t, tt.reason, ErrorReason(err))
			assert.Equal(t, "rejected 1", ErrorMessage(err))
			assert.Equal(t, "order.create", ErrorOp(err))
		})
	}
}

func TestWrapError_Nil(t *testing.T) {
	assert.NoError(t, WrapError(nil, EINTERNAL, "op", "msg"))
}

func TestUnwrap(t *testing.T) {
	underlying := errors.New("underlying")
	err := Internal(underlying, "op", "wrapped")
	assert.ErrorIs(t, err, underlying)
}
