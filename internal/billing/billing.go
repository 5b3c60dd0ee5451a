// Package billing talks to the hosted checkout provider. Orders only keep the
// session id; everything else about a payment lives with the provider.
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutProvider creates and manages hosted checkout sessions.
type CheckoutProvider interface {
	// CreateSession opens a payment session for an order.
	CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error)

	// GetSession retrieves an existing session.
	// Returns ErrSessionNotFound when the provider does not know the id.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// ExpireSession closes an open session so it can no longer be paid.
	ExpireSession(ctx context.Context, sessionID string) (*Session, error)
}

// LineItem is one priced row on the checkout page.
type LineItem struct {
	Name        string
	ImageURL    string
	AmountCents int64
	Quantity    int64
}

// CreateSessionParams contains parameters for opening a session.
type CreateSessionParams struct {
	OrderID    string
	UserID     string
	Currency   string
	Items      []LineItem
	SuccessURL string
	CancelURL  string
}

// Session is the provider's view of a checkout.
type Session struct {
	ID            string
	URL           string
	Status        string // open, complete, expired
	PaymentStatus string // paid, unpaid, no_payment_required
	AmountTotal   int64
	Currency      string
	ExpiresAt     time.Time
}

// Open reports whether the session can still be paid.
func (s *Session) Open() bool {
	return s.Status == "open"
}

// ToCents converts a decimal amount into the smallest currency unit.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
