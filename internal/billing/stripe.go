package billing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// sessionAPI is the subset of the Stripe checkout session client we call.
type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

// StripeProvider implements CheckoutProvider with Stripe Checkout.
type StripeProvider struct {
	sessions sessionAPI
	enabled  bool
}

// NewStripeProvider creates a Stripe-backed provider. An empty key yields a
// provider whose calls fail with ErrNotConfigured.
func NewStripeProvider(apiKey string) *StripeProvider {
	return &StripeProvider{
		sessions: session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: apiKey},
		enabled:  apiKey != "",
	}
}

func newStripeProvider(api sessionAPI) *StripeProvider {
	return &StripeProvider{sessions: api, enabled: true}
}

// CreateSession opens a one-off payment session. The order id is stored as
// the client reference and in metadata so webhooks can find the order.
func (p *StripeProvider) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	if !p.enabled {
		return nil, ErrNotConfigured
	}
	if len(params.Items) == 0 {
		return nil, ErrNoLineItems
	}

	currency := strings.ToLower(params.Currency)
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.Items))
	for _, item := range params.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != "" {
			product.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(item.AmountCents),
				ProductData: product,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	sp := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		ClientReferenceID: stripe.String(params.OrderID),
	}
	sp.Context = ctx
	sp.AddMetadata("order_id", params.OrderID)
	sp.AddMetadata("user_id", params.UserID)
	sp.SetIdempotencyKey("checkout-" + params.OrderID)

	s, err := p.sessions.New(sp)
	if err != nil {
		return nil, wrapStripeError("create session", err)
	}
	return toSession(s), nil
}

// GetSession retrieves a checkout session by id.
func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if !p.enabled {
		return nil, ErrNotConfigured
	}
	sp := &stripe.CheckoutSessionParams{}
	sp.Context = ctx

	s, err := p.sessions.Get(sessionID, sp)
	if err != nil {
		return nil, wrapStripeError("get session", err)
	}
	return toSession(s), nil
}

// ExpireSession expires an open checkout session.
func (p *StripeProvider) ExpireSession(ctx context.Context, sessionID string) (*Session, error) {
	if !p.enabled {
		return nil, ErrNotConfigured
	}
	sp := &stripe.CheckoutSessionExpireParams{}
	sp.Context = ctx

	s, err := p.sessions.Expire(sessionID, sp)
	if err != nil {
		return nil, wrapStripeError("expire session", err)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
	}
	if s.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return out
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &ProviderError{Op: op, Message: err.Error(), Err: err}
	}
	pe := &ProviderError{
		Op:         op,
		Code:       string(se.Code),
		StatusCode: se.HTTPStatusCode,
		Message:    se.Msg,
		Err:        err,
	}
	if se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing {
		pe.Err = ErrSessionNotFound
	}
	return pe
}
