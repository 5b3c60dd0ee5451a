package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// OrderItemResponse is an order line with its name in the caller's language.
type OrderItemResponse struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	PictureURL string          `json:"pictureUrl"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}

// OrderResponse is the order view returned to clients.
type OrderResponse struct {
	ID                string                 `json:"id"`
	UserID            string                 `json:"userId"`
	OrderDate         time.Time              `json:"orderDate"`
	OrderStatus       models.OrderStatus     `json:"orderStatus"`
	PaymentStatus     models.PaymentStatus   `json:"paymentStatus"`
	PaymentMethod     models.PaymentMethod   `json:"paymentMethod"`
	ShippingAddress   models.ShippingAddress `json:"shippingAddress"`
	DeliveryMethod    string                 `json:"deliveryMethod,omitempty"`
	DeliveryCost      decimal.Decimal        `json:"deliveryCost"`
	SubTotal          decimal.Decimal        `json:"subTotal"`
	Total             decimal.Decimal        `json:"total"`
	CheckoutSessionID string                 `json:"checkoutSessionId,omitempty"`
	Items             []OrderItemResponse    `json:"items"`
}

func toOrderResponse(o *models.Order, locale string) OrderResponse {
	resp := OrderResponse{
		ID:                o.ID,
		UserID:            o.UserID,
		OrderDate:         o.OrderDate,
		OrderStatus:       o.OrderStatus,
		PaymentStatus:     o.PaymentStatus,
		PaymentMethod:     o.PaymentMethod,
		ShippingAddress:   o.ShippingAddress,
		SubTotal:          o.SubTotal,
		Total:             o.Total(),
		CheckoutSessionID: o.CheckoutSessionID,
		Items:             make([]OrderItemResponse, len(o.Items)),
	}
	if o.DeliveryMethod != nil {
		resp.DeliveryMethod = o.DeliveryMethod.ShortName
		resp.DeliveryCost = o.DeliveryMethod.Cost
	}
	for i, item := range o.Items {
		resp.Items[i] = OrderItemResponse{
			ProductID:  item.Product.ID,
			Name:       item.LocalizedName(locale),
			PictureURL: item.Product.PictureURL,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			LineTotal:  item.LineTotal(),
		}
	}
	return resp
}
