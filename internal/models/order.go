package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductItem is the product as it looked when the order was placed.
// It is copied by value and never joined back to the live catalog.
type ProductItem struct {
	ID               string            `json:"id" gorm:"type:varchar(36)"`
	Name             string            `json:"name" gorm:"type:varchar(100)"`
	PictureURL       string            `json:"picture_url" gorm:"type:varchar(255)"`
	NameTranslations map[string]string `json:"name_translations,omitempty" gorm:"serializer:json"`
}

// OrderItem represents a single item within an order.
type OrderItem struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string          `json:"-" gorm:"type:varchar(36);index"`
	LineNo    int             `json:"line_no" gorm:"not null;default:0"` // position in the cart, from 1
	Product   ProductItem     `json:"product" gorm:"embedded;embeddedPrefix:product_"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(18,2);not null"` // Price at the time of order
	Quantity  int             `json:"quantity" gorm:"not null"`
}

// LineTotal is UnitPrice × Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LocalizedName returns the snapshot name for locale, or the default name.
func (i OrderItem) LocalizedName(locale string) string {
	if name, ok := i.Product.NameTranslations[locale]; ok && name != "" {
		return name
	}
	return i.Product.Name
}

// ShippingAddress is stored inline on the order.
type ShippingAddress struct {
	FirstName  string `json:"first_name" gorm:"type:varchar(100)" validate:"required,max=100"`
	LastName   string `json:"last_name" gorm:"type:varchar(100)" validate:"required,max=100"`
	Street     string `json:"street" gorm:"type:varchar(255)" validate:"required,max=255"`
	City       string `json:"city" gorm:"type:varchar(100)" validate:"required,max=100"`
	State      string `json:"state" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	Country    string `json:"country" gorm:"type:varchar(100)" validate:"required,max=100"`
	PostalCode string `json:"postal_code" gorm:"type:varchar(20)" validate:"omitempty,max=20"`
}

// Order represents a customer order.
type Order struct {
	ID                string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string          `json:"user_id" gorm:"type:varchar(36);index;not null"`
	DeliveryMethodID  int             `json:"delivery_method_id" gorm:"not null"`
	DeliveryMethod    *DeliveryMethod `json:"delivery_method,omitempty" gorm:"foreignKey:DeliveryMethodID"`
	ShippingAddress   ShippingAddress `json:"shipping_address" gorm:"embedded;embeddedPrefix:shipping_"`
	PaymentMethod     PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null"`
	SubTotal          decimal.Decimal `json:"sub_total" gorm:"type:decimal(18,2);not null"`
	Items             []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	OrderStatus       OrderStatus     `json:"order_status" gorm:"type:varchar(20);index;not null"`
	PaymentStatus     PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);index;not null"`
	CheckoutSessionID string          `json:"checkout_session_id,omitempty" gorm:"type:varchar(255)"`
	OrderDate         time.Time       `json:"order_date" gorm:"index"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ItemsTotal sums the line totals of all items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Total is the subtotal plus the delivery cost, when the delivery method is loaded.
func (o *Order) Total() decimal.Decimal {
	if o.DeliveryMethod == nil {
		return o.SubTotal
	}
	return o.SubTotal.Add(o.DeliveryMethod.Cost)
}

// DeliveryMethod is a shipping option offered at checkout.
type DeliveryMethod struct {
	ID           int             `json:"id" gorm:"primaryKey"`
	ShortName    string          `json:"short_name" gorm:"type:varchar(100);not null"`
	Description  string          `json:"description" gorm:"type:varchar(255)"`
	DeliveryTime string          `json:"delivery_time" gorm:"type:varchar(100)"`
	Cost         decimal.Decimal `json:"cost" gorm:"type:decimal(18,2);not null"`
}
