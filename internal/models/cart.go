package models

import "github.com/shopspring/decimal"

// CartLine is one product and quantity in a shopping cart.
type CartLine struct {
	ProductID         string            `json:"product_id"`
	ProductName       string            `json:"product_name"`
	ProductPictureURL string            `json:"product_picture_url"`
	UnitPrice         decimal.Decimal   `json:"unit_price"`
	Quantity          int               `json:"quantity"`
	NameTranslations  map[string]string `json:"name_translations,omitempty"`
}

// Cart is a session-scoped shopping cart held in the cart store.
type Cart struct {
	ID    string     `json:"id"`
	Items []CartLine `json:"items"`
}

// NewCart returns an empty cart with the given id.
func NewCart(id string) *Cart {
	return &Cart{ID: id, Items: []CartLine{}}
}

// Line returns the line for productID, or nil.
func (c *Cart) Line(productID string) *CartLine {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// RemoveLine drops every line for productID and reports whether any was removed.
func (c *Cart) RemoveLine(productID string) bool {
	kept := c.Items[:0]
	for _, line := range c.Items {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	removed := len(kept) != len(c.Items)
	c.Items = kept
	return removed
}

// MergedLines returns the cart lines with duplicate products folded into the
// first occurrence. Insertion order is preserved.
func (c *Cart) MergedLines() []CartLine {
	index := make(map[string]int, len(c.Items))
	merged := make([]CartLine, 0, len(c.Items))
	for _, line := range c.Items {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}
