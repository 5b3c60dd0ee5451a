package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a product in the store.
type Product struct {
	ID           string               `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name         string               `json:"name" gorm:"type:varchar(100);not null" validate:"required,min=3,max=100"`
	Description  string               `json:"description" gorm:"type:varchar(500)" validate:"omitempty,max=500"`
	PictureURL   string               `json:"picture_url" gorm:"type:varchar(255)" validate:"omitempty,max=255"`
	Price        decimal.Decimal      `json:"price" gorm:"type:decimal(18,2);not null"`
	UnitsInStock int                  `json:"units_in_stock" gorm:"not null;default:0;check:units_in_stock >= 0" validate:"gte=0"`
	BrandID      int                  `json:"brand_id" validate:"gte=0"`
	CategoryID   int                  `json:"category_id" validate:"gte=0"`
	Translations []ProductTranslation `json:"translations,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" validate:"dive"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	DeletedAt    gorm.DeletedAt       `json:"-" gorm:"index"`
}

// ProductTranslation holds a localized name and description for a product.
type ProductTranslation struct {
	ID           uint   `json:"-" gorm:"primaryKey"`
	ProductID    string `json:"-" gorm:"type:varchar(36);uniqueIndex:idx_product_language"`
	LanguageCode string `json:"language_code" gorm:"type:varchar(8);uniqueIndex:idx_product_language" validate:"required,min=2,max=8"`
	Name         string `json:"name" gorm:"type:varchar(100)" validate:"required,max=100"`
	Description  string `json:"description" gorm:"type:varchar(500)" validate:"omitempty,max=500"`
}

// NameTranslations returns the product's translated names keyed by language code.
func (p *Product) NameTranslations() map[string]string {
	names := make(map[string]string, len(p.Translations))
	for _, t := range p.Translations {
		names[t.LanguageCode] = t.Name
	}
	return names
}
