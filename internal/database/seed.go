package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront/internal/models"
)

// Seed inserts demo delivery methods and products into an empty database.
func Seed(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.DeliveryMethod{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count delivery methods: %w", err)
	}
	if count > 0 {
		log.Debug("database already seeded, skipping")
		return nil
	}

	deliveryMethods := []models.DeliveryMethod{
		{ShortName: "UPS1", Description: "Fastest delivery time", DeliveryTime: "1-2 Days", Cost: decimal.RequireFromString("10")},
		{ShortName: "UPS2", Description: "Get it within 5 days", DeliveryTime: "2-5 Days", Cost: decimal.RequireFromString("5")},
		{ShortName: "UPS3", Description: "Slower but cheap", DeliveryTime: "5-10 Days", Cost: decimal.RequireFromString("2")},
		{ShortName: "FREE", Description: "Free! You get what you pay for", DeliveryTime: "1-2 Weeks", Cost: decimal.Zero},
	}

	products := []models.Product{
		{
			ID: "8f1c6c2e-1b6f-4e0a-9d61-0a3c5f2e7a11", Name: "Laptop", Description: "High performance laptop",
			PictureURL: "images/products/laptop.png", Price: decimal.RequireFromString("1200.00"), UnitsInStock: 10,
			Translations: []models.ProductTranslation{{LanguageCode: "id", Name: "Laptop"}, {LanguageCode: "de", Name: "Notebook"}},
		},
		{
			ID: "2b7d9e44-5c3a-4f81-8e2b-6d4f1a9c3b22", Name: "Keyboard", Description: "Mechanical keyboard",
			PictureURL: "images/products/keyboard.png", Price: decimal.RequireFromString("75.00"), UnitsInStock: 25,
			Translations: []models.ProductTranslation{{LanguageCode: "id", Name: "Papan Ketik"}, {LanguageCode: "de", Name: "Tastatur"}},
		},
		{
			ID: "c4e8a1f0-7d2b-4a96-b3c5-9e1f2d8a4c33", Name: "Mouse", Description: "Ergonomic wireless mouse",
			PictureURL: "images/products/mouse.png", Price: decimal.RequireFromString("25.00"), UnitsInStock: 50,
			Translations: []models.ProductTranslation{{LanguageCode: "id", Name: "Tetikus"}, {LanguageCode: "de", Name: "Maus"}},
		},
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&deliveryMethods).Error; err != nil {
			return fmt.Errorf("failed to seed delivery methods: %w", err)
		}
		for i := range products {
			if err := tx.Create(&products[i]).Error; err != nil {
				return fmt.Errorf("failed to seed product %s: %w", products[i].Name, err)
			}
			log.Info("seeded product", "name", products[i].Name, "id", products[i].ID)
		}
		return nil
	})
}
