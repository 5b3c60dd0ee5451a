package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/telemetry"
	"storefront/internal/testutil"
	"storefront/pkg/events"
)

var testAddress = models.ShippingAddress{
	FirstName:  "Ada",
	LastName:   "Lovelace",
	Street:     "12 Analytical Way",
	City:       "London",
	Country:    "UK",
	PostalCode: "N1 9GU",
}

// recordingPublisher keeps every envelope it is handed.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []events.Envelope
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, env)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, env := range p.sent {
		out[i] = env.EventType
	}
	return out
}

// failingDeleteCarts is a cart store whose Delete always fails.
type failingDeleteCarts struct {
	*repositories.MemoryCartRepository
}

func (failingDeleteCarts) Delete(context.Context, string) (bool, error) {
	return false, errors.New("cart store unavailable")
}

// faultyStore fails every transaction with the configured error.
type faultyStore struct {
	repositories.Store
	err error
}

func (s faultyStore) WithinTransaction(context.Context, func(tx repositories.Store) error) error {
	return s.err
}

type orderFixture struct {
	limits    services.OrderLimits
	db        *gorm.DB
	store     *repositories.GORMStore
	carts     *repositories.MemoryCartRepository
	publisher *recordingPublisher
	service   *services.OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	return newOrderFixtureWithLimits(t, defaultLimits)
}

func newOrderFixtureWithLimits(t *testing.T, limits services.OrderLimits) *orderFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	f := &orderFixture{
		limits:    limits,
		db:        db,
		store:     repositories.NewGORMStore(db),
		carts:     repositories.NewMemoryCartRepository(),
		publisher: &recordingPublisher{},
	}
	f.service = f.newService(f.store, f.carts, f.publisher)

	require.NoError(t, db.Create(&models.DeliveryMethod{
		ID:           1,
		ShortName:    "UPS1",
		Description:  "Fastest delivery time",
		DeliveryTime: "1-2 Days",
		Cost:         decimal.NewFromInt(10),
	}).Error)
	return f
}

func (f *orderFixture) newService(store repositories.Store, carts repositories.CartRepository, pub events.Publisher) *services.OrderService {
	return services.NewOrderService(store, carts, pub, services.OrderServiceConfig{
		Limits:  f.limits,
		BaseURL: "https://shop.example",
	}, telemetry.NewNopMetrics(), logger.Discard())
}

func (f *orderFixture) addProduct(t *testing.T, id, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:           id,
		Name:         name,
		PictureURL:   "images/products/" + id + ".png",
		Price:        decimal.RequireFromString(price),
		UnitsInStock: stock,
		Translations: []models.ProductTranslation{
			{LanguageCode: "de", Name: name + " (de)"},
		},
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *orderFixture) putCart(t *testing.T, id string, lines ...models.CartLine) {
	t.Helper()
	cart := models.NewCart(id)
	cart.Items = append(cart.Items, lines...)
	require.NoError(t, f.carts.Set(context.Background(), cart, time.Hour))
}

func (f *orderFixture) stock(t *testing.T, id string) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.Unscoped().First(&p, "id = ?", id).Error)
	return p.UnitsInStock
}

func (f *orderFixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func line(productID string, qty int) models.CartLine {
	return models.CartLine{ProductID: productID, ProductName: productID, Quantity: qty}
}

func orderInput(cartID string) services.CreateOrderInput {
	return services.CreateOrderInput{
		CartID:           cartID,
		DeliveryMethodID: 1,
		ShippingAddress:  testAddress,
		PaymentMethod:    models.PaymentMethodCashOnDelivery,
	}
}
