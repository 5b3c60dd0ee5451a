package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront/internal/models"
	"storefront/internal/testutil"
)

func seedProduct(t *testing.T, db *gorm.DB, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:         "Test Laptop",
		Price:        decimal.RequireFromString("1000.00"),
		UnitsInStock: stock,
		Translations: []models.ProductTranslation{{LanguageCode: "de", Name: "Testnotebook"}},
	}
	require.NoError(t, NewGORMProductRepository(db).Create(context.Background(), p))
	return p
}

func TestProductRepository_DecrementStockGuard(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGORMProductRepository(db)
	ctx := context.Background()
	p := seedProduct(t, db, 5)

	require.NoError(t, repo.DecrementStock(ctx, p.ID, 3))

	err := repo.DecrementStock(ctx, p.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UnitsInStock)

	require.NoError(t, repo.IncrementStock(ctx, p.ID, 3))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.UnitsInStock)
}

func TestProductRepository_GetForUpdateLoadsTranslations(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := seedProduct(t, db, 5)

	var locked *models.Product
	err := NewGORMStore(db).WithinTransaction(context.Background(), func(tx Store) error {
		var err error
		locked, err = tx.Products().GetForUpdate(context.Background(), p.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"de": "Testnotebook"}, locked.NameTranslations())
}

func TestProductRepository_SoftDeleteHidesProduct(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGORMProductRepository(db)
	ctx := context.Background()
	p := seedProduct(t, db, 5)

	require.NoError(t, repo.Delete(ctx, p.ID))

	_, err := repo.GetForUpdate(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrNotFound)
	assert.ErrorIs(t, repo.IncrementStock(ctx, p.ID, 1), ErrNotFound)
}

func TestProductRepository_UpdateReplacesTranslations(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewGORMProductRepository(db)
	ctx := context.Background()
	p := seedProduct(t, db, 5)

	p.Name = "Renamed Laptop"
	p.UnitsInStock = 0
	p.Translations = []models.ProductTranslation{{LanguageCode: "id", Name: "Laptop Baru"}}
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Laptop", got.Name)
	assert.Equal(t, 0, got.UnitsInStock)
	assert.Equal(t, map[string]string{"id": "Laptop Baru"}, got.NameTranslations())

	missing := &models.Product{ID: "00000000-0000-4000-8000-000000000000", Name: "Ghost"}
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrNotFound)
}

func TestStore_WithinTransactionRollsBack(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, db, 5)
	store := NewGORMStore(db)

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(tx Store) error {
		if err := tx.Products().DecrementStock(ctx, p.ID, 4); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.UnitsInStock)
}

func newOrder(userID string, status models.OrderStatus, subTotal string, at time.Time) *models.Order {
	return &models.Order{
		UserID:           userID,
		DeliveryMethodID: 1,
		ShippingAddress:  models.ShippingAddress{FirstName: "Ada", LastName: "Lovelace", Street: "1 Main", City: "London", Country: "UK"},
		PaymentMethod:    models.PaymentMethodCard,
		SubTotal:         decimal.RequireFromString(subTotal),
		OrderStatus:      status,
		PaymentStatus:    models.PaymentStatusPending,
		OrderDate:        at,
		Items: []models.OrderItem{{
			Product:   models.ProductItem{ID: "p1", Name: "Laptop", NameTranslations: map[string]string{"de": "Notebook"}},
			UnitPrice: decimal.RequireFromString(subTotal),
			Quantity:  1,
		}},
	}
}

func TestOrderRepository_CreateAndScopedGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.DeliveryMethod{ID: 1, ShortName: "UPS1", Cost: decimal.NewFromInt(10)}).Error)
	repo := NewGORMOrderRepository(db)

	order := newOrder("user-a", models.OrderStatusPending, "100", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, order))
	assert.NotEmpty(t, order.ID)
	assert.NotEmpty(t, order.Items[0].ID)

	got, err := repo.GetByID(ctx, order.ID, "user-a")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Notebook", got.Items[0].LocalizedName("de"))
	assert.Equal(t, "Laptop", got.Items[0].LocalizedName("fr"))
	require.NotNil(t, got.DeliveryMethod)
	assert.True(t, decimal.NewFromInt(110).Equal(got.Total()))

	_, err = repo.GetByID(ctx, order.ID, "user-b")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByIDForUpdate(ctx, order.ID, "")
	assert.NoError(t, err)
}

func TestOrderRepository_ListFiltersAndCounts(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.DeliveryMethod{ID: 1, ShortName: "UPS1"}).Error)
	repo := NewGORMOrderRepository(db)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newOrder("user-a", models.OrderStatusPending, "50", base)))
	require.NoError(t, repo.Create(ctx, newOrder("user-a", models.OrderStatusShipped, "150", base.Add(24*time.Hour))))
	require.NoError(t, repo.Create(ctx, newOrder("user-b", models.OrderStatusPending, "300", base.Add(48*time.Hour))))

	orders, err := repo.List(ctx, OrderFilter{UserID: "user-a", SortBy: SortBySubTotal, SortDesc: true})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.True(t, decimal.NewFromInt(150).Equal(orders[0].SubTotal))

	minTotal := decimal.NewFromInt(100)
	count, err := repo.Count(ctx, OrderFilter{MinSubTotal: &minTotal, OrderStatus: models.OrderStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	start := base.Add(12 * time.Hour)
	count, err = repo.Count(ctx, OrderFilter{StartDate: &start})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	page, err := repo.List(ctx, OrderFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	byStatus, err := repo.CountByOrderStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, byStatus[models.OrderStatusPending])
	assert.EqualValues(t, 1, byStatus[models.OrderStatusShipped])
	assert.EqualValues(t, 0, byStatus[models.OrderStatusCancelled])

	byPayment, err := repo.CountByPaymentStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, byPayment[models.PaymentStatusPending])
}

func TestOrderRepository_StatusUpdates(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.DeliveryMethod{ID: 1, ShortName: "UPS1"}).Error)
	repo := NewGORMOrderRepository(db)

	order := newOrder("user-a", models.OrderStatusPending, "10", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.SetStatuses(ctx, order.ID, models.OrderStatusCancelled, models.PaymentStatusFailed))
	require.NoError(t, repo.SetCheckoutSession(ctx, order.ID, "cs_test_1"))

	got, err := repo.GetByID(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.OrderStatus)
	assert.Equal(t, models.PaymentStatusFailed, got.PaymentStatus)
	assert.Equal(t, "cs_test_1", got.CheckoutSessionID)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", models.OrderStatusShipped), ErrNotFound)
}

func TestOrderRepository_ItemsKeepCartOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.DeliveryMethod{ID: 1, ShortName: "UPS1"}).Error)
	repo := NewGORMOrderRepository(db)

	order := newOrder("user-a", models.OrderStatusPending, "60", time.Now().UTC())
	order.Items = nil
	for _, id := range []string{"p-z", "p-a", "p-m", "p-b"} {
		order.Items = append(order.Items, models.OrderItem{
			ID:        "ffffffff-0000-4000-8000-" + fmt.Sprintf("%012d", 4-len(order.Items)),
			Product:   models.ProductItem{ID: id, Name: id},
			UnitPrice: decimal.NewFromInt(15),
			Quantity:  1,
		})
	}
	require.NoError(t, repo.Create(ctx, order))

	want := []string{"p-z", "p-a", "p-m", "p-b"}
	productIDs := func(items []models.OrderItem) []string {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.Product.ID
		}
		return ids
	}

	got, err := repo.GetByID(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, want, productIDs(got.Items))
	assert.Equal(t, 1, got.Items[0].LineNo)

	locked, err := repo.GetByIDForUpdate(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, want, productIDs(locked.Items))

	listed, err := repo.List(ctx, OrderFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, want, productIDs(listed[0].Items))
}

func completedOrder(userID string, at time.Time, lines ...models.OrderItem) *models.Order {
	order := newOrder(userID, models.OrderStatusDelivered, "0", at)
	order.PaymentStatus = models.PaymentStatusReceived
	order.Items = lines
	subTotal := decimal.Zero
	for _, line := range lines {
		subTotal = subTotal.Add(line.LineTotal())
	}
	order.SubTotal = subTotal
	return order
}

func soldLine(productID, name string, price int64, qty int) models.OrderItem {
	return models.OrderItem{
		Product:   models.ProductItem{ID: productID, Name: name, PictureURL: "/images/" + productID + ".png"},
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  qty,
	}
}

func TestOrderRepository_SalesAndRevenue(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.DeliveryMethod{ID: 1, ShortName: "UPS1", Cost: decimal.NewFromInt(10)}).Error)
	repo := NewGORMOrderRepository(db)

	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, completedOrder("user-a", base,
		soldLine("laptop", "Laptop", 1000, 1), soldLine("mouse", "Mouse", 20, 5))))
	require.NoError(t, repo.Create(ctx, completedOrder("user-b", base.Add(72*time.Hour),
		soldLine("mouse", "Mouse", 20, 2), soldLine("cable", "Cable", 5, 4))))

	// Neither of these counts as a sale.
	unpaid := completedOrder("user-a", base, soldLine("laptop", "Laptop", 1000, 9))
	unpaid.PaymentStatus = models.PaymentStatusPending
	require.NoError(t, repo.Create(ctx, unpaid))
	shipped := completedOrder("user-a", base, soldLine("cable", "Cable", 5, 50))
	shipped.OrderStatus = models.OrderStatusShipped
	require.NoError(t, repo.Create(ctx, shipped))

	t.Run("default sort is units sold descending", func(t *testing.T) {
		rows, total, err := repo.SalesByProduct(ctx, SalesFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, rows, 3)
		assert.Equal(t, "mouse", rows[0].ProductID)
		assert.Equal(t, "Mouse", rows[0].ProductName)
		assert.Equal(t, "/images/mouse.png", rows[0].PictureURL)
		assert.EqualValues(t, 7, rows[0].UnitsSold)
		assert.True(t, decimal.NewFromInt(140).Equal(rows[0].TotalSales), rows[0].TotalSales.String())
		assert.Equal(t, "cable", rows[1].ProductID)
		assert.Equal(t, "laptop", rows[2].ProductID)
	})

	t.Run("total sales ascending", func(t *testing.T) {
		rows, _, err := repo.SalesByProduct(ctx, SalesFilter{SortBy: SortByTotalSales, Ascending: true})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"cable", "mouse", "laptop"}, []string{rows[0].ProductID, rows[1].ProductID, rows[2].ProductID})
		assert.True(t, decimal.NewFromInt(1000).Equal(rows[2].TotalSales))
	})

	t.Run("paging keeps the full count", func(t *testing.T) {
		rows, total, err := repo.SalesByProduct(ctx, SalesFilter{Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, rows, 1)
		assert.Equal(t, "laptop", rows[0].ProductID)
	})

	t.Run("revenue includes delivery", func(t *testing.T) {
		revenue, err := repo.Revenue(ctx, RevenueFilter{})
		require.NoError(t, err)
		// (1000 + 100 + 10) + (40 + 20 + 10)
		assert.True(t, decimal.NewFromInt(1180).Equal(revenue), revenue.String())

		revenue, err = repo.Revenue(ctx, RevenueFilter{UserID: "user-b"})
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(70).Equal(revenue), revenue.String())

		start := base.Add(24 * time.Hour)
		revenue, err = repo.Revenue(ctx, RevenueFilter{StartDate: &start})
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(70).Equal(revenue), revenue.String())

		revenue, err = repo.Revenue(ctx, RevenueFilter{UserID: "nobody"})
		require.NoError(t, err)
		assert.True(t, revenue.IsZero())
	})
}
