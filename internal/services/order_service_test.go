package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/events"
)

var wideLimits = services.OrderLimits{MaxOrderRate: 1.0, MaxOrderQuantityCap: 100}

func TestOrderService_CreateOrder_ReservesStock(t *testing.T) {
	f := newOrderFixtureWithLimits(t, wideLimits)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.addProduct(t, "prod-y", "Product Y", "25.00", 5)
	f.putCart(t, "cart-a", line("prod-x", 3), line("prod-y", 1))

	result, err := f.service.CreateOrder(ctx, orderInput("cart-a"), "user-1")
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	assert.NotEmpty(t, result.OrderID)

	assert.Equal(t, 7, f.stock(t, "prod-x"))
	assert.Equal(t, 4, f.stock(t, "prod-y"))

	cart, err := f.carts.Get(ctx, "cart-a")
	require.NoError(t, err)
	assert.Nil(t, cart, "cart should be deleted after the order commits")

	order, err := f.service.GetOrder(ctx, result.OrderID, "user-1")
	require.NoError(t, err)
	assert.True(t, order.SubTotal.Equal(decimal.NewFromInt(55)), order.SubTotal.String())
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, testAddress, order.ShippingAddress)
	assert.True(t, order.Total().Equal(decimal.NewFromInt(65)), order.Total().String())
	require.Len(t, order.Items, 2)

	byProduct := map[string]models.OrderItem{}
	for _, item := range order.Items {
		byProduct[item.Product.ID] = item
	}
	x := byProduct["prod-x"]
	assert.Equal(t, "Product X", x.Product.Name)
	assert.Equal(t, "https://shop.example/images/products/prod-x.png", x.Product.PictureURL)
	assert.Equal(t, "Product X (de)", x.LocalizedName("de"))
	assert.Equal(t, 3, x.Quantity)
	assert.True(t, x.UnitPrice.Equal(decimal.NewFromInt(10)))

	assert.Equal(t, []string{events.EventOrderCreated}, f.publisher.types())
	payload, err := events.UnwrapPayload[events.OrderCreatedPayload](f.publisher.sent[0])
	require.NoError(t, err)
	assert.Equal(t, result.OrderID, payload.OrderID)
	assert.Equal(t, "55.00", payload.SubTotal)
	assert.Len(t, payload.Items, 2)
}

func TestOrderService_CreateOrder_OutOfStockRollsBack(t *testing.T) {
	f := newOrderFixtureWithLimits(t, wideLimits)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.addProduct(t, "prod-y", "Product Y", "25.00", 0)
	f.putCart(t, "cart-b", line("prod-x", 3), line("prod-y", 1))

	result, err := f.service.CreateOrder(ctx, orderInput("cart-b"), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ReasonOutOfStock, result.Reason)
	assert.Contains(t, result.Message, "Product Y")

	assert.Equal(t, 10, f.stock(t, "prod-x"), "earlier line must be rolled back")
	assert.Equal(t, 0, f.stock(t, "prod-y"))
	assert.Zero(t, f.orderCount(t))

	cart, err := f.carts.Get(ctx, "cart-b")
	require.NoError(t, err)
	assert.NotNil(t, cart, "a rejected order keeps the cart")
	assert.Empty(t, f.publisher.types())
}

func TestOrderService_CancelOrder_RestoresStock(t *testing.T) {
	f := newOrderFixtureWithLimits(t, wideLimits)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.addProduct(t, "prod-y", "Product Y", "25.00", 5)
	f.putCart(t, "cart-c", line("prod-x", 3), line("prod-y", 1))

	created, err := f.service.CreateOrder(ctx, orderInput("cart-c"), "user-1")
	require.NoError(t, err)
	require.True(t, created.Success)

	result, err := f.service.CancelOrder(ctx, created.OrderID, "user-1")
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)

	assert.Equal(t, 10, f.stock(t, "prod-x"))
	assert.Equal(t, 5, f.stock(t, "prod-y"))

	order, err := f.service.GetOrder(ctx, created.OrderID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)

	assert.Equal(t, []string{events.EventOrderCreated, events.EventOrderCancelled}, f.publisher.types())
	payload, err := events.UnwrapPayload[events.OrderCancelledPayload](f.publisher.sent[1])
	require.NoError(t, err)
	assert.ElementsMatch(t, []events.ItemQty{{ProductID: "prod-x", Qty: 3}, {ProductID: "prod-y", Qty: 1}}, payload.Restock)
}

func TestOrderService_CreateOrder_QuantityExceedsLimit(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.putCart(t, "cart-d", line("prod-x", 6))

	result, err := f.service.CreateOrder(ctx, orderInput("cart-d"), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ReasonQuantityExceedsLimit, result.Reason)
	assert.Contains(t, result.Message, "at most 5")
	assert.Equal(t, 10, f.stock(t, "prod-x"))
	assert.Zero(t, f.orderCount(t))
}

func TestOrderService_CreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, f *orderFixture) services.CreateOrderInput
		reason domain.Reason
	}{
		{
			name: "missing cart",
			setup: func(t *testing.T, f *orderFixture) services.CreateOrderInput {
				return orderInput("nope")
			},
			reason: domain.ReasonCartNotFound,
		},
		{
			name: "empty cart",
			setup: func(t *testing.T, f *orderFixture) services.CreateOrderInput {
				f.putCart(t, "empty")
				return orderInput("empty")
			},
			reason: domain.ReasonCartEmpty,
		},
		{
			name: "unknown delivery method",
			setup: func(t *testing.T, f *orderFixture) services.CreateOrderInput {
				f.addProduct(t, "prod-x", "Product X", "10.00", 10)
				f.putCart(t, "cart", line("prod-x", 1))
				input := orderInput("cart")
				input.DeliveryMethodID = 99
				return input
			},
			reason: domain.ReasonDeliveryUnavailable,
		},
		{
			name: "product no longer exists",
			setup: func(t *testing.T, f *orderFixture) services.CreateOrderInput {
				f.putCart(t, "cart", line("ghost", 1))
				return orderInput("cart")
			},
			reason: domain.ReasonProductNotFound,
		},
		{
			name: "zero quantity line",
			setup: func(t *testing.T, f *orderFixture) services.CreateOrderInput {
				f.addProduct(t, "prod-x", "Product X", "10.00", 10)
				f.putCart(t, "cart", line("prod-x", 0))
				return orderInput("cart")
			},
			reason: domain.ReasonInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t)
			input := tt.setup(t, f)

			result, err := f.service.CreateOrder(context.Background(), input, "user-1")
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.Equal(t, tt.reason, result.Reason)
			assert.NotEmpty(t, result.Message)
			assert.Zero(t, f.orderCount(t))
		})
	}
}

func TestOrderService_CreateOrder_InvalidPaymentMethod(t *testing.T) {
	f := newOrderFixture(t)
	input := orderInput("cart")
	input.PaymentMethod = "Barter"

	_, err := f.service.CreateOrder(context.Background(), input, "user-1")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestOrderService_CreateOrder_MergesDuplicateLines(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	// 3 + 3 exceeds the limit of 5 even though each line alone fits.
	f.putCart(t, "dup", line("prod-x", 3), line("prod-x", 3))

	result, err := f.service.CreateOrder(ctx, orderInput("dup"), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ReasonQuantityExceedsLimit, result.Reason)
	assert.Equal(t, 10, f.stock(t, "prod-x"))

	f.putCart(t, "dup-ok", line("prod-x", 2), line("prod-x", 2))
	result, err = f.service.CreateOrder(ctx, orderInput("dup-ok"), "user-1")
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, 6, f.stock(t, "prod-x"))

	order, err := f.service.GetOrder(ctx, result.OrderID, "user-1")
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 4, order.Items[0].Quantity)
}

func TestOrderService_CreateOrder_CartCleanupFailureStillSucceeds(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.putCart(t, "cart", line("prod-x", 2))

	service := f.newService(f.store, failingDeleteCarts{f.carts}, f.publisher)
	result, err := service.CreateOrder(ctx, orderInput("cart"), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 8, f.stock(t, "prod-x"))
	assert.EqualValues(t, 1, f.orderCount(t))
}

func TestOrderService_CreateOrder_PublishFailureStillSucceeds(t *testing.T) {
	f := newOrderFixture(t)
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.putCart(t, "cart", line("prod-x", 1))
	f.publisher.err = errors.New("broker down")

	result, err := f.service.CreateOrder(context.Background(), orderInput("cart"), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 9, f.stock(t, "prod-x"))
}

func TestOrderService_CreateOrder_StoreFaults(t *testing.T) {
	f := newOrderFixture(t)
	f.putCart(t, "cart", line("prod-x", 1))

	transient := f.newService(faultyStore{Store: f.store, err: context.DeadlineExceeded}, f.carts, f.publisher)
	_, err := transient.CreateOrder(context.Background(), orderInput("cart"), "user-1")
	assert.Equal(t, domain.ETRANSIENT, domain.ErrorCode(err))

	broken := f.newService(faultyStore{Store: f.store, err: errors.New("disk full")}, f.carts, f.publisher)
	_, err = broken.CreateOrder(context.Background(), orderInput("cart"), "user-1")
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.NotContains(t, domain.ErrorMessage(err), "disk full")

	cart, getErr := f.carts.Get(context.Background(), "cart")
	require.NoError(t, getErr)
	assert.NotNil(t, cart)
}

func TestOrderService_CreateOrder_ConcurrentOrdersNeverOversell(t *testing.T) {
	f := newOrderFixtureWithLimits(t, wideLimits)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 5)

	const buyers = 12
	for i := 0; i < buyers; i++ {
		f.putCart(t, fmt.Sprintf("cart-%d", i), line("prod-x", 1))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.service.CreateOrder(ctx, orderInput(fmt.Sprintf("cart-%d", i)), fmt.Sprintf("user-%d", i))
			if err != nil || !result.Success {
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, f.stock(t, "prod-x"))
	assert.EqualValues(t, 5, f.orderCount(t))
}

func TestOrderService_CancelOrder_Rejections(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.putCart(t, "cart", line("prod-x", 2))
	created, err := f.service.CreateOrder(ctx, orderInput("cart"), "user-1")
	require.NoError(t, err)
	require.True(t, created.Success)

	t.Run("unknown order", func(t *testing.T) {
		result, err := f.service.CancelOrder(ctx, "missing", "user-1")
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, domain.ReasonNotCancellable, result.Reason)
	})

	t.Run("someone else's order", func(t *testing.T) {
		result, err := f.service.CancelOrder(ctx, created.OrderID, "user-2")
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, domain.ReasonNotCancellable, result.Reason)
		assert.Equal(t, 8, f.stock(t, "prod-x"))
	})

	t.Run("second cancel does not restock twice", func(t *testing.T) {
		first, err := f.service.CancelOrder(ctx, created.OrderID, "user-1")
		require.NoError(t, err)
		require.True(t, first.Success)

		second, err := f.service.CancelOrder(ctx, created.OrderID, "user-1")
		require.NoError(t, err)
		assert.False(t, second.Success)
		assert.Equal(t, domain.ReasonNotCancellable, second.Reason)
		assert.Equal(t, 10, f.stock(t, "prod-x"))
	})
}

func TestOrderService_CancelOrder_ShippedOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.putCart(t, "cart", line("prod-x", 2))
	created, err := f.service.CreateOrder(ctx, orderInput("cart"), "user-1")
	require.NoError(t, err)

	for _, next := range []models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped} {
		_, err := f.service.UpdateOrderStatus(ctx, created.OrderID, next)
		require.NoError(t, err)
	}

	result, err := f.service.CancelOrder(ctx, created.OrderID, "user-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ReasonNotCancellable, result.Reason)
	assert.Contains(t, result.Message, "Shipped")
	assert.Equal(t, 8, f.stock(t, "prod-x"))
}

func TestOrderService_CancelOrder_MissingProductFailsClosed(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 10)
	f.addProduct(t, "prod-y", "Product Y", "25.00", 10)
	f.putCart(t, "cart", line("prod-x", 2), line("prod-y", 3))
	created, err := f.service.CreateOrder(ctx, orderInput("cart"), "user-1")
	require.NoError(t, err)
	require.True(t, created.Success)

	require.NoError(t, repositories.NewGORMProductRepository(f.db).Delete(ctx, "prod-y"))

	result, err := f.service.CancelOrder(ctx, created.OrderID, "user-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ReasonProductLinkMissing, result.Reason)
	assert.Contains(t, result.Message, "Product Y")

	assert.Equal(t, 8, f.stock(t, "prod-x"), "restoration is all or nothing")
	assert.Equal(t, 7, f.stock(t, "prod-y"))

	order, err := f.service.GetOrder(ctx, created.OrderID, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
}

func TestOrderService_ConservationAcrossCycles(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.addProduct(t, "prod-x", "Product X", "10.00", 20)

	for i := 0; i < 3; i++ {
		cartID := fmt.Sprintf("cart-%d", i)
		f.putCart(t, cartID, line("prod-x", 2))
		created, err := f.service.CreateOrder(ctx, orderInput(cartID), "user-1")
		require.NoError(t, err)
		require.True(t, created.Success)
		if i != 1 {
			cancelled, err := f.service.CancelOrder(ctx, created.OrderID, "user-1")
			require.NoError(t, err)
			require.True(t, cancelled.Success)
		}
	}

	// Only the middle order stays live.
	assert.Equal(t, 18, f.stock(t, "prod-x"))
}
