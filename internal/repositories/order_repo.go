package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
// An empty owner means the lookup is not scoped to a user.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id, owner string) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, id, owner string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	Count(ctx context.Context, filter OrderFilter) (int64, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
	SetStatuses(ctx context.Context, id string, status models.OrderStatus, payment models.PaymentStatus) error
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
	CountByOrderStatus(ctx context.Context) (map[models.OrderStatus]int64, error)
	CountByPaymentStatus(ctx context.Context) (map[models.PaymentStatus]int64, error)
	SalesByProduct(ctx context.Context, filter SalesFilter) ([]ProductSales, int64, error)
	Revenue(ctx context.Context, filter RevenueFilter) (decimal.Decimal, error)
	// Orders are never deleted.
}

const (
	SortByOrderDate = "orderDate"
	SortBySubTotal  = "subTotal"

	DefaultPageSize = 10
	MaxPageSize     = 50
)

// OrderFilter narrows order listings. Zero values are ignored.
type OrderFilter struct {
	OrderID       string
	UserID        string
	OrderStatus   models.OrderStatus
	PaymentStatus models.PaymentStatus
	PaymentMethod models.PaymentMethod
	MinSubTotal   *decimal.Decimal
	MaxSubTotal   *decimal.Decimal
	StartDate     *time.Time
	EndDate       *time.Time
	Search        string // matches order id or the customer's name

	SortBy   string
	SortDesc bool
	Page     int
	PageSize int
}

// Normalize clamps paging to sane bounds and defaults the sort order.
func (f *OrderFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if f.SortBy != SortBySubTotal {
		f.SortBy = SortByOrderDate
	}
}

func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

const (
	SortByUnitsSold  = "unitsSold"
	SortByTotalSales = "totalSales"
)

// ProductSales aggregates the completed order lines of one product.
type ProductSales struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	PictureURL  string          `json:"pictureUrl"`
	UnitsSold   int64           `json:"unitsSold"`
	TotalSales  decimal.Decimal `json:"totalSales"`
}

// SalesFilter pages and sorts the sales report. Only orders that were
// delivered and paid count as sales. Sorting is descending unless Ascending.
type SalesFilter struct {
	SortBy    string
	Ascending bool
	Page      int
	PageSize  int
}

func (f *SalesFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if f.SortBy != SortByTotalSales {
		f.SortBy = SortByUnitsSold
	}
}

func (f SalesFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// RevenueFilter narrows the revenue sum. Zero values are ignored.
type RevenueFilter struct {
	UserID    string
	StartDate *time.Time
	EndDate   *time.Time
}
