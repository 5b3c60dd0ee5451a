package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create inserts the order and its item snapshots.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
		order.Items[i].LineNo = i + 1
	}
	if err := r.db.WithContext(ctx).Omit("DeliveryMethod").Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// itemsInLineOrder preloads order items in the order they were placed.
func itemsInLineOrder(db *gorm.DB) *gorm.DB {
	return db.Order("line_no")
}

func scopeOwner(owner string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner == "" {
			return db
		}
		return db.Where("user_id = ?", owner)
	}
}

// GetByID retrieves an order with its items and delivery method.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id, owner string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Scopes(scopeOwner(owner)).
		Preload("Items", itemsInLineOrder).
		Preload("DeliveryMethod").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// GetByIDForUpdate locks the order row and loads its items.
func (r *GORMOrderRepository) GetByIDForUpdate(ctx context.Context, id, owner string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(scopeOwner(owner)).
		Preload("Items", itemsInLineOrder).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock order %s: %w", id, err)
	}
	return &order, nil
}

func applyOrderFilter(db *gorm.DB, f OrderFilter) *gorm.DB {
	if f.OrderID != "" {
		db = db.Where("id = ?", f.OrderID)
	}
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.OrderStatus != "" {
		db = db.Where("order_status = ?", f.OrderStatus)
	}
	if f.PaymentStatus != "" {
		db = db.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.PaymentMethod != "" {
		db = db.Where("payment_method = ?", f.PaymentMethod)
	}
	if f.MinSubTotal != nil {
		db = db.Where("sub_total >= ?", *f.MinSubTotal)
	}
	if f.MaxSubTotal != nil {
		db = db.Where("sub_total <= ?", *f.MaxSubTotal)
	}
	if f.StartDate != nil {
		db = db.Where("order_date >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		db = db.Where("order_date <= ?", f.EndDate.UTC())
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		db = db.Where("LOWER(id) LIKE ? OR LOWER(shipping_first_name) LIKE ? OR LOWER(shipping_last_name) LIKE ?", like, like, like)
	}
	return db
}

// List returns one page of orders matching the filter.
func (r *GORMOrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	filter.Normalize()

	column := "order_date"
	if filter.SortBy == SortBySubTotal {
		column = "sub_total"
	}

	var orders []models.Order
	err := applyOrderFilter(r.db.WithContext(ctx).Model(&models.Order{}), filter).
		Preload("Items", itemsInLineOrder).
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: filter.SortDesc}).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Count returns the number of orders matching the filter, ignoring paging.
func (r *GORMOrderRepository) Count(ctx context.Context, filter OrderFilter) (int64, error) {
	var count int64
	if err := applyOrderFilter(r.db.WithContext(ctx).Model(&models.Order{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (r *GORMOrderRepository) updateColumns(ctx context.Context, id string, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateStatus updates the order status of an existing order.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"order_status": status})
}

// UpdatePaymentStatus updates the payment status of an existing order.
func (r *GORMOrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"payment_status": status})
}

// SetStatuses updates both statuses in one statement.
func (r *GORMOrderRepository) SetStatuses(ctx context.Context, id string, status models.OrderStatus, payment models.PaymentStatus) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"order_status":   status,
		"payment_status": payment,
	})
}

func (r *GORMOrderRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"checkout_session_id": sessionID})
}

type statusCount struct {
	Status string
	Count  int64
}

func (r *GORMOrderRepository) countGroupedBy(ctx context.Context, column string) ([]statusCount, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select(column + " AS status, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count orders by %s: %w", column, err)
	}
	return rows, nil
}

// CountByOrderStatus returns the number of orders per order status.
// Statuses with no orders are reported as zero.
func (r *GORMOrderRepository) CountByOrderStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	rows, err := r.countGroupedBy(ctx, "order_status")
	if err != nil {
		return nil, err
	}
	counts := make(map[models.OrderStatus]int64)
	for _, s := range models.OrderStatuses() {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[models.OrderStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// CountByPaymentStatus returns the number of orders per payment status.
func (r *GORMOrderRepository) CountByPaymentStatus(ctx context.Context) (map[models.PaymentStatus]int64, error) {
	rows, err := r.countGroupedBy(ctx, "payment_status")
	if err != nil {
		return nil, err
	}
	counts := make(map[models.PaymentStatus]int64)
	for _, s := range models.PaymentStatuses() {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[models.PaymentStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// completedOrders restricts a query joined with orders to delivered, paid orders.
func completedOrders(db *gorm.DB) *gorm.DB {
	return db.Where("orders.order_status = ? AND orders.payment_status = ?",
		models.OrderStatusDelivered, models.PaymentStatusReceived)
}

// SalesByProduct groups completed order lines by product and returns one
// page of the report together with the number of products sold.
func (r *GORMOrderRepository) SalesByProduct(ctx context.Context, filter SalesFilter) ([]ProductSales, int64, error) {
	filter.Normalize()

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Table("order_items").
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Scopes(completedOrders)
	}

	var total int64
	if err := base().Distinct("order_items.product_id").Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sold products: %w", err)
	}

	column := "units_sold"
	if filter.SortBy == SortByTotalSales {
		column = "total_sales"
	}

	var rows []ProductSales
	err := base().
		Select("order_items.product_id AS product_id, " +
			"MAX(order_items.product_name) AS product_name, " +
			"MAX(order_items.product_picture_url) AS picture_url, " +
			"SUM(order_items.quantity) AS units_sold, " +
			"SUM(order_items.quantity * order_items.unit_price) AS total_sales").
		Group("order_items.product_id").
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: !filter.Ascending}).
		Order("product_id").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to aggregate sales: %w", err)
	}
	return rows, total, nil
}

// Revenue sums the totals, delivery included, of completed orders.
func (r *GORMOrderRepository) Revenue(ctx context.Context, filter RevenueFilter) (decimal.Decimal, error) {
	db := r.db.WithContext(ctx).Model(&models.Order{}).
		Joins("LEFT JOIN delivery_methods ON delivery_methods.id = orders.delivery_method_id").
		Scopes(completedOrders)
	if filter.UserID != "" {
		db = db.Where("orders.user_id = ?", filter.UserID)
	}
	if filter.StartDate != nil {
		db = db.Where("orders.order_date >= ?", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		db = db.Where("orders.order_date <= ?", filter.EndDate.UTC())
	}

	var row struct {
		Revenue decimal.Decimal
	}
	err := db.Select("COALESCE(SUM(orders.sub_total + COALESCE(delivery_methods.cost, 0)), 0) AS revenue").
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return row.Revenue, nil
}
