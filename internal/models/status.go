package models

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// PaymentStatus is tracked independently of the order status.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PaymentPending"
	PaymentStatusReceived PaymentStatus = "PaymentReceived"
	PaymentStatusFailed   PaymentStatus = "PaymentFailed"
)

// PaymentMethod is how the customer chose to pay.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CashOnDelivery"
	PaymentMethodCard           PaymentMethod = "Card"
)

var nextOrderStatus = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:    {OrderStatusProcessing: true, OrderStatusCancelled: true},
	OrderStatusProcessing: {OrderStatusShipped: true, OrderStatusCancelled: true},
	OrderStatusShipped:    {OrderStatusDelivered: true},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

var nextPaymentStatus = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusPending:  {PaymentStatusReceived: true, PaymentStatusFailed: true},
	PaymentStatusReceived: {},
	PaymentStatusFailed:   {},
}

// OrderStatuses lists every order status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled}
}

// PaymentStatuses lists every payment status.
func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusPending, PaymentStatusReceived, PaymentStatusFailed}
}

func (s OrderStatus) Valid() bool {
	_, ok := nextOrderStatus[s]
	return ok
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return nextOrderStatus[s][next]
}

// Cancellable reports whether the order has not shipped yet.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransition(OrderStatusCancelled)
}

func (s PaymentStatus) Valid() bool {
	_, ok := nextPaymentStatus[s]
	return ok
}

func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	return nextPaymentStatus[s][next]
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCashOnDelivery || m == PaymentMethodCard
}
