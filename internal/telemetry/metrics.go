package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrderMetrics holds Prometheus metrics for order placement and inventory.
type OrderMetrics struct {
	// Orders
	OrdersCreated      prometheus.Counter
	OrderValue         prometheus.Histogram
	OrderItemCount     prometheus.Histogram
	OrderRejections    *prometheus.CounterVec
	OrdersCancelled    prometheus.Counter
	CancelRejections   *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
	StoreFaults        *prometheus.CounterVec
	ReservationSeconds prometheus.Histogram

	// Post-commit side effects
	CartCleanupFailures prometheus.Counter
	EventPublishFailed  *prometheus.CounterVec

	// Cart
	CartUpdates *prometheus.CounterVec

	// Checkout
	CheckoutSessions *prometheus.CounterVec
}

// NewOrderMetrics creates the metrics and registers them with reg.
func NewOrderMetrics(reg prometheus.Registerer, namespace string) *OrderMetrics {
	if namespace == "" {
		namespace = "storefront"
	}
	factory := promauto.With(reg)
	subsystem := "orders"

	return &OrderMetrics{
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "created_total",
			Help:      "Total orders committed",
		}),
		OrderValue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "value",
			Help:      "Order subtotal at placement",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		OrderItemCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "item_count",
			Help:      "Distinct products per order",
			Buckets:   []float64{1, 2, 3, 5, 10, 20},
		}),
		OrderRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_total",
			Help:      "Order placements rejected by a business rule",
		}, []string{"reason"}),
		OrdersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cancelled_total",
			Help:      "Total orders cancelled with stock restored",
		}),
		CancelRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cancel_rejected_total",
			Help:      "Cancellations rejected by a business rule",
		}, []string{"reason"}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "status_transitions_total",
			Help:      "Admin status changes applied",
		}, []string{"kind", "to"}), // kind: order, payment
		StoreFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_faults_total",
			Help:      "Store errors surfaced to callers",
		}, []string{"operation", "code"}),
		ReservationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reservation_duration_seconds",
			Help:      "Time spent inside the order placement transaction",
			Buckets:   prometheus.DefBuckets,
		}),
		CartCleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cart_cleanup_failures_total",
			Help:      "Carts that could not be deleted after a committed order",
		}),
		EventPublishFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "event_publish_failed_total",
			Help:      "Order events that could not be published",
		}, []string{"event_type"}),
		CartUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "updates_total",
			Help:      "Cart mutations by action",
		}, []string{"action"}), // action: add, remove, update_quantity, delete
		CheckoutSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "sessions_total",
			Help:      "Checkout session operations by outcome",
		}, []string{"operation", "outcome"}),
	}
}

// NewNopMetrics returns metrics registered with a throwaway registry.
func NewNopMetrics() *OrderMetrics {
	return NewOrderMetrics(prometheus.NewRegistry(), "")
}
