package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics records stock ledger activity.
type InventoryMetrics struct {
	movements     *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	alertSuccess  prometheus.Counter
	alertFailure  prometheus.Counter
	stockQuantity *prometheus.GaugeVec
}

// NewInventoryMetrics registers the stock ledger metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Committed stock movements by movement type.",
	}, []string{"type"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_update_rejections_total",
		Help: "Rejected stock updates by error code.",
	}, []string{"code"})
	alertSuccess := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Low-stock alerts dispatched successfully.",
	})
	alertFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alert_failures_total",
		Help: "Low-stock alert dispatches that failed.",
	})
	stockQuantity := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "product_stock_quantity",
		Help: "Last committed stock quantity per product.",
	}, []string{"product_id"})
	reg.MustRegister(movements, rejections, alertSuccess, alertFailure, stockQuantity)
	return &InventoryMetrics{
		movements:     movements,
		rejections:    rejections,
		alertSuccess:  alertSuccess,
		alertFailure:  alertFailure,
		stockQuantity: stockQuantity,
	}
}

// IncMovement counts a committed movement of the given type.
func (m *InventoryMetrics) IncMovement(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

// IncRejection counts a rejected update by error code.
func (m *InventoryMetrics) IncRejection(code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncAlertSuccess counts a delivered low-stock alert.
func (m *InventoryMetrics) IncAlertSuccess() {
	if m == nil || m.alertSuccess == nil {
		return
	}
	m.alertSuccess.Inc()
}

// IncAlertFailure counts a failed low-stock alert dispatch.
func (m *InventoryMetrics) IncAlertFailure() {
	if m == nil || m.alertFailure == nil {
		return
	}
	m.alertFailure.Inc()
}

// SetStockQuantity records the last committed quantity for a product.
func (m *InventoryMetrics) SetStockQuantity(productID string, quantity int) {
	if m == nil || m.stockQuantity == nil {
		return
	}
	m.stockQuantity.WithLabelValues(normalizeLabel(productID)).Set(float64(quantity))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
