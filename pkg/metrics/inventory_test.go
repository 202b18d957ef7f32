package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestInventoryMetricsExportsCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewInventoryMetrics(reg)

	metrics.IncMovement("stock_in")
	metrics.IncMovement("stock_in")
	metrics.IncRejection("INSUFFICIENT_STOCK")
	metrics.IncAlertSuccess()
	metrics.IncAlertFailure()
	metrics.SetStockQuantity("p1", 42)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "stock_movements_total", "type", "stock_in"); err != nil {
		t.Fatalf("fetch movements: %v", err)
	} else if got != 2 {
		t.Fatalf("expected movements=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stock_update_rejections_total", "code", "INSUFFICIENT_STOCK"); err != nil {
		t.Fatalf("fetch rejections: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejections=1, got %f", got)
	}

	if got, err := fetchGaugeValue(mfs, "product_stock_quantity", "product_id", "p1"); err != nil {
		t.Fatalf("fetch gauge: %v", err)
	} else if got != 42 {
		t.Fatalf("expected quantity=42, got %f", got)
	}
}

func TestInventoryMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewInventoryMetrics(nil)
	metrics.IncMovement("stock_out")
	metrics.IncRejection("NOT_FOUND")
	metrics.IncAlertSuccess()
	metrics.IncAlertFailure()
	metrics.SetStockQuantity("p1", 1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetGauge().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("gauge %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
