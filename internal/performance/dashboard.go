package performance

import (
	"example.com/backstage/services/visibility/internal/models"
)

// DashboardMetrics holds the headline figures for a dataset snapshot
type DashboardMetrics struct {
	TotalShipments             int     `json:"total_shipments"`
	InTransitCount             int     `json:"in_transit_count"`
	DelayedCount               int     `json:"delayed_count"`
	DeliveredCount             int     `json:"delivered_count"`
	PendingCount               int     `json:"pending_count"`
	LowStockCount              int     `json:"low_stock_count"`
	TotalInventoryItems        int     `json:"total_inventory_items"`
	TotalSuppliers             int     `json:"total_suppliers"`
	AverageSupplierPerformance float64 `json:"average_supplier_performance"`
}

// ComputeDashboard calculates the dashboard metrics for a snapshot. The
// shipment counts partition the shipment set: every shipment is counted
// under exactly one status.
func ComputeDashboard(data models.SupplyChainData) DashboardMetrics {
	m := DashboardMetrics{
		TotalShipments:      len(data.Shipments),
		TotalInventoryItems: len(data.Inventory),
		TotalSuppliers:      len(data.Suppliers),
	}

	for _, s := range data.Shipments {
		switch s.Status {
		case models.ShipmentInTransit:
			m.InTransitCount++
		case models.ShipmentDelayed:
			m.DelayedCount++
		case models.ShipmentDelivered:
			m.DeliveredCount++
		case models.ShipmentPending:
			m.PendingCount++
		}
	}

	for _, item := range data.Inventory {
		if item.LowStock(item.ReorderPoint) {
			m.LowStockCount++
		}
	}

	if len(data.Suppliers) > 0 {
		var total float64
		for _, s := range data.Suppliers {
			total += s.PerformanceScore
		}
		m.AverageSupplierPerformance = total / float64(len(data.Suppliers))
	}

	return m
}
