package performance

import (
	"testing"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/stretchr/testify/require"
)

func TestComputeDashboardPartitionsShipments(t *testing.T) {
	data := models.SupplyChainData{
		Shipments: []models.Shipment{
			{ID: "SHP-001", Status: models.ShipmentInTransit},
			{ID: "SHP-002", Status: models.ShipmentInTransit},
			{ID: "SHP-003", Status: models.ShipmentDelayed},
			{ID: "SHP-004", Status: models.ShipmentDelivered},
			{ID: "SHP-005", Status: models.ShipmentPending},
		},
		Inventory: []models.InventoryItem{
			{ID: "INV-001", Quantity: 20, ReorderPoint: 100},
			{ID: "INV-002", Quantity: 200, ReorderPoint: 100},
		},
		Suppliers: []models.Supplier{
			{ID: "SUP-001", PerformanceScore: 80},
			{ID: "SUP-002", PerformanceScore: 60},
		},
	}

	m := ComputeDashboard(data)

	require.Equal(t, 5, m.TotalShipments)
	require.Equal(t, 2, m.InTransitCount)
	require.Equal(t, 1, m.DelayedCount)
	require.Equal(t, 1, m.DeliveredCount)
	require.Equal(t, 1, m.PendingCount)
	// The status counts partition the shipment set
	require.Equal(t, m.TotalShipments, m.InTransitCount+m.DelayedCount+m.DeliveredCount+m.PendingCount)

	require.Equal(t, 1, m.LowStockCount)
	require.Equal(t, 2, m.TotalInventoryItems)
	require.Equal(t, 2, m.TotalSuppliers)
	require.Equal(t, 70.0, m.AverageSupplierPerformance)
}

func TestComputeDashboardEmptySnapshot(t *testing.T) {
	m := ComputeDashboard(models.SupplyChainData{})

	require.Equal(t, 0, m.TotalShipments)
	require.Equal(t, 0, m.LowStockCount)
	require.Equal(t, 0.0, m.AverageSupplierPerformance)
}
