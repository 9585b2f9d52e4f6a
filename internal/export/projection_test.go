package export

import (
	"testing"
	"time"

	"example.com/backstage/services/visibility/internal/engine"
	"example.com/backstage/services/visibility/internal/models"

	"github.com/stretchr/testify/require"
)

func exportView() *engine.FilteredView {
	estimated := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	capacity := 5000.0

	return &engine.FilteredView{
		Data: models.SupplyChainData{
			Shipments: []models.Shipment{
				{
					ID:                "SHP-001",
					Origin:            "Shanghai",
					Destination:       "Rotterdam",
					Status:            models.ShipmentInTransit,
					EstimatedDelivery: estimated,
					Items:             []string{"bolts", "wire"},
					SupplierID:        "SUP-001",
				},
			},
			Inventory: []models.InventoryItem{
				{ID: "INV-001", Name: "Steel Bolts", Quantity: 500.5, Unit: "pcs", ReorderPoint: 100},
			},
			Suppliers: []models.Supplier{
				{ID: "SUP-001", Name: "Pacific Metals", PerformanceScore: 88.5, TotalShipments: 42},
			},
			Nodes: []models.Node{
				{ID: "NODE-001", Name: "Rotterdam Hub", Type: models.WarehouseNode, Status: models.NodeNormal, Capacity: &capacity},
			},
			Edges: []models.Edge{
				{ID: "EDGE-001", SourceNodeID: "NODE-001", TargetNodeID: "NODE-002", ShipmentIDs: []string{"SHP-001"}, Active: true},
			},
		},
	}
}

func cell(t *testing.T, table *Table, row []string, column string) string {
	t.Helper()
	for i, name := range table.Columns {
		if name == column {
			return row[i]
		}
	}
	t.Fatalf("column %s not found", column)
	return ""
}

func TestProjectOneRowPerEntity(t *testing.T) {
	table, err := Project(exportView(), 0)
	require.NoError(t, err)

	require.Len(t, table.Rows, 5)
	for _, row := range table.Rows {
		require.Len(t, row, len(table.Columns))
	}

	types := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		types = append(types, cell(t, table, row, "type"))
	}
	require.ElementsMatch(t, []string{"shipment", "inventory", "supplier", "node", "edge"}, types)
}

func TestProjectFieldFidelity(t *testing.T) {
	table, err := Project(exportView(), 0)
	require.NoError(t, err)

	shipmentRow := table.Rows[0]
	require.Equal(t, "shipment", cell(t, table, shipmentRow, "type"))
	require.Equal(t, "SHP-001", cell(t, table, shipmentRow, "id"))
	require.Equal(t, "Shanghai", cell(t, table, shipmentRow, "origin"))
	require.Equal(t, "in_transit", cell(t, table, shipmentRow, "status"))
	require.Equal(t, "2024-03-10T08:00:00Z", cell(t, table, shipmentRow, "estimated_delivery"))
	require.Equal(t, "bolts, wire", cell(t, table, shipmentRow, "items"))
	// No actual delivery recorded
	require.Equal(t, "", cell(t, table, shipmentRow, "actual_delivery"))
	// Columns from other entity types stay blank
	require.Equal(t, "", cell(t, table, shipmentRow, "quantity"))

	inventoryRow := table.Rows[1]
	require.Equal(t, "500.5", cell(t, table, inventoryRow, "quantity"))

	supplierRow := table.Rows[2]
	require.Equal(t, "88.5", cell(t, table, supplierRow, "performance_score"))
	require.Equal(t, "42", cell(t, table, supplierRow, "total_shipments"))

	nodeRow := table.Rows[3]
	require.Equal(t, "warehouse", cell(t, table, nodeRow, "node_type"))
	require.Equal(t, "5000", cell(t, table, nodeRow, "capacity"))
	// Latitude was never set
	require.Equal(t, "", cell(t, table, nodeRow, "latitude"))

	edgeRow := table.Rows[4]
	require.Equal(t, "true", cell(t, table, edgeRow, "active"))
	require.Equal(t, "SHP-001", cell(t, table, edgeRow, "shipment_ids"))
}

func TestProjectEmptyView(t *testing.T) {
	table, err := Project(&engine.FilteredView{}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, table.Columns)
	require.Empty(t, table.Rows)
}

func TestProjectRowCapExceeded(t *testing.T) {
	view := exportView()

	_, err := Project(view, 4)
	require.ErrorIs(t, err, ErrRowCapExceeded)

	// At exactly the cap the projection goes through
	table, err := Project(view, 5)
	require.NoError(t, err)
	require.Len(t, table.Rows, 5)
}
