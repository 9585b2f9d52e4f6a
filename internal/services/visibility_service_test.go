package services

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/visibility/config"
	"example.com/backstage/services/visibility/internal/alerting"
	"example.com/backstage/services/visibility/internal/engine"
	"example.com/backstage/services/visibility/internal/export"
	"example.com/backstage/services/visibility/internal/metrics"
	"example.com/backstage/services/visibility/internal/models"
	"example.com/backstage/services/visibility/internal/performance"
	"example.com/backstage/services/visibility/internal/tracing"

	"github.com/stretchr/testify/require"
)

// newSnapshotService builds a service with a pre-loaded snapshot and no
// backing database, exercising the read-side paths
func newSnapshotService(data models.SupplyChainData, rowCap int) *VisibilityService {
	tracer, _ := tracing.NewTracer(config.TracingConfig{})
	return &VisibilityService{
		tracer:    tracer,
		metrics:   metrics.NewMetrics(),
		engine:    engine.NewEngine(),
		evaluator: alerting.NewEvaluator(),
		tracker:   performance.NewTracker(),
		rules:     alerting.DefaultRules(),
		rowCap:    rowCap,
		current:   &data,
	}
}

func serviceSnapshot() models.SupplyChainData {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.SupplyChainData{
		Shipments: []models.Shipment{
			{ID: "SHP-001", Origin: "Shanghai", Destination: "Rotterdam", Status: models.ShipmentInTransit, EstimatedDelivery: base, SupplierID: "SUP-001"},
			{ID: "SHP-002", Origin: "Hamburg", Destination: "Oslo", Status: models.ShipmentPending, EstimatedDelivery: base, SupplierID: "SUP-001"},
		},
		Inventory: []models.InventoryItem{
			{ID: "INV-001", Name: "Steel Bolts", Location: "Rotterdam", Quantity: 20, ReorderPoint: 100},
		},
		Suppliers: []models.Supplier{
			{ID: "SUP-001", Name: "Pacific Metals", PerformanceScore: 88},
		},
		Nodes: []models.Node{
			{ID: "NODE-001", Name: "Shanghai Port", Type: models.SupplierNode, Location: "Shanghai", Status: models.NodeNormal},
			{ID: "NODE-002", Name: "Rotterdam Hub", Type: models.WarehouseNode, Location: "Rotterdam", Status: models.NodeNormal},
		},
		Edges: []models.Edge{
			{ID: "EDGE-001", SourceNodeID: "NODE-001", TargetNodeID: "NODE-002", ShipmentIDs: []string{"SHP-001"}, Active: true},
		},
		LastUpdated: base,
	}
}

func TestFilterUsesCurrentSnapshot(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 0)

	view, err := service.Filter(context.Background(), engine.FilterCriteria{Status: []string{"in_transit"}})
	require.NoError(t, err)
	require.Len(t, view.Data.Shipments, 1)
	require.Equal(t, "SHP-001", view.Data.Shipments[0].ID)
}

func TestSearchEntitiesRejectsUnknownFields(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 0)

	_, err := service.SearchEntities(context.Background(), "anything", []string{"carrier"})
	require.ErrorIs(t, err, engine.ErrInvalidQuery)
}

func TestDashboardFromSnapshot(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 0)

	dashboard, err := service.Dashboard(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, dashboard.TotalShipments)
	require.Equal(t, 1, dashboard.InTransitCount)
	require.Equal(t, 1, dashboard.PendingCount)
	require.Equal(t, 1, dashboard.LowStockCount)
}

func TestDashboardWithCriteria(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 0)

	dashboard, err := service.Dashboard(context.Background(), &engine.FilterCriteria{
		Status: []string{"pending"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, dashboard.TotalShipments)
	require.Equal(t, 0, dashboard.InTransitCount)
	require.Equal(t, 1, dashboard.PendingCount)
}

func TestNodeDetailJoinsEdgesAndShipments(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 0)

	detail, err := service.NodeDetail(context.Background(), "NODE-002")
	require.NoError(t, err)
	require.Equal(t, "Rotterdam Hub", detail.Node.Name)
	require.Len(t, detail.InboundEdges, 1)
	require.Empty(t, detail.OutboundEdges)
	require.Len(t, detail.ConnectedShipments, 1)
	require.Equal(t, "SHP-001", detail.ConnectedShipments[0].ID)
}

func TestNodeDetailUnknownNode(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 0)

	_, err := service.NodeDetail(context.Background(), "NODE-404")
	require.Error(t, err)
}

func TestExportHonorsRowCap(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 3)

	_, err := service.Export(context.Background(), engine.FilterCriteria{})
	require.ErrorIs(t, err, export.ErrRowCapExceeded)

	// A narrower filter fits under the cap: one shipment, one inventory
	// item and one supplier survive the status constraint
	table, err := service.Export(context.Background(), engine.FilterCriteria{Status: []string{"in_transit"}})
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
}

func TestLowStockItemsUsesConfiguredThreshold(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 0)

	items, err := service.LowStockItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "INV-001", items[0].ID)
}

func TestRankSuppliersFromSnapshot(t *testing.T) {
	service := newSnapshotService(serviceSnapshot(), 0)

	rankings, err := service.RankSuppliers(context.Background(), performance.RankingCriteria{
		Metric: performance.MetricPerformanceScore,
	})
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	require.Equal(t, 1, rankings[0].Rank)
}
