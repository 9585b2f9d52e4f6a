package engine

import (
	"testing"
	"time"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/stretchr/testify/require"
)

func testSnapshot() models.SupplyChainData {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	delivered := base.AddDate(0, 0, 2)

	return models.SupplyChainData{
		Shipments: []models.Shipment{
			{
				ID:                "SHP-001",
				Origin:            "Shanghai",
				Destination:       "Rotterdam",
				CurrentLocation:   "Suez",
				Status:            models.ShipmentInTransit,
				EstimatedDelivery: base.AddDate(0, 0, 5),
				SupplierID:        "SUP-001",
			},
			{
				ID:                "SHP-002",
				Origin:            "Hamburg",
				Destination:       "Oslo",
				CurrentLocation:   "Oslo",
				Status:            models.ShipmentDelivered,
				EstimatedDelivery: base,
				ActualDelivery:    &delivered,
				SupplierID:        "SUP-002",
			},
			{
				ID:                "SHP-003",
				Origin:            "Shenzhen",
				Destination:       "Los Angeles",
				CurrentLocation:   "Pacific",
				Status:            models.ShipmentDelayed,
				EstimatedDelivery: base.AddDate(0, 0, 20),
				SupplierID:        "SUP-001",
			},
		},
		Inventory: []models.InventoryItem{
			{ID: "INV-001", Name: "Steel Bolts", Category: "fasteners", Location: "Rotterdam", Quantity: 500, ReorderPoint: 100, LastUpdated: base},
			{ID: "INV-002", Name: "Copper Wire", Category: "electrical", Location: "Oslo", Quantity: 40, ReorderPoint: 80, LastUpdated: base.AddDate(0, 0, 10)},
		},
		Suppliers: []models.Supplier{
			{ID: "SUP-001", Name: "Pacific Metals", PerformanceScore: 88, LastUpdated: base},
			{ID: "SUP-002", Name: "Nordic Components", PerformanceScore: 65, LastUpdated: base},
		},
		Nodes: []models.Node{
			{ID: "NODE-001", Name: "Shanghai Port", Type: models.SupplierNode, Location: "Shanghai", Status: models.NodeNormal},
			{ID: "NODE-002", Name: "Rotterdam Hub", Type: models.WarehouseNode, Location: "Rotterdam", Status: models.NodeCongested},
		},
		Edges: []models.Edge{
			{ID: "EDGE-001", SourceNodeID: "NODE-001", TargetNodeID: "NODE-002", ShipmentIDs: []string{"SHP-001"}, Active: true},
			{ID: "EDGE-002", SourceNodeID: "NODE-001", TargetNodeID: "NODE-999", Active: true},
		},
	}
}

func TestApplyWithoutCriteriaKeepsEverything(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	view := engine.Apply(data, FilterCriteria{})

	require.Len(t, view.Data.Shipments, 3)
	require.Len(t, view.Data.Inventory, 2)
	require.Len(t, view.Data.Suppliers, 2)
	require.Len(t, view.Data.Nodes, 2)
	// EDGE-002 points at a node absent from the snapshot itself
	require.Len(t, view.Data.Edges, 1)
}

func TestApplyStatusFilter(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	view := engine.Apply(data, FilterCriteria{Status: []string{"in_transit"}})

	require.Len(t, view.Data.Shipments, 1)
	require.Equal(t, "SHP-001", view.Data.Shipments[0].ID)
	// The status constraint also applies to nodes; no node is "in_transit"
	require.Empty(t, view.Data.Nodes)
	require.Empty(t, view.Data.Edges)
	// Inventory and suppliers carry no status field and pass through
	require.Len(t, view.Data.Inventory, 2)
	require.Len(t, view.Data.Suppliers, 2)
}

func TestApplyLocationMatchesAnyShipmentEndpoint(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	view := engine.Apply(data, FilterCriteria{Location: []string{"Rotterdam"}})

	// SHP-001 matches on destination
	require.Len(t, view.Data.Shipments, 1)
	require.Equal(t, "SHP-001", view.Data.Shipments[0].ID)
	require.Len(t, view.Data.Inventory, 1)
	require.Equal(t, "INV-001", view.Data.Inventory[0].ID)
	require.Len(t, view.Data.Nodes, 1)
	require.Equal(t, "NODE-002", view.Data.Nodes[0].ID)
}

func TestApplyDateRange(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	view := engine.Apply(data, FilterCriteria{
		DateRange: &DateRange{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	})

	ids := make([]string, 0, len(view.Data.Shipments))
	for _, s := range view.Data.Shipments {
		ids = append(ids, s.ID)
	}
	require.ElementsMatch(t, []string{"SHP-001", "SHP-002"}, ids)
	// INV-002 was last updated outside the range
	require.Len(t, view.Data.Inventory, 1)
}

func TestApplyConjunction(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	// Both constraints must hold: SHP-001 is in_transit but not at Oslo
	view := engine.Apply(data, FilterCriteria{
		Status:   []string{"in_transit"},
		Location: []string{"Oslo"},
	})

	require.Empty(t, view.Data.Shipments)
}

func TestApplyEdgesRequireBothEndpoints(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	// Location filter retains only the Rotterdam node, so no edge survives
	view := engine.Apply(data, FilterCriteria{Location: []string{"Rotterdam"}})

	require.Len(t, view.Data.Nodes, 1)
	require.Empty(t, view.Data.Edges)
}

func TestApplyResolveReferencesKeepsShipmentSuppliers(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	// The origin search matches no supplier, but SHP-001's supplier is
	// added back so the view stays referentially consistent
	view := engine.Apply(data, FilterCriteria{
		SearchQuery:       "Shanghai",
		SearchFields:      []string{"origin"},
		ResolveReferences: true,
	})

	require.Len(t, view.Data.Shipments, 1)
	require.Len(t, view.Data.Suppliers, 1)
	require.Equal(t, "SUP-001", view.Data.Suppliers[0].ID)
}

func TestApplyFlagsDanglingReferences(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	// Without referential filtering the shipment's supplier is dropped by the
	// search constraint and the view is flagged inconsistent
	view := engine.Apply(data, FilterCriteria{
		SearchQuery:  "SHP-001",
		SearchFields: []string{"id"},
	})

	require.Len(t, view.Data.Shipments, 1)
	require.False(t, view.ReferentiallyConsistent)
}

func TestResetReturnsZeroCriteria(t *testing.T) {
	criteria := Reset()

	require.Equal(t, FilterCriteria{}, criteria)
	require.False(t, criteria.Active())
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2024-03-01", "2024-03-10")
	require.NoError(t, err)
	require.True(t, r.Contains(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
	require.False(t, r.Contains(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))

	_, err = ParseDateRange("2024-03-10", "2024-03-01")
	require.Error(t, err)

	_, err = ParseDateRange("not-a-date", "")
	require.Error(t, err)
}
