package alerting

import (
	"testing"
	"time"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var evalNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestEvaluator() *Evaluator {
	ev := NewEvaluator()
	ev.now = func() time.Time { return evalNow }
	return ev
}

func overdueShipment(id string, hoursOverdue float64, status models.ShipmentStatus) models.Shipment {
	return models.Shipment{
		ID:                id,
		Origin:            "Shanghai",
		Destination:       "Rotterdam",
		Status:            status,
		EstimatedDelivery: evalNow.Add(-time.Duration(hoursOverdue * float64(time.Hour))),
	}
}

func TestDelayAlertsAreThresholdGated(t *testing.T) {
	ev := newTestEvaluator()
	data := models.SupplyChainData{
		Shipments: []models.Shipment{
			// Marked delayed but only 10h overdue: below the 24h threshold
			overdueShipment("SHP-001", 10, models.ShipmentDelayed),
			// 30h overdue and still moving
			overdueShipment("SHP-002", 30, models.ShipmentInTransit),
			// Long overdue but already delivered
			overdueShipment("SHP-003", 100, models.ShipmentDelivered),
		},
	}

	created, evalErrs := ev.Evaluate(data, DefaultRules())
	require.Empty(t, evalErrs)
	require.Len(t, created, 1)
	require.Equal(t, "SHP-002", created[0].EntityID)
	require.Equal(t, models.AlertShipmentDelay, created[0].Type)
	require.Equal(t, models.SeverityMedium, created[0].Severity)
}

func TestDelaySeverityLadder(t *testing.T) {
	ev := newTestEvaluator()
	data := models.SupplyChainData{
		Shipments: []models.Shipment{
			overdueShipment("SHP-MED", 30, models.ShipmentInTransit),
			overdueShipment("SHP-HIGH", 50, models.ShipmentInTransit),
			overdueShipment("SHP-CRIT", 80, models.ShipmentInTransit),
		},
	}

	created, _ := ev.Evaluate(data, DefaultRules())
	require.Len(t, created, 3)

	severityByEntity := make(map[string]models.AlertSeverity)
	for _, alert := range created {
		severityByEntity[alert.EntityID] = alert.Severity
	}
	require.Equal(t, models.SeverityMedium, severityByEntity["SHP-MED"])
	require.Equal(t, models.SeverityHigh, severityByEntity["SHP-HIGH"])
	require.Equal(t, models.SeverityCritical, severityByEntity["SHP-CRIT"])
}

func TestEvaluateIsIdempotent(t *testing.T) {
	ev := newTestEvaluator()
	data := models.SupplyChainData{
		Shipments: []models.Shipment{overdueShipment("SHP-001", 48, models.ShipmentInTransit)},
		Inventory: []models.InventoryItem{
			{ID: "INV-001", Name: "Bolts", Quantity: 10, ReorderPoint: 100, Unit: "pcs"},
		},
		Suppliers: []models.Supplier{
			{ID: "SUP-001", Name: "Nordic", PerformanceScore: 40},
		},
	}

	first, _ := ev.Evaluate(data, DefaultRules())
	require.Len(t, first, 3)

	second, _ := ev.Evaluate(data, DefaultRules())
	require.Empty(t, second)
	require.Len(t, ev.Alerts(), 3)
}

func TestAcknowledgeTransition(t *testing.T) {
	ev := newTestEvaluator()
	data := models.SupplyChainData{
		Shipments: []models.Shipment{overdueShipment("SHP-001", 48, models.ShipmentInTransit)},
	}

	created, _ := ev.Evaluate(data, DefaultRules())
	require.Len(t, created, 1)

	alert, err := ev.Acknowledge(created[0].ID)
	require.NoError(t, err)
	require.True(t, alert.Acknowledged)
	require.NotNil(t, alert.AcknowledgedAt)
	require.Empty(t, ev.OpenAlerts())

	// Acknowledging twice is a no-op, not an error
	again, err := ev.Acknowledge(created[0].ID)
	require.NoError(t, err)
	require.Equal(t, alert.AcknowledgedAt, again.AcknowledgedAt)

	// The alert survives acknowledgment
	require.Len(t, ev.Alerts(), 1)
}

func TestAcknowledgeUnknownID(t *testing.T) {
	ev := newTestEvaluator()

	_, err := ev.Acknowledge(uuid.New())
	require.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAcknowledgedConditionCanAlertAgain(t *testing.T) {
	ev := newTestEvaluator()
	data := models.SupplyChainData{
		Shipments: []models.Shipment{overdueShipment("SHP-001", 48, models.ShipmentInTransit)},
	}

	created, _ := ev.Evaluate(data, DefaultRules())
	_, err := ev.Acknowledge(created[0].ID)
	require.NoError(t, err)

	// The condition persists, so a fresh open alert is raised
	recreated, _ := ev.Evaluate(data, DefaultRules())
	require.Len(t, recreated, 1)
	require.NotEqual(t, created[0].ID, recreated[0].ID)
}

func TestLowStockSeverity(t *testing.T) {
	ev := newTestEvaluator()
	data := models.SupplyChainData{
		Inventory: []models.InventoryItem{
			{ID: "INV-CRIT", Name: "A", Quantity: 10, ReorderPoint: 100, Unit: "pcs"},
			{ID: "INV-HIGH", Name: "B", Quantity: 40, ReorderPoint: 100, Unit: "pcs"},
			{ID: "INV-MED", Name: "C", Quantity: 60, ReorderPoint: 100, Unit: "pcs"},
			{ID: "INV-OK", Name: "D", Quantity: 150, ReorderPoint: 100, Unit: "pcs"},
		},
	}

	created, _ := ev.Evaluate(data, DefaultRules())
	require.Len(t, created, 3)

	severityByEntity := make(map[string]models.AlertSeverity)
	for _, alert := range created {
		severityByEntity[alert.EntityID] = alert.Severity
	}
	require.Equal(t, models.SeverityCritical, severityByEntity["INV-CRIT"])
	require.Equal(t, models.SeverityHigh, severityByEntity["INV-HIGH"])
	require.Equal(t, models.SeverityMedium, severityByEntity["INV-MED"])
}

func TestSupplierPerformanceAlert(t *testing.T) {
	ev := newTestEvaluator()
	data := models.SupplyChainData{
		Suppliers: []models.Supplier{
			{ID: "SUP-OK", Name: "Good", PerformanceScore: 85},
			{ID: "SUP-BAD", Name: "Poor", PerformanceScore: 35},
		},
	}

	created, _ := ev.Evaluate(data, DefaultRules())
	require.Len(t, created, 1)
	require.Equal(t, "SUP-BAD", created[0].EntityID)
	require.Equal(t, models.SeverityCritical, created[0].Severity)
}

func TestEvaluationErrorsSkipEntity(t *testing.T) {
	ev := newTestEvaluator()
	data := models.SupplyChainData{
		Shipments: []models.Shipment{
			{ID: "SHP-BROKEN", Status: models.ShipmentInTransit}, // no estimate
			overdueShipment("SHP-OK", 48, models.ShipmentInTransit),
		},
	}

	created, evalErrs := ev.Evaluate(data, DefaultRules())
	require.Len(t, evalErrs, 1)
	require.Equal(t, "SHP-BROKEN", evalErrs[0].EntityID)
	require.Len(t, created, 1)
	require.Equal(t, "SHP-OK", created[0].EntityID)
}

func TestLoadSeedsDedupIndex(t *testing.T) {
	ev := newTestEvaluator()
	existing := models.Alert{
		ID:        uuid.New(),
		Type:      models.AlertShipmentDelay,
		Severity:  models.SeverityHigh,
		EntityID:  "SHP-001",
		CreatedAt: evalNow.Add(-time.Hour),
	}
	ev.Load([]models.Alert{existing})

	data := models.SupplyChainData{
		Shipments: []models.Shipment{overdueShipment("SHP-001", 48, models.ShipmentInTransit)},
	}
	created, _ := ev.Evaluate(data, DefaultRules())
	require.Empty(t, created)
}
