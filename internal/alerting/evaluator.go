package alerting

import (
	"fmt"
	"math"
	"sync"
	"time"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrAlertNotFound is returned when acknowledging an unknown alert id
var ErrAlertNotFound = errors.New("alert not found")

// Rules holds the thresholds that gate alert generation
type Rules struct {
	// DelayThresholdHours is how many hours past the estimated delivery a
	// non-delivered shipment may run before a delay alert is raised
	DelayThresholdHours float64 `mapstructure:"delay_threshold_hours" json:"delay_threshold_hours"`
	// LowStockThreshold is the multiplier of an item's reorder point below
	// which a low stock alert is raised
	LowStockThreshold float64 `mapstructure:"low_stock_threshold" json:"low_stock_threshold"`
	// SupplierPerformanceThreshold is the minimum acceptable performance score
	SupplierPerformanceThreshold float64 `mapstructure:"supplier_performance_threshold" json:"supplier_performance_threshold"`
}

// DefaultRules returns the default alerting thresholds
func DefaultRules() Rules {
	return Rules{
		DelayThresholdHours:          24,
		LowStockThreshold:            1.0,
		SupplierPerformanceThreshold: 70.0,
	}
}

// RuleEvaluationError reports a single entity whose rule check could not be
// completed. It never aborts the evaluation of other entities.
type RuleEvaluationError struct {
	Rule     models.AlertType
	EntityID string
	Reason   string
}

func (e RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: entity %s: %s", e.Rule, e.EntityID, e.Reason)
}

type openKey struct {
	Type     models.AlertType
	EntityID string
}

// Evaluator evaluates alert rules against dataset snapshots and owns alert
// state. At most one open alert exists per (type, entity) pair, which makes
// re-evaluation idempotent. All mutation is serialized behind a mutex; rule
// checks themselves are pure and run concurrently per rule type.
type Evaluator struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*models.Alert
	open   map[openKey]uuid.UUID
	now    func() time.Time
}

// NewEvaluator creates an evaluator with empty alert state
func NewEvaluator() *Evaluator {
	return &Evaluator{
		alerts: make(map[uuid.UUID]*models.Alert),
		open:   make(map[openKey]uuid.UUID),
		now:    time.Now,
	}
}

// Load seeds the evaluator with previously persisted alerts, typically on
// startup. Open alerts re-enter the dedup index so that evaluation does not
// raise duplicates for conditions already alerted on.
func (ev *Evaluator) Load(alerts []models.Alert) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	for i := range alerts {
		alert := alerts[i]
		ev.alerts[alert.ID] = &alert
		if alert.Open() {
			ev.open[openKey{Type: alert.Type, EntityID: alert.EntityID}] = alert.ID
		}
	}
}

// candidate is a condition detected by a rule check, not yet deduplicated
type candidate struct {
	alertType models.AlertType
	severity  models.AlertSeverity
	message   string
	entityID  string
}

// Evaluate runs every rule against the snapshot and returns the newly
// created alerts. Running it twice on an unchanged snapshot creates nothing
// the second time. Entities that cannot be checked are reported in the
// returned evaluation errors and skipped.
func (ev *Evaluator) Evaluate(data models.SupplyChainData, rules Rules) ([]models.Alert, []RuleEvaluationError) {
	now := ev.now()

	var (
		resultMu   sync.Mutex
		candidates []candidate
		evalErrs   []RuleEvaluationError
	)
	collect := func(cands []candidate, errs []RuleEvaluationError) {
		resultMu.Lock()
		candidates = append(candidates, cands...)
		evalErrs = append(evalErrs, errs...)
		resultMu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		collect(checkShipmentDelays(data.Shipments, rules.DelayThresholdHours, now))
		return nil
	})
	g.Go(func() error {
		collect(checkInventoryLevels(data.Inventory, rules.LowStockThreshold))
		return nil
	})
	g.Go(func() error {
		collect(checkSupplierPerformance(data.Suppliers, rules.SupplierPerformanceThreshold))
		return nil
	})
	_ = g.Wait()

	for _, evalErr := range evalErrs {
		log.Warn().
			Str("rule", string(evalErr.Rule)).
			Str("entity_id", evalErr.EntityID).
			Str("reason", evalErr.Reason).
			Msg("Skipping entity during rule evaluation")
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	var created []models.Alert
	for _, c := range candidates {
		key := openKey{Type: c.alertType, EntityID: c.entityID}
		if _, exists := ev.open[key]; exists {
			continue
		}
		alert := &models.Alert{
			ID:           uuid.New(),
			Type:         c.alertType,
			Severity:     c.severity,
			Message:      c.message,
			EntityID:     c.entityID,
			CreatedAt:    now,
			Acknowledged: false,
		}
		ev.alerts[alert.ID] = alert
		ev.open[key] = alert.ID
		created = append(created, *alert)
	}

	return created, evalErrs
}

// Acknowledge transitions an alert from open to acknowledged. Acknowledging
// an already acknowledged alert is a no-op. The alert is never deleted.
func (ev *Evaluator) Acknowledge(id uuid.UUID) (models.Alert, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	alert, ok := ev.alerts[id]
	if !ok {
		return models.Alert{}, errors.Wrapf(ErrAlertNotFound, "id %s", id)
	}
	if alert.Acknowledged {
		return *alert, nil
	}

	now := ev.now()
	alert.Acknowledged = true
	alert.AcknowledgedAt = &now
	delete(ev.open, openKey{Type: alert.Type, EntityID: alert.EntityID})

	return *alert, nil
}

// Alerts returns a copy of every alert, open and acknowledged
func (ev *Evaluator) Alerts() []models.Alert {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	result := make([]models.Alert, 0, len(ev.alerts))
	for _, alert := range ev.alerts {
		result = append(result, *alert)
	}
	return result
}

// OpenAlerts returns a copy of every unacknowledged alert
func (ev *Evaluator) OpenAlerts() []models.Alert {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	result := make([]models.Alert, 0, len(ev.open))
	for _, id := range ev.open {
		result = append(result, *ev.alerts[id])
	}
	return result
}

// checkShipmentDelays flags non-delivered shipments that are overdue by more
// than the threshold. Delay generation is threshold-gated: a shipment marked
// delayed but not yet past the threshold raises nothing.
func checkShipmentDelays(shipments []models.Shipment, thresholdHours float64, now time.Time) ([]candidate, []RuleEvaluationError) {
	var (
		cands []candidate
		errs  []RuleEvaluationError
	)
	for _, s := range shipments {
		if s.Status == models.ShipmentDelivered {
			continue
		}
		if s.EstimatedDelivery.IsZero() {
			errs = append(errs, RuleEvaluationError{
				Rule:     models.AlertShipmentDelay,
				EntityID: s.ID,
				Reason:   "missing estimated delivery",
			})
			continue
		}
		hoursOverdue := now.Sub(s.EstimatedDelivery).Hours()
		if hoursOverdue <= thresholdHours {
			continue
		}
		cands = append(cands, candidate{
			alertType: models.AlertShipmentDelay,
			severity:  delaySeverity(hoursOverdue, thresholdHours),
			message:   fmt.Sprintf("Shipment %s from %s to %s is %d hours overdue", s.ID, s.Origin, s.Destination, int(hoursOverdue)),
			entityID:  s.ID,
		})
	}
	return cands, errs
}

// checkInventoryLevels flags items whose quantity fell below the critical
// threshold, expressed as a multiplier of the reorder point
func checkInventoryLevels(inventory []models.InventoryItem, lowStockThreshold float64) ([]candidate, []RuleEvaluationError) {
	var (
		cands []candidate
		errs  []RuleEvaluationError
	)
	for _, item := range inventory {
		if item.Quantity < 0 || item.ReorderPoint < 0 {
			errs = append(errs, RuleEvaluationError{
				Rule:     models.AlertLowStock,
				EntityID: item.ID,
				Reason:   "negative quantity or reorder point",
			})
			continue
		}
		threshold := item.ReorderPoint * lowStockThreshold
		if !item.LowStock(threshold) {
			continue
		}
		cands = append(cands, candidate{
			alertType: models.AlertLowStock,
			severity:  inventorySeverity(item.Quantity, threshold),
			message:   fmt.Sprintf("Low stock alert: %s at %s has %.0f %s (threshold: %.0f)", item.Name, item.Location, item.Quantity, item.Unit, threshold),
			entityID:  item.ID,
		})
	}
	return cands, errs
}

// checkSupplierPerformance flags suppliers scoring below the minimum
func checkSupplierPerformance(suppliers []models.Supplier, minimum float64) ([]candidate, []RuleEvaluationError) {
	var (
		cands []candidate
		errs  []RuleEvaluationError
	)
	for _, s := range suppliers {
		if math.IsNaN(s.PerformanceScore) {
			errs = append(errs, RuleEvaluationError{
				Rule:     models.AlertSupplierPerformance,
				EntityID: s.ID,
				Reason:   "performance score is not a number",
			})
			continue
		}
		if s.PerformanceScore >= minimum {
			continue
		}
		cands = append(cands, candidate{
			alertType: models.AlertSupplierPerformance,
			severity:  supplierSeverity(s.PerformanceScore, minimum),
			message:   fmt.Sprintf("Supplier %s performance below threshold: %.1f%% (threshold: %.1f%%)", s.Name, s.PerformanceScore, minimum),
			entityID:  s.ID,
		})
	}
	return cands, errs
}

func delaySeverity(hoursOverdue, thresholdHours float64) models.AlertSeverity {
	switch {
	case hoursOverdue > thresholdHours*3:
		return models.SeverityCritical
	case hoursOverdue > thresholdHours*2:
		return models.SeverityHigh
	case hoursOverdue > thresholdHours:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func inventorySeverity(quantity, threshold float64) models.AlertSeverity {
	var percentage float64
	if threshold > 0 {
		percentage = quantity / threshold * 100
	}
	switch {
	case percentage < 25:
		return models.SeverityCritical
	case percentage < 50:
		return models.SeverityHigh
	case percentage < 75:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func supplierSeverity(score, threshold float64) models.AlertSeverity {
	gap := threshold - score
	switch {
	case gap > 30:
		return models.SeverityCritical
	case gap > 20:
		return models.SeverityHigh
	case gap > 10:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
