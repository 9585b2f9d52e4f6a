package performance

import (
	"sort"
	"time"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/pkg/errors"
)

// ErrSupplierNotFound is returned for lookups of unknown supplier ids
var ErrSupplierNotFound = errors.New("supplier not found")

// ErrInvalidMetric is returned when a ranking metric is not one of the
// enumerated selectors
var ErrInvalidMetric = errors.New("invalid ranking metric")

// RankingMetric selects the figure suppliers are ranked by
type RankingMetric string

const (
	MetricOnTimeDeliveryRate RankingMetric = "on_time_delivery_rate"
	MetricQualityScore       RankingMetric = "quality_score"
	MetricPerformanceScore   RankingMetric = "performance_score"
	MetricAverageLeadTime    RankingMetric = "average_lead_time"
)

// RankingCriteria describes how suppliers are ordered. Higher values rank
// first unless Ascending is set (used for lead time, where lower is better).
type RankingCriteria struct {
	Metric    RankingMetric `json:"metric"`
	Ascending bool          `json:"ascending"`
}

// SupplierMetrics bundles the performance figures for one supplier. The
// on-time delivery rate is always recomputed from shipment history, never
// read from the supplier record.
type SupplierMetrics struct {
	SupplierID         string  `json:"supplier_id"`
	SupplierName       string  `json:"supplier_name"`
	OnTimeDeliveryRate float64 `json:"on_time_delivery_rate"`
	QualityScore       float64 `json:"quality_score"`
	AverageLeadTime    float64 `json:"average_lead_time"`
	TotalShipments     int     `json:"total_shipments"`
	PerformanceScore   float64 `json:"performance_score"`
}

// metric returns the figure selected by the ranking metric
func (m SupplierMetrics) metric(metric RankingMetric) float64 {
	switch metric {
	case MetricOnTimeDeliveryRate:
		return m.OnTimeDeliveryRate
	case MetricQualityScore:
		return m.QualityScore
	case MetricAverageLeadTime:
		return m.AverageLeadTime
	default:
		return m.PerformanceScore
	}
}

// SupplierRanking places one supplier within a total ordering
type SupplierRanking struct {
	Rank         int             `json:"rank"`
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Score        float64         `json:"score"`
	Metrics      SupplierMetrics `json:"metrics"`
}

// PerformancePoint is one aggregated point in a supplier's history
type PerformancePoint struct {
	Date               time.Time `json:"date"`
	OnTimeDeliveryRate float64   `json:"on_time_delivery_rate"`
	QualityScore       float64   `json:"quality_score"`
	AverageLeadTime    float64   `json:"average_lead_time"`
	ShipmentCount      int       `json:"shipment_count"`
}

// Tracker computes supplier performance metrics from dataset snapshots. All
// methods are pure and safe for concurrent use; every supplier within a
// comparison call is measured by the identical formula.
type Tracker struct {
	now func() time.Time
}

// NewTracker creates a performance tracker
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// OnTimeRate computes the percentage of a supplier's shipments with a
// recorded actual delivery that arrived on or before the estimate. Suppliers
// with no completed shipments rate 0 rather than dividing by zero.
func (t *Tracker) OnTimeRate(supplierID string, shipments []models.Shipment) float64 {
	var completed, onTime int
	for _, s := range shipments {
		if s.SupplierID != supplierID || !s.Delivered() {
			continue
		}
		completed++
		if s.OnTime() {
			onTime++
		}
	}
	if completed == 0 {
		return 0
	}
	return float64(onTime) / float64(completed) * 100
}

// SupplierMetrics returns the performance figures for one supplier
func (t *Tracker) SupplierMetrics(data models.SupplyChainData, supplierID string) (SupplierMetrics, error) {
	supplier, ok := data.SupplierByID(supplierID)
	if !ok {
		return SupplierMetrics{}, errors.Wrapf(ErrSupplierNotFound, "id %s", supplierID)
	}

	return SupplierMetrics{
		SupplierID:         supplier.ID,
		SupplierName:       supplier.Name,
		OnTimeDeliveryRate: t.OnTimeRate(supplierID, data.Shipments),
		QualityScore:       supplier.QualityScore,
		AverageLeadTime:    supplier.AverageLeadTime,
		TotalShipments:     supplier.TotalShipments,
		PerformanceScore:   supplier.PerformanceScore,
	}, nil
}

// RankSuppliers produces a total ordering of every supplier in the snapshot
// by the criteria's metric. The order is deterministic: equal scores are
// broken by supplier id ascending, and adjacent ranks never invert in score.
func (t *Tracker) RankSuppliers(data models.SupplyChainData, criteria RankingCriteria) ([]SupplierRanking, error) {
	switch criteria.Metric {
	case MetricOnTimeDeliveryRate, MetricQualityScore, MetricPerformanceScore, MetricAverageLeadTime:
	default:
		return nil, errors.Wrapf(ErrInvalidMetric, "metric %q", criteria.Metric)
	}

	metrics := make([]SupplierMetrics, 0, len(data.Suppliers))
	for _, supplier := range data.Suppliers {
		m, err := t.SupplierMetrics(data, supplier.ID)
		if err != nil {
			continue
		}
		metrics = append(metrics, m)
	}

	sort.Slice(metrics, func(i, j int) bool {
		a, b := metrics[i].metric(criteria.Metric), metrics[j].metric(criteria.Metric)
		if a != b {
			if criteria.Ascending {
				return a < b
			}
			return a > b
		}
		return metrics[i].SupplierID < metrics[j].SupplierID
	})

	rankings := make([]SupplierRanking, 0, len(metrics))
	for i, m := range metrics {
		rankings = append(rankings, SupplierRanking{
			Rank:         i + 1,
			SupplierID:   m.SupplierID,
			SupplierName: m.SupplierName,
			Score:        m.metric(criteria.Metric),
			Metrics:      m,
		})
	}

	return rankings, nil
}

// PerformanceHistory returns weekly aggregated performance points for a
// supplier over the trailing window of the given number of days. Points are
// chronological and restricted to the window; nothing is extrapolated
// beyond it.
func (t *Tracker) PerformanceHistory(data models.SupplyChainData, supplierID string, days int) ([]PerformancePoint, error) {
	if days < 0 {
		return nil, errors.New("days must be non-negative")
	}
	supplier, ok := data.SupplierByID(supplierID)
	if !ok {
		return nil, errors.Wrapf(ErrSupplierNotFound, "id %s", supplierID)
	}

	end := t.now()
	start := end.AddDate(0, 0, -days)

	weekly := make(map[time.Time][]models.Shipment)
	for _, s := range data.Shipments {
		if s.SupplierID != supplierID {
			continue
		}
		if s.CreatedAt.Before(start) || s.CreatedAt.After(end) {
			continue
		}
		weekly[weekStart(s.CreatedAt)] = append(weekly[weekStart(s.CreatedAt)], s)
	}
	if len(weekly) == 0 {
		return nil, nil
	}

	weeks := make([]time.Time, 0, len(weekly))
	for week := range weekly {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	history := make([]PerformancePoint, 0, len(weeks))
	for _, week := range weeks {
		shipments := weekly[week]

		var delivered, onTime int
		var leadDays float64
		for _, s := range shipments {
			if !s.Delivered() {
				continue
			}
			delivered++
			if s.OnTime() {
				onTime++
			}
			leadDays += s.ActualDelivery.Sub(s.CreatedAt).Hours() / 24
		}

		var onTimeRate, avgLead float64
		if delivered > 0 {
			onTimeRate = float64(onTime) / float64(delivered) * 100
			avgLead = leadDays / float64(delivered)
		}

		history = append(history, PerformancePoint{
			Date:               week,
			OnTimeDeliveryRate: onTimeRate,
			QualityScore:       supplier.QualityScore,
			AverageLeadTime:    avgLead,
			ShipmentCount:      len(shipments),
		})
	}

	return history, nil
}

// weekStart truncates a timestamp to midnight of its Monday
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}
