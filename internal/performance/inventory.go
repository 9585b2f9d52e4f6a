package performance

import (
	"sort"
	"time"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/pkg/errors"
)

// ErrItemNotFound is returned for lookups of unknown inventory item ids
var ErrItemNotFound = errors.New("inventory item not found")

// TrendPoint is one observed quantity on one calendar day
type TrendPoint struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// TimeSeries carries the trend data for one inventory item
type TimeSeries struct {
	ItemID string       `json:"item_id"`
	Points []TrendPoint `json:"points"`
}

// LowStockItems returns the items whose quantity is below the threshold
// multiplier of their reorder point
func LowStockItems(data models.SupplyChainData, threshold float64) []models.InventoryItem {
	var result []models.InventoryItem
	for _, item := range data.Inventory {
		if item.LowStock(threshold * item.ReorderPoint) {
			result = append(result, item)
		}
	}
	return result
}

// InventoryTrend builds a time series for an item from recorded
// observations over the trailing window of the given number of days. The
// series holds at most one point per calendar day, strictly increasing by
// date; days without an observation are omitted rather than fabricated, so
// fewer than `days` points is a valid result. When a day holds several
// observations, the latest wins.
func (t *Tracker) InventoryTrend(data models.SupplyChainData, itemID string, days int, history []models.InventoryObservation) (TimeSeries, error) {
	if days < 0 {
		return TimeSeries{}, errors.New("days must be non-negative")
	}
	if _, ok := data.ItemByID(itemID); !ok {
		return TimeSeries{}, errors.Wrapf(ErrItemNotFound, "id %s", itemID)
	}

	end := t.now()
	start := end.AddDate(0, 0, -days)

	latestPerDay := make(map[time.Time]models.InventoryObservation)
	for _, obs := range history {
		if obs.ItemID != itemID {
			continue
		}
		if obs.ObservedAt.Before(start) || obs.ObservedAt.After(end) {
			continue
		}
		day := dayStart(obs.ObservedAt)
		if existing, ok := latestPerDay[day]; !ok || obs.ObservedAt.After(existing.ObservedAt) {
			latestPerDay[day] = obs
		}
	}

	points := make([]TrendPoint, 0, len(latestPerDay))
	for day, obs := range latestPerDay {
		points = append(points, TrendPoint{Date: day, Quantity: obs.Quantity})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	// The window can span days+1 calendar dates; the series is capped at
	// the most recent `days` points.
	if len(points) > days {
		points = points[len(points)-days:]
	}

	return TimeSeries{ItemID: itemID, Points: points}, nil
}

// dayStart truncates a timestamp to midnight of its calendar day
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
