package export

import (
	"strconv"
	"strings"
	"time"

	"example.com/backstage/services/visibility/internal/engine"

	"github.com/pkg/errors"
)

// ErrRowCapExceeded is returned when a projection would exceed the
// configured row cap. The projection is refused outright rather than
// silently truncated.
var ErrRowCapExceeded = errors.New("export row cap exceeded")

// Table is a flat tabular projection of a filtered view. Byte-level CSV or
// spreadsheet encoding is left to the caller.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// columns is the union of per-entity fields in a fixed order, with a
// leading discriminator for the entity type
var columns = []string{
	"type",
	"id",
	"origin",
	"destination",
	"current_location",
	"status",
	"estimated_delivery",
	"actual_delivery",
	"items",
	"supplier_id",
	"created_at",
	"updated_at",
	"name",
	"category",
	"location",
	"quantity",
	"unit",
	"reorder_point",
	"last_updated",
	"contact",
	"performance_score",
	"on_time_delivery_rate",
	"quality_score",
	"average_lead_time",
	"total_shipments",
	"node_type",
	"latitude",
	"longitude",
	"capacity",
	"source_node_id",
	"target_node_id",
	"shipment_ids",
	"active",
}

var columnIndex = func() map[string]int {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	return index
}()

// Project converts a filtered view into a tabular projection containing
// exactly the entities of the view, one row each, and no columns beyond the
// fields the view exposes. An empty view projects to a valid empty table.
// When rowCap is positive and the view holds more entities than the cap,
// ErrRowCapExceeded is returned and no table is produced.
func Project(view *engine.FilteredView, rowCap int) (*Table, error) {
	data := view.Data
	total := len(data.Shipments) + len(data.Inventory) + len(data.Suppliers) + len(data.Nodes) + len(data.Edges)
	if rowCap > 0 && total > rowCap {
		return nil, errors.Wrapf(ErrRowCapExceeded, "%d rows exceed cap of %d", total, rowCap)
	}

	table := &Table{
		Columns: columns,
		Rows:    make([][]string, 0, total),
	}

	for _, s := range data.Shipments {
		table.Rows = append(table.Rows, row(map[string]string{
			"type":               "shipment",
			"id":                 s.ID,
			"origin":             s.Origin,
			"destination":        s.Destination,
			"current_location":   s.CurrentLocation,
			"status":             string(s.Status),
			"estimated_delivery": formatTime(s.EstimatedDelivery),
			"actual_delivery":    formatTimePtr(s.ActualDelivery),
			"items":              strings.Join(s.Items, ", "),
			"supplier_id":        s.SupplierID,
			"created_at":         formatTime(s.CreatedAt),
			"updated_at":         formatTime(s.UpdatedAt),
		}))
	}

	for _, item := range data.Inventory {
		table.Rows = append(table.Rows, row(map[string]string{
			"type":          "inventory",
			"id":            item.ID,
			"name":          item.Name,
			"category":      item.Category,
			"location":      item.Location,
			"quantity":      formatFloat(item.Quantity),
			"unit":          item.Unit,
			"reorder_point": formatFloat(item.ReorderPoint),
			"last_updated":  formatTime(item.LastUpdated),
		}))
	}

	for _, s := range data.Suppliers {
		table.Rows = append(table.Rows, row(map[string]string{
			"type":                  "supplier",
			"id":                    s.ID,
			"name":                  s.Name,
			"contact":               s.Contact,
			"performance_score":     formatFloat(s.PerformanceScore),
			"on_time_delivery_rate": formatFloat(s.OnTimeDeliveryRate),
			"quality_score":         formatFloat(s.QualityScore),
			"average_lead_time":     formatFloat(s.AverageLeadTime),
			"total_shipments":       strconv.Itoa(s.TotalShipments),
			"last_updated":          formatTime(s.LastUpdated),
		}))
	}

	for _, n := range data.Nodes {
		table.Rows = append(table.Rows, row(map[string]string{
			"type":      "node",
			"id":        n.ID,
			"name":      n.Name,
			"node_type": string(n.Type),
			"location":  n.Location,
			"latitude":  formatFloatPtr(n.Latitude),
			"longitude": formatFloatPtr(n.Longitude),
			"status":    string(n.Status),
			"capacity":  formatFloatPtr(n.Capacity),
		}))
	}

	for _, e := range data.Edges {
		table.Rows = append(table.Rows, row(map[string]string{
			"type":           "edge",
			"id":             e.ID,
			"source_node_id": e.SourceNodeID,
			"target_node_id": e.TargetNodeID,
			"shipment_ids":   strings.Join(e.ShipmentIDs, ", "),
			"active":         strconv.FormatBool(e.Active),
		}))
	}

	return table, nil
}

func row(values map[string]string) []string {
	cells := make([]string, len(columns))
	for name, value := range values {
		cells[columnIndex[name]] = value
	}
	return cells
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
