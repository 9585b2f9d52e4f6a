package loader

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/pkg/errors"
)

// CSVLoader reads dataset snapshots from a directory of CSV files, one file
// per entity type (shipments.csv, inventory.csv, suppliers.csv, nodes.csv,
// edges.csv).
type CSVLoader struct {
	dir string
}

// NewCSVLoader creates a CSV loader rooted at the given directory
func NewCSVLoader(dir string) *CSVLoader {
	return &CSVLoader{dir: dir}
}

// Load reads all entity files and assembles a snapshot
func (l *CSVLoader) Load() (models.SupplyChainData, error) {
	var data models.SupplyChainData
	var err error

	if data.Shipments, err = l.loadShipments(); err != nil {
		return models.SupplyChainData{}, err
	}
	if data.Inventory, err = l.loadInventory(); err != nil {
		return models.SupplyChainData{}, err
	}
	if data.Suppliers, err = l.loadSuppliers(); err != nil {
		return models.SupplyChainData{}, err
	}
	if data.Nodes, err = l.loadNodes(); err != nil {
		return models.SupplyChainData{}, err
	}
	if data.Edges, err = l.loadEdges(); err != nil {
		return models.SupplyChainData{}, err
	}
	data.LastUpdated = time.Now().UTC()

	return data, nil
}

// readRecords reads a CSV file and returns rows as column-name maps
func (l *CSVLoader) readRecords(filename string) ([]map[string]string, error) {
	path := filepath.Join(l.dir, filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", filename)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", filename)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("%s has no header row", filename)
	}

	header := rows[0]
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func (l *CSVLoader) loadShipments() ([]models.Shipment, error) {
	records, err := l.readRecords("shipments.csv")
	if err != nil {
		return nil, err
	}

	shipments := make([]models.Shipment, 0, len(records))
	for _, r := range records {
		estimated, err := parseTime(r["estimated_delivery"])
		if err != nil {
			return nil, errors.Wrapf(err, "shipment %s: bad estimated_delivery", r["id"])
		}
		actual, err := parseTimePtr(r["actual_delivery"])
		if err != nil {
			return nil, errors.Wrapf(err, "shipment %s: bad actual_delivery", r["id"])
		}
		createdAt, err := parseTime(r["created_at"])
		if err != nil {
			return nil, errors.Wrapf(err, "shipment %s: bad created_at", r["id"])
		}
		updatedAt, err := parseTime(r["updated_at"])
		if err != nil {
			return nil, errors.Wrapf(err, "shipment %s: bad updated_at", r["id"])
		}

		shipments = append(shipments, models.Shipment{
			ID:                r["id"],
			Origin:            r["origin"],
			Destination:       r["destination"],
			CurrentLocation:   r["current_location"],
			Status:            models.ShipmentStatus(r["status"]),
			EstimatedDelivery: estimated,
			ActualDelivery:    actual,
			Items:             splitList(r["items"]),
			SupplierID:        r["supplier_id"],
			CreatedAt:         createdAt,
			UpdatedAt:         updatedAt,
		})
	}
	return shipments, nil
}

func (l *CSVLoader) loadInventory() ([]models.InventoryItem, error) {
	records, err := l.readRecords("inventory.csv")
	if err != nil {
		return nil, err
	}

	items := make([]models.InventoryItem, 0, len(records))
	for _, r := range records {
		quantity, err := strconv.ParseFloat(r["quantity"], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "inventory %s: bad quantity", r["id"])
		}
		reorderPoint, err := strconv.ParseFloat(r["reorder_point"], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "inventory %s: bad reorder_point", r["id"])
		}
		lastUpdated, err := parseTime(r["last_updated"])
		if err != nil {
			return nil, errors.Wrapf(err, "inventory %s: bad last_updated", r["id"])
		}

		items = append(items, models.InventoryItem{
			ID:           r["id"],
			Name:         r["name"],
			Category:     r["category"],
			Location:     r["location"],
			Quantity:     quantity,
			Unit:         r["unit"],
			ReorderPoint: reorderPoint,
			LastUpdated:  lastUpdated,
		})
	}
	return items, nil
}

func (l *CSVLoader) loadSuppliers() ([]models.Supplier, error) {
	records, err := l.readRecords("suppliers.csv")
	if err != nil {
		return nil, err
	}

	suppliers := make([]models.Supplier, 0, len(records))
	for _, r := range records {
		performance, err := strconv.ParseFloat(r["performance_score"], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "supplier %s: bad performance_score", r["id"])
		}
		onTimeRate, err := strconv.ParseFloat(r["on_time_delivery_rate"], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "supplier %s: bad on_time_delivery_rate", r["id"])
		}
		quality, err := strconv.ParseFloat(r["quality_score"], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "supplier %s: bad quality_score", r["id"])
		}
		leadTime, err := strconv.ParseFloat(r["average_lead_time"], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "supplier %s: bad average_lead_time", r["id"])
		}
		totalShipments, err := strconv.Atoi(r["total_shipments"])
		if err != nil {
			return nil, errors.Wrapf(err, "supplier %s: bad total_shipments", r["id"])
		}
		lastUpdated, err := parseTime(r["last_updated"])
		if err != nil {
			return nil, errors.Wrapf(err, "supplier %s: bad last_updated", r["id"])
		}

		suppliers = append(suppliers, models.Supplier{
			ID:                 r["id"],
			Name:               r["name"],
			Contact:            r["contact"],
			PerformanceScore:   performance,
			OnTimeDeliveryRate: onTimeRate,
			QualityScore:       quality,
			AverageLeadTime:    leadTime,
			TotalShipments:     totalShipments,
			LastUpdated:        lastUpdated,
		})
	}
	return suppliers, nil
}

func (l *CSVLoader) loadNodes() ([]models.Node, error) {
	records, err := l.readRecords("nodes.csv")
	if err != nil {
		return nil, err
	}

	nodes := make([]models.Node, 0, len(records))
	for _, r := range records {
		latitude, err := parseFloatPtr(r["latitude"])
		if err != nil {
			return nil, errors.Wrapf(err, "node %s: bad latitude", r["id"])
		}
		longitude, err := parseFloatPtr(r["longitude"])
		if err != nil {
			return nil, errors.Wrapf(err, "node %s: bad longitude", r["id"])
		}
		capacity, err := parseFloatPtr(r["capacity"])
		if err != nil {
			return nil, errors.Wrapf(err, "node %s: bad capacity", r["id"])
		}

		nodes = append(nodes, models.Node{
			ID:        r["id"],
			Name:      r["name"],
			Type:      models.NodeType(r["type"]),
			Location:  r["location"],
			Latitude:  latitude,
			Longitude: longitude,
			Status:    models.NodeStatus(r["status"]),
			Capacity:  capacity,
		})
	}
	return nodes, nil
}

func (l *CSVLoader) loadEdges() ([]models.Edge, error) {
	records, err := l.readRecords("edges.csv")
	if err != nil {
		return nil, err
	}

	edges := make([]models.Edge, 0, len(records))
	for _, r := range records {
		edges = append(edges, models.Edge{
			ID:           r["id"],
			SourceNodeID: r["source_node_id"],
			TargetNodeID: r["target_node_id"],
			ShipmentIDs:  splitList(r["shipment_ids"]),
			Active:       strings.EqualFold(r["active"], "true"),
		})
	}
	return edges, nil
}

// splitList parses a semicolon-separated list column
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ";")
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

func parseTimePtr(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseTime(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseFloatPtr(value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
