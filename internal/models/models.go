package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ShipmentStatus defines the lifecycle status of a shipment
type ShipmentStatus string

const (
	// ShipmentPending represents a shipment that has not left its origin
	ShipmentPending ShipmentStatus = "pending"
	// ShipmentInTransit represents a shipment currently moving
	ShipmentInTransit ShipmentStatus = "in_transit"
	// ShipmentDelayed represents a shipment explicitly flagged as delayed
	ShipmentDelayed ShipmentStatus = "delayed"
	// ShipmentDelivered represents a completed shipment
	ShipmentDelivered ShipmentStatus = "delivered"
)

// ShipmentStatuses lists every valid shipment status
var ShipmentStatuses = []ShipmentStatus{
	ShipmentPending,
	ShipmentInTransit,
	ShipmentDelayed,
	ShipmentDelivered,
}

// NodeType defines the role of a network node
type NodeType string

const (
	// SupplierNode represents a supplier site
	SupplierNode NodeType = "supplier"
	// WarehouseNode represents a warehouse
	WarehouseNode NodeType = "warehouse"
	// DestinationNode represents a delivery destination
	DestinationNode NodeType = "destination"
)

// NodeStatus defines the operational status of a network node
type NodeStatus string

const (
	// NodeNormal represents a node operating normally
	NodeNormal NodeStatus = "normal"
	// NodeCongested represents a node with degraded throughput
	NodeCongested NodeStatus = "congested"
	// NodeDisrupted represents a node that is not operating
	NodeDisrupted NodeStatus = "disrupted"
)

// AlertType defines the rule that raised an alert
type AlertType string

const (
	// AlertShipmentDelay is raised for overdue shipments
	AlertShipmentDelay AlertType = "shipment_delay"
	// AlertLowStock is raised for inventory below the critical threshold
	AlertLowStock AlertType = "low_stock"
	// AlertSupplierPerformance is raised for underperforming suppliers
	AlertSupplierPerformance AlertType = "supplier_performance"
)

// AlertSeverity defines how urgent an alert is
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Shipment represents a tracked shipment within a dataset snapshot
type Shipment struct {
	ID                string         `gorm:"primaryKey" json:"id"`
	Origin            string         `gorm:"not null" json:"origin"`
	Destination       string         `gorm:"not null" json:"destination"`
	CurrentLocation   string         `json:"current_location"`
	Status            ShipmentStatus `gorm:"not null;index" json:"status"`
	EstimatedDelivery time.Time      `json:"estimated_delivery"`
	ActualDelivery    *time.Time     `json:"actual_delivery"`
	Items             []string       `gorm:"serializer:json" json:"items"`
	SupplierID        string         `gorm:"index" json:"supplier_id"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Delivered reports whether the shipment has a recorded actual delivery
func (s Shipment) Delivered() bool {
	return s.ActualDelivery != nil
}

// OnTime reports whether the shipment was delivered on or before its estimate
func (s Shipment) OnTime() bool {
	return s.ActualDelivery != nil && !s.ActualDelivery.After(s.EstimatedDelivery)
}

// InventoryItem represents a stocked item at a location
type InventoryItem struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Category     string    `gorm:"index" json:"category"`
	Location     string    `gorm:"index" json:"location"`
	Quantity     float64   `json:"quantity"`
	Unit         string    `json:"unit"`
	ReorderPoint float64   `json:"reorder_point"`
	LastUpdated  time.Time `json:"last_updated"`
}

// LowStock reports whether the item quantity is below the given threshold
func (i InventoryItem) LowStock(threshold float64) bool {
	return i.Quantity < threshold
}

// Supplier represents a supplier and its performance figures
type Supplier struct {
	ID                 string    `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"not null" json:"name"`
	Contact            string    `json:"contact"`
	PerformanceScore   float64   `json:"performance_score"`
	OnTimeDeliveryRate float64   `json:"on_time_delivery_rate"`
	QualityScore       float64   `json:"quality_score"`
	AverageLeadTime    float64   `json:"average_lead_time"`
	TotalShipments     int       `json:"total_shipments"`
	LastUpdated        time.Time `json:"last_updated"`
}

// Node represents a site in the supply chain network
type Node struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	Type      NodeType   `gorm:"not null" json:"type"`
	Location  string     `json:"location"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Status    NodeStatus `gorm:"not null" json:"status"`
	Capacity  *float64   `json:"capacity"`
}

// HasCoordinates reports whether both latitude and longitude are present
func (n Node) HasCoordinates() bool {
	return n.Latitude != nil && n.Longitude != nil
}

// Edge represents a transport lane between two network nodes
type Edge struct {
	ID           string   `gorm:"primaryKey" json:"id"`
	SourceNodeID string   `gorm:"not null;index" json:"source_node_id"`
	TargetNodeID string   `gorm:"not null;index" json:"target_node_id"`
	ShipmentIDs  []string `gorm:"serializer:json" json:"shipment_ids"`
	Active       bool     `json:"active"`
}

// Alert represents a rule-generated alert. Alerts are never deleted, only
// transitioned from open to acknowledged.
type Alert struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Type           AlertType     `gorm:"not null;index:idx_alerts_type_entity" json:"type"`
	Severity       AlertSeverity `gorm:"not null" json:"severity"`
	Message        string        `json:"message"`
	EntityID       string        `gorm:"not null;index:idx_alerts_type_entity" json:"entity_id"`
	CreatedAt      time.Time     `json:"created_at"`
	Acknowledged   bool          `gorm:"not null;index" json:"acknowledged"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at"`
}

// Open reports whether the alert is still awaiting acknowledgment
func (a Alert) Open() bool {
	return !a.Acknowledged
}

// StatusUpdate represents a caller-initiated field change to be persisted
type StatusUpdate struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EntityType string    `gorm:"not null" json:"entity_type"`
	EntityID   string    `gorm:"not null;index" json:"entity_id"`
	Field      string    `gorm:"not null" json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	Timestamp  time.Time `json:"timestamp"`
}

// InventoryObservation records the quantity of an item on a given day.
// Observations back the inventory trend computation.
type InventoryObservation struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID     string    `gorm:"not null;index" json:"item_id"`
	ObservedAt time.Time `gorm:"not null;index" json:"observed_at"`
	Quantity   float64   `json:"quantity"`
}

// SupplyChainData is an immutable point-in-time snapshot of all entities.
// The engines never mutate a snapshot in place; a new snapshot is produced
// by the loader on refresh.
type SupplyChainData struct {
	Shipments   []Shipment      `json:"shipments"`
	Inventory   []InventoryItem `json:"inventory"`
	Suppliers   []Supplier      `json:"suppliers"`
	Nodes       []Node          `json:"nodes"`
	Edges       []Edge          `json:"edges"`
	LastUpdated time.Time       `json:"last_updated"`
}

// SupplierByID looks up a supplier within the snapshot
func (d *SupplyChainData) SupplierByID(id string) (Supplier, bool) {
	for _, s := range d.Suppliers {
		if s.ID == id {
			return s, true
		}
	}
	return Supplier{}, false
}

// ShipmentByID looks up a shipment within the snapshot
func (d *SupplyChainData) ShipmentByID(id string) (Shipment, bool) {
	for _, s := range d.Shipments {
		if s.ID == id {
			return s, true
		}
	}
	return Shipment{}, false
}

// ItemByID looks up an inventory item within the snapshot
func (d *SupplyChainData) ItemByID(id string) (InventoryItem, bool) {
	for _, i := range d.Inventory {
		if i.ID == id {
			return i, true
		}
	}
	return InventoryItem{}, false
}

// NodeByID looks up a network node within the snapshot
func (d *SupplyChainData) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// ReferencesResolve reports whether every cross-entity reference in the
// snapshot resolves: shipment supplier ids to suppliers, edge endpoints to
// nodes. A snapshot is consistent only when this holds.
func (d *SupplyChainData) ReferencesResolve() bool {
	supplierIDs := make(map[string]struct{}, len(d.Suppliers))
	for _, s := range d.Suppliers {
		supplierIDs[s.ID] = struct{}{}
	}
	for _, s := range d.Shipments {
		if s.SupplierID == "" {
			continue
		}
		if _, ok := supplierIDs[s.SupplierID]; !ok {
			return false
		}
	}

	nodeIDs := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		nodeIDs[n.ID] = struct{}{}
	}
	for _, e := range d.Edges {
		if _, ok := nodeIDs[e.SourceNodeID]; !ok {
			return false
		}
		if _, ok := nodeIDs[e.TargetNodeID]; !ok {
			return false
		}
	}

	return true
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Shipment{},
		&InventoryItem{},
		&Supplier{},
		&Node{},
		&Edge{},
		&Alert{},
		&StatusUpdate{},
		&InventoryObservation{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
