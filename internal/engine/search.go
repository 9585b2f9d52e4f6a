package engine

import (
	"strings"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/pkg/errors"
)

// ErrInvalidQuery is returned when none of the requested search fields is
// recognized for any entity type.
var ErrInvalidQuery = errors.New("no recognized search fields")

// Searchable fields are a fixed enumerated set per entity type, each mapped
// to an explicit accessor. Unknown field names are ignored rather than
// looked up dynamically.
var shipmentFields = map[string]func(models.Shipment) string{
	"id":               func(s models.Shipment) string { return s.ID },
	"origin":           func(s models.Shipment) string { return s.Origin },
	"destination":      func(s models.Shipment) string { return s.Destination },
	"current_location": func(s models.Shipment) string { return s.CurrentLocation },
	"status":           func(s models.Shipment) string { return string(s.Status) },
	"supplier_id":      func(s models.Shipment) string { return s.SupplierID },
}

var inventoryFields = map[string]func(models.InventoryItem) string{
	"id":       func(i models.InventoryItem) string { return i.ID },
	"name":     func(i models.InventoryItem) string { return i.Name },
	"category": func(i models.InventoryItem) string { return i.Category },
	"location": func(i models.InventoryItem) string { return i.Location },
	"unit":     func(i models.InventoryItem) string { return i.Unit },
}

var supplierFields = map[string]func(models.Supplier) string{
	"id":      func(s models.Supplier) string { return s.ID },
	"name":    func(s models.Supplier) string { return s.Name },
	"contact": func(s models.Supplier) string { return s.Contact },
}

var nodeFields = map[string]func(models.Node) string{
	"id":       func(n models.Node) string { return n.ID },
	"name":     func(n models.Node) string { return n.Name },
	"type":     func(n models.Node) string { return string(n.Type) },
	"location": func(n models.Node) string { return n.Location },
	"status":   func(n models.Node) string { return string(n.Status) },
}

// Search returns the entities for which at least one of the requested fields
// contains query as a case-insensitive substring. An empty query matches
// everything. Unknown field names are ignored; when no requested field is
// recognized for any entity type, ErrInvalidQuery is returned.
func (e *Engine) Search(data models.SupplyChainData, query string, fields []string) (*FilteredView, error) {
	if !anyFieldRecognized(fields) {
		return nil, errors.Wrapf(ErrInvalidQuery, "fields %v", fields)
	}

	if query == "" {
		view := data
		return &FilteredView{
			Data:                    view,
			ReferentiallyConsistent: view.ReferencesResolve(),
		}, nil
	}

	var shipments []models.Shipment
	for _, s := range data.Shipments {
		if matchShipment(s, query, fields) {
			shipments = append(shipments, s)
		}
	}
	var inventory []models.InventoryItem
	for _, item := range data.Inventory {
		if matchInventoryItem(item, query, fields) {
			inventory = append(inventory, item)
		}
	}
	var suppliers []models.Supplier
	for _, s := range data.Suppliers {
		if matchSupplier(s, query, fields) {
			suppliers = append(suppliers, s)
		}
	}
	var nodes []models.Node
	for _, n := range data.Nodes {
		if matchNode(n, query, fields) {
			nodes = append(nodes, n)
		}
	}

	nodeIDs := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		nodeIDs[n.ID] = struct{}{}
	}
	var edges []models.Edge
	for _, edge := range data.Edges {
		if _, ok := nodeIDs[edge.SourceNodeID]; !ok {
			continue
		}
		if _, ok := nodeIDs[edge.TargetNodeID]; !ok {
			continue
		}
		edges = append(edges, edge)
	}

	view := models.SupplyChainData{
		Shipments:   shipments,
		Inventory:   inventory,
		Suppliers:   suppliers,
		Nodes:       nodes,
		Edges:       edges,
		LastUpdated: data.LastUpdated,
	}

	return &FilteredView{
		Data:                    view,
		ReferentiallyConsistent: view.ReferencesResolve(),
	}, nil
}

func anyFieldRecognized(fields []string) bool {
	for _, f := range fields {
		if _, ok := shipmentFields[f]; ok {
			return true
		}
		if _, ok := inventoryFields[f]; ok {
			return true
		}
		if _, ok := supplierFields[f]; ok {
			return true
		}
		if _, ok := nodeFields[f]; ok {
			return true
		}
	}
	return false
}

func matchShipment(s models.Shipment, query string, fields []string) bool {
	q := strings.ToLower(query)
	for _, f := range fields {
		accessor, ok := shipmentFields[f]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(accessor(s)), q) {
			return true
		}
	}
	return false
}

func matchInventoryItem(item models.InventoryItem, query string, fields []string) bool {
	q := strings.ToLower(query)
	for _, f := range fields {
		accessor, ok := inventoryFields[f]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(accessor(item)), q) {
			return true
		}
	}
	return false
}

func matchSupplier(s models.Supplier, query string, fields []string) bool {
	q := strings.ToLower(query)
	for _, f := range fields {
		accessor, ok := supplierFields[f]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(accessor(s)), q) {
			return true
		}
	}
	return false
}

func matchNode(n models.Node, query string, fields []string) bool {
	q := strings.ToLower(query)
	for _, f := range fields {
		accessor, ok := nodeFields[f]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(accessor(n)), q) {
			return true
		}
	}
	return false
}
