package engine

import (
	"example.com/backstage/services/visibility/internal/models"
)

// Engine applies filter and search criteria to dataset snapshots. All
// methods are pure functions of their inputs and safe for concurrent use.
type Engine struct{}

// NewEngine creates a new filter engine
func NewEngine() *Engine {
	return &Engine{}
}

// Apply returns the subset of data for which every present constraint in
// criteria holds. Entities with no applicable constraint pass through
// unchanged. Edges are retained only when both endpoints survive the node
// filter. The result is always a subset of the input by identity.
func (e *Engine) Apply(data models.SupplyChainData, criteria FilterCriteria) *FilteredView {
	shipments := e.filterShipments(data.Shipments, criteria)
	inventory := e.filterInventory(data.Inventory, criteria)
	suppliers := e.filterSuppliers(data.Suppliers, criteria)
	nodes := e.filterNodes(data.Nodes, criteria)

	if criteria.ResolveReferences {
		suppliers = closeSupplierReferences(shipments, suppliers, data.Suppliers)
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
	}
}

// closeSupplierReferences adds back suppliers referenced by retained
// shipments so that supplier ids on the view still resolve within it.
func closeSupplierReferences(shipments []models.Shipment, filtered []models.Supplier, all []models.Supplier) []models.Supplier {
	present := make(map[string]struct{}, len(filtered))
	for _, s := range filtered {
		present[s.ID] = struct{}{}
	}

	needed := make(map[string]struct{})
	for _, s := range shipments {
		if s.SupplierID == "" {
			continue
		}
		if _, ok := present[s.SupplierID]; !ok {
			needed[s.SupplierID] = struct{}{}
		}
	}
	if len(needed) == 0 {
		return filtered
	}

	result := filtered
	for _, s := range all {
		if _, ok := needed[s.ID]; ok {
			result = append(result, s)
		}
	}
	return result
}

func (e *Engine) filterShipments(shipments []models.Shipment, criteria FilterCriteria) []models.Shipment {
	var result []models.Shipment
	for _, s := range shipments {
		if criteria.DateRange != nil && !criteria.DateRange.Contains(s.EstimatedDelivery) {
			continue
		}
		if len(criteria.Status) > 0 && !containsString(criteria.Status, string(s.Status)) {
			continue
		}
		if len(criteria.Location) > 0 &&
			!containsString(criteria.Location, s.Origin) &&
			!containsString(criteria.Location, s.Destination) &&
			!containsString(criteria.Location, s.CurrentLocation) {
			continue
		}
		if criteria.SearchQuery != "" && len(criteria.SearchFields) > 0 &&
			!matchShipment(s, criteria.SearchQuery, criteria.SearchFields) {
			continue
		}
		result = append(result, s)
	}
	return result
}

func (e *Engine) filterInventory(inventory []models.InventoryItem, criteria FilterCriteria) []models.InventoryItem {
	var result []models.InventoryItem
	for _, item := range inventory {
		if criteria.DateRange != nil && !criteria.DateRange.Contains(item.LastUpdated) {
			continue
		}
		if len(criteria.Location) > 0 && !containsString(criteria.Location, item.Location) {
			continue
		}
		if len(criteria.Category) > 0 && !containsString(criteria.Category, item.Category) {
			continue
		}
		if criteria.SearchQuery != "" && len(criteria.SearchFields) > 0 &&
			!matchInventoryItem(item, criteria.SearchQuery, criteria.SearchFields) {
			continue
		}
		result = append(result, item)
	}
	return result
}

func (e *Engine) filterSuppliers(suppliers []models.Supplier, criteria FilterCriteria) []models.Supplier {
	var result []models.Supplier
	for _, s := range suppliers {
		if criteria.DateRange != nil && !criteria.DateRange.Contains(s.LastUpdated) {
			continue
		}
		if criteria.SearchQuery != "" && len(criteria.SearchFields) > 0 &&
			!matchSupplier(s, criteria.SearchQuery, criteria.SearchFields) {
			continue
		}
		result = append(result, s)
	}
	return result
}

func (e *Engine) filterNodes(nodes []models.Node, criteria FilterCriteria) []models.Node {
	var result []models.Node
	for _, n := range nodes {
		if len(criteria.Status) > 0 && !containsString(criteria.Status, string(n.Status)) {
			continue
		}
		if len(criteria.Location) > 0 && !containsString(criteria.Location, n.Location) {
			continue
		}
		if criteria.SearchQuery != "" && len(criteria.SearchFields) > 0 &&
			!matchNode(n, criteria.SearchQuery, criteria.SearchFields) {
			continue
		}
		result = append(result, n)
	}
	return result
}
