package loader

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeDataset(t *testing.T, dir string) {
	writeFile(t, dir, "shipments.csv",
		"id,origin,destination,current_location,status,estimated_delivery,actual_delivery,items,supplier_id,created_at,updated_at\n"+
			"SHP-001,Shanghai,Rotterdam,Suez,in_transit,2024-03-10T08:00:00Z,,bolts;wire,SUP-001,2024-03-01T00:00:00Z,2024-03-05T00:00:00Z\n"+
			"SHP-002,Hamburg,Oslo,Oslo,delivered,2024-03-02T08:00:00Z,2024-03-02T06:00:00Z,,SUP-001,2024-02-20T00:00:00Z,2024-03-02T06:00:00Z\n")
	writeFile(t, dir, "inventory.csv",
		"id,name,category,location,quantity,unit,reorder_point,last_updated\n"+
			"INV-001,Steel Bolts,fasteners,Rotterdam,500.5,pcs,100,2024-03-01T00:00:00Z\n")
	writeFile(t, dir, "suppliers.csv",
		"id,name,contact,performance_score,on_time_delivery_rate,quality_score,average_lead_time,total_shipments,last_updated\n"+
			"SUP-001,Pacific Metals,pm@example.com,88.5,92,90,6.5,42,2024-03-01T00:00:00Z\n")
	writeFile(t, dir, "nodes.csv",
		"id,name,type,location,latitude,longitude,status,capacity\n"+
			"NODE-001,Shanghai Port,supplier,Shanghai,31.23,121.47,normal,5000\n"+
			"NODE-002,Rotterdam Hub,warehouse,Rotterdam,,,congested,\n")
	writeFile(t, dir, "edges.csv",
		"id,source_node_id,target_node_id,shipment_ids,active\n"+
			"EDGE-001,NODE-001,NODE-002,SHP-001;SHP-002,true\n")
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)

	data, err := NewCSVLoader(dir).Load()
	require.NoError(t, err)

	require.Len(t, data.Shipments, 2)
	require.Equal(t, "SHP-001", data.Shipments[0].ID)
	require.Equal(t, models.ShipmentInTransit, data.Shipments[0].Status)
	require.Equal(t, []string{"bolts", "wire"}, data.Shipments[0].Items)
	require.Nil(t, data.Shipments[0].ActualDelivery)
	require.NotNil(t, data.Shipments[1].ActualDelivery)
	require.Empty(t, data.Shipments[1].Items)

	require.Len(t, data.Inventory, 1)
	require.Equal(t, 500.5, data.Inventory[0].Quantity)

	require.Len(t, data.Suppliers, 1)
	require.Equal(t, 88.5, data.Suppliers[0].PerformanceScore)
	require.Equal(t, 42, data.Suppliers[0].TotalShipments)

	require.Len(t, data.Nodes, 2)
	require.True(t, data.Nodes[0].HasCoordinates())
	require.False(t, data.Nodes[1].HasCoordinates())
	require.Nil(t, data.Nodes[1].Capacity)

	require.Len(t, data.Edges, 1)
	require.True(t, data.Edges[0].Active)
	require.Equal(t, []string{"SHP-001", "SHP-002"}, data.Edges[0].ShipmentIDs)

	require.True(t, data.ReferencesResolve())
	require.False(t, data.LastUpdated.IsZero())
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	// Only shipments present, inventory.csv missing
	writeFile(t, dir, "shipments.csv",
		"id,origin,destination,current_location,status,estimated_delivery,actual_delivery,items,supplier_id,created_at,updated_at\n")

	_, err := NewCSVLoader(dir).Load()
	require.Error(t, err)
}

func TestLoadRejectsBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	writeFile(t, dir, "shipments.csv",
		"id,origin,destination,current_location,status,estimated_delivery,actual_delivery,items,supplier_id,created_at,updated_at\n"+
			"SHP-001,Shanghai,Rotterdam,Suez,in_transit,03/10/2024,,,SUP-001,2024-03-01T00:00:00Z,2024-03-05T00:00:00Z\n")

	_, err := NewCSVLoader(dir).Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "estimated_delivery")
}
