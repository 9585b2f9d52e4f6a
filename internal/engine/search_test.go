package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchUnrecognizedFieldsRejected(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	_, err := engine.Search(data, "anything", []string{"weight", "carrier"})
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = engine.Search(data, "anything", nil)
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSearchEmptyQueryReturnsFullSnapshot(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	view, err := engine.Search(data, "", []string{"id"})
	require.NoError(t, err)
	require.Len(t, view.Data.Shipments, 3)
	require.Len(t, view.Data.Inventory, 2)
	require.Len(t, view.Data.Suppliers, 2)
	require.Len(t, view.Data.Nodes, 2)
}

func TestSearchCaseInsensitiveSubstring(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	view, err := engine.Search(data, "rotterdam", []string{"destination", "location", "name"})
	require.NoError(t, err)

	require.Len(t, view.Data.Shipments, 1)
	require.Equal(t, "SHP-001", view.Data.Shipments[0].ID)
	require.Len(t, view.Data.Inventory, 1)
	require.Equal(t, "INV-001", view.Data.Inventory[0].ID)
	require.Len(t, view.Data.Nodes, 1)
	require.Equal(t, "NODE-002", view.Data.Nodes[0].ID)
}

func TestSearchIgnoresUnknownFieldAmongValidOnes(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	// "carrier" is unknown everywhere and is simply skipped
	view, err := engine.Search(data, "pacific", []string{"carrier", "name", "current_location"})
	require.NoError(t, err)

	require.Len(t, view.Data.Suppliers, 1)
	require.Equal(t, "SUP-001", view.Data.Suppliers[0].ID)
	require.Len(t, view.Data.Shipments, 1)
	require.Equal(t, "SHP-003", view.Data.Shipments[0].ID)
}

func TestSearchNoMatchesYieldsEmptyView(t *testing.T) {
	engine := NewEngine()
	data := testSnapshot()

	view, err := engine.Search(data, "zzz-does-not-exist", []string{"id", "name"})
	require.NoError(t, err)
	require.Empty(t, view.Data.Shipments)
	require.Empty(t, view.Data.Inventory)
	require.Empty(t, view.Data.Suppliers)
	require.Empty(t, view.Data.Nodes)
	require.Empty(t, view.Data.Edges)
}
