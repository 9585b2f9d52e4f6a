package repositories

import (
	"testing"

	"example.com/backstage/services/visibility/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

func dryRunDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	require.NoError(t, err)
	return db
}

func TestForShipmentQueriesAuditColumns(t *testing.T) {
	db := dryRunDB(t)

	var updates []models.StatusUpdate
	stmt := db.Scopes(forShipment("SHP-001")).Find(&updates).Statement

	sql := stmt.SQL.String()
	require.Contains(t, sql, "entity_type = ? AND entity_id = ?")
	require.Contains(t, sql, "ORDER BY timestamp desc")
	require.NotContains(t, sql, "shipment_id")
	require.NotContains(t, sql, "created_at")
	require.Equal(t, []interface{}{"shipment", "SHP-001"}, stmt.Vars)
}
