package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/visibility/internal/models"
)

// DatasetRepository provides access to supply chain entity data
type DatasetRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *gorm.DB, readOnlyDB *gorm.DB) *DatasetRepository {
	return &DatasetRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// LoadSnapshot loads the full entity graph as a single snapshot
func (r *DatasetRepository) LoadSnapshot(ctx context.Context) (models.SupplyChainData, error) {
	var data models.SupplyChainData

	// Use read-only DB for reads
	db := r.readOnlyDB.WithContext(ctx)

	if err := db.Find(&data.Shipments).Error; err != nil {
		return models.SupplyChainData{}, errors.Wrap(err, "failed to load shipments")
	}
	if err := db.Find(&data.Inventory).Error; err != nil {
		return models.SupplyChainData{}, errors.Wrap(err, "failed to load inventory")
	}
	if err := db.Find(&data.Suppliers).Error; err != nil {
		return models.SupplyChainData{}, errors.Wrap(err, "failed to load suppliers")
	}
	if err := db.Find(&data.Nodes).Error; err != nil {
		return models.SupplyChainData{}, errors.Wrap(err, "failed to load nodes")
	}
	if err := db.Find(&data.Edges).Error; err != nil {
		return models.SupplyChainData{}, errors.Wrap(err, "failed to load edges")
	}

	return data, nil
}

// SaveSnapshot replaces the stored entity graph with a new snapshot. Used by
// the CSV import path.
func (r *DatasetRepository) SaveSnapshot(ctx context.Context, data models.SupplyChainData) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tables := []interface{}{
			&models.Edge{}, &models.Node{}, &models.Shipment{},
			&models.InventoryItem{}, &models.Supplier{},
		}
		for _, table := range tables {
			if err := tx.Where("1 = 1").Delete(table).Error; err != nil {
				return errors.Wrap(err, "failed to clear table")
			}
		}

		if len(data.Suppliers) > 0 {
			if err := tx.Create(&data.Suppliers).Error; err != nil {
				return errors.Wrap(err, "failed to save suppliers")
			}
		}
		if len(data.Shipments) > 0 {
			if err := tx.Create(&data.Shipments).Error; err != nil {
				return errors.Wrap(err, "failed to save shipments")
			}
		}
		if len(data.Inventory) > 0 {
			if err := tx.Create(&data.Inventory).Error; err != nil {
				return errors.Wrap(err, "failed to save inventory")
			}
		}
		if len(data.Nodes) > 0 {
			if err := tx.Create(&data.Nodes).Error; err != nil {
				return errors.Wrap(err, "failed to save nodes")
			}
		}
		if len(data.Edges) > 0 {
			if err := tx.Create(&data.Edges).Error; err != nil {
				return errors.Wrap(err, "failed to save edges")
			}
		}
		return nil
	})
}

// UpdateShipmentStatus updates a shipment's status and current location
func (r *DatasetRepository) UpdateShipmentStatus(ctx context.Context, shipmentID string, status models.ShipmentStatus, location string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if location != "" {
		updates["current_location"] = location
	}

	result := r.db.WithContext(ctx).Model(&models.Shipment{}).
		Where("id = ?", shipmentID).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update shipment status")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "shipment not found")
	}
	return nil
}

// AlertRepository provides access to alert data
type AlertRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB, readOnlyDB *gorm.DB) *AlertRepository {
	return &AlertRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// ListAll returns every stored alert
func (r *AlertRepository) ListAll(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	err := r.readOnlyDB.WithContext(ctx).Order("created_at desc").Find(&alerts).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list alerts")
	}
	return alerts, nil
}

// Save upserts an alert by id
func (r *AlertRepository) Save(ctx context.Context, alert *models.Alert) error {
	err := r.db.WithContext(ctx).Save(alert).Error
	if err != nil {
		return errors.Wrap(err, "failed to save alert")
	}
	return nil
}

// MarkAcknowledged records an acknowledgement for an alert
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"acknowledged":    true,
			"acknowledged_at": at,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to acknowledge alert")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "alert not found")
	}
	return nil
}

// StatusUpdateRepository provides access to the shipment status audit trail
type StatusUpdateRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewStatusUpdateRepository creates a new status update repository
func NewStatusUpdateRepository(db *gorm.DB, readOnlyDB *gorm.DB) *StatusUpdateRepository {
	return &StatusUpdateRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Record appends a status update to the audit trail
func (r *StatusUpdateRepository) Record(ctx context.Context, update *models.StatusUpdate) error {
	err := r.db.WithContext(ctx).Create(update).Error
	if err != nil {
		return errors.Wrap(err, "failed to record status update")
	}
	return nil
}

// forShipment scopes a query to the audit rows of one shipment, newest first
func forShipment(shipmentID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("entity_type = ? AND entity_id = ?", "shipment", shipmentID).
			Order("timestamp desc")
	}
}

// ListForShipment returns the status history for one shipment, newest first
func (r *StatusUpdateRepository) ListForShipment(ctx context.Context, shipmentID string) ([]models.StatusUpdate, error) {
	var updates []models.StatusUpdate
	err := r.readOnlyDB.WithContext(ctx).
		Scopes(forShipment(shipmentID)).
		Find(&updates).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list status updates")
	}
	return updates, nil
}

// InventoryObservationRepository provides access to inventory quantity history
type InventoryObservationRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewInventoryObservationRepository creates a new observation repository
func NewInventoryObservationRepository(db *gorm.DB, readOnlyDB *gorm.DB) *InventoryObservationRepository {
	return &InventoryObservationRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Record stores one observed quantity for an item
func (r *InventoryObservationRepository) Record(ctx context.Context, obs *models.InventoryObservation) error {
	err := r.db.WithContext(ctx).Create(obs).Error
	if err != nil {
		return errors.Wrap(err, "failed to record inventory observation")
	}
	return nil
}

// ListForItem returns the observations for an item within the trailing window
func (r *InventoryObservationRepository) ListForItem(ctx context.Context, itemID string, since time.Time) ([]models.InventoryObservation, error) {
	var observations []models.InventoryObservation
	err := r.readOnlyDB.WithContext(ctx).
		Where("item_id = ? AND observed_at >= ?", itemID, since).
		Order("observed_at asc").
		Find(&observations).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list inventory observations")
	}
	return observations, nil
}
