package services

import (
	"context"
	"sync"
	"time"

	"example.com/backstage/services/visibility/internal/alerting"
	"example.com/backstage/services/visibility/internal/cache"
	"example.com/backstage/services/visibility/internal/engine"
	"example.com/backstage/services/visibility/internal/export"
	"example.com/backstage/services/visibility/internal/messaging"
	"example.com/backstage/services/visibility/internal/metrics"
	"example.com/backstage/services/visibility/internal/models"
	"example.com/backstage/services/visibility/internal/performance"
	"example.com/backstage/services/visibility/internal/repositories"
	"example.com/backstage/services/visibility/internal/search"
	"example.com/backstage/services/visibility/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrSourceUnavailable is returned when the data source cannot be reached and
// no cached snapshot exists to fall back on
var ErrSourceUnavailable = errors.New("data source unavailable and no cached snapshot")

// ShipmentDetail is a shipment joined with its supplier and status history
type ShipmentDetail struct {
	Shipment      models.Shipment       `json:"shipment"`
	SupplierName  string                `json:"supplier_name"`
	StatusHistory []models.StatusUpdate `json:"status_history"`
}

// NodeDetail is a network node joined with its lanes and traffic
type NodeDetail struct {
	Node               models.Node       `json:"node"`
	InboundEdges       []models.Edge     `json:"inbound_edges"`
	OutboundEdges      []models.Edge     `json:"outbound_edges"`
	ConnectedShipments []models.Shipment `json:"connected_shipments"`
}

// StatusUpdateRequest describes a caller-initiated shipment status change
type StatusUpdateRequest struct {
	ShipmentID string                `json:"shipment_id"`
	Status     models.ShipmentStatus `json:"status"`
	Location   string                `json:"location"`
}

// VisibilityService orchestrates snapshot loading, filtering, analytics,
// alerting and export over the supply chain dataset
type VisibilityService struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database

	datasetRepo *repositories.DatasetRepository
	alertRepo   *repositories.AlertRepository
	statusRepo  *repositories.StatusUpdateRepository
	obsRepo     *repositories.InventoryObservationRepository

	cache         *cache.RedisCache
	elasticClient *search.ElasticClient
	serviceBus    messaging.ServiceBusClient
	tracer        tracing.Tracer
	metrics       *metrics.Metrics

	engine    *engine.Engine
	evaluator *alerting.Evaluator
	tracker   *performance.Tracker
	rules     alerting.Rules
	rowCap    int

	mu      sync.RWMutex
	current *models.SupplyChainData
}

// NewVisibilityService creates a new visibility service
func NewVisibilityService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	serviceBus messaging.ServiceBusClient,
	tracer tracing.Tracer,
	collector *metrics.Metrics,
	rules alerting.Rules,
	rowCap int,
) *VisibilityService {
	return &VisibilityService{
		db:            db,
		readOnlyDB:    readOnlyDB,
		datasetRepo:   repositories.NewDatasetRepository(db, readOnlyDB),
		alertRepo:     repositories.NewAlertRepository(db, readOnlyDB),
		statusRepo:    repositories.NewStatusUpdateRepository(db, readOnlyDB),
		obsRepo:       repositories.NewInventoryObservationRepository(db, readOnlyDB),
		cache:         redisCache,
		elasticClient: elasticClient,
		serviceBus:    serviceBus,
		tracer:        tracer,
		metrics:       collector,
		engine:        engine.NewEngine(),
		evaluator:     alerting.NewEvaluator(),
		tracker:       performance.NewTracker(),
		rules:         rules,
		rowCap:        rowCap,
	}
}

// Init seeds in-memory alert state from the database and loads the first
// snapshot. Called once on startup.
func (s *VisibilityService) Init(ctx context.Context) error {
	alerts, err := s.alertRepo.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load persisted alerts")
	}
	s.evaluator.Load(alerts)

	if _, err := s.RefreshSnapshot(ctx); err != nil {
		return err
	}
	return nil
}

// RefreshSnapshot loads a fresh snapshot from the database and updates the
// in-memory copy and the Redis cache. When the source is unreachable the
// previously cached snapshot is served instead; only when no cached copy
// exists does the refresh fail.
func (s *VisibilityService) RefreshSnapshot(ctx context.Context) (models.SupplyChainData, error) {
	txn := s.tracer.StartTransaction("refresh-snapshot")
	defer s.tracer.EndTransaction(txn)

	start := time.Now()
	data, err := s.datasetRepo.LoadSnapshot(ctx)
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.IncrementCounter("snapshot_refresh_failures")
		s.metrics.SetHealth("data_source", false)
		log.Warn().Err(err).Msg("Snapshot refresh failed, falling back to cached data")
		return s.cachedSnapshot(ctx)
	}
	data.LastUpdated = time.Now().UTC()

	s.mu.Lock()
	s.current = &data
	s.mu.Unlock()

	if err := s.cache.Set(ctx, cache.SnapshotKey, data); err != nil {
		log.Warn().Err(err).Msg("Failed to cache snapshot in Redis")
	}

	s.metrics.IncrementCounter("snapshot_refreshes")
	s.metrics.RecordTimer("snapshot_refresh", time.Since(start).Milliseconds())
	s.metrics.SetHealth("data_source", true)
	s.metrics.SetGauge("snapshot_shipments", int64(len(data.Shipments)))

	log.Info().
		Int("shipments", len(data.Shipments)).
		Int("inventory", len(data.Inventory)).
		Int("suppliers", len(data.Suppliers)).
		Int("nodes", len(data.Nodes)).
		Int("edges", len(data.Edges)).
		Msg("Snapshot refreshed")

	return data, nil
}

// ImportSnapshot replaces the stored dataset with an externally loaded
// snapshot (the CSV import path) and refreshes the in-memory copy
func (s *VisibilityService) ImportSnapshot(ctx context.Context, data models.SupplyChainData) error {
	if err := s.datasetRepo.SaveSnapshot(ctx, data); err != nil {
		return err
	}
	_, err := s.RefreshSnapshot(ctx)
	return err
}

// Snapshot returns the current snapshot, loading one if none is held yet
func (s *VisibilityService) Snapshot(ctx context.Context) (models.SupplyChainData, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current != nil {
		return *current, nil
	}
	return s.RefreshSnapshot(ctx)
}

// cachedSnapshot serves the in-memory snapshot, then the Redis copy, and
// finally fails with ErrSourceUnavailable
func (s *VisibilityService) cachedSnapshot(ctx context.Context) (models.SupplyChainData, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current != nil {
		return *current, nil
	}

	var data models.SupplyChainData
	if err := s.cache.Get(ctx, cache.SnapshotKey, &data); err == nil {
		s.mu.Lock()
		s.current = &data
		s.mu.Unlock()
		return data, nil
	}

	return models.SupplyChainData{}, ErrSourceUnavailable
}

// Filter applies filter criteria to the current snapshot
func (s *VisibilityService) Filter(ctx context.Context, criteria engine.FilterCriteria) (*engine.FilteredView, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("filter_requests")
	return s.engine.Apply(data, criteria), nil
}

// SearchEntities runs a substring search across the named fields of every
// entity type in the current snapshot
func (s *VisibilityService) SearchEntities(ctx context.Context, query string, fields []string) (*engine.FilteredView, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("search_requests")
	return s.engine.Search(data, query, fields)
}

// Dashboard computes the headline metrics for the current snapshot. When
// criteria are supplied the metrics cover the filtered view instead.
func (s *VisibilityService) Dashboard(ctx context.Context, criteria *engine.FilterCriteria) (performance.DashboardMetrics, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return performance.DashboardMetrics{}, err
	}
	if criteria != nil && criteria.Active() {
		data = s.engine.Apply(data, *criteria).Data
	}
	return performance.ComputeDashboard(data), nil
}

// ShipmentDetail returns a shipment with its supplier name and status history
func (s *VisibilityService) ShipmentDetail(ctx context.Context, shipmentID string) (ShipmentDetail, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return ShipmentDetail{}, err
	}

	shipment, ok := data.ShipmentByID(shipmentID)
	if !ok {
		return ShipmentDetail{}, errors.Wrapf(gorm.ErrRecordNotFound, "shipment %s", shipmentID)
	}

	detail := ShipmentDetail{Shipment: shipment}
	if supplier, ok := data.SupplierByID(shipment.SupplierID); ok {
		detail.SupplierName = supplier.Name
	}

	history, err := s.statusRepo.ListForShipment(ctx, shipmentID)
	if err != nil {
		log.Warn().Err(err).Str("shipment_id", shipmentID).Msg("Failed to load status history")
	} else {
		detail.StatusHistory = history
	}

	return detail, nil
}

// NodeDetail returns a network node with its lanes and the shipments
// travelling through them
func (s *VisibilityService) NodeDetail(ctx context.Context, nodeID string) (NodeDetail, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return NodeDetail{}, err
	}

	node, ok := data.NodeByID(nodeID)
	if !ok {
		return NodeDetail{}, errors.Wrapf(gorm.ErrRecordNotFound, "node %s", nodeID)
	}

	detail := NodeDetail{Node: node}
	shipmentIDs := make(map[string]struct{})
	for _, edge := range data.Edges {
		switch nodeID {
		case edge.TargetNodeID:
			detail.InboundEdges = append(detail.InboundEdges, edge)
		case edge.SourceNodeID:
			detail.OutboundEdges = append(detail.OutboundEdges, edge)
		default:
			continue
		}
		for _, id := range edge.ShipmentIDs {
			shipmentIDs[id] = struct{}{}
		}
	}

	for id := range shipmentIDs {
		if shipment, ok := data.ShipmentByID(id); ok {
			detail.ConnectedShipments = append(detail.ConnectedShipments, shipment)
		}
	}

	return detail, nil
}

// LowStockItems returns the items below the configured low stock threshold
func (s *VisibilityService) LowStockItems(ctx context.Context) ([]models.InventoryItem, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return performance.LowStockItems(data, s.rules.LowStockThreshold), nil
}

// InventoryTrend builds the trend series for an item over the trailing window
func (s *VisibilityService) InventoryTrend(ctx context.Context, itemID string, days int) (performance.TimeSeries, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return performance.TimeSeries{}, err
	}

	since := time.Now().AddDate(0, 0, -days)
	history, err := s.obsRepo.ListForItem(ctx, itemID, since)
	if err != nil {
		return performance.TimeSeries{}, err
	}

	return s.tracker.InventoryTrend(data, itemID, days, history)
}

// RecordInventoryObservation stores an observed quantity for trend history
func (s *VisibilityService) RecordInventoryObservation(ctx context.Context, itemID string, quantity float64) error {
	obs := &models.InventoryObservation{
		ID:         uuid.New(),
		ItemID:     itemID,
		ObservedAt: time.Now().UTC(),
		Quantity:   quantity,
	}
	return s.obsRepo.Record(ctx, obs)
}

// RecordInventoryLevels captures the current quantity of every item in the
// snapshot as trend observations. The worker calls this after each refresh.
func (s *VisibilityService) RecordInventoryLevels(ctx context.Context) error {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	for _, item := range data.Inventory {
		if err := s.RecordInventoryObservation(ctx, item.ID, item.Quantity); err != nil {
			return errors.Wrapf(err, "item %s", item.ID)
		}
	}
	return nil
}

// SupplierMetrics returns the performance figures for one supplier
func (s *VisibilityService) SupplierMetrics(ctx context.Context, supplierID string) (performance.SupplierMetrics, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return performance.SupplierMetrics{}, err
	}
	return s.tracker.SupplierMetrics(data, supplierID)
}

// RankSuppliers orders every supplier by the given criteria
func (s *VisibilityService) RankSuppliers(ctx context.Context, criteria performance.RankingCriteria) ([]performance.SupplierRanking, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.tracker.RankSuppliers(data, criteria)
}

// SupplierHistory returns weekly performance points for a supplier
func (s *VisibilityService) SupplierHistory(ctx context.Context, supplierID string, days int) ([]performance.PerformancePoint, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.tracker.PerformanceHistory(data, supplierID, days)
}

// EvaluateAlerts runs the alert rules against the current snapshot. New
// alerts are persisted, published to the Service Bus queue and indexed in
// Elasticsearch; delivery failures are logged without discarding the alert.
func (s *VisibilityService) EvaluateAlerts(ctx context.Context) ([]models.Alert, []alerting.RuleEvaluationError, error) {
	txn := s.tracer.StartTransaction("evaluate-alerts")
	defer s.tracer.EndTransaction(txn)

	data, err := s.Snapshot(ctx)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, nil, err
	}

	created, evalErrs := s.evaluator.Evaluate(data, s.rules)
	s.metrics.IncrementCounterBy("alerts_created", int64(len(created)))

	for i := range created {
		alert := created[i]

		if err := s.alertRepo.Save(ctx, &alert); err != nil {
			log.Error().Err(err).Str("alert_id", alert.ID.String()).Msg("Failed to persist alert")
			s.tracer.RecordError(txn, err)
		}

		if s.serviceBus != nil {
			if err := s.serviceBus.SendMessage(ctx, alert); err != nil {
				log.Warn().Err(err).Str("alert_id", alert.ID.String()).Msg("Failed to publish alert notification")
			}
		}

		if s.elasticClient != nil {
			if err := s.elasticClient.IndexAlert(ctx, &alert); err != nil {
				log.Warn().Err(err).Str("alert_id", alert.ID.String()).Msg("Failed to index alert")
			}
		}
	}

	if len(created) > 0 {
		log.Info().Int("count", len(created)).Msg("New alerts generated")
	}

	return created, evalErrs, nil
}

// Alerts returns every alert, open and acknowledged
func (s *VisibilityService) Alerts() []models.Alert {
	return s.evaluator.Alerts()
}

// OpenAlerts returns every unacknowledged alert
func (s *VisibilityService) OpenAlerts() []models.Alert {
	return s.evaluator.OpenAlerts()
}

// AcknowledgeAlert marks an alert acknowledged in memory and in the database
func (s *VisibilityService) AcknowledgeAlert(ctx context.Context, id uuid.UUID) (models.Alert, error) {
	alert, err := s.evaluator.Acknowledge(id)
	if err != nil {
		return models.Alert{}, err
	}

	if alert.AcknowledgedAt != nil {
		if err := s.alertRepo.MarkAcknowledged(ctx, alert.ID, *alert.AcknowledgedAt); err != nil {
			log.Error().Err(err).Str("alert_id", alert.ID.String()).Msg("Failed to persist alert acknowledgment")
		}
	}

	s.metrics.IncrementCounter("alerts_acknowledged")
	return alert, nil
}

// Export projects a filtered view into a flat table bounded by the row cap
func (s *VisibilityService) Export(ctx context.Context, criteria engine.FilterCriteria) (*export.Table, error) {
	view, err := s.Filter(ctx, criteria)
	if err != nil {
		return nil, err
	}

	table, err := export.Project(view, s.rowCap)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCounter("exports")
	return table, nil
}

// ApplyStatusUpdate persists a shipment status change, records it in the
// audit trail and refreshes the snapshot so the change is visible
func (s *VisibilityService) ApplyStatusUpdate(ctx context.Context, req StatusUpdateRequest) (models.StatusUpdate, error) {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return models.StatusUpdate{}, err
	}

	shipment, ok := data.ShipmentByID(req.ShipmentID)
	if !ok {
		return models.StatusUpdate{}, errors.Wrapf(gorm.ErrRecordNotFound, "shipment %s", req.ShipmentID)
	}

	if err := s.datasetRepo.UpdateShipmentStatus(ctx, req.ShipmentID, req.Status, req.Location); err != nil {
		return models.StatusUpdate{}, err
	}

	update := models.StatusUpdate{
		ID:         uuid.New(),
		EntityType: "shipment",
		EntityID:   req.ShipmentID,
		Field:      "status",
		OldValue:   string(shipment.Status),
		NewValue:   string(req.Status),
		Timestamp:  time.Now().UTC(),
	}
	if err := s.statusRepo.Record(ctx, &update); err != nil {
		log.Warn().Err(err).Str("shipment_id", req.ShipmentID).Msg("Failed to record status update")
	}

	if _, err := s.RefreshSnapshot(ctx); err != nil {
		log.Warn().Err(err).Msg("Snapshot refresh after status update failed")
	}

	log.Info().
		Str("shipment_id", req.ShipmentID).
		Str("old_status", string(shipment.Status)).
		Str("new_status", string(req.Status)).
		Msg("Shipment status updated")

	return update, nil
}
