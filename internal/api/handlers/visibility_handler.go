package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"example.com/backstage/services/visibility/internal/engine"
	"example.com/backstage/services/visibility/internal/export"
	"example.com/backstage/services/visibility/internal/models"
	"example.com/backstage/services/visibility/internal/performance"
	"example.com/backstage/services/visibility/internal/services"
	"example.com/backstage/services/visibility/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// VisibilityHandler handles dataset, analytics and export HTTP requests
type VisibilityHandler struct {
	service *services.VisibilityService
	tracer  tracing.Tracer
}

// NewVisibilityHandler creates a new visibility handler
func NewVisibilityHandler(service *services.VisibilityService, tracer tracing.Tracer) *VisibilityHandler {
	return &VisibilityHandler{
		service: service,
		tracer:  tracer,
	}
}

// FilterRequest represents filter criteria supplied by the caller
type FilterRequest struct {
	StartDate         string   `json:"start_date"`
	EndDate           string   `json:"end_date"`
	Status            []string `json:"status"`
	Location          []string `json:"location"`
	Category          []string `json:"category"`
	SearchQuery       string   `json:"search_query"`
	SearchFields      []string `json:"search_fields"`
	ResolveReferences bool     `json:"resolve_references"`
}

// toCriteria converts the request into engine criteria
func (r FilterRequest) toCriteria() (engine.FilterCriteria, error) {
	criteria := engine.FilterCriteria{
		Status:            r.Status,
		Location:          r.Location,
		Category:          r.Category,
		SearchQuery:       r.SearchQuery,
		SearchFields:      r.SearchFields,
		ResolveReferences: r.ResolveReferences,
	}

	if r.StartDate != "" || r.EndDate != "" {
		dateRange, err := engine.ParseDateRange(r.StartDate, r.EndDate)
		if err != nil {
			return engine.FilterCriteria{}, err
		}
		criteria.DateRange = &dateRange
	}

	return criteria, nil
}

// HandleDashboard returns the headline metrics for the current snapshot,
// optionally restricted by status, location and category query parameters
func (h *VisibilityHandler) HandleDashboard(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-dashboard")
	defer h.tracer.EndTransaction(txn)

	criteria := engine.FilterCriteria{
		Status:   splitParam(c.Query("status")),
		Location: splitParam(c.Query("location")),
		Category: splitParam(c.Query("category")),
	}

	dashboard, err := h.service.Dashboard(c, &criteria)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

// HandleListShipments returns every shipment in the current snapshot
func (h *VisibilityHandler) HandleListShipments(c *gin.Context) {
	data, err := h.service.Snapshot(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shipments": data.Shipments, "last_updated": data.LastUpdated})
}

// HandleListInventory returns the current inventory levels
func (h *VisibilityHandler) HandleListInventory(c *gin.Context) {
	data, err := h.service.Snapshot(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": data.Inventory, "last_updated": data.LastUpdated})
}

// HandleNetwork returns the node and edge sets of the supply chain network
func (h *VisibilityHandler) HandleNetwork(c *gin.Context) {
	data, err := h.service.Snapshot(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": data.Nodes, "edges": data.Edges, "last_updated": data.LastUpdated})
}

// HandleFilter applies filter criteria and returns the filtered view
func (h *VisibilityHandler) HandleFilter(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-filter")
	defer h.tracer.EndTransaction(txn)

	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid filter request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	criteria, err := req.toCriteria()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.service.Filter(c, criteria)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// HandleSearch runs a substring search across entity fields
func (h *VisibilityHandler) HandleSearch(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-search")
	defer h.tracer.EndTransaction(txn)

	query := c.Query("q")
	var fields []string
	if raw := c.Query("fields"); raw != "" {
		fields = strings.Split(raw, ",")
	}

	view, err := h.service.SearchEntities(c, query, fields)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// HandleShipmentDetail returns a shipment with supplier and status history
func (h *VisibilityHandler) HandleShipmentDetail(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-shipment-detail")
	defer h.tracer.EndTransaction(txn)

	detail, err := h.service.ShipmentDetail(c, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// StatusUpdateRequest represents a shipment status change request
type StatusUpdateRequest struct {
	Status   string `json:"status" binding:"required"`
	Location string `json:"location"`
}

// HandleStatusUpdate applies a shipment status change
func (h *VisibilityHandler) HandleStatusUpdate(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-status-update")
	defer h.tracer.EndTransaction(txn)

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update, err := h.service.ApplyStatusUpdate(c, services.StatusUpdateRequest{
		ShipmentID: c.Param("id"),
		Status:     models.ShipmentStatus(req.Status),
		Location:   req.Location,
	})
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, update)
}

// HandleNodeDetail returns a network node with its lanes and traffic
func (h *VisibilityHandler) HandleNodeDetail(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-node-detail")
	defer h.tracer.EndTransaction(txn)

	detail, err := h.service.NodeDetail(c, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// HandleLowStock returns the items below the low stock threshold
func (h *VisibilityHandler) HandleLowStock(c *gin.Context) {
	items, err := h.service.LowStockItems(c)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// HandleInventoryTrend returns the trend series for an item
func (h *VisibilityHandler) HandleInventoryTrend(c *gin.Context) {
	days, err := parseDays(c.DefaultQuery("days", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	series, err := h.service.InventoryTrend(c, c.Param("id"), days)
	if err != nil {
		if errors.Is(err, performance.ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, series)
}

// HandleSupplierMetrics returns the performance figures for one supplier
func (h *VisibilityHandler) HandleSupplierMetrics(c *gin.Context) {
	metrics, err := h.service.SupplierMetrics(c, c.Param("id"))
	if err != nil {
		if errors.Is(err, performance.ErrSupplierNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, metrics)
}

// HandleSupplierRankings orders suppliers by the requested metric
func (h *VisibilityHandler) HandleSupplierRankings(c *gin.Context) {
	criteria := performance.RankingCriteria{
		Metric:    performance.RankingMetric(c.DefaultQuery("metric", string(performance.MetricPerformanceScore))),
		Ascending: c.Query("ascending") == "true",
	}

	rankings, err := h.service.RankSuppliers(c, criteria)
	if err != nil {
		if errors.Is(err, performance.ErrInvalidMetric) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rankings": rankings})
}

// HandleSupplierHistory returns weekly performance points for a supplier
func (h *VisibilityHandler) HandleSupplierHistory(c *gin.Context) {
	days, err := parseDays(c.DefaultQuery("days", "90"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history, err := h.service.SupplierHistory(c, c.Param("id"), days)
	if err != nil {
		if errors.Is(err, performance.ErrSupplierNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// HandleExport projects the filtered view into a flat table
func (h *VisibilityHandler) HandleExport(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-export")
	defer h.tracer.EndTransaction(txn)

	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	criteria, err := req.toCriteria()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	table, err := h.service.Export(c, criteria)
	if err != nil {
		if errors.Is(err, export.ErrRowCapExceeded) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, table)
}

// RegisterRoutes registers the handler's routes
func (h *VisibilityHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/dashboard", h.HandleDashboard)
		api.POST("/filter", h.HandleFilter)
		api.GET("/search", h.HandleSearch)
		api.POST("/export", h.HandleExport)

		api.GET("/shipments", h.HandleListShipments)
		api.GET("/shipments/:id", h.HandleShipmentDetail)
		api.POST("/shipments/:id/status", h.HandleStatusUpdate)

		api.GET("/network", h.HandleNetwork)
		api.GET("/nodes/:id", h.HandleNodeDetail)

		api.GET("/inventory", h.HandleListInventory)
		api.GET("/inventory/low-stock", h.HandleLowStock)
		api.GET("/inventory/:id/trend", h.HandleInventoryTrend)

		api.GET("/suppliers/rankings", h.HandleSupplierRankings)
		api.GET("/suppliers/:id/metrics", h.HandleSupplierMetrics)
		api.GET("/suppliers/:id/history", h.HandleSupplierHistory)
	}
}

// respondError maps service errors to HTTP responses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrSourceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// splitParam turns a comma-separated query parameter into a slice
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func parseDays(raw string) (int, error) {
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0, errors.New("days must be a non-negative integer")
	}
	return days, nil
}
