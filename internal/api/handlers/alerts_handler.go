package handlers

import (
	"net/http"

	"example.com/backstage/services/visibility/internal/alerting"
	"example.com/backstage/services/visibility/internal/services"
	"example.com/backstage/services/visibility/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AlertsHandler handles alert-related HTTP requests
type AlertsHandler struct {
	service *services.VisibilityService
	tracer  tracing.Tracer
}

// NewAlertsHandler creates a new alerts handler
func NewAlertsHandler(service *services.VisibilityService, tracer tracing.Tracer) *AlertsHandler {
	return &AlertsHandler{
		service: service,
		tracer:  tracer,
	}
}

// HandleListAlerts returns alerts, optionally restricted to open ones
func (h *AlertsHandler) HandleListAlerts(c *gin.Context) {
	if c.Query("open") == "true" {
		c.JSON(http.StatusOK, gin.H{"alerts": h.service.OpenAlerts()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": h.service.Alerts()})
}

// HandleEvaluate runs the alert rules against the current snapshot
func (h *AlertsHandler) HandleEvaluate(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-evaluate-alerts")
	defer h.tracer.EndTransaction(txn)

	created, evalErrs, err := h.service.EvaluateAlerts(c)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	errMessages := make([]string, 0, len(evalErrs))
	for _, evalErr := range evalErrs {
		errMessages = append(errMessages, evalErr.Error())
	}

	c.JSON(http.StatusOK, gin.H{
		"created":           created,
		"evaluation_errors": errMessages,
	})
}

// HandleAcknowledge marks an alert acknowledged
func (h *AlertsHandler) HandleAcknowledge(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-acknowledge-alert")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	alert, err := h.service.AcknowledgeAlert(c, id)
	if err != nil {
		if errors.Is(err, alerting.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, alert)
}

// RegisterRoutes registers the handler's routes
func (h *AlertsHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/alerts", h.HandleListAlerts)
		api.POST("/alerts/evaluate", h.HandleEvaluate)
		api.POST("/alerts/:id/acknowledge", h.HandleAcknowledge)
	}
}
