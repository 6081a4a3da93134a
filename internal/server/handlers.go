package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curiolabs/curio/internal/approval"
	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/monitoring"
	"github.com/curiolabs/curio/internal/registry"
)

// Handlers holds the HTTP API handlers.
type Handlers struct {
	registry  *registry.Registry
	gate      *approval.Gate
	metrics   *monitoring.Metrics
	logger    *logging.Logger
	startTime time.Time
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(reg *registry.Registry, gate *approval.Gate, metrics *monitoring.Metrics, logger *logging.Logger) *Handlers {
	return &Handlers{
		registry:  reg,
		gate:      gate,
		metrics:   metrics,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Root returns service identification.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "curio",
		"status":  "running",
	})
}

// Health returns service health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Stats returns current metric values as JSON.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":  h.metrics.GetSnapshot(),
		"registry": h.registry.Stats(),
	})
}

// ListServices returns all registered service definitions.
func (h *Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(),
	})
}

// executeRequest is the body for tool execution.
type executeRequest struct {
	ToolID string         `json:"tool_id" binding:"required"`
	Params map[string]any `json:"params"`
}

// ExecuteService runs a tool call. Gated tools block until a decision
// arrives over the WebSocket or the approvals API.
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timer := monitoring.NewTimer(h.metrics, req.ToolID)
	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params)
	if err != nil {
		timer.Stop("error")
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	status := "ok"
	if !result.Success {
		status = "failed"
	}
	timer.Stop(status)
	c.JSON(http.StatusOK, result)
}

// ListApprovals returns pending approval requests, oldest first.
func (h *Handlers) ListApprovals(c *gin.Context) {
	pending := h.gate.Pending()
	h.metrics.SetApprovalsPending(len(pending))
	c.JSON(http.StatusOK, gin.H{
		"approvals": pending,
	})
}

// approvalDecision is the body for approval responses.
type approvalDecision struct {
	Approved bool `json:"approved"`
}

// RespondApproval records a human decision on a pending request.
func (h *Handlers) RespondApproval(c *gin.Context) {
	id := c.Param("id")

	var decision approvalDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.gate.Respond(c.Request.Context(), id, decision.Approved); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	outcome := "rejected"
	if decision.Approved {
		outcome = "approved"
	}
	h.metrics.RecordApproval(outcome)
	h.metrics.SetApprovalsPending(len(h.gate.Pending()))

	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"status": outcome,
	})
}

// GetApproval returns one approval request by id, decided or not.
func (h *Handlers) GetApproval(c *gin.Context) {
	req, err := h.gate.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}
