package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-engine/internal/application/port"
	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine      service.ApprovalEngine
	escalations service.EscalationManager
	configs     service.ConfigService
	logger      Logger
	now         func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine service.ApprovalEngine,
	escalations service.EscalationManager,
	configs service.ConfigService,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:      engine,
		escalations: escalations,
		configs:     configs,
		logger:      logger,
		now:         time.Now,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
	AlgorithmVersion string `json:"algorithm_version"`
}

// ListRecordsRequest represents query parameters for listing records
type ListRecordsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// DecisionRequest is the body of manual decision and escalation resolution calls
type DecisionRequest struct {
	ApproverID string `json:"approver_id" binding:"required"`
	Approve    *bool  `json:"approve" binding:"required"`
	Comment    string `json:"comment"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:           "healthy",
			Timestamp:        h.now().UTC().Format(time.RFC3339),
			AlgorithmVersion: entity.AlgorithmVersion,
		},
	})
}

// Evaluate handles POST /api/evaluations.
// With ?dry_run=true the decision is computed without persisting anything.
func (h *Handlers) Evaluate(c *gin.Context) {
	var item entity.ApprovalItem
	if err := c.ShouldBindJSON(&item); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid approval item", err)
		return
	}

	dryRun, _ := strconv.ParseBool(c.Query("dry_run"))

	var decision *entity.ApprovalDecision
	var err error
	if dryRun {
		decision, err = h.engine.PreviewDecision(c.Request.Context(), &item)
	} else {
		decision, err = h.engine.EvaluateForApproval(c.Request.Context(), &item)
	}
	if err != nil {
		h.fail(c, statusFor(err), "failed to evaluate item", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: decision})
}

// ListRecords handles GET /api/records
func (h *Handlers) ListRecords(c *gin.Context) {
	var req ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	records, err := h.engine.ListRecords(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.fail(c, statusFor(err), "failed to retrieve records", err)
		return
	}
	if records == nil {
		records = []*entity.ApprovalRecord{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// GetRecord handles GET /api/records/:id
func (h *Handlers) GetRecord(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	record, err := h.engine.GetRecord(c.Request.Context(), id)
	if err != nil {
		h.fail(c, statusFor(err), "failed to retrieve record", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// GetAuditTrail handles GET /api/records/:id/audit
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	entries, err := h.engine.GetAuditTrail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, statusFor(err), "failed to retrieve audit trail", err)
		return
	}
	if entries == nil {
		entries = []*entity.AuditTrailEntry{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// GetEscalationChain handles GET /api/records/:id/escalations
func (h *Handlers) GetEscalationChain(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	paths, err := h.escalations.GetEscalationChain(c.Request.Context(), id)
	if err != nil {
		h.fail(c, statusFor(err), "failed to retrieve escalation chain", err)
		return
	}
	if paths == nil {
		paths = []*entity.EscalationPath{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: paths})
}

// RecordDecision handles POST /api/records/:id/decision
func (h *Handlers) RecordDecision(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "approver_id and approve are required", err)
		return
	}

	record, err := h.engine.RecordManualDecision(c.Request.Context(), id, req.ApproverID, *req.Approve, req.Comment)
	if err != nil {
		h.fail(c, statusFor(err), "failed to record decision", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// ResolveEscalation handles POST /api/escalations/:id/resolve
func (h *Handlers) ResolveEscalation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "approver_id and approve are required", err)
		return
	}

	path, err := h.escalations.ResolveEscalation(c.Request.Context(), id, req.ApproverID, *req.Approve, req.Comment)
	if err != nil {
		h.fail(c, statusFor(err), "failed to resolve escalation", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: path})
}

// ProcessTimeout handles POST /api/escalations/:id/timeout
func (h *Handlers) ProcessTimeout(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	path, err := h.escalations.ProcessEscalationTimeout(c.Request.Context(), id, h.now().UTC())
	if err != nil {
		h.fail(c, statusFor(err), "failed to process escalation timeout", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: path})
}

// GetConfig handles GET /api/config
func (h *Handlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: h.configs.Current()})
}

// UpdateConfig handles PUT /api/config.
// Fields missing from the body keep their current values.
func (h *Handlers) UpdateConfig(c *gin.Context) {
	cfg := h.configs.Current().Clone()
	if err := c.ShouldBindJSON(cfg); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid configuration body", err)
		return
	}

	if err := h.configs.Update(c.Request.Context(), cfg); err != nil {
		h.fail(c, statusFor(err), "failed to update configuration", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: h.configs.Current()})
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handlers) fail(c *gin.Context, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "path", c.Request.URL.Path)
		c.JSON(status, Response{Success: false, Error: msg})
		return
	}
	c.JSON(status, Response{Success: false, Error: msg + ": " + err.Error()})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrRecordNotFound),
		errors.Is(err, service.ErrEscalationNotFound),
		errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotAssignedApprover):
		return http.StatusForbidden
	case errors.Is(err, service.ErrEscalationNotPending),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrGuardFailed),
		errors.Is(err, port.ErrStatusConflict):
		return http.StatusConflict
	case errors.Is(err, entity.ErrInvalidConfig),
		errors.Is(err, entity.ErrInvalidItem):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
