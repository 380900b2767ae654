package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"medqueue/internal/models"
	"medqueue/internal/repository"
	"medqueue/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminHandler exposes maintenance jobs and the audit trail
type AdminHandler struct {
	manager *scheduler.Manager
	audit   repository.AuditLogRepository
	log     *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(manager *scheduler.Manager, auditRepo repository.AuditLogRepository, log *zap.Logger) *AdminHandler {
	return &AdminHandler{manager: manager, audit: auditRepo, log: log}
}

// RunJobResponse is returned when a job was started
type RunJobResponse struct {
	Message string `json:"message" example:"job appointment_sweep started"`
}

// ListJobs godoc
// @Summary List maintenance jobs (Admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} scheduler.JobInfo
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/jobs [get]
func (h *AdminHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Jobs())
}

// RunJob godoc
// @Summary Run a maintenance job now (Admin only)
// @Description Starts the job in the background and returns immediately.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param name path string true "Job name"
// @Success 202 {object} RunJobResponse
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Job not found"
// @Failure 409 {object} models.ErrorResponse "Job disabled"
// @Router /admin/jobs/{name}/run [post]
func (h *AdminHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	job, found := h.manager.GetJob(name)
	if !found {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: scheduler.ErrJobNotFound.Error()})
		return
	}
	if !job.Config().Enabled {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: scheduler.ErrJobDisabled.Error()})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := h.manager.RunJob(ctx, name); err != nil && !errors.Is(err, scheduler.ErrJobDisabled) {
			h.log.Error("manual job run failed", zap.String("job", name), zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, RunJobResponse{Message: "job " + name + " started"})
}

// ListAuditLogs godoc
// @Summary List audit log entries (Admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "Filter by acting user"
// @Param action query []string false "Filter by action" collectionFormat(multi)
// @Param entity_type query []string false "Filter by entity type" collectionFormat(multi)
// @Param limit query integer false "Limit results (default 100)"
// @Param offset query integer false "Offset results"
// @Success 200 {array} models.AuditLog
// @Failure 400 {object} models.ErrorResponse "Invalid parameters"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	filter := repository.AuditLogFilter{EntityTypes: c.QueryArray("entity_type")}

	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user_id"})
			return
		}
		filter.UserID = &id
	}
	for _, action := range c.QueryArray("action") {
		filter.Actions = append(filter.Actions, models.AuditAction(action))
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}
	filter.Limit = &limit
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid offset"})
			return
		}
		filter.Offset = &n
	}

	logs, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		internalError(c, h.log, "failed to list audit logs", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(logs))
}
