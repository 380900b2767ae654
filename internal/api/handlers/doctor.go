package handlers

import (
	"errors"
	"net/http"
	"strings"

	"medqueue/internal/auth"
	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DoctorHandler handles doctor profile requests
type DoctorHandler struct {
	repo  repository.DoctorRepository
	audit auditWriter
	log   *zap.Logger
}

// NewDoctorHandler creates a new DoctorHandler
func NewDoctorHandler(repo repository.DoctorRepository, auditRepo repository.AuditLogRepository, log *zap.Logger) *DoctorHandler {
	return &DoctorHandler{repo: repo, audit: auditWriter{repo: auditRepo, log: log}, log: log}
}

// ListDoctors godoc
// @Summary List doctors
// @Tags doctors
// @Produce json
// @Param specialization query string false "Filter by specialization"
// @Success 200 {array} models.Doctor
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /doctors [get]
func (h *DoctorHandler) ListDoctors(c *gin.Context) {
	doctors, err := h.repo.List(c.Request.Context(), strings.TrimSpace(c.Query("specialization")))
	if err != nil {
		internalError(c, h.log, "failed to list doctors", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(doctors))
}

// GetDoctor godoc
// @Summary Get a doctor
// @Tags doctors
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 200 {object} models.Doctor
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 404 {object} models.ErrorResponse "Doctor not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /doctors/{id} [get]
func (h *DoctorHandler) GetDoctor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	doctor, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.repoError(c, err)
		return
	}
	c.JSON(http.StatusOK, doctor)
}

// CreateDoctor godoc
// @Summary Create a doctor profile (Admin only)
// @Tags doctors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateDoctorRequest true "Doctor"
// @Success 201 {object} models.Doctor
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 409 {object} models.ErrorResponse "User already has a profile"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /doctors [post]
func (h *DoctorHandler) CreateDoctor(c *gin.Context) {
	var req models.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	doctor := &models.Doctor{
		UserID:         req.UserID,
		Name:           strings.TrimSpace(req.Name),
		Specialization: strings.TrimSpace(req.Specialization),
		Phone:          req.Phone,
		Chamber:        req.Chamber,
		AvailableDays:  req.AvailableDays,
	}
	if err := h.repo.Create(c.Request.Context(), doctor); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionCreate, "doctor", doctor.ID.String(),
		"Doctor "+doctor.Name+" created", nil)
	c.JSON(http.StatusCreated, doctor)
}

// UpdateDoctor godoc
// @Summary Update a doctor profile (Admin only)
// @Tags doctors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Doctor ID"
// @Param request body models.UpdateDoctorRequest true "Fields to change"
// @Success 200 {object} models.Doctor
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Doctor not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /doctors/{id} [put]
func (h *DoctorHandler) UpdateDoctor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	doctor, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.repoError(c, err)
		return
	}
	if req.Name != nil {
		doctor.Name = strings.TrimSpace(*req.Name)
	}
	if req.Specialization != nil {
		doctor.Specialization = strings.TrimSpace(*req.Specialization)
	}
	if req.Phone != nil {
		doctor.Phone = *req.Phone
	}
	if req.Chamber != nil {
		doctor.Chamber = *req.Chamber
	}
	if req.AvailableDays != nil {
		doctor.AvailableDays = *req.AvailableDays
	}

	if err := h.repo.Update(c.Request.Context(), doctor); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionUpdate, "doctor", doctor.ID.String(),
		"Doctor "+doctor.Name+" updated", nil)
	c.JSON(http.StatusOK, doctor)
}

// DeleteDoctor godoc
// @Summary Delete a doctor profile (Admin only)
// @Description Removes the doctor together with their queue entries and appointments.
// @Tags doctors
// @Security BearerAuth
// @Param id path string true "Doctor ID"
// @Success 204 "No Content"
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Doctor not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /doctors/{id} [delete]
func (h *DoctorHandler) DeleteDoctor(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionDelete, "doctor", id.String(),
		"Doctor deleted", nil)
	c.Status(http.StatusNoContent)
}

func (h *DoctorHandler) repoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrDoctorNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "doctor not found"})
	case errors.Is(err, repository.ErrProfileExists):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, repository.ErrForeignKey):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "user does not exist"})
	default:
		internalError(c, h.log, "doctor operation failed", err)
	}
}
