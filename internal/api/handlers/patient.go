package handlers

import (
	"errors"
	"net/http"
	"strings"

	"medqueue/internal/auth"
	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PatientHandler handles patient profile requests
type PatientHandler struct {
	repo  repository.PatientRepository
	audit auditWriter
	log   *zap.Logger
}

// NewPatientHandler creates a new PatientHandler
func NewPatientHandler(repo repository.PatientRepository, auditRepo repository.AuditLogRepository, log *zap.Logger) *PatientHandler {
	return &PatientHandler{repo: repo, audit: auditWriter{repo: auditRepo, log: log}, log: log}
}

// ListPatients godoc
// @Summary List patients (staff only)
// @Tags patients
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Patient
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /patients [get]
func (h *PatientHandler) ListPatients(c *gin.Context) {
	patients, err := h.repo.List(c.Request.Context())
	if err != nil {
		internalError(c, h.log, "failed to list patients", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(patients))
}

// GetPatient godoc
// @Summary Get a patient
// @Description Patients may only read their own profile.
// @Tags patients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Patient ID"
// @Success 200 {object} models.Patient
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Patient not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /patients/{id} [get]
func (h *PatientHandler) GetPatient(c *gin.Context) {
	patient, ok := h.loadOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, patient)
}

// CreatePatient godoc
// @Summary Create a walk-in patient profile (staff only)
// @Tags patients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreatePatientRequest true "Patient"
// @Success 201 {object} models.Patient
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /patients [post]
func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req models.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	patient := &models.Patient{
		Name:    strings.TrimSpace(req.Name),
		Age:     req.Age,
		Gender:  req.Gender,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := h.repo.Create(c.Request.Context(), patient); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionCreate, "patient", patient.ID.String(),
		"Patient "+patient.Name+" created", nil)
	c.JSON(http.StatusCreated, patient)
}

// UpdatePatient godoc
// @Summary Update a patient profile
// @Description Patients may only update their own profile.
// @Tags patients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Patient ID"
// @Param request body models.UpdatePatientRequest true "Fields to change"
// @Success 200 {object} models.Patient
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Patient not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /patients/{id} [put]
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	var req models.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	patient, ok := h.loadOwned(c)
	if !ok {
		return
	}

	if req.Name != nil {
		patient.Name = strings.TrimSpace(*req.Name)
	}
	if req.Age != nil {
		patient.Age = req.Age
	}
	if req.Gender != nil {
		patient.Gender = *req.Gender
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}
	if req.Address != nil {
		patient.Address = *req.Address
	}

	if err := h.repo.Update(c.Request.Context(), patient); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionUpdate, "patient", patient.ID.String(),
		"Patient "+patient.Name+" updated", nil)
	c.JSON(http.StatusOK, patient)
}

// DeletePatient godoc
// @Summary Delete a patient profile (Admin only)
// @Tags patients
// @Security BearerAuth
// @Param id path string true "Patient ID"
// @Success 204 "No Content"
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Patient not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /patients/{id} [delete]
func (h *PatientHandler) DeletePatient(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionDelete, "patient", id.String(),
		"Patient deleted", nil)
	c.Status(http.StatusNoContent)
}

// loadOwned reads the patient named in the path and checks that a patient
// caller owns it
func (h *PatientHandler) loadOwned(c *gin.Context) (*models.Patient, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}
	patient, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.repoError(c, err)
		return nil, false
	}

	caller := auth.GetUserFromContext(c)
	if caller.Role == models.RolePatient && !ownedBy(patient.UserID, caller.ID) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient permissions"})
		return nil, false
	}
	return patient, true
}

func ownedBy(owner *uuid.UUID, userID uuid.UUID) bool {
	return owner != nil && *owner == userID
}

func (h *PatientHandler) repoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPatientNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "patient not found"})
	case errors.Is(err, repository.ErrProfileExists):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	default:
		internalError(c, h.log, "patient operation failed", err)
	}
}
