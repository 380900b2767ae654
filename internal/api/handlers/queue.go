package handlers

import (
	"errors"
	"net/http"

	"medqueue/internal/auth"
	"medqueue/internal/models"
	"medqueue/internal/queue"
	"medqueue/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueueHandler manages doctors' waiting lines
type QueueHandler struct {
	allocator *queue.Allocator
	patients  repository.PatientRepository
	doctors   repository.DoctorRepository
	audit     auditWriter
	log       *zap.Logger
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(
	allocator *queue.Allocator,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	auditRepo repository.AuditLogRepository,
	log *zap.Logger,
) *QueueHandler {
	return &QueueHandler{
		allocator: allocator,
		patients:  patients,
		doctors:   doctors,
		audit:     auditWriter{repo: auditRepo, log: log},
		log:       log,
	}
}

// Enqueue godoc
// @Summary Check a patient into a doctor's line
// @Description Patients enqueue themselves. Doctors and admins must name the patient.
// @Tags queue
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.EnqueueRequest true "Doctor and patient"
// @Success 201 {object} models.QueueEntry
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 404 {object} models.ErrorResponse "Doctor or patient not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /queue [post]
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req models.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	caller := auth.GetUserFromContext(c)
	var patientID uuid.UUID
	if caller.Role == models.RolePatient {
		patient, err := ensurePatientProfile(c.Request.Context(), h.patients, caller)
		if err != nil {
			internalError(c, h.log, "failed to load patient profile", err)
			return
		}
		patientID = patient.ID
	} else {
		if req.PatientID == nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "patient_id is required"})
			return
		}
		patientID = *req.PatientID
	}

	entry, err := h.allocator.Enqueue(c.Request.Context(), req.DoctorID, patientID)
	if err != nil {
		h.queueError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(caller), models.AuditActionCreate, "queue_entry", entry.ID.String(),
		"Patient enqueued", map[string]any{"doctor_id": entry.DoctorID, "serial": entry.Serial})
	c.JSON(http.StatusCreated, entry)
}

// ListForDoctor godoc
// @Summary A doctor's waiting line
// @Tags queue
// @Produce json
// @Security BearerAuth
// @Param id path string true "Doctor ID"
// @Success 200 {array} models.QueueEntry
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /queue/doctor/{id} [get]
func (h *QueueHandler) ListForDoctor(c *gin.Context) {
	doctorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.allocator.ListForDoctor(c.Request.Context(), doctorID)
	if err != nil {
		internalError(c, h.log, "failed to list queue", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

// ListForPatient godoc
// @Summary A patient's queue entries across doctors
// @Description Patients may only list their own entries.
// @Tags queue
// @Produce json
// @Security BearerAuth
// @Param id path string true "Patient ID"
// @Success 200 {array} models.QueueEntry
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /queue/patient/{id} [get]
func (h *QueueHandler) ListForPatient(c *gin.Context) {
	patientID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if !h.canActForPatient(c, patientID) {
		return
	}

	entries, err := h.allocator.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		internalError(c, h.log, "failed to list queue", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

// UpdateStatus godoc
// @Summary Change the status of a queue entry
// @Description Any status may follow any other. Doctors may only touch their own line.
// @Tags queue
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param request body models.UpdateQueueStatusRequest true "New status"
// @Success 200 {object} models.QueueEntry
// @Failure 400 {object} models.ErrorResponse "Invalid status"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Entry not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /queue/{id} [put]
func (h *QueueHandler) UpdateStatus(c *gin.Context) {
	entryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateQueueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	entry, err := h.allocator.Get(c.Request.Context(), entryID)
	if err != nil {
		h.queueError(c, err)
		return
	}
	if !h.canActForDoctor(c, entry.DoctorID) {
		return
	}

	entry, err = h.allocator.UpdateStatus(c.Request.Context(), entryID, req.Status)
	if err != nil {
		h.queueError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionUpdate, "queue_entry", entry.ID.String(),
		"Queue status changed", map[string]any{"status": entry.Status})
	c.JSON(http.StatusOK, entry)
}

// Remove godoc
// @Summary Remove a queue entry
// @Description Staff may remove entries from lines they manage; patients may remove their own.
// @Tags queue
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 204 "No Content"
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Entry not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /queue/{id} [delete]
func (h *QueueHandler) Remove(c *gin.Context) {
	entryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.allocator.Get(c.Request.Context(), entryID)
	if err != nil {
		h.queueError(c, err)
		return
	}

	caller := auth.GetUserFromContext(c)
	if caller.Role == models.RolePatient {
		if !h.canActForPatient(c, entry.PatientID) {
			return
		}
	} else if !h.canActForDoctor(c, entry.DoctorID) {
		return
	}

	if err := h.allocator.Remove(c.Request.Context(), entryID); err != nil {
		h.queueError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(caller), models.AuditActionDelete, "queue_entry", entryID.String(),
		"Queue entry removed", map[string]any{"serial": entry.Serial})
	c.Status(http.StatusNoContent)
}

// canActForPatient lets staff through and limits patients to their own profile
func (h *QueueHandler) canActForPatient(c *gin.Context, patientID uuid.UUID) bool {
	caller := auth.GetUserFromContext(c)
	if caller.Role != models.RolePatient {
		return true
	}
	patient, err := h.patients.GetByUserID(c.Request.Context(), caller.ID)
	if err != nil && !errors.Is(err, repository.ErrPatientNotFound) {
		internalError(c, h.log, "failed to load patient profile", err)
		return false
	}
	if patient == nil || patient.ID != patientID {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient permissions"})
		return false
	}
	return true
}

// canActForDoctor lets admins through and limits doctors to their own line
func (h *QueueHandler) canActForDoctor(c *gin.Context, doctorID uuid.UUID) bool {
	caller := auth.GetUserFromContext(c)
	if caller.IsAdmin() {
		return true
	}
	if caller.Role != models.RoleDoctor {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient permissions"})
		return false
	}
	doctor, err := doctorProfileOf(c.Request.Context(), h.doctors, caller)
	if err != nil {
		internalError(c, h.log, "failed to load doctor profile", err)
		return false
	}
	if doctor == nil || doctor.ID != doctorID {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient permissions"})
		return false
	}
	return true
}

func (h *QueueHandler) queueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, queue.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		internalError(c, h.log, "queue operation failed", err)
	}
}

// nonNil keeps empty lists rendering as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
