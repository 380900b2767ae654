package handlers

import (
	"errors"
	"net/http"
	"time"

	"medqueue/internal/auth"
	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultAppointmentType = "consultation"

// AppointmentHandler books and manages appointments
type AppointmentHandler struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	audit        auditWriter
	log          *zap.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler
func NewAppointmentHandler(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	auditRepo repository.AuditLogRepository,
	log *zap.Logger,
) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: appointments,
		patients:     patients,
		doctors:      doctors,
		audit:        auditWriter{repo: auditRepo, log: log},
		log:          log,
	}
}

// CreateAppointment godoc
// @Summary Book an appointment
// @Description Patients book for themselves; a missing patient profile is created from the account. Staff must name the patient.
// @Tags appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateAppointmentRequest true "Appointment"
// @Success 201 {object} models.Appointment
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 404 {object} models.ErrorResponse "Doctor or patient not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /appointments [post]
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req models.CreateAppointmentRequest
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

	appt := &models.Appointment{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		AppointmentTime: req.AppointmentTime.UTC(),
		AppointmentType: req.AppointmentType,
		Notes:           req.Notes,
		Status:          models.AppointmentScheduled,
	}
	if appt.AppointmentType == "" {
		appt.AppointmentType = defaultAppointmentType
	}
	if err := h.appointments.Create(c.Request.Context(), appt); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(caller), models.AuditActionCreate, "appointment", appt.ID.String(),
		"Appointment booked", map[string]any{"doctor_id": appt.DoctorID, "time": appt.AppointmentTime})
	c.JSON(http.StatusCreated, appt)
}

// ListAppointments godoc
// @Summary List appointments
// @Description Patients see their own, doctors see theirs, admins see all and may filter.
// @Tags appointments
// @Produce json
// @Security BearerAuth
// @Param doctor_id query string false "Filter by doctor (admin)"
// @Param patient_id query string false "Filter by patient (admin)"
// @Param status query string false "Filter by status"
// @Param from query string false "Earliest appointment time (RFC3339)"
// @Param to query string false "Latest appointment time, exclusive (RFC3339)"
// @Success 200 {array} models.Appointment
// @Failure 400 {object} models.ErrorResponse "Invalid parameters"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /appointments [get]
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	filter, ok := parseAppointmentFilter(c)
	if !ok {
		return
	}

	caller := auth.GetUserFromContext(c)
	switch caller.Role {
	case models.RolePatient:
		patient, err := h.patients.GetByUserID(c.Request.Context(), caller.ID)
		if errors.Is(err, repository.ErrPatientNotFound) {
			c.JSON(http.StatusOK, []models.Appointment{})
			return
		}
		if err != nil {
			internalError(c, h.log, "failed to load patient profile", err)
			return
		}
		filter.PatientID = &patient.ID
		filter.DoctorID = nil
	case models.RoleDoctor:
		doctor, err := doctorProfileOf(c.Request.Context(), h.doctors, caller)
		if err != nil {
			internalError(c, h.log, "failed to load doctor profile", err)
			return
		}
		if doctor == nil {
			c.JSON(http.StatusOK, []models.Appointment{})
			return
		}
		filter.DoctorID = &doctor.ID
	}

	appts, err := h.appointments.List(c.Request.Context(), filter)
	if err != nil {
		internalError(c, h.log, "failed to list appointments", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(appts))
}

// UpdateAppointment godoc
// @Summary Update an appointment
// @Tags appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Appointment ID"
// @Param request body models.UpdateAppointmentRequest true "Fields to change"
// @Success 200 {object} models.Appointment
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Appointment not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /appointments/{id} [put]
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	var req models.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	appt, ok := h.loadOwned(c)
	if !ok {
		return
	}

	if req.Status != nil {
		appt.Status = *req.Status
	}
	if req.AppointmentTime != nil {
		appt.AppointmentTime = req.AppointmentTime.UTC()
	}
	if req.AppointmentType != nil {
		appt.AppointmentType = *req.AppointmentType
	}
	if req.Notes != nil {
		appt.Notes = *req.Notes
	}

	if err := h.appointments.Update(c.Request.Context(), appt); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionUpdate, "appointment", appt.ID.String(),
		"Appointment updated", map[string]any{"status": appt.Status})
	c.JSON(http.StatusOK, appt)
}

// DeleteAppointment godoc
// @Summary Delete an appointment
// @Tags appointments
// @Security BearerAuth
// @Param id path string true "Appointment ID"
// @Success 204 "No Content"
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Appointment not found"
// @Failure 500 {object} models.ErrorResponse "Internal Server Error"
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	appt, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if err := h.appointments.Delete(c.Request.Context(), appt.ID); err != nil {
		h.repoError(c, err)
		return
	}

	h.audit.record(c, userIDPtr(auth.GetUserFromContext(c)), models.AuditActionDelete, "appointment", appt.ID.String(),
		"Appointment deleted", nil)
	c.Status(http.StatusNoContent)
}

// loadOwned reads the appointment in the path. Patients and doctors must be
// party to it; admins may touch any.
func (h *AppointmentHandler) loadOwned(c *gin.Context) (*models.Appointment, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}
	appt, err := h.appointments.GetByID(c.Request.Context(), id)
	if err != nil {
		h.repoError(c, err)
		return nil, false
	}

	caller := auth.GetUserFromContext(c)
	var owns bool
	switch caller.Role {
	case models.RoleAdmin:
		owns = true
	case models.RolePatient:
		patient, err := h.patients.GetByUserID(c.Request.Context(), caller.ID)
		if err != nil && !errors.Is(err, repository.ErrPatientNotFound) {
			internalError(c, h.log, "failed to load patient profile", err)
			return nil, false
		}
		owns = patient != nil && patient.ID == appt.PatientID
	case models.RoleDoctor:
		doctor, err := doctorProfileOf(c.Request.Context(), h.doctors, caller)
		if err != nil {
			internalError(c, h.log, "failed to load doctor profile", err)
			return nil, false
		}
		owns = doctor != nil && doctor.ID == appt.DoctorID
	}
	if !owns {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient permissions"})
		return nil, false
	}
	return appt, true
}

func parseAppointmentFilter(c *gin.Context) (repository.AppointmentFilter, bool) {
	var filter repository.AppointmentFilter
	for name, dst := range map[string]**uuid.UUID{"doctor_id": &filter.DoctorID, "patient_id": &filter.PatientID} {
		if raw := c.Query(name); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name})
				return filter, false
			}
			*dst = &id
		}
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AppointmentStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid status"})
			return filter, false
		}
		filter.Status = &status
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := c.Query(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name + ", expected RFC3339"})
				return filter, false
			}
			*dst = &t
		}
	}
	return filter, true
}

func (h *AppointmentHandler) repoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAppointmentNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "appointment not found"})
	case errors.Is(err, repository.ErrForeignKey):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "doctor or patient not found"})
	default:
		internalError(c, h.log, "appointment operation failed", err)
	}
}
