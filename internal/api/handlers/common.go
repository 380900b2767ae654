package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// auditWriter records actions without failing the request that caused them
type auditWriter struct {
	repo repository.AuditLogRepository
	log  *zap.Logger
}

func (a auditWriter) record(c *gin.Context, userID *uuid.UUID, action models.AuditAction, entityType, entityID, description string, metadata map[string]any) {
	if a.repo == nil {
		return
	}
	entry := &models.CreateAuditLogRequest{
		UserID:      userID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.GetHeader("User-Agent"),
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = string(raw)
		}
	}
	// the request may already be cancelled once the response is written
	if err := a.repo.Create(context.WithoutCancel(c.Request.Context()), entry); err != nil {
		a.log.Warn("failed to create audit log",
			zap.String("action", string(action)),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// parseIDParam reads a uuid path parameter and writes a 400 when it is malformed
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func userIDPtr(user *models.User) *uuid.UUID {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

// ensurePatientProfile returns the caller's patient profile and creates one
// from the account when it is missing
func ensurePatientProfile(ctx context.Context, patients repository.PatientRepository, user *models.User) (*models.Patient, error) {
	patient, err := patients.GetByUserID(ctx, user.ID)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, repository.ErrPatientNotFound) {
		return nil, err
	}

	owner := user.ID
	patient = &models.Patient{UserID: &owner, Name: user.Username}
	if err := patients.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			return patients.GetByUserID(ctx, user.ID)
		}
		return nil, err
	}
	return patient, nil
}

// doctorProfileOf returns the doctor profile owned by user, or nil
func doctorProfileOf(ctx context.Context, doctors repository.DoctorRepository, user *models.User) (*models.Doctor, error) {
	doctor, err := doctors.GetByUserID(ctx, user.ID)
	if errors.Is(err, repository.ErrDoctorNotFound) {
		return nil, nil
	}
	return doctor, err
}

func internalError(c *gin.Context, log *zap.Logger, msg string, err error) {
	log.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msg})
}
