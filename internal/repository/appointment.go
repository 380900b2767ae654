package repository

import (
	"context"
	"time"

	"medqueue/internal/models"

	"github.com/google/uuid"
)

// AppointmentRepository defines the interface for appointment operations
type AppointmentRepository interface {
	Repository
	Create(ctx context.Context, appt *models.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, filter AppointmentFilter) ([]models.Appointment, error)
	Update(ctx context.Context, appt *models.Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// MarkMissed moves scheduled appointments older than before to missed
	MarkMissed(ctx context.Context, before time.Time) (int64, error)
}

// AppointmentFilter defines the filter options for listing appointments
type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *models.AppointmentStatus
	From      *time.Time
	To        *time.Time
}
