package repository

import (
	"context"

	"medqueue/internal/models"

	"github.com/google/uuid"
)

// PatientRepository defines the interface for patient profile operations
type PatientRepository interface {
	Repository
	Create(ctx context.Context, patient *models.Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Patient, error)
	List(ctx context.Context) ([]models.Patient, error)
	Update(ctx context.Context, patient *models.Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DoctorRepository defines the interface for doctor profile operations
type DoctorRepository interface {
	Repository
	Create(ctx context.Context, doctor *models.Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Doctor, error)
	List(ctx context.Context, specialization string) ([]models.Doctor, error)
	Update(ctx context.Context, doctor *models.Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
}
