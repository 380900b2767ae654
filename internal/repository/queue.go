package repository

import (
	"context"

	"medqueue/internal/models"

	"github.com/google/uuid"
)

// QueueRepository defines the interface for waiting-line storage
type QueueRepository interface {
	Repository
	// NextSerial advances and returns the doctor's serial high-water mark.
	// It must run inside a transaction; the doctor row stays locked until it ends.
	NextSerial(ctx context.Context, doctorID uuid.UUID) (int, error)
	Create(ctx context.Context, entry *models.QueueEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.QueueEntry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]models.QueueEntry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus) (*models.QueueEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
