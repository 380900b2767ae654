// Package queue assigns per-doctor waiting-line serials and tracks entry status.
package queue

import (
	"context"
	"errors"
	"fmt"

	"medqueue/internal/metrics"
	"medqueue/internal/models"
	"medqueue/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the doctor, patient or entry does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for an unknown status value
	ErrInvalidArgument = errors.New("invalid argument")
)

// maxAllocationAttempts bounds retries after a (doctor, serial) unique violation
const maxAllocationAttempts = 3

// Allocator hands out serials and manages queue entries
type Allocator struct {
	store repository.QueueRepository
	log   *zap.Logger
}

// NewAllocator creates a queue allocator on top of the given store
func NewAllocator(store repository.QueueRepository, log *zap.Logger) *Allocator {
	return &Allocator{store: store, log: log}
}

// Enqueue checks a patient into a doctor's line with the next free serial.
// Serial allocation and insert share one transaction so a failed insert
// never burns a serial.
func (a *Allocator) Enqueue(ctx context.Context, doctorID, patientID uuid.UUID) (*models.QueueEntry, error) {
	var entry *models.QueueEntry
	var err error
	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		entry, err = a.enqueueOnce(ctx, doctorID, patientID)
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			break
		}
		metrics.SerialConflictsTotal.Inc()
		a.log.Warn("serial conflict, retrying",
			zap.String("doctor_id", doctorID.String()),
			zap.Int("attempt", attempt),
		)
	}
	metrics.QueueOperationsTotal.WithLabelValues("enqueue", metrics.Status(err)).Inc()
	if err != nil {
		return nil, mapStoreError(err)
	}

	a.log.Info("patient enqueued",
		zap.String("doctor_id", doctorID.String()),
		zap.String("patient_id", patientID.String()),
		zap.Int("serial", entry.Serial),
	)
	return entry, nil
}

func (a *Allocator) enqueueOnce(ctx context.Context, doctorID, patientID uuid.UUID) (*models.QueueEntry, error) {
	var entry *models.QueueEntry
	err := a.store.Transaction(ctx, func(ctx context.Context) error {
		serial, err := a.store.NextSerial(ctx, doctorID)
		if err != nil {
			return err
		}
		e := &models.QueueEntry{
			DoctorID:  doctorID,
			PatientID: patientID,
			Serial:    serial,
			Status:    models.QueueStatusWaiting,
		}
		if err := a.store.Create(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	return entry, err
}

// ListForDoctor returns every entry for the doctor ordered by serial
func (a *Allocator) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]models.QueueEntry, error) {
	entries, err := a.store.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list queue for doctor: %w", err)
	}
	return entries, nil
}

// ListForPatient returns the patient's entries across doctors, newest first
func (a *Allocator) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]models.QueueEntry, error) {
	entries, err := a.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list queue for patient: %w", err)
	}
	return entries, nil
}

// Get returns a single entry
func (a *Allocator) Get(ctx context.Context, entryID uuid.UUID) (*models.QueueEntry, error) {
	entry, err := a.store.GetByID(ctx, entryID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return entry, nil
}

// UpdateStatus moves an entry to a new status. Any transition is allowed.
func (a *Allocator) UpdateStatus(ctx context.Context, entryID uuid.UUID, status models.QueueStatus) (*models.QueueEntry, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidArgument, status)
	}
	entry, err := a.store.UpdateStatus(ctx, entryID, status)
	metrics.QueueOperationsTotal.WithLabelValues("update_status", metrics.Status(err)).Inc()
	if err != nil {
		return nil, mapStoreError(err)
	}
	return entry, nil
}

// Remove deletes an entry. Remaining serials are left as they are.
func (a *Allocator) Remove(ctx context.Context, entryID uuid.UUID) error {
	err := a.store.Delete(ctx, entryID)
	metrics.QueueOperationsTotal.WithLabelValues("remove", metrics.Status(err)).Inc()
	if err != nil {
		return mapStoreError(err)
	}
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDoctorNotFound),
		errors.Is(err, repository.ErrPatientNotFound),
		errors.Is(err, repository.ErrQueueEntryNotFound),
		errors.Is(err, repository.ErrForeignKey),
		errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
