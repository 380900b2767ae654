package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the state of a waiting-line entry
type QueueStatus string

const (
	QueueStatusWaiting  QueueStatus = "waiting"
	QueueStatusServed   QueueStatus = "served"
	QueueStatusCanceled QueueStatus = "canceled"
)

// Valid reports whether s is one of the known statuses
func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusWaiting, QueueStatusServed, QueueStatusCanceled:
		return true
	}
	return false
}

// QueueEntry is one patient's position in one doctor's line
type QueueEntry struct {
	ID        uuid.UUID   `json:"id"`
	PatientID uuid.UUID   `json:"patient_id"`
	DoctorID  uuid.UUID   `json:"doctor_id"`
	Serial    int         `json:"serial" example:"3"`
	Status    QueueStatus `json:"status" example:"waiting"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// EnqueueRequest checks a patient into a doctor's line
type EnqueueRequest struct {
	DoctorID  uuid.UUID  `json:"doctor_id" binding:"required"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
}

// UpdateQueueStatusRequest changes the status of an entry
type UpdateQueueStatusRequest struct {
	Status QueueStatus `json:"status" binding:"required,queuestatus" example:"served"`
}
