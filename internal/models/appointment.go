package models

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCanceled  AppointmentStatus = "canceled"
	AppointmentMissed    AppointmentStatus = "missed"
)

// Valid reports whether s is a known appointment status
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCanceled, AppointmentMissed:
		return true
	}
	return false
}

// Appointment is a scheduled visit of a patient to a doctor
type Appointment struct {
	ID              uuid.UUID         `json:"id"`
	PatientID       uuid.UUID         `json:"patient_id"`
	DoctorID        uuid.UUID         `json:"doctor_id"`
	AppointmentTime time.Time         `json:"appointment_time"`
	AppointmentType string            `json:"appointment_type" example:"consultation"`
	Notes           string            `json:"notes,omitempty"`
	Status          AppointmentStatus `json:"status" example:"scheduled"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CreateAppointmentRequest books an appointment
type CreateAppointmentRequest struct {
	DoctorID        uuid.UUID  `json:"doctor_id" binding:"required"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	AppointmentTime time.Time  `json:"appointment_time" binding:"required"`
	AppointmentType string     `json:"appointment_type" binding:"omitempty,max=50"`
	Notes           string     `json:"notes" binding:"omitempty,max=1000"`
}

// UpdateAppointmentRequest changes the status or time of an appointment
type UpdateAppointmentRequest struct {
	Status          *AppointmentStatus `json:"status,omitempty" binding:"omitempty,appointmentstatus"`
	AppointmentTime *time.Time         `json:"appointment_time,omitempty"`
	AppointmentType *string            `json:"appointment_type,omitempty" binding:"omitempty,max=50"`
	Notes           *string            `json:"notes,omitempty" binding:"omitempty,max=1000"`
}
