package models

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is the profile attached to a doctor account
type Doctor struct {
	ID             uuid.UUID  `json:"id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	Name           string     `json:"name"`
	Specialization string     `json:"specialization"`
	Phone          string     `json:"phone,omitempty"`
	Chamber        string     `json:"chamber,omitempty"`
	AvailableDays  string     `json:"available_days,omitempty" example:"Mon,Wed,Fri"`
	// QueueSerial is the highest serial ever handed out for this doctor
	QueueSerial int       `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateDoctorRequest represents the request to create a doctor profile
type CreateDoctorRequest struct {
	Name           string     `json:"name" binding:"required,max=100,nospaces" example:"Dr. Rahman"`
	Specialization string     `json:"specialization" binding:"required,max=100,nospaces" example:"Cardiology"`
	Phone          string     `json:"phone" binding:"omitempty,max=20"`
	Chamber        string     `json:"chamber" binding:"omitempty,max=100"`
	AvailableDays  string     `json:"available_days" binding:"omitempty,max=100"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
}

// UpdateDoctorRequest represents the request to update a doctor profile
type UpdateDoctorRequest struct {
	Name           *string `json:"name,omitempty" binding:"omitempty,max=100,nospaces"`
	Specialization *string `json:"specialization,omitempty" binding:"omitempty,max=100,nospaces"`
	Phone          *string `json:"phone,omitempty" binding:"omitempty,max=20"`
	Chamber        *string `json:"chamber,omitempty" binding:"omitempty,max=100"`
	AvailableDays  *string `json:"available_days,omitempty" binding:"omitempty,max=100"`
}
