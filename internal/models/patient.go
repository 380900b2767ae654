package models

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the profile attached to a patient account
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Name      string     `json:"name"`
	Age       *int       `json:"age,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreatePatientRequest represents the request to create a patient profile
type CreatePatientRequest struct {
	Name    string `json:"name" binding:"required,max=100,nospaces" example:"John Smith"`
	Age     *int   `json:"age" binding:"omitempty,min=0,max=150" example:"42"`
	Gender  string `json:"gender" binding:"omitempty,max=20" example:"male"`
	Phone   string `json:"phone" binding:"omitempty,max=20"`
	Address string `json:"address" binding:"omitempty,max=255"`
}

// UpdatePatientRequest represents the request to update a patient profile
type UpdatePatientRequest struct {
	Name    *string `json:"name,omitempty" binding:"omitempty,max=100,nospaces"`
	Age     *int    `json:"age,omitempty" binding:"omitempty,min=0,max=150"`
	Gender  *string `json:"gender,omitempty" binding:"omitempty,max=20"`
	Phone   *string `json:"phone,omitempty" binding:"omitempty,max=20"`
	Address *string `json:"address,omitempty" binding:"omitempty,max=255"`
}
