package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// Common errors
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrForeignKey     = errors.New("referenced record does not exist")

	// User errors
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")

	// Profile errors
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrProfileExists   = errors.New("profile already exists for user")

	// Queue errors
	ErrQueueEntryNotFound = errors.New("queue entry not found")

	// Appointment errors
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// PostgreSQL error codes mapped by MapError
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// MapError converts driver errors into repository sentinels and passes
// anything else through unchanged
func MapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		switch pqErr.Constraint {
		case "users_username_key":
			return ErrUsernameExists
		case "users_email_key":
			return ErrEmailExists
		case "patients_user_id_key", "doctors_user_id_key":
			return ErrProfileExists
		}
		return ErrDuplicateEntry
	case pqForeignKeyViolation:
		return ErrForeignKey
	}
	return err
}
