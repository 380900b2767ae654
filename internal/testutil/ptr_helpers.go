package testutil

import (
	"time"

	"github.com/google/uuid"
)

// String returns a pointer to the given string
func String(s string) *string {
	return &s
}

// Int returns a pointer to the given int
func Int(i int) *int {
	return &i
}

// Time returns a pointer to the given time.Time
func Time(t time.Time) *time.Time {
	return &t
}

// UUID returns a pointer to the given id
func UUID(id uuid.UUID) *uuid.UUID {
	return &id
}
