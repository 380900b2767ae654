package auth

import (
	"slices"

	"medqueue/internal/models"
)

// Authorize returns ErrForbidden unless the user holds one of the allowed roles.
// Admins pass every check.
func Authorize(user *models.User, allowed ...models.Role) error {
	if user == nil {
		return ErrForbidden
	}
	if user.IsAdmin() || slices.Contains(allowed, user.Role) {
		return nil
	}
	return ErrForbidden
}
