package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// ComparePassword compares a hashed password with a plain text password
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// unknownAccountHash is compared against when no account matches a login,
// at the same cost as a real hash
var unknownAccountHash = sync.OnceValue(func() string {
	hash, err := HashPassword("medqueue-unknown-account")
	if err != nil {
		return ""
	}
	return hash
})
