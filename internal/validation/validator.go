// Package validation provides custom validators for the application
package validation

import (
	"strings"

	"medqueue/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Initialize registers all custom validators
func Initialize() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := Register(v); err != nil {
			panic(err)
		}
	}
}

// Register adds the custom tags to a validator instance
func Register(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"nospaces":          validateNoSpaces,
		"queuestatus":       validateQueueStatus,
		"appointmentstatus": validateAppointmentStatus,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// validateNoSpaces checks if a string contains non-space characters
func validateNoSpaces(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return strings.TrimSpace(value) != ""
}

func validateQueueStatus(fl validator.FieldLevel) bool {
	return models.QueueStatus(fl.Field().String()).Valid()
}

func validateAppointmentStatus(fl validator.FieldLevel) bool {
	return models.AppointmentStatus(fl.Field().String()).Valid()
}
