package auth

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"medqueue/internal/events"
	"medqueue/internal/logger"
	"medqueue/internal/models"
	"medqueue/internal/repository"

	"go.uber.org/zap"
)

const defaultSpecialization = "General"

// Registrar creates accounts together with their patient or doctor profile
type Registrar struct {
	users            repository.UserRepository
	patients         repository.PatientRepository
	doctors          repository.DoctorRepository
	dispatcher       Dispatcher
	publisher        events.Publisher
	registrationOpen bool
	minPassword      int
	log              *zap.Logger
}

// NewRegistrar creates a registrar. registrationOpen controls self-service sign-up.
func NewRegistrar(
	users repository.UserRepository,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	dispatcher Dispatcher,
	publisher events.Publisher,
	registrationOpen bool,
	minPassword int,
	log *zap.Logger,
) *Registrar {
	return &Registrar{
		users:            users,
		patients:         patients,
		doctors:          doctors,
		dispatcher:       dispatcher,
		publisher:        publisher,
		registrationOpen: registrationOpen,
		minPassword:      minPassword,
		log:              logger.WithComponent(log, "registrar"),
	}
}

// Register creates an account. The first account ever created becomes an
// admin; after that only an admin caller may create admins or sign people up
// while registration is closed. caller is nil for anonymous requests.
func (r *Registrar) Register(ctx context.Context, req models.RegisterRequest, caller *models.User) (*models.User, error) {
	if utf8.RuneCountInString(req.Password) < r.minPassword {
		return nil, ErrWeakPassword
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	callerIsAdmin := caller != nil && caller.IsAdmin()
	role := req.Role
	if role == "" {
		role = models.RolePatient
	}

	user := &models.User{
		Username:         strings.TrimSpace(req.Username),
		Password:         hash,
		Email:            req.Email,
		TwoFactorEnabled: true,
	}

	err = r.users.Transaction(ctx, func(ctx context.Context) error {
		count, err := r.users.Count(ctx)
		if err != nil {
			return err
		}
		switch {
		case count == 0:
			role = models.RoleAdmin
		case role == models.RoleAdmin && !callerIsAdmin:
			return ErrAdminRequired
		case !r.registrationOpen && !callerIsAdmin:
			return ErrRegistrationClosed
		}
		user.Role = role

		if err := r.users.Create(ctx, user); err != nil {
			return err
		}
		return r.createProfile(ctx, user, req)
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("user registered",
		zap.String("user_id", user.UserID),
		zap.String("role", string(user.Role)),
	)
	event := events.Event{
		Type:       events.TypeUserRegistered,
		UserID:     user.UserID,
		OccurredAt: user.CreatedAt,
		Data:       map[string]string{"role": string(user.Role)},
	}
	r.dispatcher.Dispatch("publish_"+event.Type, func(ctx context.Context) error {
		return r.publisher.Publish(ctx, event)
	})
	return user, nil
}

func (r *Registrar) createProfile(ctx context.Context, user *models.User, req models.RegisterRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = user.Username
	}
	owner := user.ID

	switch user.Role {
	case models.RolePatient:
		return r.patients.Create(ctx, &models.Patient{UserID: &owner, Name: name, Phone: req.Phone})
	case models.RoleDoctor:
		specialization := strings.TrimSpace(req.Specialization)
		if specialization == "" {
			specialization = defaultSpecialization
		}
		return r.doctors.Create(ctx, &models.Doctor{
			UserID:         &owner,
			Name:           name,
			Specialization: specialization,
			Phone:          req.Phone,
		})
	}
	return nil
}
