// Package main loads demo accounts, doctors, a queue and appointments into an
// empty MedQueue database
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"medqueue/internal/auth"
	"medqueue/internal/config"
	"medqueue/internal/database"
	"medqueue/internal/dispatch"
	"medqueue/internal/events"
	"medqueue/internal/logger"
	"medqueue/internal/models"
	"medqueue/internal/queue"
	"medqueue/internal/repository"
	"medqueue/internal/repository/postgres"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type demoAccount struct {
	username       string
	name           string
	role           models.Role
	specialization string
}

var demoAccounts = []demoAccount{
	{username: "admin", name: "Hospital Admin", role: models.RoleAdmin},
	{username: "drrahman", name: "Dr. Rahman", role: models.RoleDoctor, specialization: "Cardiology"},
	{username: "drkhan", name: "Dr. Khan", role: models.RoleDoctor, specialization: "Pediatrics"},
	{username: "jane", name: "Jane Doe", role: models.RolePatient},
	{username: "john", name: "John Smith", role: models.RolePatient},
}

func main() {
	envFile := flag.String("env", ".env", "Path to env file")
	password := flag.String("password", "password123", "Password for every demo account")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg := &config.Config{}
	cfgErr := cfg.LoadFromEnv()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if cfgErr != nil {
		log.Fatal("failed to load configuration", zap.Error(cfgErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	s := &seeder{
		users:        postgres.NewUserRepository(db),
		patients:     postgres.NewPatientRepository(db),
		doctors:      postgres.NewDoctorRepository(db),
		appointments: postgres.NewAppointmentRepository(db),
		allocator:    queue.NewAllocator(postgres.NewQueueRepository(db), log),
		log:          log,
	}

	pool := dispatch.NewPool(1, 16, cfg.Email.Timeout, log)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = pool.Stop(stopCtx)
	}()
	s.registrar = auth.NewRegistrar(s.users, s.patients, s.doctors, pool, events.Nop{},
		true, cfg.Security.MinPasswordLength, log)

	if err := s.run(ctx, *password); err != nil {
		log.Fatal("seeding failed", zap.Error(err))
	}
}

type seeder struct {
	users        repository.UserRepository
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	allocator    *queue.Allocator
	registrar    *auth.Registrar
	log          *zap.Logger
}

func (s *seeder) run(ctx context.Context, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		s.log.Info("database already has accounts, nothing to seed", zap.Int("users", count))
		return nil
	}

	var admin *models.User
	var doctors []*models.Doctor
	var patients []*models.Patient
	for _, acc := range demoAccounts {
		user, err := s.registrar.Register(ctx, models.RegisterRequest{
			Username:       acc.username,
			Password:       password,
			Email:          acc.username + "@medqueue.local",
			Role:           acc.role,
			Name:           acc.name,
			Specialization: acc.specialization,
		}, admin)
		if err != nil {
			return fmt.Errorf("register %s: %w", acc.username, err)
		}
		s.log.Info("account created",
			zap.String("user_id", user.UserID),
			zap.String("username", user.Username),
			zap.String("role", string(user.Role)),
		)

		switch user.Role {
		case models.RoleAdmin:
			admin = user
		case models.RoleDoctor:
			d, err := s.doctors.GetByUserID(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("load doctor profile: %w", err)
			}
			doctors = append(doctors, d)
		case models.RolePatient:
			p, err := s.patients.GetByUserID(ctx, user.ID)
			if err != nil {
				return fmt.Errorf("load patient profile: %w", err)
			}
			patients = append(patients, p)
		}
	}

	// every patient waits in the first doctor's line
	for _, p := range patients {
		entry, err := s.allocator.Enqueue(ctx, doctors[0].ID, p.ID)
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", p.Name, err)
		}
		s.log.Info("queue entry created", zap.String("patient", p.Name), zap.Int("serial", entry.Serial))
	}

	tomorrow := time.Now().UTC().Truncate(24 * time.Hour).Add(24*time.Hour + 10*time.Hour)
	for i, p := range patients {
		appt := &models.Appointment{
			PatientID:       p.ID,
			DoctorID:        doctors[i%len(doctors)].ID,
			AppointmentTime: tomorrow.Add(time.Duration(i) * 30 * time.Minute),
			AppointmentType: "consultation",
			Status:          models.AppointmentScheduled,
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return fmt.Errorf("book appointment for %s: %w", p.Name, err)
		}
	}

	s.log.Info("demo data loaded",
		zap.Int("doctors", len(doctors)),
		zap.Int("patients", len(patients)),
	)
	return nil
}
