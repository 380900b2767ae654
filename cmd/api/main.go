// Package main provides the entry point for the MedQueue API server
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"medqueue/internal/api/routes"
	"medqueue/internal/api/server"
	"medqueue/internal/auth"
	"medqueue/internal/config"
	"medqueue/internal/database"
	"medqueue/internal/dispatch"
	"medqueue/internal/email"
	"medqueue/internal/events"
	"medqueue/internal/logger"
	"medqueue/internal/ratelimit"
	"medqueue/internal/repository/postgres"
	"medqueue/internal/scheduler"
	"medqueue/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", ".env", "Path to env file")
	flag.Parse()

	envErr := godotenv.Load(*envFile)

	cfg := &config.Config{}
	cfgErr := cfg.LoadFromEnv()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if envErr != nil && *envFile == ".env" {
		log.Warn("env file not loaded", zap.Error(envErr))
	}
	if cfgErr != nil {
		log.Fatal("failed to load configuration", zap.Error(cfgErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	validation.Initialize()
	if cfg.Log.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	users := postgres.NewUserRepository(db)
	patients := postgres.NewPatientRepository(db)
	doctors := postgres.NewDoctorRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	appointments := postgres.NewAppointmentRepository(db)
	auditLogs := postgres.NewAuditLogRepository(db)

	var rdb *redis.Client
	var limiter ratelimit.Limiter = ratelimit.Nop{}
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.Security.CodeRequestLimit, cfg.Security.CodeRequestWindow, log)
	} else {
		log.Info("REDIS_ADDR not set, code request throttle disabled")
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	} else {
		log.Info("KAFKA_BROKERS not set, security events are not published")
	}
	defer publisher.Close()

	mailer := email.NewService(cfg.Email, log)
	if !cfg.Email.Enabled() {
		log.Warn("SMTP not configured, codes are only available through the development fallback")
	}

	pool := dispatch.NewPool(cfg.Security.NotificationWorker, cfg.Security.NotificationQueue, cfg.Email.Timeout, log)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pool.Stop(stopCtx); err != nil {
			log.Warn("notification pool did not drain", zap.Error(err))
		}
	}()

	authService := auth.NewService(users, mailer, pool, publisher, auth.SettingsFromConfig(cfg), log)
	registrar := auth.NewRegistrar(users, patients, doctors, pool, publisher,
		cfg.Auth.RegistrationOpen, cfg.Security.MinPasswordLength, log)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpiration)*time.Hour)

	jobs := scheduler.NewManager(log)
	jobs.RegisterJob(scheduler.NewAppointmentSweep(appointments, cfg.Scheduler.MissedAppointmentIn,
		scheduler.Config{Schedule: cfg.Scheduler.AppointmentSweep, Enabled: cfg.Scheduler.Enabled}, log))
	jobs.RegisterJob(scheduler.NewCodePurge(users,
		scheduler.Config{Schedule: cfg.Scheduler.CodePurge, Enabled: cfg.Scheduler.Enabled}, log))
	jobs.RegisterJob(scheduler.NewAuditCleanup(auditLogs, cfg.Security.AuditLogRetention,
		scheduler.Config{Schedule: cfg.Scheduler.AuditCleanup, Enabled: cfg.Scheduler.Enabled}, log))

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := jobs.StartScheduler(ctx); err != nil {
			log.Error("scheduler stopped", zap.Error(err))
		}
	}()

	srv, err := server.New(routes.Dependencies{
		Config:       cfg,
		Log:          log,
		DB:           db,
		Redis:        rdb,
		Users:        users,
		Patients:     patients,
		Doctors:      doctors,
		Queue:        queueRepo,
		Appointments: appointments,
		AuditLogs:    auditLogs,
		Auth:         authService,
		Registrar:    registrar,
		Tokens:       tokens,
		Limiter:      limiter,
		Scheduler:    jobs,
	})
	if err != nil {
		log.Fatal("failed to create server", zap.Error(err))
	}

	if err := srv.Start(ctx); err != nil {
		log.Error("server error", zap.Error(err))
		stop()
	}
	<-schedulerDone
	log.Info("server exiting")
}
