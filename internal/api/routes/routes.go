// Package routes handles the setup and configuration of API routes
package routes

import (
	_ "medqueue/docs" // Import swagger docs
	"medqueue/internal/api/handlers"
	"medqueue/internal/api/middleware"
	"medqueue/internal/auth"
	"medqueue/internal/config"
	"medqueue/internal/logger"
	"medqueue/internal/models"
	"medqueue/internal/queue"
	"medqueue/internal/ratelimit"
	"medqueue/internal/repository"
	"medqueue/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Dependencies carries everything the handlers need. Redis and Limiter may be nil.
type Dependencies struct {
	Config *config.Config
	Log    *zap.Logger
	DB     handlers.Pinger
	Redis  *redis.Client

	Users        repository.UserRepository
	Patients     repository.PatientRepository
	Doctors      repository.DoctorRepository
	Queue        repository.QueueRepository
	Appointments repository.AppointmentRepository
	AuditLogs    repository.AuditLogRepository

	Auth      *auth.Service
	Registrar *auth.Registrar
	Tokens    *auth.TokenService
	Limiter   ratelimit.Limiter
	Scheduler *scheduler.Manager
}

// SetupRoutes configures all API routes and their handlers
func SetupRoutes(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	log := deps.Log

	r := gin.New()
	r.Use(
		middleware.Logging(log),
		middleware.Recovery(log),
		middleware.Metrics(),
		middleware.CORS(cfg.API.AllowedOrigins),
		middleware.Compression(middleware.DefaultCompressionConfig()),
	)

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis)

	// Routes without rate limiting
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		Burst:    cfg.RateLimit.Burst,
	}, "/swagger", "/metrics", "/health")
	r.Use(limiter.Middleware())

	authMiddleware := middleware.NewAuthMiddleware(deps.Tokens, deps.Users)

	allocator := queue.NewAllocator(deps.Queue, logger.WithComponent(log, "queue"))
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Registrar, deps.Tokens, deps.Limiter, deps.AuditLogs, log)
	queueHandler := handlers.NewQueueHandler(allocator, deps.Patients, deps.Doctors, deps.AuditLogs, log)
	doctorHandler := handlers.NewDoctorHandler(deps.Doctors, deps.AuditLogs, log)
	patientHandler := handlers.NewPatientHandler(deps.Patients, deps.AuditLogs, log)
	appointmentHandler := handlers.NewAppointmentHandler(deps.Appointments, deps.Patients, deps.Doctors, deps.AuditLogs, log)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authMiddleware.OptionalAuth(), authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/verify-2fa", authHandler.VerifyTwoFactor)
			authRoutes.POST("/resend-code", authHandler.ResendCode)
			authRoutes.POST("/forgot-password", authHandler.ForgotPassword)
			authRoutes.POST("/verify-reset-code", authHandler.VerifyResetCode)
			authRoutes.POST("/reset-password", authHandler.ResetPassword)
			authRoutes.GET("/me", authMiddleware.AuthRequired(), authHandler.Me)
			authRoutes.PUT("/two-factor", authMiddleware.AuthRequired(), authHandler.SetTwoFactor)
		}

		queueRoutes := v1.Group("/queue")
		queueRoutes.Use(authMiddleware.AuthRequired())
		{
			queueRoutes.POST("", queueHandler.Enqueue)
			queueRoutes.GET("/doctor/:id", queueHandler.ListForDoctor)
			queueRoutes.GET("/patient/:id", queueHandler.ListForPatient)
			queueRoutes.PUT("/:id", authMiddleware.RequireRoles(models.RoleDoctor), queueHandler.UpdateStatus)
			queueRoutes.DELETE("/:id", queueHandler.Remove)
		}

		doctors := v1.Group("/doctors")
		{
			doctors.GET("", doctorHandler.ListDoctors)
			doctors.GET("/:id", doctorHandler.GetDoctor)

			adminDoctors := doctors.Group("")
			adminDoctors.Use(authMiddleware.AuthRequired(), authMiddleware.AdminRequired())
			{
				adminDoctors.POST("", doctorHandler.CreateDoctor)
				adminDoctors.PUT("/:id", doctorHandler.UpdateDoctor)
				adminDoctors.DELETE("/:id", doctorHandler.DeleteDoctor)
			}
		}

		patients := v1.Group("/patients")
		patients.Use(authMiddleware.AuthRequired())
		{
			patients.GET("", authMiddleware.RequireRoles(models.RoleDoctor), patientHandler.ListPatients)
			patients.POST("", authMiddleware.RequireRoles(models.RoleDoctor), patientHandler.CreatePatient)
			patients.GET("/:id", patientHandler.GetPatient)
			patients.PUT("/:id", patientHandler.UpdatePatient)
			patients.DELETE("/:id", authMiddleware.AdminRequired(), patientHandler.DeletePatient)
		}

		appointments := v1.Group("/appointments")
		appointments.Use(authMiddleware.AuthRequired())
		{
			appointments.POST("", appointmentHandler.CreateAppointment)
			appointments.GET("", appointmentHandler.ListAppointments)
			appointments.PUT("/:id", appointmentHandler.UpdateAppointment)
			appointments.DELETE("/:id", appointmentHandler.DeleteAppointment)
		}

		adminHandler := handlers.NewAdminHandler(deps.Scheduler, deps.AuditLogs, log)
		admin := v1.Group("/admin")
		admin.Use(authMiddleware.AuthRequired(), authMiddleware.AdminRequired())
		{
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.GET("/jobs", adminHandler.ListJobs)
			admin.POST("/jobs/:name/run", adminHandler.RunJob)
		}
	}

	return r
}
