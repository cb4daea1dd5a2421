package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/klaslab/school-api/internal/handler"
	"github.com/klaslab/school-api/internal/repository"
	"github.com/klaslab/school-api/internal/service"
	"github.com/klaslab/school-api/pkg/cache"
	"github.com/klaslab/school-api/pkg/config"
	"github.com/klaslab/school-api/pkg/database"
	"github.com/klaslab/school-api/pkg/logger"
	"github.com/klaslab/school-api/pkg/mailer"
	"github.com/klaslab/school-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}

	urlSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	mail := mailer.New(cfg.Mail, logr)
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	classRepo := repository.NewClassRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	metricsService := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr, metricsService)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		Audience:           []string{cfg.JWT.Audience},
	})
	userService := service.NewUserService(userRepo, validate, logr)
	departmentService := service.NewDepartmentService(departmentRepo, userRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, departmentRepo, validate, logr)
	classService := service.NewClassService(classRepo, courseRepo, userRepo, mail, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, classRepo, cacheRepo, cfg.Cache.SummaryTTL, validate, logr)
	assignmentService := service.NewAssignmentService(assignmentRepo, classRepo, userRepo, fileStorage, urlSigner, service.UploadLimits{
		MaxFileSizeBytes:  cfg.Uploads.MaxFileSizeBytes,
		AllowedExtensions: cfg.Uploads.AllowedExtensions,
	}, mail, validate, logr)
	studentService := service.NewStudentService(classRepo, attendanceRepo, assignmentRepo, notificationRepo, cacheRepo, cfg.Cache.SummaryTTL, logr)
	notificationService := service.NewNotificationService(notificationRepo, classRepo, validate, logr)

	router := handler.NewRouter(cfg, logr, authService, metricsService, handler.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Department:   handler.NewDepartmentHandler(departmentService),
		Course:       handler.NewCourseHandler(courseService),
		Class:        handler.NewClassHandler(classService),
		Attendance:   handler.NewAttendanceHandler(attendanceService),
		Assignment:   handler.NewAssignmentHandler(assignmentService),
		Student:      handler.NewStudentHandler(studentService),
		Notification: handler.NewNotificationHandler(notificationService),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logr.Sugar().Infow("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
