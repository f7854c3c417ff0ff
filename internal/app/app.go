// Package app wires configuration, storage and services shared by the API
// server and the console.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/repository"
	"github.com/noah-isme/student-management/internal/service"
	"github.com/noah-isme/student-management/pkg/cache"
	"github.com/noah-isme/student-management/pkg/config"
	"github.com/noah-isme/student-management/pkg/database"
	"github.com/noah-isme/student-management/pkg/storage"
)

// App holds the constructed services and the resources they borrow.
type App struct {
	DB       *sqlx.DB
	Metrics  *service.MetricsService
	Students *service.StudentService
	Courses  *service.CourseService
	Fees     *service.FeeService
	Exports  *service.ExportService

	cacheRepo *repository.CacheRepository
	logger    *zap.Logger
}

// Build connects to PostgreSQL, optionally Redis, and assembles every
// service. Redis problems disable the cache instead of failing startup.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Database.AutoSchema {
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	var redisClient redis.UniversalClient
	cacheEnabled := cfg.Cache.Enabled
	if cacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		switch {
		case err == nil:
			redisClient = client
		case errors.Is(err, cache.ErrNotConfigured):
			cacheEnabled = false
		default:
			logger.Warn("redis unavailable, course cache disabled", zap.Error(err))
			cacheEnabled = false
		}
	}

	store, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logger)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logger, cacheEnabled)

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	ledgerRepo := repository.NewFeeTransactionRepository(db)

	courses := service.NewCourseService(db, courseRepo, studentRepo, cacheSvc, cfg.Cache.TTL, validate, logger)

	return &App{
		DB:        db,
		Metrics:   metrics,
		Students:  service.NewStudentService(db, studentRepo, courseRepo, ledgerRepo, validate, logger),
		Courses:   courses,
		Fees:      service.NewFeeService(db, studentRepo, ledgerRepo, metrics, logger),
		Exports:   service.NewExportService(studentRepo, courses, store, logger),
		cacheRepo: cacheRepo,
		logger:    logger,
	}, nil
}

// Close releases the database pool and the Redis connection.
func (a *App) Close() error {
	var errs []error
	if err := a.cacheRepo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close postgres: %w", err))
	}
	return errors.Join(errs...)
}
