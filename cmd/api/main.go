package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/campusdesk/report-portal-api/internal/handler"
	"github.com/campusdesk/report-portal-api/internal/middleware"
	"github.com/campusdesk/report-portal-api/internal/models"
	"github.com/campusdesk/report-portal-api/internal/registry"
	"github.com/campusdesk/report-portal-api/internal/repository"
	"github.com/campusdesk/report-portal-api/internal/service"
	"github.com/campusdesk/report-portal-api/pkg/cache"
	"github.com/campusdesk/report-portal-api/pkg/config"
	"github.com/campusdesk/report-portal-api/pkg/database"
	"github.com/campusdesk/report-portal-api/pkg/logger"
	corsmiddleware "github.com/campusdesk/report-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusdesk/report-portal-api/pkg/middleware/requestid"
	"github.com/campusdesk/report-portal-api/pkg/storage"
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := repository.EnsureCoreTables(bootCtx, db); err != nil {
		logr.Sugar().Fatalw("failed to provision core tables", "error", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
			redisClient = nil
		}
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StagingDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload staging dir", "error", err)
	}

	validate := validator.New()
	reg := registry.New()

	schemaRepo := repository.NewSchemaRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metricsSvc := service.NewMetricsService()
	schemaSvc := service.NewSchemaService(schemaRepo, recordRepo, reg, auditRepo, validate, logr)
	recordSvc := service.NewRecordService(recordRepo, reg, validate, logr)
	timelineSvc := service.NewTimelineService(timelineRepo, redisClient, cfg.Workflow.TimelineCacheTTL, validate, logr)
	workflowSvc := service.NewWorkflowService(recordRepo, reg, timelineSvc, auditRepo, validate, cfg.Workflow.EnforceWindow, logr)
	importSvc := service.NewImportService(recordRepo, reg, uploadStore, auditRepo, logr)
	statsSvc := service.NewStatsService(recordRepo, reg, cfg.Stats.FanOutConcurrency, logr)

	if err := schemaSvc.Rehydrate(bootCtx); err != nil {
		logr.Sugar().Fatalw("failed to rehydrate table registry", "error", err)
	}
	metricsSvc.SetRegisteredTables(reg.Len())
	logr.Sugar().Infow("table registry rehydrated", "tables", reg.Len())

	schemaHandler := handler.NewSchemaHandler(schemaSvc)
	recordHandler := handler.NewRecordHandler(recordSvc)
	workflowHandler := handler.NewWorkflowHandler(workflowSvc, metricsSvc)
	importHandler := handler.NewImportHandler(importSvc, uploadStore, metricsSvc, cfg.Uploads.MaxFileSizeBytes)
	timelineHandler := handler.NewTimelineHandler(timelineSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	auditHandler := handler.NewAuditHandler(auditRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	schemas := api.Group("/schemas")
	schemas.Use(middleware.RequireRoles(models.RoleAuthority))
	{
		schemas.POST("", schemaHandler.Create)
		schemas.GET("", schemaHandler.List)
		schemas.GET("/:id", schemaHandler.Get)
		schemas.PUT("/:id", schemaHandler.Update)
		schemas.DELETE("/:id", schemaHandler.Delete)
	}

	tables := api.Group("/tables/:table")
	{
		tables.GET("/schema", schemaHandler.GetByTable)
		tables.POST("/records", middleware.RequireRoles(models.RoleSubmitter), recordHandler.Create)
		tables.GET("/records", recordHandler.List)
		tables.GET("/records/:id", recordHandler.Get)
		tables.PATCH("/records/:id", middleware.RequireRoles(models.RoleAuthority), recordHandler.Patch)
		tables.DELETE("/records/:id", middleware.RequireRoles(models.RoleSubmitter), workflowHandler.Delete)
		tables.POST("/import", middleware.RequireRoles(models.RoleSubmitter), importHandler.Upload)
	}

	workflow := api.Group("/workflow")
	{
		workflow.POST("/submit", middleware.RequireRoles(models.RoleSubmitter), workflowHandler.Submit)
		workflow.POST("/review", middleware.RequireRoles(models.RoleModerator), workflowHandler.Review)
		workflow.POST("/decide", middleware.RequireRoles(models.RoleAuthority), workflowHandler.Decide)
		workflow.POST("/decide/bulk", middleware.RequireRoles(models.RoleAuthority), workflowHandler.BulkDecide)
		workflow.POST("/edit", middleware.RequireRoles(models.RoleSubmitter), workflowHandler.Edit)
	}

	timeline := api.Group("/timeline")
	{
		timeline.GET("", timelineHandler.Get)
		timeline.PUT("", middleware.RequireRoles(models.RoleAuthority), timelineHandler.Upsert)
	}

	api.GET("/stats/submissions", middleware.RequireRoles(models.RoleSubmitter), statsHandler.Submitter)
	api.GET("/stats/departments/:department", middleware.RequireRoles(models.RoleModerator, models.RoleAuthority), statsHandler.Department)
	api.GET("/audit/:resource", middleware.RequireRoles(models.RoleAuthority), auditHandler.ListByResource)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
