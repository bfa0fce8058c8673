package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/janseva/work-tracker-api/api/swagger"
	"github.com/janseva/work-tracker-api/internal/handler"
	"github.com/janseva/work-tracker-api/internal/middleware"
	"github.com/janseva/work-tracker-api/internal/models"
	"github.com/janseva/work-tracker-api/internal/repository"
	"github.com/janseva/work-tracker-api/internal/service"
	"github.com/janseva/work-tracker-api/pkg/cache"
	"github.com/janseva/work-tracker-api/pkg/config"
	"github.com/janseva/work-tracker-api/pkg/database"
	"github.com/janseva/work-tracker-api/pkg/export"
	"github.com/janseva/work-tracker-api/pkg/logger"
	corsmiddleware "github.com/janseva/work-tracker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/janseva/work-tracker-api/pkg/middleware/requestid"
)

// @title Work Tracker API
// @version 1.0.0
// @description Constituency work-tracking portal API
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	workRecordRepo := repository.NewWorkRecordRepository(db)

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, stats caching disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close()
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, true)
		}
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	sub := authSvc.OnAuthStateChange(func(event service.AuthEvent, session *models.SessionInfo) {
		logr.Info("auth state changed",
			zap.String("event", string(event)),
			zap.String("user_id", session.UserID))
	})
	defer sub.Unsubscribe()

	if err := authSvc.EnsureAdmin(context.Background(), cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName); err != nil {
		logr.Fatal("failed to bootstrap admin account", zap.Error(err))
	}

	workRecordSvc := service.NewWorkRecordService(workRecordRepo, userRepo, cacheSvc, metricsSvc, validate, logr, cfg.Stats.CacheTTL)
	exportSvc := service.NewExportService(workRecordSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr, cfg.Export.MaxRows)

	authHandler := handler.NewAuthHandler(authSvc, metricsSvc)
	workRecordHandler := handler.NewWorkRecordHandler(workRecordSvc, exportSvc, metricsSvc)
	dashboardHandler := handler.NewDashboardHandler(workRecordSvc, cfg.Stats.RecentEntries)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authProtected := api.Group("/auth", middleware.JWT(authSvc))
	authProtected.POST("/logout", authHandler.Logout)
	authProtected.POST("/logout-all", authHandler.LogoutAll)
	authProtected.GET("/me", authHandler.Me)
	authProtected.GET("/session", authHandler.Session)
	authProtected.POST("/register",
		middleware.RequireRoles(models.RoleAdmin),
		authHandler.Register)

	records := api.Group("/work-records", middleware.JWT(authSvc))
	records.POST("",
		middleware.Audit(userRepo, models.AuditActionRecordCreate, "work_record"),
		workRecordHandler.Create)
	records.GET("", workRecordHandler.List)
	records.GET("/export",
		middleware.Audit(userRepo, models.AuditActionExport, "work_record"),
		workRecordHandler.Export)
	records.GET("/:id", workRecordHandler.Get)
	records.PUT("/:id",
		middleware.Audit(userRepo, models.AuditActionRecordUpdate, "work_record"),
		workRecordHandler.Update)
	records.DELETE("/:id",
		middleware.Audit(userRepo, models.AuditActionRecordDelete, "work_record"),
		workRecordHandler.Delete)

	dashboard := api.Group("/dashboard", middleware.JWT(authSvc))
	dashboard.GET("/stats", dashboardHandler.Stats)
	dashboard.GET("/recent", dashboardHandler.Recent)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
