package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/enrol-pay-api/api/swagger"
	"github.com/noah-isme/enrol-pay-api/internal/gateway"
	"github.com/noah-isme/enrol-pay-api/internal/handler"
	"github.com/noah-isme/enrol-pay-api/internal/middleware"
	"github.com/noah-isme/enrol-pay-api/internal/repository"
	"github.com/noah-isme/enrol-pay-api/internal/service"
	"github.com/noah-isme/enrol-pay-api/pkg/cache"
	"github.com/noah-isme/enrol-pay-api/pkg/config"
	"github.com/noah-isme/enrol-pay-api/pkg/database"
	"github.com/noah-isme/enrol-pay-api/pkg/export"
	"github.com/noah-isme/enrol-pay-api/pkg/logger"
	"github.com/noah-isme/enrol-pay-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/enrol-pay-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrol-pay-api/pkg/middleware/requestid"
)

// @title Enrol Pay API
// @version 0.1.0
// @description Paid course enrolment over an Authorize.Net-compatible gateway
// @BasePath /api/v1
// @schemes https

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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, instance cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	orderRepo := repository.NewOrderRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	enrolmentRepo := repository.NewEnrolmentRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)

	validate := validator.New()
	metrics := service.NewMetricsService()
	mail := mailer.NewSMTP(cfg.SMTP)

	instanceSvc := service.NewInstanceService(instanceRepo, cacheRepo, cfg.Cache.InstanceTTL, cfg.Cache.Enabled, validate, logr)

	gatewayFactory := func(login, transactionKey string) gateway.Client {
		return gateway.NewAIMClient(cfg.Gateway, login, transactionKey)
	}
	purchaseSvc := service.NewPurchaseService(orderRepo, instanceSvc, enrolmentRepo, roleRepo,
		settingsRepo, courseRepo, userRepo, gatewayFactory, mail, cfg.SMTP.AdminEmail, metrics, validate, logr)

	orderSvc := service.NewOrderService(orderRepo, settingsRepo, userRepo, export.NewReceiptRenderer(), logr)
	reconcileSvc := service.NewReconcileService(enrolmentRepo, roleRepo, settingsRepo, instanceSvc, metrics, logr)

	purchaseHandler := handler.NewPurchaseHandler(purchaseSvc, cfg.Gateway.AllowInsecure)
	orderHandler := handler.NewOrderHandler(orderSvc)
	instanceHandler := handler.NewInstanceHandler(instanceSvc)
	reconcileHandler := handler.NewReconcileHandler(reconcileSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.POST("/purchase", purchaseHandler.Purchase)
		api.GET("/orders", orderHandler.List)
		api.GET("/orders/:id", orderHandler.Get)
		api.GET("/orders/:id/receipt", orderHandler.Receipt)
		api.GET("/instances/:id", instanceHandler.Get)
	}

	admin := api.Group("")
	admin.Use(middleware.RequirePaymentManager())
	{
		admin.PUT("/instances/:id", instanceHandler.Update)
		admin.POST("/reconcile", reconcileHandler.Run)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
