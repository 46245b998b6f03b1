package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "ims/api/swagger" // swagger docs
	"ims/internal/config"
	"ims/internal/database"
	"ims/internal/handler"
	"ims/internal/middleware"
	"ims/internal/notify"
	"ims/internal/repository"
	"ims/internal/router"
	"ims/internal/scheduler"
	"ims/internal/service"
	"ims/internal/websocket"
	"ims/internal/workflow"
	"ims/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title           College Inventory Management API
// @version         1.0
// @description     Purchase requests, multi-stage approvals, purchase orders and stock for colleges.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		// logger is not configured yet
		panic(err)
	}

	log := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = log.Sync() }()

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	db, err := database.NewConnection(cfg.Database.DSN(), logger.Named(log, "database"))
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Realtime events and the optional outbound webhook
	hub := websocket.NewHub(logger.Named(log, "websocket"), cfg.Server.CORSOrigins)
	go hub.Run(ctx)

	publishers := notify.Multi{hub}
	var webhook *notify.Webhook
	if cfg.Notify.WebhookURL != "" {
		webhook = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout, logger.Named(log, "webhook"))
		publishers = append(publishers, webhook)
	}

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	colleges := repository.NewCollegeRepository(db)
	departments := repository.NewDepartmentRepository(db)
	locations := repository.NewLocationRepository(db)
	categories := repository.NewCategoryRepository(db)
	vendors := repository.NewVendorRepository(db)
	requestRepo := repository.NewPurchaseRequestRepository(db)
	orderRepo := repository.NewPurchaseOrderRepository(db)
	stockRepo := repository.NewStockRepository(db)
	txManager := repository.NewTransactionManager(db)

	auditService := service.NewAuditService(repository.NewAuditRepository(db))
	roleService := service.NewRoleService(roleRepo, txManager, middleware.ClearPermissionCache)
	if err := roleService.SeedDefaultRolesAndPermissions(ctx); err != nil {
		log.Fatal("failed to seed roles and permissions", zap.Error(err))
	}

	userService := service.NewUserService(userRepo, roleRepo, colleges, departments, txManager, service.TokenConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})
	requestService := service.NewPurchaseRequestService(requestRepo, userRepo, departments, categories, vendors,
		auditService, txManager, publishers, workflow.Chain(cfg.Workflow.ApprovalChain))
	orderService := service.NewPurchaseOrderService(orderRepo, requestRepo, stockRepo, vendors, categories, auditService, txManager, publishers)
	stockService := service.NewStockService(stockRepo, orderRepo, locations, auditService, txManager, publishers)
	statisticsService := service.NewStatisticsService(repository.NewStatisticsRepository(db))
	organizationService := service.NewOrganizationService(colleges, departments, locations, auditService, txManager)
	catalogService := service.NewCatalogService(categories, vendors, auditService, txManager)

	middleware.InitAuth(middleware.AuthConfig{
		Secret:        []byte(cfg.Auth.JWTSecret),
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
		SecureCookies: cfg.Server.GinMode == gin.ReleaseMode,
	}, roleRepo)
	handler.SetLogger(log)

	engine := router.New(router.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Realtime:    hub.ServeWs,
		Logger:      logger.Named(log, "http"),
	},
		handler.NewUserHandler(userService),
		handler.NewRoleHandler(roleService),
		handler.NewAuditHandler(auditService),
		handler.NewStatisticsHandler(statisticsService),
		handler.NewPurchaseRequestHandler(requestService),
		handler.NewPurchaseOrderHandler(orderService),
		handler.NewStockHandler(stockService),
		handler.NewMasterHandler(organizationService, catalogService),
	)

	jobs := scheduler.NewScheduler(cfg.Scheduler, requestService, userRepo, publishers, logger.Named(log, "scheduler"))
	if err := jobs.Start(); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	jobs.Stop()
	if webhook != nil {
		webhook.Close()
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
}
