package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-agenda-api/api/swagger"
	"github.com/noah-isme/sma-agenda-api/internal/handler"
	"github.com/noah-isme/sma-agenda-api/internal/middleware"
	"github.com/noah-isme/sma-agenda-api/internal/models"
	"github.com/noah-isme/sma-agenda-api/internal/repository"
	"github.com/noah-isme/sma-agenda-api/internal/service"
	"github.com/noah-isme/sma-agenda-api/pkg/cache"
	"github.com/noah-isme/sma-agenda-api/pkg/config"
	"github.com/noah-isme/sma-agenda-api/pkg/database"
	"github.com/noah-isme/sma-agenda-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-agenda-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-agenda-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-agenda-api/pkg/storage"
)

// @title SMA Agenda API
// @version 1.0.0
// @description Timetable booking and academic planning approval service
// @BasePath /api/v1
// @schemes http

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

	calendar, err := models.NewAcademicCalendar(cfg.Calendar)
	if err != nil {
		logr.Sugar().Fatalw("invalid calendar configuration", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()
	metrics := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Core services.
	agendaCache := service.NewCacheService(cacheRepo, metrics, cfg.Agenda.CacheTTL, logr, cfg.Agenda.CacheEnabled)
	bookingSvc := service.NewBookingService(bookingRepo, calendar, agendaCache, metrics, userRepo, validate, logr)
	synchronizer := service.NewLinkedEventSynchronizer(bookingRepo, entryRepo, agendaCache, logr)

	var notifier service.Notifier = service.NopNotifier{}
	var queueNotifier *service.QueueNotifier
	if cfg.Notifications.Enabled {
		queueNotifier = service.NewQueueNotifier(cfg.Notifications, service.LogSink(logr), metrics, logr)
		notifier = queueNotifier
	}

	machine := service.NewApprovalMachine()
	entrySvc := service.NewEntryService(entryRepo, userRepo, calendar, machine, synchronizer, notifier, metrics, userRepo, validate, logr)
	calendarSvc := service.NewCalendarService(calendar, logr)
	classSvc := service.NewClassService(classRepo, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sma-agenda-api",
		SingleSession:      false,
	})

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SigningSecret, cfg.Exports.ResultTTL)
		exportSvc = service.NewExportService(bookingRepo, entryRepo, calendar, files, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.ResultTTL,
		}, logr, nil, nil)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	classHandler := handler.NewClassHandler(classSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	summaryHandler := handler.NewEntryHandler(entrySvc, models.EntryKindSummary)
	supportHandler := handler.NewEntryHandler(entrySvc, models.EntryKindSupport)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "reason": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	users := protected.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.GET("/:id/agenda", bookingHandler.ClassAgenda)
		classes.GET("/:id/agenda/week", bookingHandler.WeekAgenda)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
	}

	calendarGroup := protected.Group("/calendar")
	{
		calendarGroup.GET("/day", calendarHandler.DaySchedule)
		calendarGroup.GET("/week", calendarHandler.Week)
		calendarGroup.GET("/terms/:term/weeks", calendarHandler.TermWeeks)
		calendarGroup.GET("/terms/:term/weeks/:week", calendarHandler.TermWeek)
	}

	bookings := protected.Group("/bookings")
	{
		bookings.GET("", bookingHandler.List)
		bookings.GET("/:id", bookingHandler.Get)
		bookings.POST("", bookingHandler.Create)
		bookings.PUT("/:id", bookingHandler.Update)
		bookings.DELETE("/:id", bookingHandler.Cancel)
	}

	registerEntryRoutes(protected.Group("/summaries"), summaryHandler)
	registerEntryRoutes(protected.Group("/support-sessions"), supportHandler)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		exports := protected.Group("/exports")
		{
			exports.POST("/agenda", middleware.Audit(userRepo, models.AuditActionExport, "exports"), exportHandler.WeekAgenda)
			exports.POST("/entries", middleware.Audit(userRepo, models.AuditActionExport, "exports"), exportHandler.Entries)
		}
		// Download links carry their own signed token.
		api.GET("/exports/:token", middleware.OptionalJWT(authSvc), exportHandler.Download)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if queueNotifier != nil {
		queueNotifier.Start(rootCtx)
		defer queueNotifier.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func registerEntryRoutes(g *gin.RouterGroup, h *handler.EntryHandler) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/submit", h.Submit)
	g.POST("/:id/approve", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleLead), h.Approve)
	g.POST("/:id/reject", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleLead), h.Reject)
}
