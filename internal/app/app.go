package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "loanops/docs"
	"loanops/internal/config"
	"loanops/internal/gateway"
	"loanops/internal/handlers"
	"loanops/internal/logger"
	"loanops/internal/metrics"
	"loanops/internal/middleware"
	"loanops/internal/migrations"
	"loanops/internal/pdf"
	"loanops/internal/repositories"
	"loanops/internal/routes"
	"loanops/internal/services"
	"loanops/internal/utils"
)

func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = log.Zap().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := migrations.Up(db); err != nil {
			return err
		}
		log.Info("migrations applied", nil)
	}

	// === Redis ===
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// cache and saga lock degrade; refresh tokens do not work until redis is back
		log.Warn("redis unavailable at startup", map[string]interface{}{"addr": cfg.Redis.Address, "error": err.Error()})
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	leadRepo := repositories.NewLeadRepository(db)
	familyRepo := repositories.NewFamilyMemberRepository(db)
	stageRepo := repositories.NewPipelineRepository(db)
	transitionRepo := repositories.NewTransitionRepository(db)
	ussdRepo := repositories.NewUssdRepository(db)
	sagaRepo := repositories.NewSagaRepository(db)

	// === Services ===
	fineract := gateway.NewClient(cfg.Fineract, rdb, cfg.Redis.CacheTTL, log)
	region := cfg.Validation.DefaultRegion

	emailService := services.NewEmailService(cfg.Email, log)
	authService := services.NewAuthService(userRepo, rdb, cfg.Auth, log)
	resetService := services.NewPasswordResetService(userRepo, repositories.NewPasswordResetRepository(db), emailService, cfg.Auth, log)
	userService := services.NewUserService(userRepo, log)
	leadService := services.NewLeadService(leadRepo, familyRepo, region, log)
	validationService := services.NewValidationService(leadRepo, familyRepo, cfg.Validation, log)
	pipelineService := services.NewPipelineService(stageRepo, transitionRepo, leadRepo, validationService, log)
	journalService := services.NewJournalService(fineract, log)
	reportService := services.NewReportService(fineract, pipelineService)

	smsService := services.NewSMSService(utils.NewClient(cfg.Mobizon, log), log)
	ussdService := services.NewUssdService(
		ussdRepo,
		sagaRepo,
		leadService,
		fineract,
		redislock.New(rdb),
		smsService,
		emailService,
		cfg.Redis.LockTTL,
		region,
		log,
	)

	pdfGen := pdf.NewDocumentGenerator(cfg.Files.FontPath, cfg.Files.Company)

	// === Gin ===
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	router.Use(metrics.GinMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(hctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "database": err.Error()})
			return
		}
		status := gin.H{"status": "ok", "database": "ok", "redis": "ok"}
		if err := rdb.Ping(hctx).Err(); err != nil {
			status["redis"] = err.Error()
		}
		c.JSON(http.StatusOK, status)
	})

	routes.SetupRoutes(router, routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService, resetService),
		User:       handlers.NewUserHandler(userService),
		Lead:       handlers.NewLeadHandler(leadService, validationService, pipelineService, pdfGen),
		Pipeline:   handlers.NewPipelineHandler(pipelineService, validationService),
		Ussd:       handlers.NewUssdHandler(ussdService),
		Accounting: handlers.NewAccountingHandler(journalService),
		Report:     handlers.NewReportHandler(reportService),
	}, cfg.Auth.JWTSecret)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", map[string]interface{}{"addr": srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	c.AddAllowHeaders("Authorization", middleware.RequestIDHeader)
	c.AddExposeHeaders("Content-Disposition", middleware.RequestIDHeader)
	return cors.New(c)
}
