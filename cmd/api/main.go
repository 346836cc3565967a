package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "installpro/api/swagger" // swagger docs
	"installpro/internal/database"
	"installpro/internal/events"
	"installpro/internal/handler"
	"installpro/internal/middleware"
	"installpro/internal/repository"
	"installpro/internal/scheduler"
	"installpro/internal/service"
	"installpro/internal/websocket"
	"installpro/pkg/config"
	"installpro/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           InstallPro API
// @version         1.0
// @description     Project lifecycle and installer price negotiation for an installation business.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting installpro api",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.Port),
		zap.String("event_transport", cfg.EventTransport),
	)

	db, err := database.NewConnection(cfg.DSN(), cfg.LogLevel)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to postgres")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub(cfg.AllowedOrigins())
	go wsHub.Run(ctx)

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	contractRepo := repository.NewContractRepository(db)

	// Services
	userService := service.NewUserService(userRepo, cfg.JWTSecret)
	catalogService := service.NewCatalogService(productRepo)
	notificationService := service.NewNotificationService(notificationRepo, wsHub)
	contractService := service.NewContractService(contractRepo)

	dispatcher := service.NewNotificationDispatcher(notificationService, projectRepo, userRepo)
	generator := service.NewContractGenerator(contractRepo, projectRepo, userRepo, notificationService, cfg.ContractValidity())

	var publisher events.Publisher
	var jobs *scheduler.Scheduler
	switch cfg.EventTransport {
	case config.EventTransportAsynq:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		defer rdb.Close()

		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		publisher = events.NewAsynqPublisher(client, dispatcher, generator)

		// Notifications created by the worker reach sockets held here.
		relay := websocket.NewRedisRelay(rdb)
		go func() {
			if err := relay.Run(ctx, wsHub); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification relay stopped", zap.Error(err))
			}
		}()
	default:
		publisher = events.NewBus(dispatcher, generator)

		jobs = scheduler.New()
		if err := jobs.ScheduleContractExpiry(cfg.ContractExpirySchedule, contractService); err != nil {
			log.Fatal("schedule contract expiry", zap.Error(err))
		}
		jobs.Start()
	}

	projectService := service.NewProjectService(txManager, projectRepo, historyRepo, userRepo, productRepo, contractRepo, publisher)

	// Handlers
	userHandler := handler.NewUserHandler(userService, cfg.AppEnv == "production")
	productHandler := handler.NewProductHandler(catalogService)
	projectHandler := handler.NewProjectHandler(projectService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	contractHandler := handler.NewContractHandler(contractService)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.RequestLogger(), middleware.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.Connected()})
	})

	authenticate := middleware.Authenticate([]byte(cfg.JWTSecret), userService)

	router.GET("/ws", authenticate, func(c *gin.Context) {
		a, _ := middleware.CurrentActor(c)
		wsHub.ServeWs(c, a.ID)
	})

	public := router.Group("")
	protected := router.Group("", authenticate)

	userHandler.RegisterRoutes(public, protected)
	productHandler.RegisterRoutes(protected)
	projectHandler.RegisterRoutes(protected)
	notificationHandler.RegisterRoutes(protected)
	contractHandler.RegisterRoutes(protected)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if jobs != nil {
		jobs.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
