package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"installpro/internal/database"
	"installpro/internal/events"
	"installpro/internal/repository"
	"installpro/internal/scheduler"
	"installpro/internal/service"
	"installpro/internal/websocket"
	"installpro/pkg/config"
	"installpro/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// The worker consumes queued project events and runs the periodic contract
// expiry job. It is only needed when EVENT_TRANSPORT=asynq.
func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.EventTransport != config.EventTransportAsynq {
		log.Fatal("worker requires EVENT_TRANSPORT=asynq", zap.String("event_transport", cfg.EventTransport))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	defer rdb.Close()

	db, err := database.NewConnection(cfg.DSN(), cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	contractRepo := repository.NewContractRepository(db)

	// Sockets live in the API processes; pushes go out over redis pub/sub.
	notificationService := service.NewNotificationService(notificationRepo, websocket.NewRedisRelay(rdb))
	contractService := service.NewContractService(contractRepo)

	dispatcher := service.NewNotificationDispatcher(notificationService, projectRepo, userRepo)
	generator := service.NewContractGenerator(contractRepo, projectRepo, userRepo, notificationService, cfg.ContractValidity())

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
			Queues:      map[string]int{events.QueueName: 1},
		},
	)

	jobs := scheduler.New()
	if err := jobs.ScheduleContractExpiry(cfg.ContractExpirySchedule, contractService); err != nil {
		log.Fatal("schedule contract expiry", zap.Error(err))
	}
	jobs.Start()

	log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
	if err := srv.Start(events.NewServeMux(dispatcher, generator)); err != nil {
		log.Fatal("asynq worker failed to start", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	jobs.Stop(ctx)
	srv.Shutdown()
}
