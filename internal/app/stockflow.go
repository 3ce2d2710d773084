package app

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"stockflow-service/internal/api"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/config"
	"stockflow-service/internal/hub"
	"stockflow-service/internal/kafka/consumer"
	"stockflow-service/internal/kafka/notifier"
	"stockflow-service/internal/repository"
	"stockflow-service/internal/service"
	"stockflow-service/internal/session"
)

const shutdownReason = "Server shutting down"

func Run(cfg *config.Config, logger *zap.SugaredLogger) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	wg := &sync.WaitGroup{}

	delayedCtx, repoCancel := context.WithCancel(context.Background())
	defer repoCancel()
	delayedWg := &sync.WaitGroup{}

	repo, err := repository.NewMongoRepository(delayedCtx, logger, delayedWg, cfg.MongoDB)
	if err != nil {
		logger.Fatalw("failed to create repository", "error", err)
	}

	if err := seedAdmin(ctx, logger, repo, cfg.Seed); err != nil {
		logger.Fatalw("failed to seed admin account", "error", err)
	}

	redisClient, err := session.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalw("failed to connect to redis", "error", err)
	}
	delayedWg.Add(1)
	go func() {
		defer delayedWg.Done()
		<-delayedCtx.Done()
		if err := redisClient.Close(); err != nil {
			logger.Errorw("failed to close redis client", "error", err)
		}
	}()

	sessions := session.NewStore(redisClient, cfg.Session.TTL)
	authorizer := authz.NewAuthorizer(logger, authz.DefaultTable)
	notif := notifier.NewKafkaNotifier(delayedCtx, delayedWg, logger, cfg.Kafka)

	realtime := hub.NewHub(logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		realtime.RunSweeper(ctx, cfg.Hub.SweepInterval, cfg.Hub.HeartbeatTimeout)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		realtime.Shutdown(shutdownReason)
	}()

	consumer.NewKafkaConsumer(ctx, wg, logger, cfg.Kafka, realtime)

	router := api.NewRouter(api.Dependencies{
		Logger:     logger,
		Repo:       repo,
		Sessions:   sessions,
		Authorizer: authorizer,
		Notifier:   notif,
		Hub:        realtime,
		Realtime:   hub.NewEndpoint(ctx, realtime, cfg.Hub),
		Session:    cfg.Session,
	})

	service.RunServices(ctx, logger, wg, cfg, authorizer, router)

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()

	logger.Info("shutting down delayed services")
	repoCancel()
	delayedWg.Wait()
}
