package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/AhmadRadith/jycc-sub001/internal/api/http"
	"github.com/AhmadRadith/jycc-sub001/internal/api/http/handlers"
	"github.com/AhmadRadith/jycc-sub001/internal/auth"
	"github.com/AhmadRadith/jycc-sub001/internal/bootstrap"
	"github.com/AhmadRadith/jycc-sub001/internal/config"
	"github.com/AhmadRadith/jycc-sub001/internal/events"
	"github.com/AhmadRadith/jycc-sub001/internal/observability"
	"github.com/AhmadRadith/jycc-sub001/internal/persistence"
	"github.com/AhmadRadith/jycc-sub001/internal/policy"
	"github.com/AhmadRadith/jycc-sub001/internal/service"
	"github.com/AhmadRadith/jycc-sub001/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer stores.Close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	// The relay outlives the HTTP server so queued events are flushed on shutdown.
	relayCtx, stopRelay := context.WithCancel(context.Background())
	var relay *worker.Relay
	if redis.Enabled() {
		relay = worker.NewRelay(events.NewRedisPublisher(redis.Client, cfg.Redis.EventsChannel), logger, 0)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	var sink service.EventSink
	if relay != nil {
		sink = relay
	}
	worker.StartNotificationWorker(relayCtx, service.NewNotificationService(dispatcher, logger, sink), relay)

	rbac, err := policy.NewRBAC()
	if err != nil {
		logger.Fatal("failed to build access matrix", zap.Error(err))
	}

	ticketService := bootstrap.NewTicketService(cfg, stores, dispatcher, logger, metrics)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{AccountRepo: stores.Accounts})
	if err := bootstrap.SeedDemoAccounts(ctx, stores, authService, cfg.Auth.SeedPassword, logger); err != nil {
		logger.Fatal("failed to seed demo accounts", zap.Error(err))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, stores.Postgres, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		RBAC:           rbac,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			return fmt.Errorf("fiber listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}

	stopRelay()
	if relay != nil {
		relay.Wait()
	}
}
