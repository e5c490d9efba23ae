// Package accessmanager собирает основной сервис: HTTP API, платёжный шлюз,
// хранилище и цикл сверки платежей.
package accessmanager

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/group-access/internal/cache"
	"github.com/magabrotheeeer/group-access/internal/config"
	"github.com/magabrotheeeer/group-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/group-access/internal/mercadopago"
	"github.com/magabrotheeeer/group-access/internal/metrics"
	"github.com/magabrotheeeer/group-access/internal/migrations"
	grantorservice "github.com/magabrotheeeer/group-access/internal/services/grantor"
	notifierservice "github.com/magabrotheeeer/group-access/internal/services/notifier"
	reconcilerservice "github.com/magabrotheeeer/group-access/internal/services/reconciler"
	subscriptionservice "github.com/magabrotheeeer/group-access/internal/services/subscription"
	"github.com/magabrotheeeer/group-access/internal/storage"
	"github.com/magabrotheeeer/group-access/internal/telegram"
)

// App представляет основной сервис.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создает новый экземпляр приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.Db, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues(), cfg.RabbitMQPrefetch)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	m := metrics.New()
	gatewayClient := mercadopago.NewClient(cfg.MercadoPago)
	telegramClient := telegram.NewClient(cfg.Telegram)

	subscriptionService := subscriptionservice.New(db, cacheRedis, logger)
	grantorService := grantorservice.New(telegramClient, cfg.Tiers, cfg.InviteTTL, m, logger)
	notifier := notifierservice.New(ch)
	reconcilerService := reconcilerservice.New(gatewayClient, db, subscriptionService,
		grantorService, notifier, cfg.Tiers, cfg.Reconciler, m, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, reconcilerService, subscriptionService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.ch.Close(); closeErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", closeErr))
		}
		if closeErr := a.conn.Close(); closeErr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		if closeErr := a.db.Db.Close(); closeErr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", closeErr))
		}
		return err
	}
}
