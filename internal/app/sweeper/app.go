// Package sweeper собирает сервис отзыва просроченного доступа.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/group-access/internal/cache"
	"github.com/magabrotheeeer/group-access/internal/config"
	"github.com/magabrotheeeer/group-access/internal/metrics"
	subscriptionservice "github.com/magabrotheeeer/group-access/internal/services/subscription"
	sweeperservice "github.com/magabrotheeeer/group-access/internal/services/sweeper"
	"github.com/magabrotheeeer/group-access/internal/storage"
	"github.com/magabrotheeeer/group-access/internal/telegram"
)

// App представляет приложение свипера.
type App struct {
	sweeperService *sweeperservice.Service
	db             *storage.Storage
	logger         *slog.Logger
}

func waitForDB(db *storage.Storage) error {
	for range 10 {
		err := storage.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения свипера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	m := metrics.New()
	telegramClient := telegram.NewClient(cfg.Telegram)
	subscriptionService := subscriptionservice.New(db, cacheRedis, logger)
	sweeperService := sweeperservice.New(subscriptionService, telegramClient,
		cfg.Tiers, cfg.Sweeper, m, logger)

	return &App{
		sweeperService: sweeperService,
		db:             db,
		logger:         logger,
	}, nil
}

// Run запускает цикл свипера и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	go a.sweeperService.Run(ctx)

	<-ctx.Done()

	a.logger.Info("shutting down sweeper service")
	if err := a.db.Db.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.Any("err", err))
	}
	return nil
}
