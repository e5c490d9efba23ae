// Package sender собирает сервис доставки уведомлений пользователям.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/group-access/internal/config"
	"github.com/magabrotheeeer/group-access/internal/lib/rabbitmq"
	senderservice "github.com/magabrotheeeer/group-access/internal/services/sender"
	"github.com/magabrotheeeer/group-access/internal/telegram"
)

// App представляет приложение отправителя уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	workers       int
	logger        *slog.Logger
}

// New создает новый экземпляр приложения отправителя.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues(), cfg.RabbitMQPrefetch)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	telegramClient := telegram.NewClient(cfg.Telegram)
	senderService := senderservice.NewSenderService(telegramClient, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		workers:       cfg.RabbitMQPrefetch,
		logger:        logger,
	}, nil
}

// Run запускает потребителя очереди уведомлений до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.OutcomesQueue, a.workers, a.senderService.HandleNotification)
	if err != nil {
		a.logger.Error("failed to start notifications consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()

	a.logger.Info("shutting down sender service")
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
