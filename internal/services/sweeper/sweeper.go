// Package sweeper содержит цикл отзыва доступа: периодически находит
// просроченные подписки и исключает их владельцев из закрытых групп.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/group-access/internal/config"
	"github.com/magabrotheeeer/group-access/internal/lib/sl"
	"github.com/magabrotheeeer/group-access/internal/metrics"
	"github.com/magabrotheeeer/group-access/internal/models"
)

// SubscriptionProvider определяет методы подписок, нужные свиперу.
type SubscriptionProvider interface {
	// ListExpired возвращает активные подписки, истёкшие к asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]*models.Subscription, error)
	// Deactivate помечает подписку неактивной после отзыва.
	Deactivate(ctx context.Context, userID int64) (int, error)
}

// ChatPlatformClient определяет методы платформы, нужные для исключения.
type ChatPlatformClient interface {
	BanChatMember(ctx context.Context, chatID, userID int64) error
	UnbanChatMember(ctx context.Context, chatID, userID int64) error
}

// Service реализует цикл scan-then-revoke.
type Service struct {
	subs    SubscriptionProvider
	client  ChatPlatformClient
	tiers   config.Tiers
	cfg     config.Sweeper
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создает новый экземпляр Service.
func New(subs SubscriptionProvider, client ChatPlatformClient, tiers config.Tiers,
	cfg config.Sweeper, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		subs:    subs,
		client:  client,
		tiers:   tiers,
		cfg:     cfg,
		metrics: m,
		log:     log,
	}
}

// Run выполняет циклы отзыва до отмены контекста. После удачного цикла
// следующий запускается через SweepInterval, после сбоя выборки — через
// более короткий RetryInterval.
func (s *Service) Run(ctx context.Context) {
	for {
		delay := s.cfg.SweepInterval
		if err := s.RunSweep(ctx); err != nil {
			s.log.Error("sweep cycle failed, will retry sooner", sl.Err(err))
			delay = s.cfg.RetryInterval
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			s.log.Info("sweeper stopped")
			return
		case <-t.C:
		}
	}
}

// RunSweep выполняет один цикл: выборка просроченных подписок и отзыв доступа.
// Сбой отзыва одного пользователя не прерывает обработку остальных.
func (s *Service) RunSweep(ctx context.Context) error {
	s.log.Info("starting sweep cycle")
	expired, err := s.subs.ListExpired(ctx, time.Now())
	if err != nil {
		s.metrics.SweepCycles.WithLabelValues("failed").Inc()
		return err
	}
	if len(expired) == 0 {
		s.log.Info("no expired subscriptions found")
		s.metrics.SweepCycles.WithLabelValues("ok").Inc()
		return nil
	}
	s.log.Info("found expired subscriptions", slog.Int("count", len(expired)))

	for _, sub := range expired {
		if err := s.revoke(ctx, sub); err != nil {
			s.log.Error("failed to revoke membership",
				slog.Int64("user_id", sub.UserID), slog.String("tier", sub.Tier), sl.Err(err))
			continue
		}
		s.metrics.MembersRevoked.Inc()
		s.log.Info("revoked expired membership",
			slog.Int64("user_id", sub.UserID), slog.String("tier", sub.Tier))
	}
	s.metrics.SweepCycles.WithLabelValues("ok").Inc()
	return nil
}

// revoke исключает пользователя из группы его тарифа и сразу снимает бан,
// чтобы после новой оплаты он мог вернуться. Затем подписка деактивируется,
// и следующий цикл её уже не увидит.
func (s *Service) revoke(ctx context.Context, sub *models.Subscription) error {
	tier, ok := s.tiers.ByName(sub.Tier)
	if !ok {
		// Тариф убрали из конфига, группа неизвестна. Подписку оставляем
		// активной, чтобы проблема была видна в логах каждого цикла.
		s.log.Error("expired subscription references unknown tier",
			slog.Int64("user_id", sub.UserID), slog.String("tier", sub.Tier))
		return nil
	}

	if err := s.client.BanChatMember(ctx, tier.GroupID, sub.UserID); err != nil {
		return err
	}
	if err := s.client.UnbanChatMember(ctx, tier.GroupID, sub.UserID); err != nil {
		return err
	}

	if _, err := s.subs.Deactivate(ctx, sub.UserID); err != nil {
		return err
	}
	return nil
}
