// Package subscription содержит бизнес-логику чтения и изменения подписок
// с кешированием горячих чтений.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/group-access/internal/models"
)

// SubscriptionRepository определяет методы для работы с подписками в хранилище.
type SubscriptionRepository interface {
	// GetSubscription возвращает подписку пользователя.
	GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	// UpsertSubscription создаёт или продлевает подписку.
	UpsertSubscription(ctx context.Context, sub models.Subscription) error
	// ListExpiredSubscriptions возвращает активные подписки, истёкшие к asOf.
	ListExpiredSubscriptions(ctx context.Context, asOf time.Time) ([]*models.Subscription, error)
	// DeactivateSubscription помечает подписку неактивной.
	DeactivateSubscription(ctx context.Context, userID int64) (int, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует работу с подписками поверх хранилища и кеша.
type Service struct {
	repo  SubscriptionRepository
	cache Cache
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo SubscriptionRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("subscription:%d", userID)
}

// Get возвращает подписку пользователя, используя кеш или репозиторий.
func (s *Service) Get(ctx context.Context, userID int64) (*models.Subscription, error) {
	var cached models.Subscription
	key := cacheKey(userID)
	found, err := s.cache.Get(key, &cached)
	if err != nil {
		s.log.Warn("failed to read subscription from cache", slog.String("key", key), slog.Any("err", err))
	}
	if found {
		return &cached, nil
	}

	result, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(key, result, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", key), slog.Any("err", err))
	}
	return result, nil
}

// Activate создаёт или продлевает подписку и обновляет кеш.
// Вызывается только циклом сверки после подтверждения оплаты.
func (s *Service) Activate(ctx context.Context, sub models.Subscription) error {
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	s.log.Info("activated subscription",
		slog.Int64("user_id", sub.UserID), slog.String("tier", sub.Tier))

	key := cacheKey(sub.UserID)
	if err := s.cache.Set(key, &sub, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", key), slog.Any("err", err))
	}
	return nil
}

// ListExpired возвращает активные подписки, истёкшие к asOf.
func (s *Service) ListExpired(ctx context.Context, asOf time.Time) ([]*models.Subscription, error) {
	return s.repo.ListExpiredSubscriptions(ctx, asOf)
}

// Deactivate помечает подписку неактивной и инвалидирует кеш.
func (s *Service) Deactivate(ctx context.Context, userID int64) (int, error) {
	key := cacheKey(userID)
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to remove subscription from cache", slog.String("key", key), slog.Any("err", err))
	}
	return s.repo.DeactivateSubscription(ctx, userID)
}
