// Package grantor содержит бизнес-логику выдачи доступа в закрытую группу:
// снятие старого бана и выпуск одноразовой пригласительной ссылки.
package grantor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/group-access/internal/config"
	"github.com/magabrotheeeer/group-access/internal/lib/sl"
	"github.com/magabrotheeeer/group-access/internal/metrics"
	"github.com/magabrotheeeer/group-access/internal/models"
)

// ErrUnknownTier возвращается, когда тариф не сопоставлен ни с одной группой.
var ErrUnknownTier = errors.New("unknown tier")

// ErrGrantFailed возвращается, когда платформа не смогла выпустить ссылку.
// Автоматических повторов нет: вызывающий слой направляет пользователя
// в поддержку.
var ErrGrantFailed = errors.New("grant failed")

// ChatPlatformClient определяет методы платформы, нужные для выдачи доступа.
type ChatPlatformClient interface {
	// UnbanChatMember снимает бан, no-op для незабаненного пользователя.
	UnbanChatMember(ctx context.Context, chatID, userID int64) error
	// CreateChatInviteLink выпускает ссылку с ограничением срока и использований.
	CreateChatInviteLink(ctx context.Context, chatID int64, expireAt time.Time, memberLimit int) (string, error)
}

// Service реализует выдачу пригласительных токенов.
type Service struct {
	client    ChatPlatformClient
	tiers     config.Tiers
	inviteTTL time.Duration
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(client ChatPlatformClient, tiers config.Tiers, inviteTTL time.Duration,
	m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		client:    client,
		tiers:     tiers,
		inviteTTL: inviteTTL,
		metrics:   m,
		log:       log,
	}
}

// Grant выдаёт пользователю одноразовую ссылку в группу его тарифа.
// Повторный вызов для того же пользователя выдаёт новую независимую ссылку.
func (s *Service) Grant(ctx context.Context, userID int64, tierName string) (*models.AccessCredential, error) {
	const op = "grantor.Grant"

	tier, ok := s.tiers.ByName(tierName)
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", op, tierName, ErrUnknownTier)
	}

	// Пользователь мог быть исключён свипером раньше; снятие бана обязательно,
	// иначе ссылка его не впустит. Ошибка здесь не фатальна: бана могло не быть.
	if err := s.client.UnbanChatMember(ctx, tier.GroupID, userID); err != nil {
		s.log.Warn("failed to unban member before invite",
			slog.Int64("user_id", userID), slog.Int64("group_id", tier.GroupID), sl.Err(err))
	}

	issuedAt := time.Now()
	expiresAt := issuedAt.Add(s.inviteTTL)
	link, err := s.client.CreateChatInviteLink(ctx, tier.GroupID, expiresAt, 1)
	if err != nil {
		s.metrics.GrantsFailed.Inc()
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrGrantFailed)
	}

	s.metrics.GrantsIssued.Inc()
	s.log.Info("issued invite credential",
		slog.Int64("user_id", userID), slog.String("tier", tierName))

	return &models.AccessCredential{
		GroupID:    tier.GroupID,
		UserID:     userID,
		InviteLink: link,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		MaxUses:    1,
	}, nil
}
