// Package reconciler содержит машину состояний платёжной попытки: создание
// платежа в шлюзе, ограниченный цикл опроса статуса и побочные эффекты
// подтверждённой оплаты. Продление подписки всегда записывается в хранилище
// ДО выдачи пригласительной ссылки; при сбое выдачи запись не откатывается —
// деньги получены, доступ выдаётся вручную через поддержку.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/group-access/internal/config"
	"github.com/magabrotheeeer/group-access/internal/lib/sl"
	"github.com/magabrotheeeer/group-access/internal/mercadopago"
	"github.com/magabrotheeeer/group-access/internal/metrics"
	"github.com/magabrotheeeer/group-access/internal/models"
)

// ErrGatewayUnavailable возвращается, когда шлюз не смог создать платёж.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrUnknownTier возвращается при запросе платежа по несуществующему тарифу.
var ErrUnknownTier = errors.New("unknown tier")

// PaymentGatewayClient определяет методы платёжного шлюза.
type PaymentGatewayClient interface {
	CreatePixPayment(ctx context.Context, amount float64, description string) (*mercadopago.CreatePaymentResponse, error)
	CreateBoletoPayment(ctx context.Context, amount float64, description string) (*mercadopago.CreatePaymentResponse, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (string, error)
}

// AttemptRepository определяет методы хранения платёжных попыток.
type AttemptRepository interface {
	CreatePaymentAttempt(ctx context.Context, attempt models.PaymentAttempt) error
	UpdatePaymentAttempt(ctx context.Context, paymentID string, state models.PaymentState, gatewayStatus string, attemptsMade int) error
	GetPaymentAttempt(ctx context.Context, paymentID string) (*models.PaymentAttempt, error)
}

// SubscriptionActivator записывает продление подписки после оплаты.
type SubscriptionActivator interface {
	Activate(ctx context.Context, sub models.Subscription) error
}

// AccessGrantor выдаёт одноразовую пригласительную ссылку.
type AccessGrantor interface {
	Grant(ctx context.Context, userID int64, tierName string) (*models.AccessCredential, error)
}

// Notifier публикует уведомление о терминальном исходе платежа.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Outcome — терминальный исход цикла опроса.
type Outcome struct {
	State      models.PaymentState
	Reason     string                   // причина для rejected/timed_out
	Credential *models.AccessCredential // заполнен при успешной выдаче доступа
}

// Service реализует машину состояний платёжной попытки.
type Service struct {
	gateway  PaymentGatewayClient
	attempts AttemptRepository
	subs     SubscriptionActivator
	grantor  AccessGrantor
	notifier Notifier
	tiers    config.Tiers
	cfg      config.Reconciler
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(gateway PaymentGatewayClient, attempts AttemptRepository, subs SubscriptionActivator,
	grantor AccessGrantor, notifier Notifier, tiers config.Tiers, cfg config.Reconciler,
	m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		gateway:  gateway,
		attempts: attempts,
		subs:     subs,
		grantor:  grantor,
		notifier: notifier,
		tiers:    tiers,
		cfg:      cfg,
		metrics:  m,
		log:      log,
	}
}

// CreateAttempt создаёт платёж в шлюзе и сохраняет попытку в состоянии Pending.
// Возвращает попытку и платёжные реквизиты для показа пользователю.
func (s *Service) CreateAttempt(ctx context.Context, userID int64, tierName string,
	method models.PaymentMethod) (*models.PaymentAttempt, *models.PaymentDetails, error) {
	const op = "reconciler.CreateAttempt"

	tier, ok := s.tiers.ByName(tierName)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %s: %w", op, tierName, ErrUnknownTier)
	}
	description := "Assinatura " + tier.Title

	var resp *mercadopago.CreatePaymentResponse
	var err error
	switch method {
	case models.PaymentMethodPix:
		resp, err = s.gateway.CreatePixPayment(ctx, tier.Price, description)
	case models.PaymentMethodBoleto:
		resp, err = s.gateway.CreateBoletoPayment(ctx, tier.Price, description)
	default:
		return nil, nil, fmt.Errorf("%s: unsupported payment method %q", op, method)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %v: %w", op, err, ErrGatewayUnavailable)
	}

	now := time.Now()
	attempt := models.PaymentAttempt{
		PaymentID:     strconv.FormatInt(resp.ID, 10),
		UserID:        userID,
		Tier:          tierName,
		Amount:        tier.Price,
		Method:        method,
		State:         models.PaymentStatePending,
		GatewayStatus: resp.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.attempts.CreatePaymentAttempt(ctx, attempt); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.PaymentsCreated.WithLabelValues(tierName, string(method)).Inc()
	s.log.Info("created payment attempt",
		slog.String("payment_id", attempt.PaymentID),
		slog.Int64("user_id", userID), slog.String("tier", tierName))

	details := &models.PaymentDetails{}
	if resp.PointOfInteraction != nil {
		details.QRCodeBase64 = resp.PointOfInteraction.TransactionData.QRCodeBase64
		details.QRCode = resp.PointOfInteraction.TransactionData.QRCode
		details.TicketURL = resp.PointOfInteraction.TransactionData.TicketURL
	}
	if resp.TransactionDetails != nil {
		details.BoletoURL = resp.TransactionDetails.ExternalResourceURL
	}
	return &attempt, details, nil
}

// GetAttempt возвращает платёжную попытку по ID платежа.
func (s *Service) GetAttempt(ctx context.Context, paymentID string) (*models.PaymentAttempt, error) {
	return s.attempts.GetPaymentAttempt(ctx, paymentID)
}

// StartPolling запускает цикл опроса попытки в отдельной горутине.
// Блокирующие ожидания одного платежа не задерживают другие платежи.
// Попытка передаётся по значению: горутина мутирует собственную копию,
// и вызывающий слой после запуска безопасно читает свою.
func (s *Service) StartPolling(attempt models.PaymentAttempt) {
	go func() {
		if _, err := s.PollUntilTerminal(context.Background(), &attempt); err != nil {
			s.log.Error("payment polling finished with error",
				slog.String("payment_id", attempt.PaymentID), sl.Err(err))
		}
	}()
}

// PollUntilTerminal опрашивает шлюз с фиксированным интервалом, пока платёж
// не достигнет терминального состояния либо не исчерпается лимит опросов.
// Статусы "approved" и "pending" обрабатываются отдельно, любой другой статус
// означает отказ и немедленно завершает цикл. Сбой самого запроса статуса
// не считается опросом: он повторяется до исчерпания локального бюджета
// подряд идущих сбоев, после чего попытка завершается как неподтверждённая.
func (s *Service) PollUntilTerminal(ctx context.Context, attempt *models.PaymentAttempt) (*Outcome, error) {
	const op = "reconciler.PollUntilTerminal"
	log := s.log.With(
		slog.String("payment_id", attempt.PaymentID),
		slog.Int64("user_id", attempt.UserID))

	// Терминальная попытка не опрашивается повторно.
	if attempt.State.IsTerminal() {
		return &Outcome{State: attempt.State, Reason: attempt.GatewayStatus}, nil
	}

	transientFailures := 0
	for attempt.AttemptsMade < s.cfg.MaxPollAttempts {
		status, err := s.gateway.GetPaymentStatus(ctx, attempt.PaymentID)
		s.metrics.StatusPolls.Inc()
		if err != nil {
			transientFailures++
			log.Warn("payment status query failed",
				slog.Int("consecutive_failures", transientFailures), sl.Err(err))
			if transientFailures >= s.cfg.QueryRetryBudget {
				reason := fmt.Sprintf("status query failed %d times in a row", transientFailures)
				return s.finishTimedOut(ctx, attempt, reason)
			}
			if err := s.wait(ctx); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			continue
		}
		transientFailures = 0
		attempt.AttemptsMade++
		attempt.GatewayStatus = status

		switch status {
		case mercadopago.StatusApproved:
			return s.finishApproved(ctx, attempt)
		case mercadopago.StatusPending:
			log.Info("payment still pending",
				slog.Int("attempts_made", attempt.AttemptsMade),
				slog.Int("max_attempts", s.cfg.MaxPollAttempts))
			if err := s.attempts.UpdatePaymentAttempt(ctx, attempt.PaymentID,
				models.PaymentStatePending, status, attempt.AttemptsMade); err != nil {
				log.Warn("failed to persist pending attempt", sl.Err(err))
			}
			if attempt.AttemptsMade >= s.cfg.MaxPollAttempts {
				break
			}
			if err := s.wait(ctx); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		default:
			return s.finishRejected(ctx, attempt, status)
		}
	}

	reason := fmt.Sprintf("payment still pending after %d polls", attempt.AttemptsMade)
	return s.finishTimedOut(ctx, attempt, reason)
}

// wait ждёт интервал опроса, прерываясь по отмене контекста.
func (s *Service) wait(ctx context.Context) error {
	t := time.NewTimer(s.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// finishApproved фиксирует подтверждённый платёж: записывает продление
// подписки, затем выдаёт пригласительную ссылку. Порядок строгий.
func (s *Service) finishApproved(ctx context.Context, attempt *models.PaymentAttempt) (*Outcome, error) {
	const op = "reconciler.finishApproved"

	attempt.State = models.PaymentStateApproved
	if err := s.attempts.UpdatePaymentAttempt(ctx, attempt.PaymentID,
		models.PaymentStateApproved, attempt.GatewayStatus, attempt.AttemptsMade); err != nil {
		s.log.Warn("failed to persist approved attempt",
			slog.String("payment_id", attempt.PaymentID), sl.Err(err))
	}
	s.metrics.PaymentOutcomes.WithLabelValues(string(models.PaymentStateApproved)).Inc()

	tier, ok := s.tiers.ByName(attempt.Tier)
	if !ok {
		s.notify(ctx, models.Notification{
			UserID:    attempt.UserID,
			Kind:      models.NotificationGrantFailed,
			Tier:      attempt.Tier,
			PaymentID: attempt.PaymentID,
			Reason:    "tier is no longer configured",
		})
		return &Outcome{State: models.PaymentStateApproved},
			fmt.Errorf("%s: %s: %w", op, attempt.Tier, ErrUnknownTier)
	}

	var expiresAt *time.Time
	if !tier.IsLifetime() {
		e := time.Now().AddDate(0, tier.DurationMonths, 0)
		expiresAt = &e
	}
	sub := models.Subscription{
		UserID:        attempt.UserID,
		Tier:          attempt.Tier,
		ExpiresAt:     expiresAt,
		LastPaymentID: attempt.PaymentID,
		IsActive:      true,
	}
	if err := s.subs.Activate(ctx, sub); err != nil {
		// Платёж подтверждён, но продление не записано: доступ не выдаём,
		// пользователь идёт в поддержку, попытка остаётся в журнале.
		s.notify(ctx, models.Notification{
			UserID:    attempt.UserID,
			Kind:      models.NotificationGrantFailed,
			Tier:      attempt.Tier,
			PaymentID: attempt.PaymentID,
			Reason:    "failed to record subscription extension",
		})
		return &Outcome{State: models.PaymentStateApproved}, fmt.Errorf("%s: %w", op, err)
	}

	cred, err := s.grantor.Grant(ctx, attempt.UserID, attempt.Tier)
	if err != nil {
		// Подписка записана и не откатывается: деньги получены,
		// доступ будет выдан вручную.
		s.notify(ctx, models.Notification{
			UserID:    attempt.UserID,
			Kind:      models.NotificationGrantFailed,
			Tier:      attempt.Tier,
			PaymentID: attempt.PaymentID,
			Reason:    err.Error(),
		})
		return &Outcome{State: models.PaymentStateApproved}, fmt.Errorf("%s: %w", op, err)
	}

	s.notify(ctx, models.Notification{
		UserID:     attempt.UserID,
		Kind:       models.NotificationPaymentConfirmed,
		Tier:       attempt.Tier,
		PaymentID:  attempt.PaymentID,
		InviteLink: cred.InviteLink,
	})
	return &Outcome{State: models.PaymentStateApproved, Credential: cred}, nil
}

// finishRejected фиксирует отказ шлюза. Оставшиеся опросы не выполняются.
func (s *Service) finishRejected(ctx context.Context, attempt *models.PaymentAttempt, status string) (*Outcome, error) {
	attempt.State = models.PaymentStateRejected
	if err := s.attempts.UpdatePaymentAttempt(ctx, attempt.PaymentID,
		models.PaymentStateRejected, status, attempt.AttemptsMade); err != nil {
		s.log.Warn("failed to persist rejected attempt",
			slog.String("payment_id", attempt.PaymentID), sl.Err(err))
	}
	s.metrics.PaymentOutcomes.WithLabelValues(string(models.PaymentStateRejected)).Inc()
	s.log.Info("payment rejected",
		slog.String("payment_id", attempt.PaymentID), slog.String("gateway_status", status))

	s.notify(ctx, models.Notification{
		UserID:    attempt.UserID,
		Kind:      models.NotificationPaymentRejected,
		Tier:      attempt.Tier,
		PaymentID: attempt.PaymentID,
		Reason:    status,
	})
	return &Outcome{State: models.PaymentStateRejected, Reason: status}, nil
}

// finishTimedOut фиксирует неподтверждённый платёж. Подписка не меняется.
func (s *Service) finishTimedOut(ctx context.Context, attempt *models.PaymentAttempt, reason string) (*Outcome, error) {
	attempt.State = models.PaymentStateTimedOut
	if err := s.attempts.UpdatePaymentAttempt(ctx, attempt.PaymentID,
		models.PaymentStateTimedOut, attempt.GatewayStatus, attempt.AttemptsMade); err != nil {
		s.log.Warn("failed to persist timed out attempt",
			slog.String("payment_id", attempt.PaymentID), sl.Err(err))
	}
	s.metrics.PaymentOutcomes.WithLabelValues(string(models.PaymentStateTimedOut)).Inc()
	s.log.Info("payment unconfirmed",
		slog.String("payment_id", attempt.PaymentID), slog.String("reason", reason))

	s.notify(ctx, models.Notification{
		UserID:    attempt.UserID,
		Kind:      models.NotificationPaymentUnconfirmed,
		Tier:      attempt.Tier,
		PaymentID: attempt.PaymentID,
		Reason:    reason,
	})
	return &Outcome{State: models.PaymentStateTimedOut, Reason: reason}, nil
}

// notify публикует уведомление; сбой публикации логируется, но не меняет исход.
func (s *Service) notify(ctx context.Context, n models.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Error("failed to publish notification",
			slog.String("kind", string(n.Kind)),
			slog.Int64("user_id", n.UserID), sl.Err(err))
	}
}
