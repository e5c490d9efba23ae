package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/group-access/internal/config"
	"github.com/magabrotheeeer/group-access/internal/mercadopago"
	"github.com/magabrotheeeer/group-access/internal/metrics"
	"github.com/magabrotheeeer/group-access/internal/models"
)

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreatePixPayment(ctx context.Context, amount float64, description string) (*mercadopago.CreatePaymentResponse, error) {
	args := m.Called(ctx, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.CreatePaymentResponse), args.Error(1)
}
func (m *GatewayMock) CreateBoletoPayment(ctx context.Context, amount float64, description string) (*mercadopago.CreatePaymentResponse, error) {
	args := m.Called(ctx, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.CreatePaymentResponse), args.Error(1)
}
func (m *GatewayMock) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	args := m.Called(ctx, paymentID)
	return args.String(0), args.Error(1)
}

type AttemptRepoMock struct{ mock.Mock }

func (m *AttemptRepoMock) CreatePaymentAttempt(ctx context.Context, attempt models.PaymentAttempt) error {
	return m.Called(ctx, attempt).Error(0)
}
func (m *AttemptRepoMock) UpdatePaymentAttempt(ctx context.Context, paymentID string, state models.PaymentState, gatewayStatus string, attemptsMade int) error {
	return m.Called(ctx, paymentID, state, gatewayStatus, attemptsMade).Error(0)
}
func (m *AttemptRepoMock) GetPaymentAttempt(ctx context.Context, paymentID string) (*models.PaymentAttempt, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentAttempt), args.Error(1)
}

type ActivatorMock struct{ mock.Mock }

func (m *ActivatorMock) Activate(ctx context.Context, sub models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

type GrantorMock struct{ mock.Mock }

func (m *GrantorMock) Grant(ctx context.Context, userID int64, tierName string) (*models.AccessCredential, error) {
	args := m.Called(ctx, userID, tierName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessCredential), args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var testTiers = config.Tiers{
	{Name: "monthly", Title: "Mensal", Price: 3.99, DurationMonths: 1, GroupID: -100111},
	{Name: "quarterly", Title: "Trimestral", Price: 9.99, DurationMonths: 3, GroupID: -100222},
	{Name: "lifetime", Title: "Vitalício", Price: 19.99, DurationMonths: 0, GroupID: -100333},
}

func newTestService(g *GatewayMock, r *AttemptRepoMock, a *ActivatorMock,
	gr *GrantorMock, n *NotifierMock) *Service {
	cfg := config.Reconciler{
		PollInterval:     time.Millisecond,
		MaxPollAttempts:  17,
		QueryRetryBudget: 3,
	}
	m := metrics.NewWith(prometheus.NewRegistry())
	return New(g, r, a, gr, n, testTiers, cfg, m, newNoopLogger())
}

func pendingAttempt(paymentID, tier string) *models.PaymentAttempt {
	return &models.PaymentAttempt{
		PaymentID: paymentID,
		UserID:    777,
		Tier:      tier,
		State:     models.PaymentStatePending,
	}
}

func TestCreateAttempt(t *testing.T) {
	pixResp := &mercadopago.CreatePaymentResponse{
		ID:     123456789,
		Status: "pending",
		PointOfInteraction: &mercadopago.PointOfInteraction{
			TransactionData: mercadopago.TransactionData{
				QRCodeBase64: "aGVsbG8=",
				QRCode:       "00020126pixkey",
				TicketURL:    "https://mercadopago.com/ticket/123",
			},
		},
	}

	tests := []struct {
		name       string
		tier       string
		method     models.PaymentMethod
		setupMocks func(g *GatewayMock, r *AttemptRepoMock)
		wantErr    error
		check      func(t *testing.T, attempt *models.PaymentAttempt, details *models.PaymentDetails)
	}{
		{
			name:   "success pix",
			tier:   "monthly",
			method: models.PaymentMethodPix,
			setupMocks: func(g *GatewayMock, r *AttemptRepoMock) {
				g.On("CreatePixPayment", mock.Anything, 3.99, "Assinatura Mensal").
					Return(pixResp, nil).Once()
				r.On("CreatePaymentAttempt", mock.Anything, mock.MatchedBy(func(a models.PaymentAttempt) bool {
					return a.PaymentID == "123456789" &&
						a.State == models.PaymentStatePending &&
						a.Tier == "monthly" &&
						a.Amount == 3.99
				})).Return(nil).Once()
			},
			check: func(t *testing.T, attempt *models.PaymentAttempt, details *models.PaymentDetails) {
				assert.Equal(t, "123456789", attempt.PaymentID)
				assert.Equal(t, models.PaymentStatePending, attempt.State)
				assert.Equal(t, "00020126pixkey", details.QRCode)
				assert.Equal(t, "https://mercadopago.com/ticket/123", details.TicketURL)
			},
		},
		{
			name:   "unknown tier",
			tier:   "platinum",
			method: models.PaymentMethodPix,
			setupMocks: func(_ *GatewayMock, _ *AttemptRepoMock) {
			},
			wantErr: ErrUnknownTier,
		},
		{
			name:   "gateway unavailable",
			tier:   "monthly",
			method: models.PaymentMethodPix,
			setupMocks: func(g *GatewayMock, _ *AttemptRepoMock) {
				g.On("CreatePixPayment", mock.Anything, 3.99, "Assinatura Mensal").
					Return(nil, errors.New("connection refused")).Once()
			},
			wantErr: ErrGatewayUnavailable,
		},
		{
			name:   "storage failure surfaces",
			tier:   "monthly",
			method: models.PaymentMethodPix,
			setupMocks: func(g *GatewayMock, r *AttemptRepoMock) {
				g.On("CreatePixPayment", mock.Anything, 3.99, "Assinatura Mensal").
					Return(pixResp, nil).Once()
				r.On("CreatePaymentAttempt", mock.Anything, mock.Anything).
					Return(errors.New("db down")).Once()
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := new(GatewayMock)
			r := new(AttemptRepoMock)
			tt.setupMocks(g, r)
			svc := newTestService(g, r, new(ActivatorMock), new(GrantorMock), new(NotifierMock))

			attempt, details, err := svc.CreateAttempt(context.Background(), 777, tt.tier, tt.method)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
			tt.check(t, attempt, details)
			g.AssertExpectations(t)
			r.AssertExpectations(t)
		})
	}
}

func TestCreateAttempt_Boleto(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	g.On("CreateBoletoPayment", mock.Anything, 9.99, "Assinatura Trimestral").
		Return(&mercadopago.CreatePaymentResponse{
			ID:     42,
			Status: "pending",
			TransactionDetails: &mercadopago.TransactionDetails{
				ExternalResourceURL: "https://mercadopago.com/boleto/42",
			},
		}, nil).Once()
	r.On("CreatePaymentAttempt", mock.Anything, mock.Anything).Return(nil).Once()

	svc := newTestService(g, r, new(ActivatorMock), new(GrantorMock), new(NotifierMock))
	attempt, details, err := svc.CreateAttempt(context.Background(), 777, "quarterly", models.PaymentMethodBoleto)

	require.NoError(t, err)
	assert.Equal(t, "42", attempt.PaymentID)
	assert.Equal(t, "https://mercadopago.com/boleto/42", details.BoletoURL)
	g.AssertExpectations(t)
}

func TestPollUntilTerminal_ApprovedOnThirdPoll(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	a := new(ActivatorMock)
	gr := new(GrantorMock)
	n := new(NotifierMock)

	g.On("GetPaymentStatus", mock.Anything, "p-1").Return("pending", nil).Twice()
	g.On("GetPaymentStatus", mock.Anything, "p-1").Return("approved", nil).Once()
	r.On("UpdatePaymentAttempt", mock.Anything, "p-1", models.PaymentStatePending, "pending", mock.Anything).
		Return(nil).Twice()
	r.On("UpdatePaymentAttempt", mock.Anything, "p-1", models.PaymentStateApproved, "approved", 3).
		Return(nil).Once()

	start := time.Now()
	a.On("Activate", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
		if sub.UserID != 777 || sub.Tier != "monthly" || sub.LastPaymentID != "p-1" {
			return false
		}
		return sub.ExpiresAt != nil
	})).Return(nil).Once()

	cred := &models.AccessCredential{
		GroupID:    -100111,
		UserID:     777,
		InviteLink: "https://t.me/+unique",
		MaxUses:    1,
	}
	gr.On("Grant", mock.Anything, int64(777), "monthly").Return(cred, nil).Once()
	n.On("Notify", mock.Anything, mock.MatchedBy(func(nt models.Notification) bool {
		return nt.Kind == models.NotificationPaymentConfirmed && nt.InviteLink == "https://t.me/+unique"
	})).Return(nil).Once()

	svc := newTestService(g, r, a, gr, n)
	outcome, err := svc.PollUntilTerminal(context.Background(), pendingAttempt("p-1", "monthly"))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateApproved, outcome.State)
	require.NotNil(t, outcome.Credential)
	assert.Equal(t, 1, outcome.Credential.MaxUses)

	// ровно три опроса и продление на месяц от момента подтверждения
	g.AssertNumberOfCalls(t, "GetPaymentStatus", 3)
	sub := a.Calls[0].Arguments.Get(1).(models.Subscription)
	assert.WithinDuration(t, start.AddDate(0, 1, 0), *sub.ExpiresAt, 5*time.Second)

	a.AssertExpectations(t)
	gr.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestPollUntilTerminal_PendingUntilExhausted(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	a := new(ActivatorMock)
	n := new(NotifierMock)

	g.On("GetPaymentStatus", mock.Anything, "p-2").Return("pending", nil).Times(17)
	r.On("UpdatePaymentAttempt", mock.Anything, "p-2", models.PaymentStatePending, "pending", mock.Anything).
		Return(nil).Times(17)
	r.On("UpdatePaymentAttempt", mock.Anything, "p-2", models.PaymentStateTimedOut, "pending", 17).
		Return(nil).Once()
	n.On("Notify", mock.Anything, mock.MatchedBy(func(nt models.Notification) bool {
		return nt.Kind == models.NotificationPaymentUnconfirmed
	})).Return(nil).Once()

	svc := newTestService(g, r, a, new(GrantorMock), n)
	outcome, err := svc.PollUntilTerminal(context.Background(), pendingAttempt("p-2", "monthly"))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateTimedOut, outcome.State)
	g.AssertNumberOfCalls(t, "GetPaymentStatus", 17)
	// подписка не трогается при неподтверждённом платеже
	a.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
	n.AssertExpectations(t)
}

func TestPollUntilTerminal_RejectedImmediately(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	a := new(ActivatorMock)
	n := new(NotifierMock)

	g.On("GetPaymentStatus", mock.Anything, "p-3").Return("cancelled", nil).Once()
	r.On("UpdatePaymentAttempt", mock.Anything, "p-3", models.PaymentStateRejected, "cancelled", 1).
		Return(nil).Once()
	n.On("Notify", mock.Anything, mock.MatchedBy(func(nt models.Notification) bool {
		return nt.Kind == models.NotificationPaymentRejected && nt.Reason == "cancelled"
	})).Return(nil).Once()

	svc := newTestService(g, r, a, new(GrantorMock), n)
	outcome, err := svc.PollUntilTerminal(context.Background(), pendingAttempt("p-3", "monthly"))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateRejected, outcome.State)
	assert.Equal(t, "cancelled", outcome.Reason)
	// остальные опросы не выполняются
	g.AssertNumberOfCalls(t, "GetPaymentStatus", 1)
	a.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything)
}

func TestPollUntilTerminal_TransientFailuresEscalate(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	n := new(NotifierMock)

	g.On("GetPaymentStatus", mock.Anything, "p-4").Return("", errors.New("timeout")).Times(3)
	r.On("UpdatePaymentAttempt", mock.Anything, "p-4", models.PaymentStateTimedOut, "", 0).
		Return(nil).Once()
	n.On("Notify", mock.Anything, mock.MatchedBy(func(nt models.Notification) bool {
		return nt.Kind == models.NotificationPaymentUnconfirmed &&
			nt.Reason == "status query failed 3 times in a row"
	})).Return(nil).Once()

	svc := newTestService(g, r, new(ActivatorMock), new(GrantorMock), n)
	outcome, err := svc.PollUntilTerminal(context.Background(), pendingAttempt("p-4", "monthly"))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateTimedOut, outcome.State)
	n.AssertExpectations(t)
}

func TestPollUntilTerminal_TransientFailureDoesNotCountAsPoll(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	a := new(ActivatorMock)
	gr := new(GrantorMock)
	n := new(NotifierMock)

	// два сбоя подряд не исчерпывают бюджет и не считаются опросами
	g.On("GetPaymentStatus", mock.Anything, "p-5").Return("", errors.New("timeout")).Twice()
	g.On("GetPaymentStatus", mock.Anything, "p-5").Return("approved", nil).Once()
	r.On("UpdatePaymentAttempt", mock.Anything, "p-5", models.PaymentStateApproved, "approved", 1).
		Return(nil).Once()
	a.On("Activate", mock.Anything, mock.Anything).Return(nil).Once()
	gr.On("Grant", mock.Anything, int64(777), "monthly").
		Return(&models.AccessCredential{InviteLink: "link", MaxUses: 1}, nil).Once()
	n.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()

	svc := newTestService(g, r, a, gr, n)
	outcome, err := svc.PollUntilTerminal(context.Background(), pendingAttempt("p-5", "monthly"))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateApproved, outcome.State)
	r.AssertExpectations(t)
}

func TestPollUntilTerminal_ActivateFailureBlocksGrant(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	a := new(ActivatorMock)
	gr := new(GrantorMock)
	n := new(NotifierMock)

	g.On("GetPaymentStatus", mock.Anything, "p-6").Return("approved", nil).Once()
	r.On("UpdatePaymentAttempt", mock.Anything, "p-6", models.PaymentStateApproved, "approved", 1).
		Return(nil).Once()
	a.On("Activate", mock.Anything, mock.Anything).Return(errors.New("store unavailable")).Once()
	n.On("Notify", mock.Anything, mock.MatchedBy(func(nt models.Notification) bool {
		return nt.Kind == models.NotificationGrantFailed
	})).Return(nil).Once()

	svc := newTestService(g, r, a, gr, n)
	outcome, err := svc.PollUntilTerminal(context.Background(), pendingAttempt("p-6", "monthly"))

	// продление не записано: ошибка поднимается наверх, доступ не выдаётся
	require.Error(t, err)
	assert.Equal(t, models.PaymentStateApproved, outcome.State)
	gr.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything)
	n.AssertExpectations(t)
}

func TestPollUntilTerminal_GrantFailureKeepsSubscription(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	a := new(ActivatorMock)
	gr := new(GrantorMock)
	n := new(NotifierMock)

	g.On("GetPaymentStatus", mock.Anything, "p-7").Return("approved", nil).Once()
	r.On("UpdatePaymentAttempt", mock.Anything, "p-7", models.PaymentStateApproved, "approved", 1).
		Return(nil).Once()
	a.On("Activate", mock.Anything, mock.Anything).Return(nil).Once()
	gr.On("Grant", mock.Anything, int64(777), "monthly").
		Return(nil, errors.New("telegram api: internal error")).Once()
	n.On("Notify", mock.Anything, mock.MatchedBy(func(nt models.Notification) bool {
		return nt.Kind == models.NotificationGrantFailed
	})).Return(nil).Once()

	svc := newTestService(g, r, a, gr, n)
	outcome, err := svc.PollUntilTerminal(context.Background(), pendingAttempt("p-7", "monthly"))

	// подписка записана и не откатывается, но сбой выдачи виден вызывающему
	require.Error(t, err)
	assert.Equal(t, models.PaymentStateApproved, outcome.State)
	assert.Nil(t, outcome.Credential)
	a.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestStartPolling_DoesNotMutateCallerAttempt(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	n := new(NotifierMock)

	done := make(chan struct{})
	g.On("GetPaymentStatus", mock.Anything, "p-9").Return("cancelled", nil).Once()
	r.On("UpdatePaymentAttempt", mock.Anything, "p-9", models.PaymentStateRejected, "cancelled", 1).
		Return(nil).Once()
	n.On("Notify", mock.Anything, mock.Anything).Return(nil).Once().
		Run(func(_ mock.Arguments) { close(done) })

	svc := newTestService(g, r, new(ActivatorMock), new(GrantorMock), n)
	attempt := pendingAttempt("p-9", "monthly")
	svc.StartPolling(*attempt)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll loop did not reach a terminal state")
	}

	// горутина опроса работает с собственной копией, экземпляр вызывающего
	// слоя остаётся читаемым без синхронизации
	assert.Equal(t, models.PaymentStatePending, attempt.State)
	assert.Equal(t, 0, attempt.AttemptsMade)
}

func TestPollUntilTerminal_TerminalAttemptIsNotRepolled(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	n := new(NotifierMock)

	svc := newTestService(g, r, new(ActivatorMock), new(GrantorMock), n)
	attempt := &models.PaymentAttempt{
		PaymentID:     "p-10",
		UserID:        777,
		Tier:          "monthly",
		State:         models.PaymentStateRejected,
		GatewayStatus: "cancelled",
	}
	outcome, err := svc.PollUntilTerminal(context.Background(), attempt)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateRejected, outcome.State)
	g.AssertNotCalled(t, "GetPaymentStatus", mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestPollUntilTerminal_LifetimeTierHasNoExpiry(t *testing.T) {
	g := new(GatewayMock)
	r := new(AttemptRepoMock)
	a := new(ActivatorMock)
	gr := new(GrantorMock)
	n := new(NotifierMock)

	g.On("GetPaymentStatus", mock.Anything, "p-8").Return("approved", nil).Once()
	r.On("UpdatePaymentAttempt", mock.Anything, "p-8", models.PaymentStateApproved, "approved", 1).
		Return(nil).Once()
	a.On("Activate", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.Tier == "lifetime" && sub.ExpiresAt == nil
	})).Return(nil).Once()
	gr.On("Grant", mock.Anything, int64(777), "lifetime").
		Return(&models.AccessCredential{InviteLink: "link", MaxUses: 1}, nil).Once()
	n.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()

	svc := newTestService(g, r, a, gr, n)
	outcome, err := svc.PollUntilTerminal(context.Background(), pendingAttempt("p-8", "lifetime"))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateApproved, outcome.State)
	a.AssertExpectations(t)
}
