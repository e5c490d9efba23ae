// Package paymentread обрабатывает запрос статуса платёжной попытки.
package paymentread

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/group-access/internal/http-server/response"
	"github.com/magabrotheeeer/group-access/internal/lib/sl"
	"github.com/magabrotheeeer/group-access/internal/models"
	"github.com/magabrotheeeer/group-access/internal/storage"
)

// Response — текущее состояние платёжной попытки.
type Response struct {
	response.Response
	PaymentID     string              `json:"payment_id"`
	State         models.PaymentState `json:"state"`
	GatewayStatus string              `json:"gateway_status"`
	AttemptsMade  int                 `json:"attempts_made"`
}

// AttemptProvider определяет чтение платёжной попытки.
type AttemptProvider interface {
	GetAttempt(ctx context.Context, paymentID string) (*models.PaymentAttempt, error)
}

// New возвращает обработчик чтения платёжной попытки.
func New(log *slog.Logger, provider AttemptProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.paymentread.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		paymentID := chi.URLParam(r, "payment_id")
		if paymentID == "" {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("payment_id is required"))
			return
		}

		attempt, err := provider.GetAttempt(r.Context(), paymentID)
		if errors.Is(err, storage.ErrAttemptNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("payment attempt not found"))
			return
		}
		if err != nil {
			log.Error("failed to read payment attempt", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to read payment attempt"))
			return
		}

		render.JSON(w, r, Response{
			Response:      response.OK(),
			PaymentID:     attempt.PaymentID,
			State:         attempt.State,
			GatewayStatus: attempt.GatewayStatus,
			AttemptsMade:  attempt.AttemptsMade,
		})
	}
}
