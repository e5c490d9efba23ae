// Package paymentcreate обрабатывает запрос на создание платежа:
// создаёт платёж в шлюзе и запускает фоновый цикл сверки статуса.
package paymentcreate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/group-access/internal/http-server/response"
	"github.com/magabrotheeeer/group-access/internal/lib/sl"
	"github.com/magabrotheeeer/group-access/internal/models"
	"github.com/magabrotheeeer/group-access/internal/services/reconciler"
)

// Request — запрос на создание платежа.
type Request struct {
	UserID int64  `json:"user_id" validate:"required"`
	Tier   string `json:"tier" validate:"required"`
	Method string `json:"method" validate:"required,oneof=pix boleto"`
}

// Response — созданная попытка и платёжные реквизиты.
type Response struct {
	response.Response
	PaymentID string                 `json:"payment_id"`
	State     models.PaymentState    `json:"state"`
	Details   *models.PaymentDetails `json:"details"`
}

// PaymentCreater определяет операции цикла сверки, нужные обработчику.
type PaymentCreater interface {
	CreateAttempt(ctx context.Context, userID int64, tierName string,
		method models.PaymentMethod) (*models.PaymentAttempt, *models.PaymentDetails, error)
	StartPolling(attempt models.PaymentAttempt)
}

// New возвращает обработчик создания платежа.
func New(log *slog.Logger, creater PaymentCreater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.paymentcreate.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))
			return
		}

		if err := validator.New().Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)
			log.Error("invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		attempt, details, err := creater.CreateAttempt(r.Context(), req.UserID, req.Tier,
			models.PaymentMethod(req.Method))
		if errors.Is(err, reconciler.ErrUnknownTier) {
			log.Error("unknown tier requested", slog.String("tier", req.Tier))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown tier"))
			return
		}
		if errors.Is(err, reconciler.ErrGatewayUnavailable) {
			log.Error("payment gateway unavailable", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("payment gateway unavailable"))
			return
		}
		if err != nil {
			log.Error("failed to create payment attempt", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to create payment"))
			return
		}

		// Цикл опроса получает копию: ответ ниже читает попытку без гонки.
		creater.StartPolling(*attempt)
		log.Info("payment attempt created", slog.String("payment_id", attempt.PaymentID))

		render.JSON(w, r, Response{
			Response:  response.OK(),
			PaymentID: attempt.PaymentID,
			State:     attempt.State,
			Details:   details,
		})
	}
}
