// Package subscriptionread обрабатывает запрос текущей подписки пользователя.
package subscriptionread

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/group-access/internal/http-server/response"
	"github.com/magabrotheeeer/group-access/internal/lib/sl"
	"github.com/magabrotheeeer/group-access/internal/models"
	"github.com/magabrotheeeer/group-access/internal/storage"
)

// Response — состояние подписки пользователя. Поле Expired может быть true
// при ещё активной записи: свипер отзывает доступ со своей периодичностью.
type Response struct {
	response.Response
	UserID    int64      `json:"user_id"`
	Tier      string     `json:"tier"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Lifetime  bool       `json:"lifetime"`
	Expired   bool       `json:"expired"`
	IsActive  bool       `json:"is_active"`
}

// SubscriptionProvider определяет чтение подписки.
type SubscriptionProvider interface {
	Get(ctx context.Context, userID int64) (*models.Subscription, error)
}

// New возвращает обработчик чтения подписки.
func New(log *slog.Logger, provider SubscriptionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.subscriptionread.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("user_id must be an integer"))
			return
		}

		sub, err := provider.Get(r.Context(), userID)
		if errors.Is(err, storage.ErrSubscriptionNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
		if err != nil {
			log.Error("failed to read subscription", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to read subscription"))
			return
		}

		render.JSON(w, r, Response{
			Response:  response.OK(),
			UserID:    sub.UserID,
			Tier:      sub.Tier,
			ExpiresAt: sub.ExpiresAt,
			Lifetime:  sub.IsLifetime(),
			Expired:   sub.IsExpired(time.Now()),
			IsActive:  sub.IsActive,
		})
	}
}
