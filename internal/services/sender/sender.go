// Package sender доставляет уведомления об исходах платежей пользователям
// в личные сообщения. Тексты повторяют сообщения бота.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/group-access/internal/lib/sl"
	"github.com/magabrotheeeer/group-access/internal/models"
)

// MessageSender определяет канал доставки личных сообщений.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// SenderService потребляет очередь уведомлений и отправляет сообщения.
type SenderService struct {
	sender MessageSender
	log    *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(sender MessageSender, log *slog.Logger) *SenderService {
	return &SenderService{
		sender: sender,
		log:    log,
	}
}

// HandleNotification обрабатывает одно сообщение из очереди уведомлений.
// Ошибка доставки возвращает сообщение в очередь.
func (s *SenderService) HandleNotification(body []byte) error {
	var notification models.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		s.log.Error("failed to unmarshal notification", sl.Err(err))
		return fmt.Errorf("error unmarshalling notification: %w", err)
	}

	text := MessageText(notification)
	if text == "" {
		s.log.Warn("unknown notification kind, dropping",
			slog.String("kind", string(notification.Kind)))
		return nil
	}

	if err := s.sender.SendMessage(context.Background(), notification.UserID, text); err != nil {
		s.log.Error("failed to deliver notification",
			slog.Int64("user_id", notification.UserID),
			slog.String("kind", string(notification.Kind)), sl.Err(err))
		return err
	}
	s.log.Info("delivered notification",
		slog.Int64("user_id", notification.UserID),
		slog.String("kind", string(notification.Kind)))
	return nil
}

// MessageText возвращает текст сообщения для уведомления.
// Пустая строка означает неизвестный вид уведомления.
func MessageText(n models.Notification) string {
	switch n.Kind {
	case models.NotificationPaymentConfirmed:
		return fmt.Sprintf("🎉 Pagamento confirmado! Acesse o grupo através deste link único: %s", n.InviteLink)
	case models.NotificationPaymentRejected:
		return "❌ Pagamento não aprovado ou rejeitado."
	case models.NotificationPaymentUnconfirmed:
		return "❌ Pagamento não confirmado após várias tentativas."
	case models.NotificationGrantFailed:
		return "❌ Erro ao gerar o link do grupo. Contate o suporte."
	}
	return ""
}
