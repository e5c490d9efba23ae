// Package notifier публикует уведомления об исходах платежей в RabbitMQ.
// Ядро не обращается к пользовательскому интерфейсу напрямую: уведомление —
// это данные, доставку выполняет отдельный сервис-отправитель.
package notifier

import (
	"context"

	"github.com/magabrotheeeer/group-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/group-access/internal/models"
	"github.com/streadway/amqp"
)

// Notifier публикует уведомления в exchange уведомлений.
type Notifier struct {
	ch *amqp.Channel
}

// New создает новый экземпляр Notifier.
func New(ch *amqp.Channel) *Notifier {
	return &Notifier{ch: ch}
}

// Notify публикует уведомление, используя его вид как routing key.
func (n *Notifier) Notify(_ context.Context, notification models.Notification) error {
	return rabbitmq.PublishNotification(n.ch, notification)
}
