package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/group-access/internal/models"
)

// NotificationsExchange — exchange для исходящих уведомлений пользователям.
const NotificationsExchange = "notifications"

// OutcomesQueue — очередь, из которой отправитель забирает уведомления
// о терминальных исходах платежей и сбоях выдачи доступа.
const OutcomesQueue = "notifications.outcomes"

// QueueConfig связывает очередь с routing key в exchange уведомлений.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает привязки очереди уведомлений:
// все виды исходов платежа складываются в одну очередь отправителя.
func GetNotificationQueues() []QueueConfig {
	kinds := []models.NotificationKind{
		models.NotificationPaymentConfirmed,
		models.NotificationPaymentRejected,
		models.NotificationPaymentUnconfirmed,
		models.NotificationGrantFailed,
	}
	queues := make([]QueueConfig, 0, len(kinds))
	for _, kind := range kinds {
		queues = append(queues, QueueConfig{QueueName: OutcomesQueue, RoutingKey: string(kind)})
	}
	return queues
}

// SetupChannel открывает канал, объявляет exchange и привязывает очереди.
// Prefetch ограничивает число неподтвержденных сообщений на канале.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig, prefetch int) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"
	if prefetch < 1 {
		return nil, fmt.Errorf("%s: prefetch must be positive, got %d", op, prefetch)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		NotificationsExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	declared := make(map[string]bool)
	for _, q := range queues {
		if !declared[q.QueueName] {
			_, err := ch.QueueDeclare(
				q.QueueName,
				true,
				false,
				false,
				false,
				nil,
			)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
			}
			declared[q.QueueName] = true
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			NotificationsExchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
