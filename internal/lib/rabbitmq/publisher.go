package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/group-access/internal/models"
)

// PublishNotification публикует уведомление в exchange уведомлений.
// Routing key — вид уведомления, сообщение помечается как persistent.
func PublishNotification(ch *amqp.Channel, notification models.Notification) error {
	const op = "rabbitmq.PublishNotification"
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		NotificationsExchange,
		string(notification.Kind),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
