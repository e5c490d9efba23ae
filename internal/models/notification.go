package models

// NotificationKind — вид исходящего уведомления о терминальном исходе платежа.
// Значение используется как routing key при публикации в RabbitMQ.
type NotificationKind string

const (
	NotificationPaymentConfirmed   NotificationKind = "payment.confirmed"
	NotificationPaymentRejected    NotificationKind = "payment.rejected"
	NotificationPaymentUnconfirmed NotificationKind = "payment.unconfirmed"
	NotificationGrantFailed        NotificationKind = "grant.failed"
)

// Notification — данные для уведомления пользователя об исходе платежа.
// Ядро только формирует уведомление, доставкой занимается отдельный сервис.
type Notification struct {
	UserID     int64            `json:"user_id"`
	Kind       NotificationKind `json:"kind"`
	Tier       string           `json:"tier"`
	PaymentID  string           `json:"payment_id"`
	InviteLink string           `json:"invite_link,omitempty"` // Заполнено только для payment.confirmed
	Reason     string           `json:"reason,omitempty"`      // Причина для rejected/unconfirmed/grant.failed
}
