package models

import "time"

// PaymentState — состояние платёжной попытки. Переходы строго однонаправленные:
// Created -> Pending -> {Approved | Rejected | TimedOut}. Из терминального
// состояния попытка не выходит.
type PaymentState string

const (
	PaymentStateCreated  PaymentState = "created"
	PaymentStatePending  PaymentState = "pending"
	PaymentStateApproved PaymentState = "approved"
	PaymentStateRejected PaymentState = "rejected"
	PaymentStateTimedOut PaymentState = "timed_out"
)

// IsTerminal сообщает, является ли состояние терминальным.
func (s PaymentState) IsTerminal() bool {
	switch s {
	case PaymentStateApproved, PaymentStateRejected, PaymentStateTimedOut:
		return true
	}
	return false
}

// PaymentMethod — способ оплаты, поддерживаемый шлюзом.
type PaymentMethod string

const (
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodBoleto PaymentMethod = "boleto"
)

// PaymentAttempt представляет один платёж от создания до терминального исхода.
// PaymentID присваивается шлюзом при создании и далее не меняется.
type PaymentAttempt struct {
	PaymentID     string        // ID платежа в платёжном шлюзе
	UserID        int64         // Пользователь, инициировавший платёж
	Tier          string        // Выбранный тариф на момент создания
	Amount        float64       // Сумма на момент создания
	Method        PaymentMethod // Способ оплаты
	State         PaymentState  // Текущее состояние
	GatewayStatus string        // Последний сырой статус шлюза, для диагностики
	AttemptsMade  int           // Количество выполненных опросов статуса
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PaymentDetails — платёжные реквизиты, возвращаемые вызывающему слою
// вместе с созданной попыткой: QR-код и ключ для PIX либо ссылка на boleto.
type PaymentDetails struct {
	QRCodeBase64 string `json:"qr_code_base64,omitempty"` // QR-код PIX в base64
	QRCode       string `json:"qr_code,omitempty"`        // Код PIX для копирования
	TicketURL    string `json:"ticket_url,omitempty"`     // Ссылка на оплату PIX
	BoletoURL    string `json:"boleto_url,omitempty"`     // Ссылка на boleto
}
