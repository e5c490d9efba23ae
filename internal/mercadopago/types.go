package mercadopago

import "time"

// Статусы платежа, имеющие отдельную обработку в цикле сверки.
// Любой другой статус (rejected, cancelled, refunded, charged_back и т.д.)
// трактуется как отказ.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
)

// Identification — документ плательщика, обязателен для boleto.
type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// Payer — данные плательщика.
type Payer struct {
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name,omitempty"`
	LastName       string          `json:"last_name,omitempty"`
	Identification *Identification `json:"identification,omitempty"`
}

// CreatePaymentRequest представляет запрос на создание платежа.
type CreatePaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"` // сумма, например 6.99
	Description       string  `json:"description"`        // описание, например "Assinatura Mensal"
	PaymentMethodID   string  `json:"payment_method_id"`  // "pix" или "bolbradesco"
	Payer             Payer   `json:"payer"`
}

// TransactionData — данные для оплаты PIX: QR-код и ссылка на квитанцию.
type TransactionData struct {
	QRCodeBase64 string `json:"qr_code_base64"`
	QRCode       string `json:"qr_code"`
	TicketURL    string `json:"ticket_url"`
}

// PointOfInteraction содержит платёжные данные PIX в ответе шлюза.
type PointOfInteraction struct {
	TransactionData TransactionData `json:"transaction_data"`
}

// TransactionDetails содержит ссылку на boleto в ответе шлюза.
type TransactionDetails struct {
	ExternalResourceURL string `json:"external_resource_url"`
}

// CreatePaymentResponse представляет ответ на создание платежа.
type CreatePaymentResponse struct {
	ID                 int64               `json:"id"`     // ID платежа в Mercado Pago
	Status             string              `json:"status"` // статус платежа, например "pending"
	PointOfInteraction *PointOfInteraction `json:"point_of_interaction,omitempty"`
	TransactionDetails *TransactionDetails `json:"transaction_details,omitempty"`
	DateCreated        time.Time           `json:"date_created"`
}

// PaymentStatusResponse представляет ответ на запрос статуса платежа.
type PaymentStatusResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}
