// Package mercadopago реализует клиент платёжного шлюза Mercado Pago:
// создание платежей PIX и boleto, запрос статуса платежа.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/magabrotheeeer/group-access/internal/config"
)

// Client клиент Mercado Pago API v1.
type Client struct {
	accessToken string
	apiURL      string
	payerEmail  string
	httpClient  *http.Client
}

// NewClient создаёт новый клиент Mercado Pago.
func NewClient(cfg config.MercadoPago) *Client {
	return &Client{
		accessToken: cfg.AccessToken,
		apiURL:      cfg.APIURL,
		payerEmail:  cfg.PayerEmail,
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// newRequest собирает запрос с Bearer-авторизацией и уникальным
// X-Idempotency-Key, который шлюз требует для каждого запроса.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", uuid.New().String())
	return req, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// CreatePixPayment создаёт платёж PIX и возвращает QR-код с ключом для оплаты.
func (c *Client) CreatePixPayment(ctx context.Context, amount float64, description string) (*CreatePaymentResponse, error) {
	const op = "mercadopago.CreatePixPayment"

	reqParams := CreatePaymentRequest{
		TransactionAmount: amount,
		Description:       description,
		PaymentMethodID:   "pix",
		Payer:             Payer{Email: c.payerEmail},
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/payments", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var paymentResp CreatePaymentResponse
	if err := c.do(req, &paymentResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &paymentResp, nil
}

// CreateBoletoPayment создаёт платёж по boleto и возвращает ссылку на квитанцию.
func (c *Client) CreateBoletoPayment(ctx context.Context, amount float64, description string) (*CreatePaymentResponse, error) {
	const op = "mercadopago.CreateBoletoPayment"

	reqParams := CreatePaymentRequest{
		TransactionAmount: amount,
		Description:       description,
		PaymentMethodID:   "bolbradesco",
		Payer: Payer{
			Email:     c.payerEmail,
			FirstName: "Cliente",
			LastName:  "Teste",
			Identification: &Identification{
				Type:   "CPF",
				Number: "12345678909",
			},
		},
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/payments", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var paymentResp CreatePaymentResponse
	if err := c.do(req, &paymentResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &paymentResp, nil
}

// GetPaymentStatus возвращает текущий статус платежа по его ID.
// Повторные запросы статуса одного платежа идемпотентны на стороне шлюза.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	const op = "mercadopago.GetPaymentStatus"

	req, err := c.newRequest(ctx, http.MethodGet, "/payments/"+paymentID, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var statusResp PaymentStatusResponse
	if err := c.do(req, &statusResp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return statusResp.Status, nil
}
