package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/group-access/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.MercadoPago{
		AccessToken: "TEST-TOKEN",
		APIURL:      url,
		PayerEmail:  "cliente@example.com",
		HTTPTimeout: 5 * time.Second,
	})
}

func TestCreatePixPayment(t *testing.T) {
	var gotReq CreatePaymentRequest
	var gotAuth, gotIdemKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotIdemKey = r.Header.Get("X-Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(CreatePaymentResponse{
			ID:     123456789,
			Status: "pending",
			PointOfInteraction: &PointOfInteraction{
				TransactionData: TransactionData{
					QRCodeBase64: "aGVsbG8=",
					QRCode:       "00020126pixkey",
					TicketURL:    "https://mercadopago.com/ticket/123",
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.CreatePixPayment(context.Background(), 3.99, "Assinatura Mensal")

	require.NoError(t, err)
	assert.Equal(t, int64(123456789), resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "00020126pixkey", resp.PointOfInteraction.TransactionData.QRCode)

	assert.Equal(t, "Bearer TEST-TOKEN", gotAuth)
	assert.NotEmpty(t, gotIdemKey)
	assert.Equal(t, "pix", gotReq.PaymentMethodID)
	assert.Equal(t, 3.99, gotReq.TransactionAmount)
	assert.Equal(t, "cliente@example.com", gotReq.Payer.Email)
}

func TestCreateBoletoPayment(t *testing.T) {
	var gotReq CreatePaymentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(CreatePaymentResponse{
			ID:     42,
			Status: "pending",
			TransactionDetails: &TransactionDetails{
				ExternalResourceURL: "https://mercadopago.com/boleto/42",
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.CreateBoletoPayment(context.Background(), 9.99, "Assinatura Trimestral")

	require.NoError(t, err)
	assert.Equal(t, "https://mercadopago.com/boleto/42", resp.TransactionDetails.ExternalResourceURL)

	assert.Equal(t, "bolbradesco", gotReq.PaymentMethodID)
	require.NotNil(t, gotReq.Payer.Identification)
	assert.Equal(t, "CPF", gotReq.Payer.Identification.Type)
}

func TestGetPaymentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/payments/123456789", r.URL.Path)
		_ = json.NewEncoder(w).Encode(PaymentStatusResponse{ID: 123456789, Status: "approved"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	status, err := client.GetPaymentStatus(context.Background(), "123456789")

	require.NoError(t, err)
	assert.Equal(t, "approved", status)
}

func TestGetPaymentStatus_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid access token"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetPaymentStatus(context.Background(), "123456789")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid access token")
}

func TestIdempotencyKeyIsUniquePerRequest(t *testing.T) {
	keys := make(map[string]struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys[r.Header.Get("X-Idempotency-Key")] = struct{}{}
		_ = json.NewEncoder(w).Encode(PaymentStatusResponse{Status: "pending"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 3; i++ {
		_, err := client.GetPaymentStatus(context.Background(), "1")
		require.NoError(t, err)
	}
	assert.Len(t, keys, 3)
}
