package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/airticket/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCharge = ChargeRequest{
	Email:       "ada@example.com",
	AmountMinor: 5000,
	PIN:         "1234",
	Card:        Card{Number: "5078503400000000", CVV: "081", ExpiryMonth: 5, ExpiryYear: 2030},
}

func newTestClient(t *testing.T, h http.HandlerFunc) *PaystackClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewPaystackClient(srv.URL+"/", "sk_test_123", WithHTTPClient(srv.Client()), WithLogger(logger.Discard()))
}

func TestPaystackClient_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charge", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "5000", body["amount"])
		assert.Equal(t, "1234", body["pin"])
		card := body["card"].(map[string]any)
		assert.Equal(t, "5078503400000000", card["number"])
		assert.Equal(t, "05", card["expiry_month"])
		assert.Equal(t, "2030", card["expiry_year"])

		_, _ = w.Write([]byte(`{"status":true,"message":"Charge attempted","data":{"status":"success","reference":"ref_1","gateway_response":"Approved"}}`))
	})

	res, err := client.Charge(context.Background(), testCharge)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ref_1", res.Reference)
	assert.Equal(t, "Approved", res.Message)
}

func TestPaystackClient_Declines(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"failed charge", http.StatusOK, `{"status":true,"message":"Charge attempted","data":{"status":"failed","gateway_response":"Insufficient Funds"}}`, "Insufficient Funds"},
		{"needs otp", http.StatusOK, `{"status":true,"message":"Charge attempted","data":{"status":"send_otp","display_text":"Please send OTP"}}`, "Please send OTP"},
		{"bad request", http.StatusBadRequest, `{"status":false,"message":"Invalid card number"}`, "Invalid card number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			res, err := client.Charge(context.Background(), testCharge)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestPaystackClient_Unreachable(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := client.Charge(context.Background(), testCharge)
		assert.Error(t, err)
	})

	t.Run("garbage body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})
		_, err := client.Charge(context.Background(), testCharge)
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := client.Charge(ctx, testCharge)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestStub(t *testing.T) {
	s := &Stub{DeclineEvery: 3}
	ctx := context.Background()

	var declined int
	for i := 0; i < 6; i++ {
		res, err := s.Charge(ctx, testCharge)
		require.NoError(t, err)
		if !res.Success {
			declined++
		}
	}
	assert.Equal(t, 2, declined)
	assert.Equal(t, int64(6), s.Calls())

	slow := &Stub{Latency: time.Second}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := slow.Charge(cctx, testCharge)
	assert.ErrorIs(t, err, context.Canceled)
}
