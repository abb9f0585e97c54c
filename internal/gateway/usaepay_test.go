package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(new(strings.Builder), &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*USAePayClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewUSAePayClient("key123", "pin456", srv.URL, 5*time.Second, testLogger()), srv
}

func TestUSAePayClient_Tokenize(t *testing.T) {
	t.Run("approved returns saved card key", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transactions", r.URL.Path)
			assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Basic "))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "cc:save", payload["command"])

			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result_code": "A",
				"savedcard":   map[string]any{"key": "tok_abc"},
			})
		})

		token, err := client.Tokenize(context.Background(), CardDetails{
			Number: "4111111111111111", Expiration: "1230", CVV: "123", Cardholder: "Jane Doe",
		})
		require.NoError(t, err)
		assert.Equal(t, "tok_abc", token)
	})

	t.Run("declined save is an error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"result_code": "D", "result": "Invalid Card"})
		})

		_, err := client.Tokenize(context.Background(), CardDetails{Number: "4"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid Card")
	})

	t.Run("missing credentials", func(t *testing.T) {
		client := NewUSAePayClient("", "", "http://localhost", time.Second, testLogger())
		_, err := client.Tokenize(context.Background(), CardDetails{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credentials")
	})
}

func TestUSAePayClient_Charge(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "sale", payload["command"])
			assert.Equal(t, "300.00", payload["amount"])
			assert.Equal(t, "Debt-9-SP17-A1", payload["invoice"])
			assert.Equal(t, "recurring", payload["stored_credential"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"refnum":      "100345",
				"key":         "txn_key_1",
				"result_code": "A",
				"result":      "Approved",
				"authcode":    "055321",
			})
		})

		spID := int64(17)
		result, err := client.Charge(context.Background(), ChargeRequest{
			Token:            "tok_abc",
			Amount:           decimal.RequireFromString("300.00"),
			Invoice:          Invoice(9, &spID, 1),
			StoredCredential: true,
			Customer:         &Customer{FirstName: "Jane", LastName: "Doe", CustomerID: "9"},
		})
		require.NoError(t, err)
		assert.Equal(t, ChargeApproved, result.Status)
		assert.True(t, result.Approved())
		assert.Equal(t, "100345", result.Reference)
		assert.Equal(t, "txn_key_1", result.GatewayKey)
		assert.Equal(t, "055321", result.AuthCode)
	})

	t.Run("declined is a result not an error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"refnum":      "100346",
				"result_code": "D",
				"result":      "Insufficient Funds",
			})
		})

		result, err := client.Charge(context.Background(), ChargeRequest{
			Token:   "tok_abc",
			Amount:  decimal.RequireFromString("300.00"),
			Invoice: Invoice(9, nil, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, ChargeDeclined, result.Status)
		assert.False(t, result.Approved())
		assert.Equal(t, "Insufficient Funds", result.ResultText)
	})

	t.Run("http failure is a transport error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Charge(context.Background(), ChargeRequest{
			Token:  "tok_abc",
			Amount: decimal.RequireFromString("1.00"),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("unreachable server is a transport error", func(t *testing.T) {
		client := NewUSAePayClient("key", "pin", "http://127.0.0.1:1", 200*time.Millisecond, testLogger())
		_, err := client.Charge(context.Background(), ChargeRequest{Token: "tok", Amount: decimal.New(1, 0)})
		require.Error(t, err)
	})
}

func TestUSAePayClient_Void(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/100345/void", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": "Voided"})
	})

	require.NoError(t, client.Void(context.Background(), "100345"))
}

func TestUSAePayClient_VerifyConnection(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/account", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		})
		assert.NoError(t, client.VerifyConnection(context.Background()))
	})

	t.Run("bad credentials", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		assert.Error(t, client.VerifyConnection(context.Background()))
	})
}
