package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer 模擬 PayPal 的 token 端點與指定的 handler。
func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "client-id" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "client-id", "client-secret", 5*time.Second)
	return server, client
}

func TestCreateOrder(t *testing.T) {
	t.Run("returns order id and approve link", func(t *testing.T) {
		var gotAuth string
		var gotPayload map[string]any
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v2/checkout/orders", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&gotPayload)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "ORDER-1",
				"status": "CREATED",
				"links": []map[string]string{
					{"href": "https://paypal.example.com/self", "rel": "self"},
					{"href": "https://paypal.example.com/approve", "rel": "approve"},
				},
			})
		})

		orderID, approveURL, err := client.CreateOrder(context.Background(), 10000, "USD")
		require.NoError(t, err)
		assert.Equal(t, "ORDER-1", orderID)
		assert.Equal(t, "https://paypal.example.com/approve", approveURL)
		assert.Equal(t, "Bearer test-token", gotAuth)

		// 金額以分為單位換算成十進位字串
		units := gotPayload["purchase_units"].([]any)
		amount := units[0].(map[string]any)["amount"].(map[string]any)
		assert.Equal(t, "100.00", amount["value"])
		assert.Equal(t, "USD", amount["currency_code"])
	})

	t.Run("server errors are retryable", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, _, err := client.CreateOrder(context.Background(), 10000, "USD")
		require.Error(t, err)
		assert.True(t, IsRetryable(err))
	})

	t.Run("rejections are terminal", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		})

		_, _, err := client.CreateOrder(context.Background(), 10000, "USD")
		require.Error(t, err)
		assert.False(t, IsRetryable(err))
	})

	t.Run("rate limiting is retryable", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, _, err := client.CreateOrder(context.Background(), 10000, "USD")
		require.Error(t, err)
		assert.True(t, IsRetryable(err))
	})
}

func TestCaptureOrder(t *testing.T) {
	t.Run("returns the completed capture id", func(t *testing.T) {
		var gotRequestID string
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v2/checkout/orders/ORDER-1/capture", r.URL.Path)
			gotRequestID = r.Header.Get("PayPal-Request-Id")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "ORDER-1",
				"status": "COMPLETED",
				"purchase_units": []map[string]any{
					{"payments": map[string]any{
						"captures": []map[string]string{
							{"id": "CAPTURE-1", "status": "COMPLETED"},
						},
					}},
				},
			})
		})

		captureID, err := client.CaptureOrder(context.Background(), "ORDER-1")
		require.NoError(t, err)
		assert.Equal(t, "CAPTURE-1", captureID)
		// 以訂單 id 作為冪等鍵
		assert.Equal(t, "ORDER-1", gotRequestID)
	})

	t.Run("non-completed order status fails without retry", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "ORDER-1",
				"status": "PENDING",
			})
		})

		_, err := client.CaptureOrder(context.Background(), "ORDER-1")
		require.Error(t, err)
		assert.False(t, IsRetryable(err))
	})

	t.Run("missing capture id fails", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "ORDER-1",
				"status": "COMPLETED",
			})
		})

		_, err := client.CaptureOrder(context.Background(), "ORDER-1")
		assert.Error(t, err)
	})
}

func TestRefundCapture(t *testing.T) {
	t.Run("accepts completed and pending refunds", func(t *testing.T) {
		for _, status := range []string{"COMPLETED", "PENDING"} {
			var gotRequestID string
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v2/payments/captures/CAPTURE-1/refund", r.URL.Path)
				gotRequestID = r.Header.Get("PayPal-Request-Id")
				_ = json.NewEncoder(w).Encode(map[string]string{
					"id":     "REFUND-1",
					"status": status,
				})
			})

			refundID, err := client.RefundCapture(context.Background(), "CAPTURE-1", 10000, "USD")
			require.NoError(t, err)
			assert.Equal(t, "REFUND-1", refundID)
			assert.Equal(t, "refund-CAPTURE-1", gotRequestID)
		}
	})

	t.Run("cancelled refund fails without retry", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id":     "REFUND-1",
				"status": "CANCELLED",
			})
		})

		_, err := client.RefundCapture(context.Background(), "CAPTURE-1", 10000, "USD")
		require.Error(t, err)
		assert.False(t, IsRetryable(err))
	})
}

func TestTokenReuse(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "ORDER-1", "status": "CREATED"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	client := NewClient(server.URL, "client-id", "client-secret", 5*time.Second)

	for i := 0; i < 3; i++ {
		_, _, err := client.CreateOrder(context.Background(), 10000, "USD")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenCalls, "token should be cached until expiry")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "85.00", formatAmount(8500))
	assert.Equal(t, "0.05", formatAmount(5))
	assert.Equal(t, "100.99", formatAmount(10099))
}
