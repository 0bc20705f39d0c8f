// Package paypal 實作對外部金流端的 create / capture / refund 操作。
// 所有呼叫都有界定的逾時；呼叫端依 Error.Retryable 決定重試或放棄，
// 冪等性由 PayPal-Request-Id 標頭與我們自己的訂單鍵保證。
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client 是 PayPal Orders / Payments REST API 的精簡客戶端。
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type ClientOption func(*Client)

// WithHTTPClient 設置自訂的 http.Client（主要供測試注入）。
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient 建立 PayPal 客戶端。timeout 界定每一次外部呼叫的上限。
func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token 以 client credentials 交換 access token，在過期前重複使用。
func (c *Client) token(ctx context.Context) (string, error) {
	const op = "token"
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Op: op, Retryable: false, Err: err}
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Op: op, StatusCode: resp.StatusCode, Retryable: retryableStatus(resp.StatusCode), Body: string(body)}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", &Error{Op: op, Retryable: false, Err: err}
	}
	c.accessToken = token.AccessToken
	// 提前一分鐘視為過期，避免用到邊緣的 token
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// post 送出帶認證與冪等鍵的 JSON 請求。
func (c *Client) post(ctx context.Context, op, path, requestID string, payload any) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Op: op, Retryable: false, Err: err}
		}
		bodyReader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &Error{Op: op, Retryable: false, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Retryable: retryableStatus(resp.StatusCode), Body: string(body)}
	}
	return body, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// formatAmount 將以分為單位的金額轉為 PayPal 的十進位字串。
func formatAmount(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateOrder 建立一筆待批准的結帳訂單，回傳訂單 id 與使用者批准連結。
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency string) (string, string, error) {
	const op = "CreateOrder"
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]string{
					"currency_code": currency,
					"value":         formatAmount(amount),
				},
			},
		},
	}
	body, err := c.post(ctx, op, "/v2/checkout/orders", "", payload)
	if err != nil {
		return "", "", err
	}

	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return "", "", &Error{Op: op, Retryable: false, Err: err}
	}
	var approveURL string
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
			break
		}
	}
	return order.ID, approveURL, nil
}

// CaptureOrder 在使用者批准後請款，回傳 capture id。
// 沒有成功的 capture id 就視為失敗，呼叫端不得推進本地狀態。
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (string, error) {
	const op = "CaptureOrder"
	body, err := c.post(ctx, op, "/v2/checkout/orders/"+orderID+"/capture", orderID, nil)
	if err != nil {
		return "", err
	}

	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return "", &Error{Op: op, Retryable: false, Err: err}
	}
	if order.Status != "COMPLETED" {
		return "", &Error{Op: op, StatusCode: http.StatusOK, Retryable: false, Body: "order status is " + order.Status}
	}
	for _, unit := range order.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			if capture.Status == "COMPLETED" {
				return capture.ID, nil
			}
		}
	}
	return "", &Error{Op: op, StatusCode: http.StatusOK, Retryable: false, Body: "no completed capture in response"}
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RefundCapture 對已請款的 capture 全額退款，回傳 refund id。
// 以 capture id 作為冪等鍵，逾時後重試不會造成重複退款。
func (c *Client) RefundCapture(ctx context.Context, captureID string, amount int64, currency string) (string, error) {
	const op = "RefundCapture"
	payload := map[string]any{
		"amount": map[string]string{
			"currency_code": currency,
			"value":         formatAmount(amount),
		},
	}
	body, err := c.post(ctx, op, "/v2/payments/captures/"+captureID+"/refund", "refund-"+captureID, payload)
	if err != nil {
		return "", err
	}

	var refund refundResponse
	if err := json.Unmarshal(body, &refund); err != nil {
		return "", &Error{Op: op, Retryable: false, Err: err}
	}
	if refund.Status != "COMPLETED" && refund.Status != "PENDING" {
		return "", &Error{Op: op, StatusCode: http.StatusOK, Retryable: false, Body: "refund status is " + refund.Status}
	}
	return refund.ID, nil
}
