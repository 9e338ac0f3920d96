// Package mpesa talks to the Safaricom Daraja API: OAuth, STK push and
// STK push status queries, plus the shape of the asynchronous callback.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/travelbooking/config"
	"go.uber.org/zap"
)

// EnvironmentURLs maps environment names to Daraja base URLs.
var EnvironmentURLs = map[string]string{
	"sandbox":    "https://sandbox.safaricom.co.ke",
	"production": "https://api.safaricom.co.ke",
}

const (
	timestampLayout = "20060102150405"

	maxAccountReference = 12
	maxTransactionDesc  = 13
)

type Client struct {
	cfg     config.MpesaConfig
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type STKPushRequest struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	Description      string
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type queryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Succeeded reports a confirmed payment.
func (r *QueryResponse) Succeeded() bool {
	return r.ResponseCode == "0" && r.ResultCode == "0"
}

// APIError is the error body Daraja returns on non-2xx responses.
type APIError struct {
	StatusCode   int    `json:"-"`
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daraja returned status %d (%s): %s", e.StatusCode, e.ErrorCode, e.ErrorMessage)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func NewClient(cfg config.MpesaConfig, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		var ok bool
		baseURL, ok = EnvironmentURLs[cfg.Environment]
		if !ok {
			baseURL = EnvironmentURLs["sandbox"]
		}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		now:     time.Now,
	}
}

// Password is base64(shortcode + passkey + timestamp).
func (c *Client) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

// STKPush prompts the payer's phone. A non-zero ResponseCode is returned as an APIError.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if req.Amount < 1 {
		return nil, fmt.Errorf("amount must be at least 1, got %d", req.Amount)
	}

	timestamp := c.now().Format(timestampLayout)
	transactionType := c.cfg.TransactionType
	if transactionType == "" {
		transactionType = "CustomerPayBillOnline"
	}
	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.Password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            req.Amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(req.AccountReference, maxAccountReference),
		TransactionDesc:   truncate(req.Description, maxTransactionDesc),
	}

	c.logger.Info("initiating stk push",
		zap.String("phone", maskPhone(phone)),
		zap.Int64("amount", req.Amount),
		zap.String("account_reference", payload.AccountReference),
	)

	var resp STKPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ResponseCode != "0" {
		return nil, &APIError{StatusCode: http.StatusOK, ErrorCode: resp.ResponseCode, ErrorMessage: resp.ResponseDescription}
	}

	c.logger.Info("stk push accepted",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("merchant_request_id", resp.MerchantRequestID),
	)
	return &resp, nil
}

// QueryStatus asks Daraja for the outcome of a push.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	timestamp := c.now().Format(timestampLayout)
	payload := queryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.Password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var resp QueryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", payload, &resp); err != nil {
		return nil, err
	}

	c.logger.Info("stk push status queried",
		zap.String("checkout_request_id", checkoutRequestID),
		zap.String("result_code", resp.ResultCode),
		zap.String("result_desc", resp.ResultDesc),
	)
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call daraja: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			c.invalidateToken()
		}
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.ErrorMessage == "" {
			apiErr.ErrorMessage = string(raw)
		}
		c.logger.Warn("daraja request failed",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("error_code", apiErr.ErrorCode),
		)
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, ErrorMessage: string(raw)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	ttl := 3599 * time.Second
	if secs, err := time.ParseDuration(tr.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}
	c.token = tr.AccessToken
	// refresh a minute early
	c.tokenExpiry = c.now().Add(ttl - time.Minute)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
