package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/jotpay/payment-service/internal"
	processortypes "github.com/jotpay/payment-service/internal/core/datamodel/processor"
)

// Client talks to the processor's collections/disbursements API with
// client-credentials OAuth. Every call fails closed within the
// configured timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokenURL   string
	clientID   string
	secret     string
	logger     *slog.Logger

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:   cfg.TokenURL,
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		logger:     logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token, refreshing it shortly before
// expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.secret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewProviderError("processor token endpoint unreachable", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("processor token request rejected",
			"status", resp.StatusCode,
			"response", string(body))
		return "", errors.NewProviderError("processor token request rejected", resp.StatusCode, nil)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tok.AccessToken
	// refresh a minute early to avoid using a token mid-expiry
	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if expiresIn > 2*time.Minute {
		expiresIn -= time.Minute
	}
	c.tokenExpiry = time.Now().Add(expiresIn)

	return c.accessToken, nil
}

// Collect submits a mobile-money collection.
func (c *Client) Collect(ctx context.Context, req *processortypes.CollectRequest) (*processortypes.TransactionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
	}
	return c.submit(ctx, "/api/collections/collect", req)
}

// BankDisburse submits a bank transfer.
func (c *Client) BankDisburse(ctx context.Context, req *processortypes.BankDisburseRequest) (*processortypes.TransactionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
	}
	return c.submit(ctx, "/api/disbursements/bank-disburse", req)
}

func (c *Client) submit(ctx context.Context, path string, payload interface{}) (*processortypes.TransactionResult, error) {
	body, status, err := c.doJSON(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		c.logger.Error("processor rejected request",
			"path", path,
			"status", status,
			"response", string(body))
		return nil, errors.NewProviderError(providerMessage(body), status, nil)
	}

	var result processortypes.TransactionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode processor response: %w", err)
	}

	c.logger.Info("processor accepted request",
		"path", path,
		"transaction_id", result.TransactionID,
		"status", result.Status)

	return &result, nil
}

// TransactionStatus reads the processor's view of one transaction,
// used by the background reconciler.
func (c *Client) TransactionStatus(ctx context.Context, transactionID string) (*processortypes.TransactionResult, error) {
	body, status, err := c.doJSON(ctx, http.MethodGet, "/api/collections/"+transactionID, nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, errors.NewProviderError(providerMessage(body), status, nil)
	}

	var result processortypes.TransactionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	if result.TransactionID == "" {
		result.TransactionID = transactionID
	}

	return &result, nil
}

type walletBalanceResponse struct {
	AvailableBalance decimal.Decimal `json:"availableBalance"`
}

// WalletBalance reads the collection wallet's available balance for
// the ops surface.
func (c *Client) WalletBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	body, status, err := c.doJSON(ctx, http.MethodGet, "/api/wallets/"+walletID+"/balance", nil)
	if err != nil {
		return decimal.Zero, err
	}

	if status != http.StatusOK {
		return decimal.Zero, errors.NewProviderError(providerMessage(body), status, nil)
	}

	var balance walletBalanceResponse
	if err := json.Unmarshal(body, &balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode balance response: %w", err)
	}

	return balance.AvailableBalance, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("processor request failed", "path", path, "error", err)
		return nil, 0, errors.NewProviderError("processor unreachable", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read processor response: %w", err)
	}

	return body, resp.StatusCode, nil
}

func providerMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return "processor request failed"
}
