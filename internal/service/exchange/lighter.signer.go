package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// TxSigner produces signed Lighter transactions. Lighter signs with a dedicated key scheme
// that ships as a native library, so the bot talks to it through a local sidecar.
type TxSigner interface {
	Register(ctx context.Context, credentials SignerCredentials) error
	CreateAuthToken(ctx context.Context, deadline time.Time) (string, error)
	SignCreateOrder(ctx context.Context, req SignCreateOrderRequest) (string, error)
	SignCancelOrder(ctx context.Context, req SignCancelOrderRequest) (string, error)
}

type SignerCredentials struct {
	BaseURL      string `json:"url"`
	PrivateKey   string `json:"private_key"`
	AccountIndex int64  `json:"account_index"`
	APIKeyIndex  int    `json:"api_key_index"`
}

type SignCreateOrderRequest struct {
	MarketIndex      int   `json:"market_index"`
	ClientOrderIndex int64 `json:"client_order_index"`
	BaseAmount       int64 `json:"base_amount"`
	Price            int64 `json:"price"`
	IsAsk            bool  `json:"is_ask"`
	OrderType        int   `json:"order_type"`
	TimeInForce      int   `json:"time_in_force"`
	ReduceOnly       bool  `json:"reduce_only"`
	TriggerPrice     int64 `json:"trigger_price"`
	OrderExpiry      int64 `json:"order_expiry"`
	Nonce            int64 `json:"nonce"`
}

type SignCancelOrderRequest struct {
	MarketIndex int   `json:"market_index"`
	OrderIndex  int64 `json:"order_index"`
	Nonce       int64 `json:"nonce"`
}

type HTTPTxSigner struct {
	baseURL    string
	httpClient *http.Client

	accountIndex int64
	apiKeyIndex  int
}

func NewHTTPTxSigner(baseURL string, timeout time.Duration) *HTTPTxSigner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPTxSigner{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPTxSigner) Register(ctx context.Context, credentials SignerCredentials) error {
	if strings.TrimSpace(credentials.PrivateKey) == "" {
		return fmt.Errorf("api private key is required")
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := s.post(ctx, "/v1/clients", credentials, &resp); err != nil {
		return err
	}

	s.accountIndex = credentials.AccountIndex
	s.apiKeyIndex = credentials.APIKeyIndex

	return nil
}

func (s *HTTPTxSigner) CreateAuthToken(ctx context.Context, deadline time.Time) (string, error) {
	req := struct {
		AccountIndex int64 `json:"account_index"`
		APIKeyIndex  int   `json:"api_key_index"`
		Deadline     int64 `json:"deadline"`
	}{
		AccountIndex: s.accountIndex,
		APIKeyIndex:  s.apiKeyIndex,
		Deadline:     deadline.Unix(),
	}

	var resp struct {
		AuthToken string `json:"auth_token"`
	}
	if err := s.post(ctx, "/v1/auth_tokens", req, &resp); err != nil {
		return "", err
	}
	if resp.AuthToken == "" {
		return "", fmt.Errorf("signer returned an empty auth token")
	}

	return resp.AuthToken, nil
}

func (s *HTTPTxSigner) SignCreateOrder(ctx context.Context, req SignCreateOrderRequest) (string, error) {
	return s.sign(ctx, "/v1/sign/create_order", req)
}

func (s *HTTPTxSigner) SignCancelOrder(ctx context.Context, req SignCancelOrderRequest) (string, error) {
	return s.sign(ctx, "/v1/sign/cancel_order", req)
}

func (s *HTTPTxSigner) sign(ctx context.Context, path string, payload any) (string, error) {
	req := struct {
		AccountIndex int64 `json:"account_index"`
		APIKeyIndex  int   `json:"api_key_index"`
		Tx           any   `json:"tx"`
	}{
		AccountIndex: s.accountIndex,
		APIKeyIndex:  s.apiKeyIndex,
		Tx:           payload,
	}

	var resp struct {
		TxInfo string `json:"tx_info"`
	}
	if err := s.post(ctx, path, req, &resp); err != nil {
		return "", err
	}
	if resp.TxInfo == "" {
		return "", fmt.Errorf("signer returned an empty tx_info")
	}

	return resp.TxInfo, nil
}

func (s *HTTPTxSigner) post(ctx context.Context, path string, in any, out any) error {
	if s.baseURL == "" {
		return ErrSignerNotConfigured
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &errResp)
		if errResp.Error == "" {
			errResp.Error = strings.TrimSpace(string(body))
		}
		return fmt.Errorf("signer %s failed: status=%d error=%s", path, resp.StatusCode, errResp.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("signer %s parse failed: %w", path, err)
	}

	return nil
}
