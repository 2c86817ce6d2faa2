package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/bracket-bot/internal/config"
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	lighterDefaultBaseURL = "https://mainnet.zklighter.elliot.ai"
	lighterDefaultTimeout = 15 * time.Second
	lighterDefaultRate    = 5
	lighterCodeOK         = 200

	lighterTxTypeCreateOrder = 14
	lighterTxTypeCancelOrder = 15
)

var (
	ErrAccountNotFound     = errors.New("no sub account found for l1 address")
	ErrNotAuthenticated    = errors.New("exchange session is not authenticated")
	ErrSignerNotConfigured = errors.New("transaction signer is not configured")
)

type LighterExchange struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	signer      TxSigner
	authExpiry  time.Duration
	apiKeyIndex int

	mu           sync.RWMutex
	accountIndex int64
	authToken    string
}

type lighterEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e lighterEnvelope) err(status int) error {
	if status >= http.StatusBadRequest || (e.Code != 0 && e.Code != lighterCodeOK) {
		msg := e.Message
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("lighter request rejected: status=%d code=%d message=%s", status, e.Code, msg)
	}
	return nil
}

func NewLighterExchange(exchangeConfig config.ExchangeConfig, signer TxSigner) *LighterExchange {
	baseURL := strings.TrimSpace(exchangeConfig.BaseURL)
	if baseURL == "" {
		baseURL = lighterDefaultBaseURL
	}

	timeout := exchangeConfig.RequestTimeout
	if timeout <= 0 {
		timeout = lighterDefaultTimeout
	}

	limit := exchangeConfig.RateLimit
	if limit <= 0 {
		limit = lighterDefaultRate
	}

	burst := exchangeConfig.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &LighterExchange{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(limit), burst),
		signer:      signer,
		authExpiry:  exchangeConfig.AuthExpiry,
		apiKeyIndex: exchangeConfig.APIKeyIndex,
	}
}

func (e *LighterExchange) Name() entity.ExchangeName {
	return entity.ExchangeLighter
}

func (e *LighterExchange) ResolveAccountIndex(ctx context.Context, l1Address string) (int64, error) {
	l1Address = strings.TrimSpace(l1Address)
	if l1Address == "" {
		return 0, fmt.Errorf("l1 address is required")
	}

	var resp struct {
		lighterEnvelope
		L1Address   string `json:"l1_address"`
		SubAccounts []struct {
			Index json.Number `json:"index"`
		} `json:"sub_accounts"`
	}

	if err := e.get(ctx, "/api/v1/accountsByL1Address", url.Values{"l1_address": {l1Address}}, &resp); err != nil {
		return 0, err
	}

	if len(resp.SubAccounts) == 0 {
		return 0, ErrAccountNotFound
	}

	index, err := strconv.ParseInt(resp.SubAccounts[0].Index.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("account index is not an integer: %q", resp.SubAccounts[0].Index.String())
	}

	return index, nil
}

func (e *LighterExchange) Authenticate(ctx context.Context, privateKey string, accountIndex int64, apiKeyIndex int) (string, error) {
	if e.signer == nil {
		return "", ErrSignerNotConfigured
	}

	err := e.signer.Register(ctx, SignerCredentials{
		PrivateKey:   privateKey,
		AccountIndex: accountIndex,
		APIKeyIndex:  apiKeyIndex,
		BaseURL:      e.baseURL,
	})
	if err != nil {
		return "", fmt.Errorf("signer client check failed: %w", err)
	}

	expiry := e.authExpiry
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}

	token, err := e.signer.CreateAuthToken(ctx, time.Now().Add(expiry))
	if err != nil {
		return "", fmt.Errorf("create auth token: %w", err)
	}

	e.mu.Lock()
	e.accountIndex = accountIndex
	e.apiKeyIndex = apiKeyIndex
	e.authToken = token
	e.mu.Unlock()

	return token, nil
}

func (e *LighterExchange) RecentTrades(ctx context.Context, marketID int, limit int) ([]entity.Trade, error) {
	if limit <= 0 {
		limit = 1
	}

	var resp struct {
		lighterEnvelope
		Trades []struct {
			TradeID    int64           `json:"trade_id"`
			MarketID   int             `json:"market_id"`
			Size       decimal.Decimal `json:"size"`
			Price      decimal.Decimal `json:"price"`
			IsMakerAsk bool            `json:"is_maker_ask"`
			Timestamp  int64           `json:"timestamp"`
		} `json:"trades"`
	}

	query := url.Values{
		"market_id": {strconv.Itoa(marketID)},
		"limit":     {strconv.Itoa(limit)},
	}
	if err := e.get(ctx, "/api/v1/recentTrades", query, &resp); err != nil {
		return nil, err
	}

	trades := make([]entity.Trade, 0, len(resp.Trades))
	for _, t := range resp.Trades {
		trades = append(trades, entity.Trade{
			TradeID:    t.TradeID,
			MarketID:   t.MarketID,
			Price:      t.Price,
			Size:       t.Size,
			IsMakerAsk: t.IsMakerAsk,
			Timestamp:  time.UnixMilli(t.Timestamp).UTC(),
		})
	}

	return trades, nil
}

func (e *LighterExchange) GetAccount(ctx context.Context, accountIndex int64) (*entity.Account, error) {
	var resp struct {
		lighterEnvelope
		Accounts []struct {
			Index           int64           `json:"index"`
			L1Address       string          `json:"l1_address"`
			Collateral      decimal.Decimal `json:"collateral"`
			TotalAssetValue decimal.Decimal `json:"total_asset_value"`
			Positions       []struct {
				MarketID      int             `json:"market_id"`
				Symbol        string          `json:"symbol"`
				Sign          int             `json:"sign"`
				Position      decimal.Decimal `json:"position"`
				AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
				UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
			} `json:"positions"`
		} `json:"accounts"`
	}

	query := url.Values{
		"by":    {"index"},
		"value": {strconv.FormatInt(accountIndex, 10)},
	}
	if err := e.get(ctx, "/api/v1/account", query, &resp); err != nil {
		return nil, err
	}

	if len(resp.Accounts) == 0 {
		return nil, fmt.Errorf("account %d not found", accountIndex)
	}

	raw := resp.Accounts[0]
	account := &entity.Account{
		Index:           raw.Index,
		L1Address:       raw.L1Address,
		Collateral:      raw.Collateral,
		TotalAssetValue: raw.TotalAssetValue,
		Positions:       make([]entity.Position, 0, len(raw.Positions)),
	}
	for _, p := range raw.Positions {
		account.Positions = append(account.Positions, entity.Position{
			MarketID:      p.MarketID,
			Symbol:        p.Symbol,
			Sign:          p.Sign,
			Size:          p.Position,
			AvgEntryPrice: p.AvgEntryPrice,
			UnrealizedPnl: p.UnrealizedPnl,
		})
	}

	return account, nil
}

func (e *LighterExchange) ActiveOrders(ctx context.Context, accountIndex int64, marketID int) ([]entity.ActiveOrder, error) {
	token := e.token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp struct {
		lighterEnvelope
		Orders []struct {
			OrderIndex          int64           `json:"order_index"`
			ClientOrderIndex    int64           `json:"client_order_index"`
			MarketIndex         int             `json:"market_index"`
			Type                string          `json:"type"`
			IsAsk               bool            `json:"is_ask"`
			Status              string          `json:"status"`
			Price               decimal.Decimal `json:"price"`
			TriggerPrice        decimal.Decimal `json:"trigger_price"`
			RemainingBaseAmount decimal.Decimal `json:"remaining_base_amount"`
		} `json:"orders"`
	}

	query := url.Values{
		"account_index": {strconv.FormatInt(accountIndex, 10)},
		"market_id":     {strconv.Itoa(marketID)},
		"auth":          {token},
	}
	if err := e.get(ctx, "/api/v1/accountActiveOrders", query, &resp); err != nil {
		return nil, err
	}

	orders := make([]entity.ActiveOrder, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		side := entity.OrderSideBuy
		if o.IsAsk {
			side = entity.OrderSideSell
		}
		orders = append(orders, entity.ActiveOrder{
			OrderIndex:          o.OrderIndex,
			ClientOrderID:       o.ClientOrderIndex,
			MarketID:            o.MarketIndex,
			Kind:                lighterOrderKindFromName(o.Type),
			Side:                side,
			Status:              o.Status,
			Price:               o.Price,
			TriggerPrice:        o.TriggerPrice,
			RemainingBaseAmount: o.RemainingBaseAmount,
		})
	}

	return orders, nil
}

func (e *LighterExchange) SubmitOrder(ctx context.Context, order entity.OrderRequest) (*entity.OrderAck, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if e.signer == nil {
		return nil, ErrSignerNotConfigured
	}

	orderType, err := lighterOrderTypeCode(order.Kind)
	if err != nil {
		return nil, err
	}

	timeInForce, err := lighterTimeInForceCode(order.TimeInForce)
	if err != nil {
		return nil, err
	}

	nonce, err := e.nextNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}

	txInfo, err := e.signer.SignCreateOrder(ctx, SignCreateOrderRequest{
		MarketIndex:      order.MarketID,
		ClientOrderIndex: order.ClientOrderID,
		BaseAmount:       order.BaseAmount,
		Price:            order.Price,
		IsAsk:            order.IsAsk(),
		OrderType:        orderType,
		TimeInForce:      timeInForce,
		ReduceOnly:       order.ReduceOnly,
		TriggerPrice:     order.TriggerPrice,
		OrderExpiry:      order.Expiry,
		Nonce:            nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("sign create order: %w", err)
	}

	ack, err := e.sendTx(ctx, lighterTxTypeCreateOrder, txInfo)
	if err != nil {
		return nil, err
	}
	ack.ClientOrderID = order.ClientOrderID

	logrus.WithFields(logrus.Fields{
		"exchange":        entity.ExchangeLighter,
		"market_id":       order.MarketID,
		"client_order_id": order.ClientOrderID,
		"kind":            order.Kind,
		"side":            order.Side,
		"price":           order.Price,
		"trigger_price":   order.TriggerPrice,
		"base_amount":     order.BaseAmount,
		"tx_hash":         ack.TxHash,
	}).Debug("order placed")

	return ack, nil
}

func (e *LighterExchange) CancelOrder(ctx context.Context, marketID int, orderIndex int64) (*entity.OrderAck, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if e.signer == nil {
		return nil, ErrSignerNotConfigured
	}

	nonce, err := e.nextNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}

	txInfo, err := e.signer.SignCancelOrder(ctx, SignCancelOrderRequest{
		MarketIndex: marketID,
		OrderIndex:  orderIndex,
		Nonce:       nonce,
	})
	if err != nil {
		return nil, fmt.Errorf("sign cancel order: %w", err)
	}

	ack, err := e.sendTx(ctx, lighterTxTypeCancelOrder, txInfo)
	if err != nil {
		return nil, err
	}
	ack.OrderIndex = orderIndex

	return ack, nil
}

func (e *LighterExchange) nextNonce(ctx context.Context) (int64, error) {
	e.mu.RLock()
	accountIndex := e.accountIndex
	apiKeyIndex := e.apiKeyIndex
	e.mu.RUnlock()

	var resp struct {
		lighterEnvelope
		Nonce int64 `json:"nonce"`
	}

	query := url.Values{
		"account_index": {strconv.FormatInt(accountIndex, 10)},
		"api_key_index": {strconv.Itoa(apiKeyIndex)},
	}
	if err := e.get(ctx, "/api/v1/nextNonce", query, &resp); err != nil {
		return 0, err
	}

	return resp.Nonce, nil
}

func (e *LighterExchange) sendTx(ctx context.Context, txType int, txInfo string) (*entity.OrderAck, error) {
	form := url.Values{
		"tx_type": {strconv.Itoa(txType)},
		"tx_info": {txInfo},
	}

	var resp struct {
		lighterEnvelope
		TxHash string `json:"tx_hash"`
	}

	if err := e.do(ctx, http.MethodPost, "/api/v1/sendTx", nil, strings.NewReader(form.Encode()), &resp); err != nil {
		return nil, err
	}

	return &entity.OrderAck{
		TxHash:         resp.TxHash,
		Code:           resp.Code,
		Message:        resp.Message,
		AcknowledgedAt: time.Now().UTC(),
	}, nil
}

func (e *LighterExchange) token() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.authToken
}

func (e *LighterExchange) get(ctx context.Context, path string, query url.Values, out any) error {
	return e.do(ctx, http.MethodGet, path, query, nil, out)
}

func (e *LighterExchange) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := e.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token := e.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope lighterEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("lighter %s parse failed: status=%d body=%s", path, resp.StatusCode, string(raw))
	}
	if err := envelope.err(resp.StatusCode); err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("lighter %s data parse failed: %w", path, err)
	}

	return nil
}

func lighterOrderTypeCode(kind entity.OrderKind) (int, error) {
	switch kind {
	case entity.OrderKindLimit:
		return 0, nil
	case entity.OrderKindMarket:
		return 1, nil
	case entity.OrderKindStopLossLimit:
		return 3, nil
	case entity.OrderKindTakeProfitLimit:
		return 5, nil
	default:
		return 0, fmt.Errorf("unsupported order kind for lighter: %s", kind)
	}
}

func lighterTimeInForceCode(tif entity.TimeInForce) (int, error) {
	switch tif {
	case entity.TimeInForceImmediateOrCancel:
		return 0, nil
	case entity.TimeInForceGoodTillTime:
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported time in force for lighter: %s", tif)
	}
}

func lighterOrderKindFromName(name string) entity.OrderKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "market":
		return entity.OrderKindMarket
	case "stop-loss-limit", "stop_loss_limit":
		return entity.OrderKindStopLossLimit
	case "take-profit-limit", "take_profit_limit":
		return entity.OrderKindTakeProfitLimit
	default:
		return entity.OrderKindLimit
	}
}
