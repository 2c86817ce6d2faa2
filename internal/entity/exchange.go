package entity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ExchangeName string

const (
	ExchangeLighter ExchangeName = "lighter"
)

// ExchangeGateway is everything the bracket bot needs from an exchange. Wire format,
// signing and session handling stay behind the implementation.
type ExchangeGateway interface {
	Name() ExchangeName
	ResolveAccountIndex(ctx context.Context, l1Address string) (int64, error)
	Authenticate(ctx context.Context, privateKey string, accountIndex int64, apiKeyIndex int) (string, error)
	RecentTrades(ctx context.Context, marketID int, limit int) ([]Trade, error)
	SubmitOrder(ctx context.Context, order OrderRequest) (*OrderAck, error)
	GetAccount(ctx context.Context, accountIndex int64) (*Account, error)
	ActiveOrders(ctx context.Context, accountIndex int64, marketID int) ([]ActiveOrder, error)
	CancelOrder(ctx context.Context, marketID int, orderIndex int64) (*OrderAck, error)
}

type Trade struct {
	TradeID    int64
	MarketID   int
	Price      decimal.Decimal
	Size       decimal.Decimal
	IsMakerAsk bool
	Timestamp  time.Time
}

type Account struct {
	Index           int64
	L1Address       string
	TotalAssetValue decimal.Decimal
	Collateral      decimal.Decimal
	Positions       []Position
}

type Position struct {
	MarketID      int
	Symbol        string
	Sign          int
	Size          decimal.Decimal
	AvgEntryPrice decimal.Decimal
	UnrealizedPnl decimal.Decimal
}

func (p Position) IsLong() bool {
	return p.Sign > 0
}

func (p Position) Direction() string {
	if p.IsLong() {
		return "Long"
	}
	return "Short"
}

type ActiveOrder struct {
	OrderIndex          int64
	ClientOrderID       int64
	MarketID            int
	Kind                OrderKind
	Side                OrderSide
	Status              string
	Price               decimal.Decimal
	TriggerPrice        decimal.Decimal
	RemainingBaseAmount decimal.Decimal
}
