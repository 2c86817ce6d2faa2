package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnboundedSleep marks a pacing interval that only ends on interrupt.
const UnboundedSleep time.Duration = -1

// BotParameters is loaded once at startup and never mutated.
type BotParameters struct {
	Market              string
	MarketID            int
	BaseAmount          int64
	TakeProfitPercent   decimal.Decimal
	StopLossPercent     decimal.Decimal
	OrdersPerHour       float64
	Leverage            decimal.Decimal
	FailedOrderSleep    time.Duration
	PriceScale          int64
	SizeScale           int64
	EntrySlippage       decimal.Decimal
	StopLossLimitOffset decimal.Decimal
	LegSubmitTimeout    time.Duration

	SkipWhenPositionOpen       bool
	CompensateUnprotectedEntry bool
	ReconcilePairs             bool
	CancelOrphanLegs           bool
}

func DefaultBotParameters() BotParameters {
	return BotParameters{
		Market:              "ETH",
		MarketID:            0,
		BaseAmount:          150,
		TakeProfitPercent:   decimal.RequireFromString("0.0025"),
		StopLossPercent:     decimal.RequireFromString("0.0015"),
		OrdersPerHour:       1,
		Leverage:            decimal.NewFromInt(1),
		FailedOrderSleep:    30 * time.Second,
		PriceScale:          100,
		SizeScale:           10000,
		EntrySlippage:       decimal.RequireFromString("0.5"),
		StopLossLimitOffset: decimal.RequireFromString("0.2"),
		LegSubmitTimeout:    15 * time.Second,
		ReconcilePairs:      true,
	}
}

// SleepDuration is the pause after a successful cycle: 3600/rate seconds, or
// UnboundedSleep when the rate is zero or negative.
func (p BotParameters) SleepDuration() time.Duration {
	if p.OrdersPerHour <= 0 {
		return UnboundedSleep
	}

	return time.Duration(3600.0 / p.OrdersPerHour * float64(time.Second))
}

// DisplayAmount converts integer lots into the base asset amount shown to the operator.
func (p BotParameters) DisplayAmount() decimal.Decimal {
	if p.SizeScale <= 0 {
		return decimal.NewFromInt(p.BaseAmount)
	}
	return decimal.NewFromInt(p.BaseAmount).Div(decimal.NewFromInt(p.SizeScale))
}

// Session is created once after authentication and is read-only afterwards.
type Session struct {
	AccountIndex int64
	MarketID     int
	AuthToken    string
	Gateway      ExchangeGateway
}

type BracketPlan struct {
	ReferencePrice decimal.Decimal
	Entry          OrderRequest
	TakeProfit     OrderRequest
	StopLoss       OrderRequest
}

func (p BracketPlan) Orders() []OrderRequest {
	return []OrderRequest{p.Entry, p.TakeProfit, p.StopLoss}
}

type BracketSubmission struct {
	EntryAck      *OrderAck
	TakeProfitAck *OrderAck
	StopLossAck   *OrderAck
	Pair          BracketPair
}

type BracketPair struct {
	EntryClientOrderID      int64     `json:"entry_client_order_id"`
	TakeProfitClientOrderID int64     `json:"take_profit_client_order_id"`
	StopLossClientOrderID   int64     `json:"stop_loss_client_order_id"`
	CreatedAt               time.Time `json:"created_at"`
}

type PositionSummary struct {
	Symbol     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	Long       bool
}

func (p PositionSummary) IsOpen() bool {
	return p.Size.GreaterThan(decimal.Zero)
}

type CycleStatus string

const (
	CycleStatusPlaced              CycleStatus = "placed"
	CycleStatusPriceUnavailable    CycleStatus = "price_unavailable"
	CycleStatusSubmissionFailed    CycleStatus = "submission_failed"
	CycleStatusSkippedOpenPosition CycleStatus = "skipped_open_position"
)

type CycleOutcome struct {
	Status         CycleStatus
	ReferencePrice decimal.Decimal
	Pair           *BracketPair
	Err            error
}

func (o CycleOutcome) Succeeded() bool {
	return o.Status == CycleStatusPlaced
}

type ReconcileResult struct {
	Resolved  []BracketPair
	OneSided  []BracketPair
	Cancelled []BracketPair
	// CancelledLegs holds the client order ids of the legs cancelled as orphans.
	CancelledLegs []int64
	Remaining     int
}
