package entity

import "time"

type OrderKind string
type OrderSide string
type TimeInForce string
type OrderRole string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"

	OrderKindLimit           OrderKind = "LIMIT"
	OrderKindMarket          OrderKind = "MARKET"
	OrderKindStopLossLimit   OrderKind = "STOP_LOSS_LIMIT"
	OrderKindTakeProfitLimit OrderKind = "TAKE_PROFIT_LIMIT"

	TimeInForceImmediateOrCancel TimeInForce = "IMMEDIATE_OR_CANCEL"
	TimeInForceGoodTillTime      TimeInForce = "GOOD_TILL_TIME"

	OrderRoleEntry        OrderRole = "ENTRY"
	OrderRoleTakeProfit   OrderRole = "TAKE_PROFIT"
	OrderRoleStopLoss     OrderRole = "STOP_LOSS"
	OrderRoleCompensation OrderRole = "COMPENSATION"
)

// OrderExpiryExchangeDefault lets the exchange apply its default lifetime to resting orders.
const OrderExpiryExchangeDefault int64 = -1

// OrderRequest carries prices and sizes in the exchange fixed-point representation.
type OrderRequest struct {
	Role          OrderRole
	Kind          OrderKind
	Side          OrderSide
	MarketID      int
	ClientOrderID int64
	BaseAmount    int64
	Price         int64
	TriggerPrice  int64
	TimeInForce   TimeInForce
	ReduceOnly    bool
	Expiry        int64
}

func (o OrderRequest) IsAsk() bool {
	return o.Side == OrderSideSell
}

func (o OrderRequest) IsConditional() bool {
	return o.Kind == OrderKindStopLossLimit || o.Kind == OrderKindTakeProfitLimit
}

type OrderAck struct {
	ClientOrderID  int64
	OrderIndex     int64
	TxHash         string
	Code           int
	Message        string
	AcknowledgedAt time.Time
}
