package bracket

import (
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Planner turns a reference price into the three orders of a long bracket. It is pure:
// identical inputs give identical plans apart from the ids drawn from the sequence.
type Planner struct {
	params entity.BotParameters
}

func NewPlanner(params entity.BotParameters) *Planner {
	return &Planner{params: params}
}

// Plan draws three ids in order entry, take profit, stop loss.
//
//	entry bound   = trunc((price + slippage) * scale)
//	tp trigger    = trunc(price * (1 + tp) * scale), tp limit is the same value
//	sl trigger    = trunc(price * (1 - sl) * scale)
//	sl limit      = trunc((price * (1 - sl) - offset) * scale)
func (p *Planner) Plan(referencePrice decimal.Decimal, ids IDSource) entity.BracketPlan {
	params := p.params

	takeProfitPrice := referencePrice.Mul(one.Add(params.TakeProfitPercent))
	stopLossPrice := referencePrice.Mul(one.Sub(params.StopLossPercent))

	entryBound := p.scaled(referencePrice.Add(params.EntrySlippage))
	takeProfit := p.scaled(takeProfitPrice)
	stopLossTrigger := p.scaled(stopLossPrice)
	stopLossLimit := p.scaled(stopLossPrice.Sub(params.StopLossLimitOffset))

	return entity.BracketPlan{
		ReferencePrice: referencePrice,
		Entry: entity.OrderRequest{
			Role:          entity.OrderRoleEntry,
			Kind:          entity.OrderKindMarket,
			Side:          entity.OrderSideBuy,
			MarketID:      params.MarketID,
			ClientOrderID: ids.Next(),
			BaseAmount:    params.BaseAmount,
			Price:         entryBound,
			TimeInForce:   entity.TimeInForceImmediateOrCancel,
		},
		TakeProfit: entity.OrderRequest{
			Role:          entity.OrderRoleTakeProfit,
			Kind:          entity.OrderKindTakeProfitLimit,
			Side:          entity.OrderSideSell,
			MarketID:      params.MarketID,
			ClientOrderID: ids.Next(),
			BaseAmount:    params.BaseAmount,
			Price:         takeProfit,
			TriggerPrice:  takeProfit,
			TimeInForce:   entity.TimeInForceGoodTillTime,
			Expiry:        entity.OrderExpiryExchangeDefault,
		},
		StopLoss: entity.OrderRequest{
			Role:          entity.OrderRoleStopLoss,
			Kind:          entity.OrderKindStopLossLimit,
			Side:          entity.OrderSideSell,
			MarketID:      params.MarketID,
			ClientOrderID: ids.Next(),
			BaseAmount:    params.BaseAmount,
			Price:         stopLossLimit,
			TriggerPrice:  stopLossTrigger,
			TimeInForce:   entity.TimeInForceGoodTillTime,
			Expiry:        entity.OrderExpiryExchangeDefault,
		},
	}
}

func (p *Planner) scaled(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(p.params.PriceScale)).Truncate(0).IntPart()
}

func decimalFromScaled(value, scale int64) decimal.Decimal {
	return decimal.NewFromInt(value).Div(decimal.NewFromInt(scale))
}
