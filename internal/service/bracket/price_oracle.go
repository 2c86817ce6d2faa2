package bracket

import (
	"context"

	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TradeSource is the market data slice of an exchange gateway.
type TradeSource interface {
	RecentTrades(ctx context.Context, marketID int, limit int) ([]entity.Trade, error)
}

type PriceOracle struct {
	source TradeSource
	market string
}

func NewPriceOracle(source TradeSource, market string) *PriceOracle {
	return &PriceOracle{source: source, market: market}
}

// LastTradePrice returns the price of the most recent trade. ok is false when the request
// fails or the market has no trades; both cases are logged and never escalated.
func (o *PriceOracle) LastTradePrice(ctx context.Context, marketID int) (price decimal.Decimal, ok bool) {
	trades, err := o.source.RecentTrades(ctx, marketID, 1)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"market":    o.market,
			"market_id": marketID,
		}).WithError(err).Error("Error fetching price")
		return decimal.Zero, false
	}

	if len(trades) == 0 {
		logrus.WithFields(logrus.Fields{
			"market":    o.market,
			"market_id": marketID,
		}).Warn("No recent trades found.")
		return decimal.Zero, false
	}

	price = trades[0].Price
	if price.LessThanOrEqual(decimal.Zero) {
		logrus.WithFields(logrus.Fields{
			"market":    o.market,
			"market_id": marketID,
			"price":     price.String(),
		}).Warn("recent trade has no usable price")
		return decimal.Zero, false
	}

	logrus.Infof("Fetched last trade price for market %s-USDC : $%s", o.market, price.String())

	return price, true
}
