package bracket

import (
	"context"
	"strings"

	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var positionFrame = strings.Repeat("-", 69)

// PositionMonitor reports the account balance and open positions. It is informational
// only and never fails a cycle.
type PositionMonitor struct{}

func NewPositionMonitor() *PositionMonitor {
	return &PositionMonitor{}
}

// CurrentPosition logs every open position and returns the first one with a strictly
// positive size. A zero summary is returned when the account cannot be read.
func (m *PositionMonitor) CurrentPosition(ctx context.Context, session entity.Session) entity.PositionSummary {
	account, err := session.Gateway.GetAccount(ctx, session.AccountIndex)
	if err != nil {
		logrus.WithField("account_index", session.AccountIndex).WithError(err).
			Error("Error fetching position")
		return entity.PositionSummary{Size: decimal.Zero}
	}

	logrus.Infof("Current Account Balance: %s USDC", account.TotalAssetValue.String())

	var summary entity.PositionSummary
	found := false
	for _, position := range account.Positions {
		if !position.Size.GreaterThan(decimal.Zero) {
			continue
		}

		logrus.Info(positionFrame)
		logrus.WithField("market_id", position.MarketID).Infof("| %s | %s/USDC | Size: %s | Entry: %s | uPNL: %s |",
			position.Direction(), position.Symbol, position.Size.String(),
			position.AvgEntryPrice.String(), position.UnrealizedPnl.String())
		logrus.Info(positionFrame)

		if !found {
			found = true
			summary = entity.PositionSummary{
				Symbol:     position.Symbol,
				Size:       position.Size,
				EntryPrice: position.AvgEntryPrice,
				Long:       position.IsLong(),
			}
		}
	}

	if !found {
		logrus.Info("No open positions.")
		return entity.PositionSummary{Size: decimal.Zero}
	}

	return summary
}
