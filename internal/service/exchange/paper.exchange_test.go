package exchange

import (
	"context"
	"testing"

	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticMarketData struct {
	price decimal.Decimal
}

func (s *staticMarketData) RecentTrades(ctx context.Context, marketID int, limit int) ([]entity.Trade, error) {
	return []entity.Trade{{TradeID: 1, MarketID: marketID, Price: s.price}}, nil
}

func newTestPaper(price string) (*PaperExchange, *staticMarketData) {
	source := &staticMarketData{price: decimal.RequireFromString(price)}
	return NewPaperExchange(source, PaperConfig{Symbol: "ETH", Balance: decimal.NewFromInt(1000)}), source
}

func bracketOrders() []entity.OrderRequest {
	return []entity.OrderRequest{
		{Role: entity.OrderRoleEntry, Kind: entity.OrderKindMarket, Side: entity.OrderSideBuy, ClientOrderID: 1, BaseAmount: 150, Price: 200050, TimeInForce: entity.TimeInForceImmediateOrCancel},
		{Role: entity.OrderRoleTakeProfit, Kind: entity.OrderKindTakeProfitLimit, Side: entity.OrderSideSell, ClientOrderID: 2, BaseAmount: 150, Price: 200500, TriggerPrice: 200500, TimeInForce: entity.TimeInForceGoodTillTime},
		{Role: entity.OrderRoleStopLoss, Kind: entity.OrderKindStopLossLimit, Side: entity.OrderSideSell, ClientOrderID: 3, BaseAmount: 150, Price: 199680, TriggerPrice: 199700, TimeInForce: entity.TimeInForceGoodTillTime},
	}
}

func TestPaperExchangeMarketOrderNeedsPrice(t *testing.T) {
	paper, _ := newTestPaper("2000")

	_, err := paper.SubmitOrder(context.Background(), bracketOrders()[0])
	assert.ErrorIs(t, err, ErrNoReferencePrice)
}

func TestPaperExchangeBracketLifecycle(t *testing.T) {
	ctx := context.Background()
	paper, _ := newTestPaper("2000")

	_, err := paper.RecentTrades(ctx, 0, 1)
	require.NoError(t, err)

	for _, order := range bracketOrders() {
		_, err := paper.SubmitOrder(ctx, order)
		require.NoError(t, err)
	}

	account, err := paper.GetAccount(ctx, paperAccountIndex)
	require.NoError(t, err)
	require.Len(t, account.Positions, 1)
	assert.Equal(t, "0.015", account.Positions[0].Size.String())
	assert.True(t, account.Positions[0].IsLong())

	active, err := paper.ActiveOrders(ctx, paperAccountIndex, 0)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	// price rallies through the take profit trigger
	paper.ObservePrice(decimal.NewFromInt(2006))

	active, err = paper.ActiveOrders(ctx, paperAccountIndex, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(3), active[0].ClientOrderID)

	account, err = paper.GetAccount(ctx, paperAccountIndex)
	require.NoError(t, err)
	assert.Empty(t, account.Positions)
	// bought 0.015 at 2000, sold at the 2005 limit
	assert.Equal(t, "1000.075", account.Collateral.String())
}

func TestPaperExchangeStopLossTriggers(t *testing.T) {
	ctx := context.Background()
	paper, _ := newTestPaper("2000")
	_, err := paper.RecentTrades(ctx, 0, 1)
	require.NoError(t, err)

	for _, order := range bracketOrders() {
		_, err := paper.SubmitOrder(ctx, order)
		require.NoError(t, err)
	}

	paper.ObservePrice(decimal.RequireFromString("1999.5"))
	active, err := paper.ActiveOrders(ctx, paperAccountIndex, 0)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	paper.ObservePrice(decimal.NewFromInt(1997))
	active, err = paper.ActiveOrders(ctx, paperAccountIndex, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].ClientOrderID)

	account, err := paper.GetAccount(ctx, paperAccountIndex)
	require.NoError(t, err)
	assert.Equal(t, "999.952", account.Collateral.String())
}

func TestPaperExchangeRejectsSlippageAndDuplicates(t *testing.T) {
	ctx := context.Background()
	paper, _ := newTestPaper("2001")
	_, err := paper.RecentTrades(ctx, 0, 1)
	require.NoError(t, err)

	_, err = paper.SubmitOrder(ctx, bracketOrders()[0])
	assert.ErrorIs(t, err, ErrSlippageBoundExceeded)

	order := bracketOrders()[1]
	_, err = paper.SubmitOrder(ctx, order)
	require.NoError(t, err)
	_, err = paper.SubmitOrder(ctx, order)
	assert.ErrorIs(t, err, ErrDuplicateClientOrderID)
}

func TestPaperExchangeCancelOrder(t *testing.T) {
	ctx := context.Background()
	paper, _ := newTestPaper("2000")

	ack, err := paper.SubmitOrder(ctx, bracketOrders()[1])
	require.NoError(t, err)

	_, err = paper.CancelOrder(ctx, 0, ack.OrderIndex)
	require.NoError(t, err)

	_, err = paper.CancelOrder(ctx, 0, ack.OrderIndex)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	active, err := paper.ActiveOrders(ctx, paperAccountIndex, 0)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPaperExchangeReduceOnlyNeverOpensPosition(t *testing.T) {
	ctx := context.Background()
	paper, _ := newTestPaper("2000")
	_, err := paper.RecentTrades(ctx, 0, 1)
	require.NoError(t, err)

	flatten := entity.OrderRequest{
		Role:          entity.OrderRoleCompensation,
		Kind:          entity.OrderKindMarket,
		Side:          entity.OrderSideSell,
		ClientOrderID: 4,
		BaseAmount:    300,
		Price:         199680,
		TimeInForce:   entity.TimeInForceImmediateOrCancel,
		ReduceOnly:    true,
	}

	_, err = paper.SubmitOrder(ctx, flatten)
	assert.ErrorIs(t, err, ErrReduceOnlyNoPosition)

	account, err := paper.GetAccount(ctx, paperAccountIndex)
	require.NoError(t, err)
	assert.Empty(t, account.Positions)

	_, err = paper.SubmitOrder(ctx, bracketOrders()[0])
	require.NoError(t, err)

	flatten.ClientOrderID = 5
	_, err = paper.SubmitOrder(ctx, flatten)
	require.NoError(t, err)

	account, err = paper.GetAccount(ctx, paperAccountIndex)
	require.NoError(t, err)
	assert.Empty(t, account.Positions)
	assert.Equal(t, "1000", account.Collateral.String())
}
