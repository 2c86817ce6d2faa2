package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const paperAccountIndex int64 = 1

var (
	ErrDuplicateClientOrderID = errors.New("duplicate client order id")
	ErrNoReferencePrice       = errors.New("no reference price observed yet")
	ErrSlippageBoundExceeded  = errors.New("market order slippage bound exceeded")
	ErrOrderNotFound          = errors.New("order not found")
	ErrReduceOnlyNoPosition   = errors.New("reduce-only order has no position to reduce")
)

// MarketDataSource is the read-only slice of a gateway the paper exchange needs.
type MarketDataSource interface {
	RecentTrades(ctx context.Context, marketID int, limit int) ([]entity.Trade, error)
}

type PaperConfig struct {
	Symbol     string
	MarketID   int
	PriceScale int64
	SizeScale  int64
	Balance    decimal.Decimal
}

type paperOrder struct {
	orderIndex int64
	request    entity.OrderRequest
}

// PaperExchange fills market orders at the last observed price and keeps conditional orders
// in memory until an observed price crosses their trigger.
type PaperExchange struct {
	source MarketDataSource
	config PaperConfig

	mu             sync.Mutex
	balance        decimal.Decimal
	position       int64
	avgEntry       decimal.Decimal
	lastPrice      decimal.Decimal
	nextOrderIndex int64
	clientOrderIDs map[int64]struct{}
	active         map[int64]*paperOrder
}

func NewPaperExchange(source MarketDataSource, cfg PaperConfig) *PaperExchange {
	if cfg.PriceScale <= 0 {
		cfg.PriceScale = 100
	}
	if cfg.SizeScale <= 0 {
		cfg.SizeScale = 10000
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "ETH"
	}

	return &PaperExchange{
		source:         source,
		config:         cfg,
		balance:        cfg.Balance,
		nextOrderIndex: 1,
		clientOrderIDs: make(map[int64]struct{}),
		active:         make(map[int64]*paperOrder),
	}
}

func (e *PaperExchange) Name() entity.ExchangeName {
	return entity.ExchangeLighter
}

func (e *PaperExchange) ResolveAccountIndex(ctx context.Context, l1Address string) (int64, error) {
	return paperAccountIndex, nil
}

func (e *PaperExchange) Authenticate(ctx context.Context, privateKey string, accountIndex int64, apiKeyIndex int) (string, error) {
	if accountIndex != paperAccountIndex {
		return "", fmt.Errorf("unknown paper account index: %d", accountIndex)
	}
	return "paper-" + uuid.NewString(), nil
}

func (e *PaperExchange) RecentTrades(ctx context.Context, marketID int, limit int) ([]entity.Trade, error) {
	trades, err := e.source.RecentTrades(ctx, marketID, limit)
	if err != nil {
		return nil, err
	}

	if len(trades) > 0 && trades[0].Price.GreaterThan(decimal.Zero) {
		e.ObservePrice(trades[0].Price)
	}

	return trades, nil
}

// ObservePrice records a traded price and fills every conditional order it triggers.
func (e *PaperExchange) ObservePrice(price decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastPrice = price

	indexes := make([]int64, 0, len(e.active))
	for idx := range e.active {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	for _, idx := range indexes {
		order := e.active[idx]
		if !e.triggered(order.request, price) {
			continue
		}

		fillPrice := e.unscale(order.request.Price)
		lots := order.request.BaseAmount
		if order.request.ReduceOnly {
			lots = e.reducibleLots(order.request.Side, lots)
		}
		delete(e.active, idx)
		if lots == 0 {
			logrus.WithField("client_order_id", order.request.ClientOrderID).
				Warn("paper reduce-only order triggered without a position, dropped")
			continue
		}
		e.applyFill(order.request.Side, lots, fillPrice)

		logrus.WithFields(logrus.Fields{
			"client_order_id": order.request.ClientOrderID,
			"kind":            order.request.Kind,
			"trigger_price":   e.unscale(order.request.TriggerPrice),
			"fill_price":      fillPrice,
		}).Info("paper conditional order filled")
	}
}

func (e *PaperExchange) SubmitOrder(ctx context.Context, order entity.OrderRequest) (*entity.OrderAck, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.clientOrderIDs[order.ClientOrderID]; exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateClientOrderID, order.ClientOrderID)
	}

	orderIndex := e.nextOrderIndex

	switch order.Kind {
	case entity.OrderKindMarket:
		if e.lastPrice.LessThanOrEqual(decimal.Zero) {
			return nil, ErrNoReferencePrice
		}
		bound := e.unscale(order.Price)
		if order.Side == entity.OrderSideBuy && e.lastPrice.GreaterThan(bound) {
			return nil, fmt.Errorf("%w: last=%s bound=%s", ErrSlippageBoundExceeded, e.lastPrice, bound)
		}
		if order.Side == entity.OrderSideSell && e.lastPrice.LessThan(bound) {
			return nil, fmt.Errorf("%w: last=%s bound=%s", ErrSlippageBoundExceeded, e.lastPrice, bound)
		}
		lots := order.BaseAmount
		if order.ReduceOnly {
			lots = e.reducibleLots(order.Side, lots)
			if lots == 0 {
				return nil, fmt.Errorf("%w: client order id %d", ErrReduceOnlyNoPosition, order.ClientOrderID)
			}
		}
		e.applyFill(order.Side, lots, e.lastPrice)
	case entity.OrderKindLimit, entity.OrderKindStopLossLimit, entity.OrderKindTakeProfitLimit:
		e.active[orderIndex] = &paperOrder{orderIndex: orderIndex, request: order}
	default:
		return nil, fmt.Errorf("unsupported order kind for paper exchange: %s", order.Kind)
	}

	e.nextOrderIndex++
	e.clientOrderIDs[order.ClientOrderID] = struct{}{}

	return &entity.OrderAck{
		ClientOrderID:  order.ClientOrderID,
		OrderIndex:     orderIndex,
		TxHash:         fmt.Sprintf("paper-%d", orderIndex),
		Code:           lighterCodeOK,
		AcknowledgedAt: time.Now().UTC(),
	}, nil
}

func (e *PaperExchange) GetAccount(ctx context.Context, accountIndex int64) (*entity.Account, error) {
	if accountIndex != paperAccountIndex {
		return nil, fmt.Errorf("account %d not found", accountIndex)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	account := &entity.Account{
		Index:           paperAccountIndex,
		Collateral:      e.balance,
		TotalAssetValue: e.balance,
		Positions:       []entity.Position{},
	}

	if e.position == 0 {
		return account, nil
	}

	sign := 1
	if e.position < 0 {
		sign = -1
	}
	size := e.lots(abs(e.position))
	unrealized := e.lastPrice.Sub(e.avgEntry).Mul(size).Mul(decimal.NewFromInt(int64(sign)))

	account.TotalAssetValue = e.balance.Add(unrealized)
	account.Positions = append(account.Positions, entity.Position{
		MarketID:      e.config.MarketID,
		Symbol:        e.config.Symbol,
		Sign:          sign,
		Size:          size,
		AvgEntryPrice: e.avgEntry,
		UnrealizedPnl: unrealized,
	})

	return account, nil
}

func (e *PaperExchange) ActiveOrders(ctx context.Context, accountIndex int64, marketID int) ([]entity.ActiveOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]entity.ActiveOrder, 0, len(e.active))
	for _, o := range e.active {
		if o.request.MarketID != marketID {
			continue
		}
		orders = append(orders, entity.ActiveOrder{
			OrderIndex:          o.orderIndex,
			ClientOrderID:       o.request.ClientOrderID,
			MarketID:            o.request.MarketID,
			Kind:                o.request.Kind,
			Side:                o.request.Side,
			Status:              "open",
			Price:               e.unscale(o.request.Price),
			TriggerPrice:        e.unscale(o.request.TriggerPrice),
			RemainingBaseAmount: e.lots(o.request.BaseAmount),
		})
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderIndex < orders[j].OrderIndex })

	return orders, nil
}

func (e *PaperExchange) CancelOrder(ctx context.Context, marketID int, orderIndex int64) (*entity.OrderAck, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.active[orderIndex]
	if !ok || order.request.MarketID != marketID {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderIndex)
	}
	delete(e.active, orderIndex)

	return &entity.OrderAck{
		ClientOrderID:  order.request.ClientOrderID,
		OrderIndex:     orderIndex,
		TxHash:         fmt.Sprintf("paper-cancel-%d", orderIndex),
		Code:           lighterCodeOK,
		AcknowledgedAt: time.Now().UTC(),
	}, nil
}

func (e *PaperExchange) triggered(order entity.OrderRequest, price decimal.Decimal) bool {
	trigger := e.unscale(order.TriggerPrice)
	if order.Kind == entity.OrderKindLimit {
		trigger = e.unscale(order.Price)
	}

	sellHigh := order.Side == entity.OrderSideSell
	if order.Kind == entity.OrderKindStopLossLimit {
		sellHigh = !sellHigh
	}

	if sellHigh {
		return price.GreaterThanOrEqual(trigger)
	}
	return price.LessThanOrEqual(trigger)
}

// applyFill keeps an average-cost position and books realized pnl on reductions. Caller holds mu.
func (e *PaperExchange) applyFill(side entity.OrderSide, lots int64, price decimal.Decimal) {
	delta := lots
	if side == entity.OrderSideSell {
		delta = -lots
	}

	if e.position == 0 || (e.position > 0) == (delta > 0) {
		held := e.lots(abs(e.position))
		added := e.lots(lots)
		e.avgEntry = e.avgEntry.Mul(held).Add(price.Mul(added)).Div(held.Add(added))
		e.position += delta
		return
	}

	closing := min(abs(delta), abs(e.position))
	direction := decimal.NewFromInt(1)
	if e.position < 0 {
		direction = decimal.NewFromInt(-1)
	}
	pnl := price.Sub(e.avgEntry).Mul(e.lots(closing)).Mul(direction)
	e.balance = e.balance.Add(pnl)

	e.position += delta
	switch {
	case e.position == 0:
		e.avgEntry = decimal.Zero
	case abs(delta) > closing:
		e.avgEntry = price
	}
}

// reducibleLots clips a reduce-only order to the open position on the opposite side. Caller holds mu.
func (e *PaperExchange) reducibleLots(side entity.OrderSide, lots int64) int64 {
	if side == entity.OrderSideSell && e.position > 0 {
		return min(lots, e.position)
	}
	if side == entity.OrderSideBuy && e.position < 0 {
		return min(lots, -e.position)
	}
	return 0
}

func (e *PaperExchange) unscale(value int64) decimal.Decimal {
	return decimal.NewFromInt(value).Div(decimal.NewFromInt(e.config.PriceScale))
}

func (e *PaperExchange) lots(value int64) decimal.Decimal {
	return decimal.NewFromInt(value).Div(decimal.NewFromInt(e.config.SizeScale))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
