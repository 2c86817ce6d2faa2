package bracket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
)

var errExchangeDown = errors.New("exchange down")

type fakeGateway struct {
	mu sync.Mutex

	trades    []entity.Trade
	tradesErr error

	// rejectRoles makes SubmitOrder fail for the given roles.
	rejectRoles map[entity.OrderRole]error
	submitted   []entity.OrderRequest
	// submitErrs records ctx.Err() as seen when each order was sent.
	submitErrs []error
	// onSubmit runs after an order is recorded, before it is answered.
	onSubmit func(order entity.OrderRequest)

	account    *entity.Account
	accountErr error

	active       []entity.ActiveOrder
	activeErr    error
	cancelled    []int64
	cancelErr    error
	nextOrderIdx int64
}

func newFakeGateway(price string) *fakeGateway {
	g := &fakeGateway{
		rejectRoles: make(map[entity.OrderRole]error),
		account:     &entity.Account{Index: 7, TotalAssetValue: decimal.NewFromInt(1000)},
	}
	if price != "" {
		g.trades = []entity.Trade{{TradeID: 1, Price: decimal.RequireFromString(price), Timestamp: time.Now()}}
	}
	return g
}

func (g *fakeGateway) Name() entity.ExchangeName { return entity.ExchangeLighter }

func (g *fakeGateway) ResolveAccountIndex(ctx context.Context, l1Address string) (int64, error) {
	return 7, nil
}

func (g *fakeGateway) Authenticate(ctx context.Context, privateKey string, accountIndex int64, apiKeyIndex int) (string, error) {
	return "token", nil
}

func (g *fakeGateway) RecentTrades(ctx context.Context, marketID int, limit int) ([]entity.Trade, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trades, g.tradesErr
}

func (g *fakeGateway) SubmitOrder(ctx context.Context, order entity.OrderRequest) (*entity.OrderAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitted = append(g.submitted, order)
	g.submitErrs = append(g.submitErrs, ctx.Err())
	if g.onSubmit != nil {
		g.onSubmit(order)
	}
	if err := g.rejectRoles[order.Role]; err != nil {
		return nil, err
	}

	g.nextOrderIdx++
	if order.Kind != entity.OrderKindMarket {
		g.active = append(g.active, entity.ActiveOrder{
			OrderIndex:    g.nextOrderIdx,
			ClientOrderID: order.ClientOrderID,
			MarketID:      order.MarketID,
			Kind:          order.Kind,
			Side:          order.Side,
		})
	}

	return &entity.OrderAck{ClientOrderID: order.ClientOrderID, OrderIndex: g.nextOrderIdx, Code: 200}, nil
}

func (g *fakeGateway) GetAccount(ctx context.Context, accountIndex int64) (*entity.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.account, g.accountErr
}

func (g *fakeGateway) ActiveOrders(ctx context.Context, accountIndex int64, marketID int) ([]entity.ActiveOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	orders := make([]entity.ActiveOrder, len(g.active))
	copy(orders, g.active)
	return orders, g.activeErr
}

func (g *fakeGateway) CancelOrder(ctx context.Context, marketID int, orderIndex int64) (*entity.OrderAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	g.cancelled = append(g.cancelled, orderIndex)
	g.removeActive(orderIndex)
	return &entity.OrderAck{OrderIndex: orderIndex, Code: 200}, nil
}

// fill removes a resting order as if it had executed.
func (g *fakeGateway) fill(clientOrderID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, order := range g.active {
		if order.ClientOrderID == clientOrderID {
			g.removeActive(order.OrderIndex)
			return
		}
	}
}

func (g *fakeGateway) removeActive(orderIndex int64) {
	kept := g.active[:0]
	for _, order := range g.active {
		if order.OrderIndex != orderIndex {
			kept = append(kept, order)
		}
	}
	g.active = kept
}

func (g *fakeGateway) submittedOrders() []entity.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	orders := make([]entity.OrderRequest, len(g.submitted))
	copy(orders, g.submitted)
	return orders
}

type fakeJournal struct {
	mu      sync.Mutex
	created []entity.OrderJournal
	marked  map[string][]int64
	err     error
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{marked: make(map[string][]int64)}
}

func (j *fakeJournal) Create(ctx context.Context, journal *entity.OrderJournal) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.created = append(j.created, *journal)
	return nil
}

func (j *fakeJournal) MarkStatus(ctx context.Context, runID string, clientOrderIDs []int64, status string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.marked[status] = append(j.marked[status], clientOrderIDs...)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []entity.BracketCycleEvent
}

func (p *fakePublisher) PublishCycle(ctx context.Context, event entity.BracketCycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testSession(gateway entity.ExchangeGateway) entity.Session {
	return entity.Session{AccountIndex: 7, MarketID: 0, AuthToken: "token", Gateway: gateway}
}
