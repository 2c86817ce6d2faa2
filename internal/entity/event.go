package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Publisher interface {
	JetstreamEventInit(ctx context.Context) error
}

type BracketCycleEvent struct {
	RunID                   string          `json:"run_id"`
	Cycle                   int64           `json:"cycle"`
	Exchange                string          `json:"exchange"`
	MarketID                int             `json:"market_id"`
	AccountIndex            int64           `json:"account_index"`
	Status                  CycleStatus     `json:"status"`
	Reason                  string          `json:"reason,omitempty"`
	ReferencePrice          decimal.Decimal `json:"reference_price"`
	EntryClientOrderID      int64           `json:"entry_client_order_id,omitempty"`
	TakeProfitClientOrderID int64           `json:"take_profit_client_order_id,omitempty"`
	StopLossClientOrderID   int64           `json:"stop_loss_client_order_id,omitempty"`
	OccurredAt              time.Time       `json:"occurred_at"`
}

// MessageID identifies the event for stream deduplication.
func (e BracketCycleEvent) MessageID() string {
	return fmt.Sprintf("%s-%d", e.RunID, e.Cycle)
}
