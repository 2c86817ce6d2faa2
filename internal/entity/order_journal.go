package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

const (
	OrderJournalStatusSubmitted = "SUBMITTED"
	OrderJournalStatusRejected  = "REJECTED"
	OrderJournalStatusResolved  = "RESOLVED"
	OrderJournalStatusCanceled  = "CANCELED"
)

type OrderJournal struct {
	ID            string      `db:"id" json:"id"`
	RequestID     string      `db:"request_id" json:"request_id"`
	RunID         string      `db:"run_id" json:"run_id"`
	Exchange      string      `db:"exchange" json:"exchange"`
	AccountIndex  int64       `db:"account_index" json:"account_index"`
	MarketID      int         `db:"market_id" json:"market_id"`
	ClientOrderID int64       `db:"client_order_id" json:"client_order_id"`
	Role          OrderRole   `db:"role" json:"role"`
	Kind          OrderKind   `db:"kind" json:"kind"`
	Side          OrderSide   `db:"side" json:"side"`
	BaseAmount    int64       `db:"base_amount" json:"base_amount"`
	Price         int64       `db:"price" json:"price"`
	TriggerPrice  null.Int    `db:"trigger_price" json:"trigger_price"`
	TxHash        null.String `db:"tx_hash" json:"tx_hash"`
	Status        string      `db:"status" json:"status"`
	ErrorMessage  null.String `db:"error_message" json:"error_message"`
	SentAt        time.Time   `db:"sent_at" json:"sent_at"`
	ResolvedAt    null.Time   `db:"resolved_at" json:"resolved_at"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

func (o OrderJournal) TableName() string {
	return "order_journals"
}
