package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/bracket-bot/internal/entity"
)

type OrderJournalRepository struct {
	db *sqlx.DB
}

func NewOrderJournalRepository(db *sqlx.DB) *OrderJournalRepository {
	return &OrderJournalRepository{db: db}
}

func (r *OrderJournalRepository) Create(ctx context.Context, journal *entity.OrderJournal) error {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(journal.TableName()).
		Columns(
			"request_id",
			"run_id",
			"exchange",
			"account_index",
			"market_id",
			"client_order_id",
			"role",
			"kind",
			"side",
			"base_amount",
			"price",
			"trigger_price",
			"tx_hash",
			"status",
			"error_message",
			"sent_at",
			"resolved_at",
			"created_at",
			"updated_at",
		).
		Values(
			journal.RequestID,
			journal.RunID,
			journal.Exchange,
			journal.AccountIndex,
			journal.MarketID,
			journal.ClientOrderID,
			journal.Role,
			journal.Kind,
			journal.Side,
			journal.BaseAmount,
			journal.Price,
			journal.TriggerPrice,
			journal.TxHash,
			journal.Status,
			journal.ErrorMessage,
			journal.SentAt,
			journal.ResolvedAt,
			journal.CreatedAt,
			journal.UpdatedAt,
		).
		Suffix("RETURNING id")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	var id string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err != nil {
		return err
	}

	journal.ID = id

	return nil
}

// MarkStatus moves every journal row of the run matching the client order ids to status.
func (r *OrderJournalRepository) MarkStatus(ctx context.Context, runID string, clientOrderIDs []int64, status string) error {
	if len(clientOrderIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Update(entity.OrderJournal{}.TableName()).
		Set("status", status).
		Set("resolved_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"run_id": runID, "client_order_id": clientOrderIDs, "status": entity.OrderJournalStatusSubmitted})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
