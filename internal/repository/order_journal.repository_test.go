package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guregu/null/v6"
	"github.com/jmoiron/sqlx"
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*OrderJournalRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewOrderJournalRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestOrderJournalRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	journal := &entity.OrderJournal{
		RequestID:     "req-1",
		RunID:         "run-1",
		Exchange:      "lighter",
		AccountIndex:  7,
		MarketID:      0,
		ClientOrderID: 3,
		Role:          entity.OrderRoleStopLoss,
		Kind:          entity.OrderKindStopLossLimit,
		Side:          entity.OrderSideSell,
		BaseAmount:    150,
		Price:         199680,
		TriggerPrice:  null.IntFrom(199700),
		Status:        entity.OrderJournalStatusSubmitted,
		SentAt:        now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := regexp.QuoteMeta("INSERT INTO order_journals (request_id,run_id,exchange,account_index,market_id,client_order_id,role,kind,side,base_amount,price,trigger_price,tx_hash,status,error_message,sent_at,resolved_at,created_at,updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19) RETURNING id")
	mock.ExpectQuery(query).
		WithArgs(
			"req-1", "run-1", "lighter", int64(7), int64(0), int64(3),
			"STOP_LOSS", "STOP_LOSS_LIMIT", "SELL", int64(150), int64(199680), int64(199700),
			nil, "SUBMITTED", nil, now, nil, now, now,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("42"))

	require.NoError(t, repo.Create(context.Background(), journal))
	assert.Equal(t, "42", journal.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderJournalRepositoryMarkStatusOnlyTouchesSubmittedRows(t *testing.T) {
	repo, mock := newMockRepository(t)

	query := regexp.QuoteMeta("UPDATE order_journals SET status = $1, resolved_at = $2, updated_at = $3 WHERE client_order_id IN ($4,$5,$6) AND run_id = $7 AND status = $8")
	mock.ExpectExec(query).
		WithArgs("RESOLVED", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1), int64(2), int64(3), "run-1", "SUBMITTED").
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.MarkStatus(context.Background(), "run-1", []int64{1, 2, 3}, entity.OrderJournalStatusResolved)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderJournalRepositoryMarkStatusSkipsEmptyIDs(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.MarkStatus(context.Background(), "run-1", nil, entity.OrderJournalStatusCanceled))
	assert.NoError(t, mock.ExpectationsWereMet())
}
