package bracket

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planFor(t *testing.T, params entity.BotParameters, ids IDSource, price int64) entity.BracketPlan {
	t.Helper()
	return NewPlanner(params).Plan(decimal.NewFromInt(price), ids)
}

func TestSubmitBracketSuccess(t *testing.T) {
	gateway := newFakeGateway("2000")
	journal := newFakeJournal()
	params := entity.DefaultBotParameters()
	ids := NewClientOrderIDSequence()

	submitter := NewSubmitter(params, SubmitterOptions{RunID: "run-1", IDs: ids, Journal: journal})
	submission, err := submitter.SubmitBracket(context.Background(), testSession(gateway), planFor(t, params, ids, 2000))
	require.NoError(t, err)

	assert.Equal(t, entity.BracketPair{
		EntryClientOrderID:      1,
		TakeProfitClientOrderID: 2,
		StopLossClientOrderID:   3,
		CreatedAt:               submission.Pair.CreatedAt,
	}, submission.Pair)
	assert.NotNil(t, submission.EntryAck)
	assert.NotNil(t, submission.TakeProfitAck)
	assert.NotNil(t, submission.StopLossAck)

	orders := gateway.submittedOrders()
	require.Len(t, orders, 3)
	assert.Equal(t, entity.OrderRoleEntry, orders[0].Role)
	assert.Equal(t, entity.OrderRoleTakeProfit, orders[1].Role)
	assert.Equal(t, entity.OrderRoleStopLoss, orders[2].Role)

	require.Len(t, journal.created, 3)
	for _, row := range journal.created {
		assert.Equal(t, "run-1", row.RunID)
		assert.Equal(t, entity.OrderJournalStatusSubmitted, row.Status)
		assert.Equal(t, int64(7), row.AccountIndex)
	}
	assert.False(t, journal.created[0].TriggerPrice.Valid)
	assert.Equal(t, int64(199700), journal.created[2].TriggerPrice.Int64)
}

func TestSubmitBracketEntryRejected(t *testing.T) {
	gateway := newFakeGateway("2000")
	gateway.rejectRoles[entity.OrderRoleEntry] = errExchangeDown
	journal := newFakeJournal()
	params := entity.DefaultBotParameters()
	ids := NewClientOrderIDSequence()

	submitter := NewSubmitter(params, SubmitterOptions{IDs: ids, Journal: journal})
	submission, err := submitter.SubmitBracket(context.Background(), testSession(gateway), planFor(t, params, ids, 2000))

	assert.Nil(t, submission)
	assert.ErrorIs(t, err, ErrEntrySubmissionFailed)
	assert.ErrorIs(t, err, errExchangeDown)
	assert.Len(t, gateway.submittedOrders(), 1)

	require.Len(t, journal.created, 1)
	assert.Equal(t, entity.OrderJournalStatusRejected, journal.created[0].Status)
	assert.Equal(t, errExchangeDown.Error(), journal.created[0].ErrorMessage.String)
}

func TestSubmitBracketLegRejected(t *testing.T) {
	for _, role := range []entity.OrderRole{entity.OrderRoleTakeProfit, entity.OrderRoleStopLoss} {
		t.Run(string(role), func(t *testing.T) {
			gateway := newFakeGateway("2000")
			gateway.rejectRoles[role] = errExchangeDown
			params := entity.DefaultBotParameters()
			ids := NewClientOrderIDSequence()

			submitter := NewSubmitter(params, SubmitterOptions{IDs: ids})
			submission, err := submitter.SubmitBracket(context.Background(), testSession(gateway), planFor(t, params, ids, 2000))

			assert.Nil(t, submission)
			assert.ErrorIs(t, err, ErrUnprotectedEntry)
			assert.True(t, IsUnprotected(err))

			last := gateway.submittedOrders()[len(gateway.submittedOrders())-1]
			assert.Equal(t, role, last.Role)
			assert.Equal(t, int64(3), ids.Last())
		})
	}
}

func TestSubmitBracketCompensatesUnprotectedEntry(t *testing.T) {
	gateway := newFakeGateway("2000")
	gateway.rejectRoles[entity.OrderRoleStopLoss] = errExchangeDown
	params := entity.DefaultBotParameters()
	params.CompensateUnprotectedEntry = true
	ids := NewClientOrderIDSequence()

	submitter := NewSubmitter(params, SubmitterOptions{IDs: ids})
	_, err := submitter.SubmitBracket(context.Background(), testSession(gateway), planFor(t, params, ids, 2000))
	require.ErrorIs(t, err, ErrUnprotectedEntry)

	orders := gateway.submittedOrders()
	require.Len(t, orders, 4)
	compensation := orders[3]
	assert.Equal(t, entity.OrderRoleCompensation, compensation.Role)
	assert.Equal(t, entity.OrderKindMarket, compensation.Kind)
	assert.Equal(t, entity.OrderSideSell, compensation.Side)
	assert.True(t, compensation.ReduceOnly)
	assert.Equal(t, int64(4), compensation.ClientOrderID)
	assert.Equal(t, params.BaseAmount, compensation.BaseAmount)
	assert.Equal(t, int64(199680), compensation.Price)
}

func TestSubmitBracketSendsNothingWhenAlreadyInterrupted(t *testing.T) {
	gateway := newFakeGateway("2000")
	params := entity.DefaultBotParameters()
	ids := NewClientOrderIDSequence()
	plan := planFor(t, params, ids, 2000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	submitter := NewSubmitter(params, SubmitterOptions{IDs: ids})
	submission, err := submitter.SubmitBracket(ctx, testSession(gateway), plan)
	assert.Nil(t, submission)
	assert.ErrorIs(t, err, ErrEntrySubmissionFailed)
	assert.False(t, IsUnprotected(err))
	assert.Empty(t, gateway.submittedOrders())
}

func TestSubmitBracketLegsSurviveCancellation(t *testing.T) {
	gateway := newFakeGateway("2000")
	params := entity.DefaultBotParameters()
	ids := NewClientOrderIDSequence()
	plan := planFor(t, params, ids, 2000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gateway.onSubmit = func(order entity.OrderRequest) {
		if order.Role == entity.OrderRoleEntry {
			cancel()
		}
	}

	submitter := NewSubmitter(params, SubmitterOptions{IDs: ids})
	submission, err := submitter.SubmitBracket(ctx, testSession(gateway), plan)
	require.NoError(t, err)
	require.NotNil(t, submission)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	require.Len(t, gateway.submitted, 3)
	assert.Equal(t, entity.OrderRoleEntry, gateway.submitted[0].Role)
	assert.Equal(t, entity.OrderRoleTakeProfit, gateway.submitted[1].Role)
	assert.Equal(t, entity.OrderRoleStopLoss, gateway.submitted[2].Role)
	for _, err := range gateway.submitErrs {
		assert.NoError(t, err)
	}
}

func TestSubmitBracketEntryWithoutAnswerIsUnprotected(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "deadline exceeded", err: fmt.Errorf("post sendTx: %w", context.DeadlineExceeded)},
		{name: "canceled", err: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := newFakeGateway("2000")
			gateway.rejectRoles[entity.OrderRoleEntry] = tt.err
			params := entity.DefaultBotParameters()
			ids := NewClientOrderIDSequence()

			submitter := NewSubmitter(params, SubmitterOptions{IDs: ids})
			submission, err := submitter.SubmitBracket(context.Background(), testSession(gateway), planFor(t, params, ids, 2000))
			assert.Nil(t, submission)
			assert.True(t, IsUnprotected(err))
			assert.NotErrorIs(t, err, ErrEntrySubmissionFailed)
			assert.ErrorIs(t, err, tt.err)
			assert.Len(t, gateway.submittedOrders(), 1)
		})
	}
}

func TestSubmitBracketJournalFailureDoesNotFailCycle(t *testing.T) {
	gateway := newFakeGateway("2000")
	journal := newFakeJournal()
	journal.err = errors.New("database unavailable")
	params := entity.DefaultBotParameters()
	ids := NewClientOrderIDSequence()

	submitter := NewSubmitter(params, SubmitterOptions{IDs: ids, Journal: journal})
	_, err := submitter.SubmitBracket(context.Background(), testSession(gateway), planFor(t, params, ids, 2000))
	assert.NoError(t, err)
}
