package bracket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/sirupsen/logrus"
)

var (
	ErrEntrySubmissionFailed = errors.New("entry order submission failed")
	ErrUnprotectedEntry      = errors.New("entry filled without both protective legs")
)

const journalWriteTimeout = 5 * time.Second

// OrderJournalStore persists every order the bot sends.
type OrderJournalStore interface {
	Create(ctx context.Context, journal *entity.OrderJournal) error
	MarkStatus(ctx context.Context, runID string, clientOrderIDs []int64, status string) error
}

type SubmitterOptions struct {
	RunID string
	// IDs supplies client ids for compensating orders.
	IDs     IDSource
	Journal OrderJournalStore
	Metrics *Metrics
}

// Submitter sends a planned bracket as entry first, then take profit, then stop loss.
type Submitter struct {
	params  entity.BotParameters
	runID   string
	ids     IDSource
	journal OrderJournalStore
	metrics *Metrics
}

func NewSubmitter(params entity.BotParameters, opts SubmitterOptions) *Submitter {
	if params.LegSubmitTimeout <= 0 {
		params.LegSubmitTimeout = 15 * time.Second
	}

	return &Submitter{
		params:  params,
		runID:   opts.RunID,
		ids:     opts.IDs,
		journal: opts.Journal,
		metrics: opts.Metrics,
	}
}

// SubmitBracket returns a submission only when all three orders were accepted. A rejected
// entry yields ErrEntrySubmissionFailed and nothing else is sent. A rejected leg after an
// accepted entry yields ErrUnprotectedEntry, as does an entry with no answer from the
// exchange. An interrupt is only honoured before the entry; after that all three orders run on
// a context detached from ctx and bounded by LegSubmitTimeout.
func (s *Submitter) SubmitBracket(ctx context.Context, session entity.Session, plan entity.BracketPlan) (*entity.BracketSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEntrySubmissionFailed, err)
	}

	logrus.Infof("Creating market order: %s %s-USDC amount %s at Market price: %s",
		plan.Entry.Side, s.params.Market, s.params.DisplayAmount().String(), plan.ReferencePrice.String())

	bracketCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.params.LegSubmitTimeout)
	defer cancel()

	entryAck, err := s.submit(bracketCtx, session, plan.Entry)
	if isStateUnknown(err) {
		logrus.WithFields(logrus.Fields{
			"client_order_id": plan.Entry.ClientOrderID,
			"reference_price": plan.ReferencePrice.String(),
		}).WithError(err).Error("market order state unknown, it may be live without protection")
		return nil, fmt.Errorf("%w: entry state unknown: %w", ErrUnprotectedEntry, err)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"client_order_id": plan.Entry.ClientOrderID,
			"reference_price": plan.ReferencePrice.String(),
		}).WithError(err).Error("Error creating market order")
		return nil, fmt.Errorf("%w: %w", ErrEntrySubmissionFailed, err)
	}

	if ctx.Err() != nil {
		logrus.WithField("client_order_id", plan.Entry.ClientOrderID).
			Warn("interrupt received after entry was accepted, sending protective legs before stopping")
	}

	takeProfitAck, err := s.submit(bracketCtx, session, plan.TakeProfit)
	if err != nil {
		return nil, s.unprotected(bracketCtx, session, plan, plan.TakeProfit, err)
	}
	logrus.Infof("Take profit order created at %s", s.unscale(plan.TakeProfit.Price))

	stopLossAck, err := s.submit(bracketCtx, session, plan.StopLoss)
	if err != nil {
		return nil, s.unprotected(bracketCtx, session, plan, plan.StopLoss, err)
	}
	logrus.Infof("Stop loss order created at trigger %s limit %s",
		s.unscale(plan.StopLoss.TriggerPrice), s.unscale(plan.StopLoss.Price))

	return &entity.BracketSubmission{
		EntryAck:      entryAck,
		TakeProfitAck: takeProfitAck,
		StopLossAck:   stopLossAck,
		Pair: entity.BracketPair{
			EntryClientOrderID:      plan.Entry.ClientOrderID,
			TakeProfitClientOrderID: plan.TakeProfit.ClientOrderID,
			StopLossClientOrderID:   plan.StopLoss.ClientOrderID,
			CreatedAt:               time.Now().UTC(),
		},
	}, nil
}

func (s *Submitter) unprotected(ctx context.Context, session entity.Session, plan entity.BracketPlan, failed entity.OrderRequest, cause error) error {
	logrus.WithFields(logrus.Fields{
		"entry_client_order_id":       plan.Entry.ClientOrderID,
		"take_profit_client_order_id": plan.TakeProfit.ClientOrderID,
		"stop_loss_client_order_id":   plan.StopLoss.ClientOrderID,
		"failed_role":                 failed.Role,
		"reference_price":             plan.ReferencePrice.String(),
	}).WithError(cause).Error("entry position is not fully protected")

	if s.params.CompensateUnprotectedEntry {
		s.compensate(ctx, session, plan)
	}

	return fmt.Errorf("%w: %s leg: %w", ErrUnprotectedEntry, failed.Role, cause)
}

// compensate flattens the entry with a reduce-only market sell bounded by the stop loss limit.
func (s *Submitter) compensate(ctx context.Context, session entity.Session, plan entity.BracketPlan) {
	if s.ids == nil {
		logrus.Warn("compensation skipped: no client order id source configured")
		return
	}

	order := entity.OrderRequest{
		Role:          entity.OrderRoleCompensation,
		Kind:          entity.OrderKindMarket,
		Side:          entity.OrderSideSell,
		MarketID:      plan.Entry.MarketID,
		ClientOrderID: s.ids.Next(),
		BaseAmount:    plan.Entry.BaseAmount,
		Price:         plan.StopLoss.Price,
		TimeInForce:   entity.TimeInForceImmediateOrCancel,
		ReduceOnly:    true,
	}

	if _, err := s.submit(ctx, session, order); err != nil {
		logrus.WithField("client_order_id", order.ClientOrderID).WithError(err).
			Error("failed to flatten unprotected entry, manual intervention required")
		return
	}

	logrus.WithFields(logrus.Fields{
		"client_order_id":       order.ClientOrderID,
		"entry_client_order_id": plan.Entry.ClientOrderID,
	}).Warn("unprotected entry flattened")
}

func (s *Submitter) submit(ctx context.Context, session entity.Session, order entity.OrderRequest) (*entity.OrderAck, error) {
	sentAt := time.Now().UTC()
	ack, err := session.Gateway.SubmitOrder(ctx, order)
	s.metrics.ObserveOrder(order.Role, err == nil)
	s.record(ctx, session, order, sentAt, ack, err)

	return ack, err
}

func (s *Submitter) record(ctx context.Context, session entity.Session, order entity.OrderRequest, sentAt time.Time, ack *entity.OrderAck, submitErr error) {
	if s.journal == nil {
		return
	}

	now := time.Now().UTC()
	journal := &entity.OrderJournal{
		RequestID:     uuid.NewString(),
		RunID:         s.runID,
		Exchange:      string(session.Gateway.Name()),
		AccountIndex:  session.AccountIndex,
		MarketID:      order.MarketID,
		ClientOrderID: order.ClientOrderID,
		Role:          order.Role,
		Kind:          order.Kind,
		Side:          order.Side,
		BaseAmount:    order.BaseAmount,
		Price:         order.Price,
		Status:        entity.OrderJournalStatusSubmitted,
		SentAt:        sentAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if order.IsConditional() {
		journal.TriggerPrice = null.IntFrom(order.TriggerPrice)
	}
	if ack != nil && ack.TxHash != "" {
		journal.TxHash = null.StringFrom(ack.TxHash)
	}
	if submitErr != nil {
		journal.Status = entity.OrderJournalStatusRejected
		journal.ErrorMessage = null.StringFrom(submitErr.Error())
		journal.ResolvedAt = null.TimeFrom(now)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()

	if err := s.journal.Create(writeCtx, journal); err != nil {
		logrus.WithFields(logrus.Fields{
			"client_order_id": order.ClientOrderID,
			"role":            order.Role,
		}).WithError(err).Warn("failed to write order journal")
	}
}

func (s *Submitter) unscale(value int64) string {
	if s.params.PriceScale <= 0 {
		return fmt.Sprintf("%d", value)
	}
	return decimalFromScaled(value, s.params.PriceScale).String()
}

// isStateUnknown reports a submission that ended without an answer from the exchange.
func isStateUnknown(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
