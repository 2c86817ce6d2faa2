package bracket

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/sirupsen/logrus"
)

const sideEffectTimeout = 5 * time.Second

var cycleBanner = strings.Repeat("=", 69)

// MetricsPusher ships collected metrics after every cycle.
type MetricsPusher interface {
	Push(ctx context.Context) error
}

type SchedulerOptions struct {
	RunID     string
	IDs       *ClientOrderIDSequence
	Journal   OrderJournalStore
	Publisher CycleEventPublisher
	Metrics   *Metrics
	Pusher    MetricsPusher
	// Sleep overrides the pacing wait, mostly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Scheduler runs one bracket per cycle, then sleeps 3600/orders_per_hour seconds, or
// FailedOrderSleep when the cycle did not place a bracket.
type Scheduler struct {
	params   entity.BotParameters
	session  entity.Session
	runID    string
	ids      *ClientOrderIDSequence
	oracle   *PriceOracle
	planner  *Planner
	submit   *Submitter
	monitor  *PositionMonitor
	registry *PairRegistry

	journal   OrderJournalStore
	publisher CycleEventPublisher
	metrics   *Metrics
	pusher    MetricsPusher
	sleep     func(ctx context.Context, d time.Duration) error
	cycles    int64
}

func NewScheduler(params entity.BotParameters, session entity.Session, opts SchedulerOptions) *Scheduler {
	if opts.IDs == nil {
		opts.IDs = NewClientOrderIDSequence()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &Scheduler{
		params:  params,
		session: session,
		runID:   opts.RunID,
		ids:     opts.IDs,
		oracle:  NewPriceOracle(session.Gateway, params.Market),
		planner: NewPlanner(params),
		submit: NewSubmitter(params, SubmitterOptions{
			RunID:   opts.RunID,
			IDs:     opts.IDs,
			Journal: opts.Journal,
			Metrics: opts.Metrics,
		}),
		monitor:   NewPositionMonitor(),
		registry:  NewPairRegistry(),
		journal:   opts.Journal,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		pusher:    opts.Pusher,
		sleep:     opts.Sleep,
	}
}

func (s *Scheduler) Registry() *PairRegistry {
	return s.registry
}

// Run loops until ctx is cancelled. An interrupt is a normal stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			logrus.Info("bracket bot stopped")
			return nil
		}

		logrus.Info(cycleBanner)
		logrus.Infof("[%s] New trading cycle.", time.Now().Format(time.DateTime))
		logrus.Info("Searching for a new entry...")

		s.cycles++
		outcome := s.RunCycle(ctx)
		s.report(ctx, outcome)

		wait := s.params.SleepDuration()
		switch outcome.Status {
		case entity.CycleStatusPlaced:
			if wait == entity.UnboundedSleep {
				logrus.Info("Cycle finished. orders_per_hour is not positive, idling until interrupted.")
			} else {
				logrus.Infof("Cycle finished. Sleeping for %.2f seconds.", wait.Seconds())
			}
		case entity.CycleStatusPriceUnavailable:
			wait = s.params.FailedOrderSleep
			logrus.Infof("Could not get price. Sleeping for %.0f seconds.", wait.Seconds())
		case entity.CycleStatusSkippedOpenPosition:
			wait = s.params.FailedOrderSleep
			logrus.Infof("Position already open, skipping entry. Sleeping for %.0f seconds.", wait.Seconds())
		default:
			wait = s.params.FailedOrderSleep
			if IsUnprotected(outcome.Err) {
				logrus.WithError(outcome.Err).Error("last entry may be open without protection, check the exchange")
			}
			logrus.Infof("Failed to enter position. Sleeping for %.0f seconds.", wait.Seconds())
		}

		if err := s.sleep(ctx, wait); err != nil {
			logrus.Info("bracket bot stopped")
			return nil
		}
	}
}

// RunCycle performs a single cycle without sleeping. Client order ids are only drawn once
// a reference price is known.
func (s *Scheduler) RunCycle(ctx context.Context) entity.CycleOutcome {
	if s.params.ReconcilePairs && s.registry.Len() > 0 {
		s.reconcile(ctx)
	}

	price, ok := s.oracle.LastTradePrice(ctx, s.session.MarketID)
	if !ok {
		return entity.CycleOutcome{Status: entity.CycleStatusPriceUnavailable}
	}
	s.metrics.SetLastPrice(price)

	if s.params.SkipWhenPositionOpen {
		position := s.monitor.CurrentPosition(ctx, s.session)
		if position.IsOpen() {
			return entity.CycleOutcome{Status: entity.CycleStatusSkippedOpenPosition, ReferencePrice: price}
		}
	}

	plan := s.planner.Plan(price, s.ids)
	submission, err := s.submit.SubmitBracket(ctx, s.session, plan)
	if err != nil {
		return entity.CycleOutcome{
			Status:         entity.CycleStatusSubmissionFailed,
			ReferencePrice: price,
			Err:            err,
		}
	}

	s.registry.Add(submission.Pair)
	s.metrics.SetTrackedPairs(s.registry.Len())
	logrus.Info("Create market order successful !!")

	s.monitor.CurrentPosition(ctx, s.session)

	pair := submission.Pair
	return entity.CycleOutcome{
		Status:         entity.CycleStatusPlaced,
		ReferencePrice: price,
		Pair:           &pair,
	}
}

func (s *Scheduler) reconcile(ctx context.Context) {
	result, err := s.registry.Reconcile(ctx, s.session, s.params.CancelOrphanLegs)
	if err != nil {
		logrus.WithError(err).Warn("failed to reconcile tracked brackets")
		return
	}

	s.metrics.ObserveReconcile(result)
	s.metrics.SetTrackedPairs(result.Remaining)

	if len(result.Resolved) > 0 || len(result.OneSided) > 0 {
		logrus.WithFields(logrus.Fields{
			"resolved":  len(result.Resolved),
			"one_sided": len(result.OneSided),
			"cancelled": len(result.Cancelled),
			"remaining": result.Remaining,
		}).Info("tracked brackets reconciled")
	}

	if s.journal == nil {
		return
	}

	journalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	resolved := make([]int64, 0, len(result.Resolved)*3)
	for _, pair := range result.Resolved {
		resolved = append(resolved, pair.EntryClientOrderID, pair.TakeProfitClientOrderID, pair.StopLossClientOrderID)
	}
	if err := s.journal.MarkStatus(journalCtx, s.runID, result.CancelledLegs, entity.OrderJournalStatusCanceled); err != nil {
		logrus.WithError(err).Warn("failed to mark cancelled legs in order journal")
	}
	for _, pair := range result.Cancelled {
		resolved = append(resolved, pair.EntryClientOrderID, pair.TakeProfitClientOrderID, pair.StopLossClientOrderID)
	}
	if err := s.journal.MarkStatus(journalCtx, s.runID, resolved, entity.OrderJournalStatusResolved); err != nil {
		logrus.WithError(err).Warn("failed to mark resolved brackets in order journal")
	}
}

// report publishes the cycle outcome and pushes metrics. Failures are logged only.
func (s *Scheduler) report(ctx context.Context, outcome entity.CycleOutcome) {
	s.metrics.ObserveCycle(outcome.Status)

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.publisher != nil {
		event := entity.BracketCycleEvent{
			RunID:          s.runID,
			Cycle:          s.cycles,
			Exchange:       string(s.session.Gateway.Name()),
			MarketID:       s.session.MarketID,
			AccountIndex:   s.session.AccountIndex,
			Status:         outcome.Status,
			ReferencePrice: outcome.ReferencePrice,
			OccurredAt:     time.Now().UTC(),
		}
		if outcome.Err != nil {
			event.Reason = outcome.Err.Error()
		}
		if outcome.Pair != nil {
			event.EntryClientOrderID = outcome.Pair.EntryClientOrderID
			event.TakeProfitClientOrderID = outcome.Pair.TakeProfitClientOrderID
			event.StopLossClientOrderID = outcome.Pair.StopLossClientOrderID
		}

		if err := s.publisher.PublishCycle(reportCtx, event); err != nil {
			logrus.WithField("status", outcome.Status).WithError(err).Warn("failed to publish cycle event")
		}
	}

	if s.pusher != nil {
		if err := s.pusher.Push(reportCtx); err != nil {
			logrus.WithError(err).Warn("failed to push metrics")
		}
	}
}

// sleepContext waits for d or until ctx is done. A negative d waits for ctx only.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d < 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	if d == 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsUnprotected reports whether a cycle error left an entry without both protective legs.
func IsUnprotected(err error) bool {
	return errors.Is(err, ErrUnprotectedEntry)
}
