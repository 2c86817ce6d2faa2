package bracket

import (
	"context"
	"sync"

	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/sirupsen/logrus"
)

// PairRegistry holds the take profit and stop loss ids of every bracket placed in this run.
// It grows by exactly one pair per fully submitted bracket.
type PairRegistry struct {
	mu    sync.Mutex
	pairs []entity.BracketPair
}

func NewPairRegistry() *PairRegistry {
	return &PairRegistry{}
}

func (r *PairRegistry) Add(pair entity.BracketPair) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pairs = append(r.pairs, pair)
}

func (r *PairRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pairs)
}

func (r *PairRegistry) Pairs() []entity.BracketPair {
	r.mu.Lock()
	defer r.mu.Unlock()

	pairs := make([]entity.BracketPair, len(r.pairs))
	copy(pairs, r.pairs)
	return pairs
}

// Reconcile compares tracked pairs with the resting orders of the market. Pairs with no
// resting leg are resolved and evicted. Pairs with one resting leg are one-sided; with
// cancelOrphans the surviving leg is cancelled and the pair evicted once the cancel is
// accepted. On a failed order listing the registry is left untouched.
func (r *PairRegistry) Reconcile(ctx context.Context, session entity.Session, cancelOrphans bool) (entity.ReconcileResult, error) {
	var result entity.ReconcileResult

	pairs := r.Pairs()
	if len(pairs) == 0 {
		return result, nil
	}

	active, err := session.Gateway.ActiveOrders(ctx, session.AccountIndex, session.MarketID)
	if err != nil {
		result.Remaining = len(pairs)
		return result, err
	}

	resting := make(map[int64]entity.ActiveOrder, len(active))
	for _, order := range active {
		resting[order.ClientOrderID] = order
	}

	evict := make(map[int64]struct{})
	for _, pair := range pairs {
		takeProfit, takeProfitResting := resting[pair.TakeProfitClientOrderID]
		stopLoss, stopLossResting := resting[pair.StopLossClientOrderID]

		switch {
		case takeProfitResting && stopLossResting:
			continue
		case !takeProfitResting && !stopLossResting:
			result.Resolved = append(result.Resolved, pair)
			evict[pair.EntryClientOrderID] = struct{}{}
			continue
		}

		result.OneSided = append(result.OneSided, pair)
		survivor := stopLoss
		if takeProfitResting {
			survivor = takeProfit
		}

		logger := logrus.WithFields(logrus.Fields{
			"entry_client_order_id":   pair.EntryClientOrderID,
			"resting_client_order_id": survivor.ClientOrderID,
			"resting_order_index":     survivor.OrderIndex,
			"resting_order_kind":      survivor.Kind,
			"cancel_orphan_legs":      cancelOrphans,
		})
		if !cancelOrphans {
			logger.Warn("bracket has a single resting leg")
			continue
		}

		if _, err := session.Gateway.CancelOrder(ctx, session.MarketID, survivor.OrderIndex); err != nil {
			logger.WithError(err).Error("failed to cancel orphan leg")
			continue
		}
		logger.Info("orphan leg cancelled")
		result.Cancelled = append(result.Cancelled, pair)
		result.CancelledLegs = append(result.CancelledLegs, survivor.ClientOrderID)
		evict[pair.EntryClientOrderID] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.pairs[:0]
	for _, pair := range r.pairs {
		if _, ok := evict[pair.EntryClientOrderID]; ok {
			continue
		}
		kept = append(kept, pair)
	}
	r.pairs = kept
	result.Remaining = len(r.pairs)

	return result, nil
}
