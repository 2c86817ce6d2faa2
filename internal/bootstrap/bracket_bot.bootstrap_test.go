package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/krobus00/bracket-bot/internal/config"
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewBotParameters(t *testing.T) {
	params := NewBotParameters(config.BracketBotConfig{
		Market:                     " eth ",
		MarketID:                   0,
		BaseAmount:                 150,
		TakeProfitPercent:          decimal.RequireFromString("0.0025"),
		StopLossPercent:            decimal.RequireFromString("0.0015"),
		OrdersPerHour:              2,
		Leverage:                   decimal.NewFromInt(3),
		FailedOrderSleep:           10 * time.Second,
		PriceScale:                 100,
		SizeScale:                  10000,
		EntrySlippage:              decimal.RequireFromString("0.5"),
		StopLossLimitOffset:        decimal.RequireFromString("0.2"),
		LegSubmitTimeout:           time.Second,
		SkipWhenPositionOpen:       true,
		CompensateUnprotectedEntry: true,
		CancelOrphanLegs:           true,
	})

	assert.Equal(t, "ETH", params.Market)
	assert.Equal(t, "0.015", params.DisplayAmount().String())
	assert.Equal(t, 30*time.Minute, params.SleepDuration())
	assert.Equal(t, 10*time.Second, params.FailedOrderSleep)
	assert.True(t, decimal.NewFromInt(3).Equal(params.Leverage))
	assert.Equal(t, time.Second, params.LegSubmitTimeout)
	assert.True(t, params.SkipWhenPositionOpen)
	assert.True(t, params.CompensateUnprotectedEntry)
	assert.False(t, params.ReconcilePairs)
	assert.True(t, params.CancelOrphanLegs)
}

func TestNewBotParametersFallsBackToDefaults(t *testing.T) {
	params := NewBotParameters(config.BracketBotConfig{OrdersPerHour: 0})
	defaults := entity.DefaultBotParameters()

	assert.Equal(t, defaults.Market, params.Market)
	assert.Equal(t, defaults.BaseAmount, params.BaseAmount)
	assert.True(t, defaults.TakeProfitPercent.Equal(params.TakeProfitPercent))
	assert.Equal(t, defaults.FailedOrderSleep, params.FailedOrderSleep)
	assert.Equal(t, defaults.PriceScale, params.PriceScale)
	assert.Equal(t, entity.UnboundedSleep, params.SleepDuration())
}

func TestAfterStopped(t *testing.T) {
	done := make(chan struct{})
	called := make(chan struct{})
	op := afterStopped(done, func(ctx context.Context) error {
		close(called)
		return errors.New("closed")
	})

	result := make(chan error, 1)
	go func() { result <- op(context.Background()) }()

	select {
	case <-called:
		t.Fatal("operation ran before the loop stopped")
	case <-time.After(20 * time.Millisecond):
	}

	close(done)
	assert.EqualError(t, <-result, "closed")
}

func TestShutdownTimeoutOutlastsBracketSubmission(t *testing.T) {
	params := entity.DefaultBotParameters()
	params.LegSubmitTimeout = 15 * time.Second

	tests := []struct {
		name       string
		configured time.Duration
		want       time.Duration
	}{
		{name: "shorter than a bracket", configured: 10 * time.Second, want: 23 * time.Second},
		{name: "unset", configured: 0, want: 23 * time.Second},
		{name: "long enough", configured: 30 * time.Second, want: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShutdownTimeout(tt.configured, params))
		})
	}
}
