package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/krobus00/bracket-bot/internal/config"
	"github.com/krobus00/bracket-bot/internal/constant"
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/krobus00/bracket-bot/internal/infrastructure"
	"github.com/krobus00/bracket-bot/internal/repository"
	"github.com/krobus00/bracket-bot/internal/service/bracket"
	"github.com/krobus00/bracket-bot/internal/service/exchange"
	"github.com/krobus00/bracket-bot/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	runLockReleaseTimeout = 3 * time.Second
	shutdownMargin        = 5 * time.Second
)

func StartBracketBot(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exchangeConfig := config.Env.Exchange
	params := NewBotParameters(config.Env.BracketBot)
	runID := uuid.NewString()

	gateway, err := exchange.NewExchangeGateway(exchangeConfig, config.Env.BracketBot)
	util.ContinueOrFatal(err)

	logrus.WithFields(logrus.Fields{
		"run_id":   runID,
		"exchange": gateway.Name(),
		"mode":     exchangeConfig.Mode,
	}).Info("starting bracket bot")

	accountIndex, err := gateway.ResolveAccountIndex(ctx, exchangeConfig.L1Address)
	util.ContinueOrFatalf(err, "failed to find an account for l1 address %q", exchangeConfig.L1Address)
	logrus.Infof("Found account index: %d", accountIndex)
	logrus.Infof("Using market: %s with market_id: %d", params.Market, params.MarketID)

	authToken, err := gateway.Authenticate(ctx, exchangeConfig.APIPrivateKey, accountIndex, exchangeConfig.APIKeyIndex)
	util.ContinueOrFatalf(err, "failed to authenticate account %d", accountIndex)
	logrus.Info("Authentication successful")

	logrus.WithFields(logrus.Fields{
		"base_amount":         params.BaseAmount,
		"display_amount":      params.DisplayAmount().String(),
		"take_profit_percent": params.TakeProfitPercent.String(),
		"stop_loss_percent":   params.StopLossPercent.String(),
		"orders_per_hour":     params.OrdersPerHour,
		"leverage":            params.Leverage.String(),
	}).Info("bracket parameters loaded, leverage is informational and not sent to the exchange")

	session := entity.Session{
		AccountIndex: accountIndex,
		MarketID:     params.MarketID,
		AuthToken:    authToken,
		Gateway:      gateway,
	}

	done := make(chan struct{})
	ops := make(map[string]operation)
	metrics := bracket.NewMetrics(params.Market)
	opts := bracket.SchedulerOptions{
		RunID:   runID,
		IDs:     bracket.NewClientOrderIDSequence(),
		Metrics: metrics,
	}

	if dbConfig, ok := config.Env.Database[constant.BracketJournalDatabase]; ok && strings.TrimSpace(dbConfig.DSN) != "" {
		db, err := infrastructure.NewPostgresConnection(ctx, dbConfig)
		util.ContinueOrFatal(err)
		infrastructure.StartPostgresHealthCheck(ctx, db, dbConfig.PingInterval)

		opts.Journal = repository.NewOrderJournalRepository(db)
		ops["database"] = afterStopped(done, func(ctx context.Context) error {
			return db.Close()
		})
	}

	if strings.TrimSpace(config.Env.NatsJetstream.URL) != "" {
		nc, js, err := infrastructure.NewJetstream(config.Env.NatsJetstream)
		util.ContinueOrFatal(err)

		cyclePublisher := bracket.NewJetstreamCyclePublisher(js)
		publishers := []entity.Publisher{cyclePublisher}
		for _, v := range publishers {
			err = v.JetstreamEventInit(ctx)
			util.ContinueOrFatal(err)
		}

		opts.Publisher = cyclePublisher
		ops["nats connection"] = afterStopped(done, func(ctx context.Context) error {
			return infrastructure.CloseJetstream(nc)
		})
	}

	if redisConfig, ok := config.Env.Redis[constant.BracketRunLockRedis]; ok && strings.TrimSpace(redisConfig.CacheDSN) != "" {
		client, err := infrastructure.NewRedisClient(ctx, redisConfig)
		util.ContinueOrFatal(err)

		lockKey := constant.GetBracketRunLockKey(string(gateway.Name()), accountIndex, params.MarketID)
		runLock := bracket.NewRedisRunLock(client, lockKey, config.Env.BracketBot.RunLockTTL)
		util.ContinueOrFatalf(runLock.Acquire(ctx), "cannot start on %s", lockKey)
		go runLock.Keep(ctx, cancel)

		ops["redis run lock"] = afterStopped(done, func(ctx context.Context) error {
			releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), runLockReleaseTimeout)
			defer releaseCancel()

			if err := runLock.Release(releaseCtx); err != nil {
				_ = client.Close()
				return err
			}
			return client.Close()
		})
	}

	if pusher := infrastructure.NewMetricsPusher(config.Env.Metrics.PushGatewayURL, config.Env.Metrics.JobName, metrics.Gatherer()); pusher != nil {
		opts.Pusher = pusher
	}

	scheduler := bracket.NewScheduler(params, session, opts)

	go func() {
		defer close(done)
		if err := scheduler.Run(ctx); err != nil {
			logrus.WithError(err).Error("bracket scheduler stopped with error")
		}
	}()

	ops["bracket scheduler"] = func(ctx context.Context) error {
		cancel()
		<-done
		logrus.WithField("tracked_pairs", scheduler.Registry().Len()).Info("bracket scheduler stopped")
		return nil
	}

	wait := gracefulShutdown(ctx, ShutdownTimeout(config.Env.GracefulShutdownTimeout, params), done, ops)

	<-wait
}

// ShutdownTimeout keeps the forced exit after a bracket that is still being sent.
func ShutdownTimeout(configured time.Duration, params entity.BotParameters) time.Duration {
	minimum := params.LegSubmitTimeout + runLockReleaseTimeout + shutdownMargin
	if configured < minimum {
		logrus.WithFields(logrus.Fields{
			"configured": configured.String(),
			"used":       minimum.String(),
		}).Warn("graceful_shutdown_timeout is shorter than leg_submit_timeout, raising it")
		return minimum
	}
	return configured
}

// NewBotParameters freezes the bracket_bot config section into the values the scheduler uses.
func NewBotParameters(cfg config.BracketBotConfig) entity.BotParameters {
	params := entity.DefaultBotParameters()

	if strings.TrimSpace(cfg.Market) != "" {
		params.Market = strings.ToUpper(strings.TrimSpace(cfg.Market))
	}
	params.MarketID = cfg.MarketID
	params.OrdersPerHour = cfg.OrdersPerHour
	if cfg.BaseAmount > 0 {
		params.BaseAmount = cfg.BaseAmount
	}
	if cfg.TakeProfitPercent.IsPositive() {
		params.TakeProfitPercent = cfg.TakeProfitPercent
	}
	if cfg.StopLossPercent.IsPositive() {
		params.StopLossPercent = cfg.StopLossPercent
	}
	if cfg.Leverage.IsPositive() {
		params.Leverage = cfg.Leverage
	}
	if cfg.FailedOrderSleep > 0 {
		params.FailedOrderSleep = cfg.FailedOrderSleep
	}
	if cfg.PriceScale > 0 {
		params.PriceScale = cfg.PriceScale
	}
	if cfg.SizeScale > 0 {
		params.SizeScale = cfg.SizeScale
	}
	if !cfg.EntrySlippage.IsNegative() {
		params.EntrySlippage = cfg.EntrySlippage
	}
	if !cfg.StopLossLimitOffset.IsNegative() {
		params.StopLossLimitOffset = cfg.StopLossLimitOffset
	}
	if cfg.LegSubmitTimeout > 0 {
		params.LegSubmitTimeout = cfg.LegSubmitTimeout
	}

	params.SkipWhenPositionOpen = cfg.SkipWhenPositionOpen
	params.CompensateUnprotectedEntry = cfg.CompensateUnprotectedEntry
	params.ReconcilePairs = cfg.ReconcilePairs
	params.CancelOrphanLegs = cfg.CancelOrphanLegs

	return params
}
