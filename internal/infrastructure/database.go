package infrastructure

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/krobus00/bracket-bot/internal/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var ErrDatabaseNotConfigured = errors.New("database dsn is required")

var postgresRetryDefaults = retryDefaults{
	factor:   2,
	minDelay: 100 * time.Millisecond,
	maxDelay: time.Second,
}

// NewPostgresConnection opens the journal database. Every attempt is bounded by ping_interval
// (5s when unset) and failed attempts are retried max_retry times.
func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrDatabaseNotConfigured
	}

	attemptTimeout := cfg.PingInterval
	if attemptTimeout <= 0 {
		attemptTimeout = 5 * time.Second
	}

	policy := newRetryPolicy(cfg.MaxRetry, cfg.ReconnectFactor, cfg.MinJitter, cfg.MaxJitter, postgresRetryDefaults)

	var db *sqlx.DB
	err := policy.do(ctx, "postgres "+redactDSN(cfg.DSN), func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		conn, err := sqlx.ConnectContext(attemptCtx, "postgres", cfg.DSN)
		if err != nil {
			return err
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(positiveOr(cfg.MaxIdleConns, 2))
	db.SetMaxOpenConns(positiveOr(cfg.MaxActiveConns, 4))
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	} else {
		db.SetConnMaxLifetime(time.Hour)
	}

	logrus.WithField("dsn", redactDSN(cfg.DSN)).Info("postgres connection established")

	return db, nil
}

// StartPostgresHealthCheck pings db every interval until ctx is done. Failures are logged only,
// the journal keeps working once the pool reconnects.
func StartPostgresHealthCheck(ctx context.Context, db *sqlx.DB, interval time.Duration) {
	if db == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, interval)
				if err := db.PingContext(pingCtx); err != nil {
					logrus.WithError(err).Error("postgres health check failed")
				}
				cancel()
			}
		}
	}()
}

// redactDSN hides the credentials of a url-style dsn.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at == -1 {
		return dsn
	}

	scheme := strings.Index(dsn, "://")
	if scheme == -1 || scheme > at {
		return "***" + dsn[at:]
	}

	return dsn[:scheme+3] + "***" + dsn[at:]
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
