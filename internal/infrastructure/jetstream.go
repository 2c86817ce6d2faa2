package infrastructure

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/krobus00/bracket-bot/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

var ErrJetstreamNotConfigured = errors.New("nats jetstream url is required")

var natsRetryDefaults = retryDefaults{
	factor:   2,
	minDelay: 100 * time.Millisecond,
	maxDelay: 2 * time.Second,
}

// NewJetstream connects to nats for the cycle event stream. The connection retries in the
// background so a late nats server does not block the trading loop.
func NewJetstream(cfg config.NatsJetstreamConfig) (*nats.Conn, nats.JetStreamContext, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, nil, ErrJetstreamNotConfigured
	}

	maxRetries := positiveOr(cfg.MaxRetries, 10)
	policy := newRetryPolicy(maxRetries, cfg.ReconnectFactor, cfg.MinJitter, cfg.MaxJitter, natsRetryDefaults)

	nc, err := nats.Connect(cfg.URL, natsOptions(maxRetries, policy)...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream(nats.PublishAsyncMaxPending(64), nats.MaxWait(5*time.Second))
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}

	logrus.WithField("url", cfg.URL).Info("nats jetstream connection established")

	return nc, js, nil
}

func natsOptions(maxRetries int, policy *retryPolicy) []nats.Option {
	return []nats.Option{
		nats.Name(config.ServiceName),
		nats.Timeout(5 * time.Second),
		nats.DrainTimeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(maxRetries),
		nats.CustomReconnectDelay(policy.delay),
		nats.DisconnectErrHandler(func(conn *nats.Conn, err error) {
			logrus.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logrus.WithField("url", conn.ConnectedUrl()).Info("nats reconnected")
		}),
		nats.ClosedHandler(func(conn *nats.Conn) {
			logrus.WithError(conn.LastError()).Warn("nats connection closed")
		}),
	}
}

// CloseJetstream drains pending cycle events; the connection closes once the drain completes.
func CloseJetstream(nc *nats.Conn) error {
	if nc == nil {
		return nil
	}

	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}

	return nil
}
