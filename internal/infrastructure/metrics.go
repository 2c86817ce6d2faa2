package infrastructure

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// MetricsPusher ships a registry to a prometheus push gateway. The bot opens no listening
// port, so scraping is not an option.
type MetricsPusher struct {
	pusher *push.Pusher
}

func NewMetricsPusher(url, job string, gatherer prometheus.Gatherer) *MetricsPusher {
	if strings.TrimSpace(url) == "" {
		return nil
	}

	return &MetricsPusher{
		pusher: push.New(url, job).Gatherer(gatherer),
	}
}

func (p *MetricsPusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.pusher.PushContext(ctx)
}
