package util

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// PublishEvent publishes data as json. A non-empty msgID lets the stream drop duplicates
// within its deduplication window.
func PublishEvent(ctx context.Context, js nats.JetStreamContext, subject, msgID string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}

	opts := []nats.PubOpt{nats.Context(ctx)}
	if msgID != "" {
		opts = append(opts, nats.MsgId(msgID))
	}

	if _, err := js.Publish(subject, payload, opts...); err != nil {
		return fmt.Errorf("publish %s event: %w", subject, err)
	}

	return nil
}
