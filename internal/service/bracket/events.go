package bracket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/krobus00/bracket-bot/internal/constant"
	"github.com/krobus00/bracket-bot/internal/entity"
	"github.com/krobus00/bracket-bot/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// CycleEventPublisher announces the outcome of every trading cycle.
type CycleEventPublisher interface {
	PublishCycle(ctx context.Context, event entity.BracketCycleEvent) error
}

type JetstreamCyclePublisher struct {
	js nats.JetStreamContext
}

func NewJetstreamCyclePublisher(js nats.JetStreamContext) *JetstreamCyclePublisher {
	return &JetstreamCyclePublisher{js: js}
}

func (p *JetstreamCyclePublisher) JetstreamEventInit(ctx context.Context) error {
	streamConfig := &nats.StreamConfig{
		Name:       constant.BracketStreamName,
		Subjects:   []string{constant.BracketStreamSubjectAll},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 2 * time.Minute,
		Replicas:   1,
	}

	stream, err := p.js.StreamInfo(streamConfig.Name, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("get stream info: %w", err)
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", streamConfig.Name)
		_, err = p.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", streamConfig.Name)
	_, err = p.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		return err
	}

	logrus.Infof("stream %s is ready", streamConfig.Name)
	return nil
}

func (p *JetstreamCyclePublisher) PublishCycle(ctx context.Context, event entity.BracketCycleEvent) error {
	return util.PublishEvent(ctx, p.js, constant.BracketStreamSubjectCycle, event.MessageID(), event)
}
