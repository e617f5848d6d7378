package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/krobus00/futures-feed-service/internal/constant"
	"github.com/krobus00/futures-feed-service/internal/entity"
)

// MarketDataPublisher republishes normalized records on JetStream for
// downstream consumers. Publishing is best effort and never blocks the
// read loop's persistence path.
type MarketDataPublisher struct {
	js nats.JetStreamContext
}

func New(js nats.JetStreamContext) *MarketDataPublisher {
	return &MarketDataPublisher{js: js}
}

func (p *MarketDataPublisher) StreamInit(ctx context.Context) error {
	streamConfig := &nats.StreamConfig{
		Name:      constant.MarketDataStreamName,
		Subjects:  []string{constant.MarketDataStreamSubjectAll},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    5 * time.Minute,
		Replicas:  1,
	}

	stream, err := p.js.StreamInfo(constant.MarketDataStreamName, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		logrus.Error(err)
		return err
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", constant.MarketDataStreamName)
		_, err = p.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", constant.MarketDataStreamName)
	_, err = p.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		logrus.Error(err)
		return err
	}

	return nil
}

func (p *MarketDataPublisher) publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(subject, payload)
	return err
}

func (p *MarketDataPublisher) PublishTick(tick entity.TickRecord) error {
	return p.publish(constant.MarketDataStreamSubjectTick, tick)
}

func (p *MarketDataPublisher) PublishDepth(depth entity.DepthSnapshot) error {
	return p.publish(constant.MarketDataStreamSubjectDepth, depth)
}
