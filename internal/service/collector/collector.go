package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krobus00/futures-feed-service/internal/conn"
	"github.com/krobus00/futures-feed-service/internal/dispatch"
	"github.com/krobus00/futures-feed-service/internal/entity"
	"github.com/krobus00/futures-feed-service/internal/subscription"
	"github.com/krobus00/futures-feed-service/internal/util"
	"github.com/krobus00/futures-feed-service/internal/wire"
)

type TickSink interface {
	Insert(ctx context.Context, data entity.TickRecord) error
}

type DepthSink interface {
	Insert(ctx context.Context, data entity.DepthSnapshot) error
}

// EventPublisher republishes normalized records downstream. Optional.
type EventPublisher interface {
	PublishTick(tick entity.TickRecord) error
	PublishDepth(depth entity.DepthSnapshot) error
}

// Variant selects the wire protocol of the upstream feed.
type Variant string

const (
	VariantBinary Variant = "binary"
	VariantPlugin Variant = "plugin"
)

// Collector drives one upstream connection end to end: connect, initial
// subscriptions, then decode, dispatch and persist frames strictly in
// arrival order. Depth updates are stateful per symbol, so frames are
// never dispatched in parallel.
type Collector struct {
	variant    Variant
	manager    *conn.Manager
	dispatcher *dispatch.Dispatcher
	subs       *subscription.Manager
	ticks      TickSink
	depth      DepthSink
	publisher  EventPublisher
	initial    []entity.Subscription

	maxFrameSize    int
	log             *logrus.Entry
	persistThrottle *util.LogThrottle
	decodeThrottle  *util.LogThrottle
}

func New(variant Variant, manager *conn.Manager, dispatcher *dispatch.Dispatcher, subs *subscription.Manager, ticks TickSink, depth DepthSink, publisher EventPublisher, initial []entity.Subscription, maxFrameSize int) *Collector {
	return &Collector{
		variant:         variant,
		manager:         manager,
		dispatcher:      dispatcher,
		subs:            subs,
		ticks:           ticks,
		depth:           depth,
		publisher:       publisher,
		initial:         initial,
		maxFrameSize:    maxFrameSize,
		log:             logrus.WithField("collector", string(variant)),
		persistThrottle: util.NewLogThrottle(5*time.Second, 5),
		decodeThrottle:  util.NewLogThrottle(5*time.Second, 5),
	}
}

func (c *Collector) newDecoder() conn.FrameDecoder {
	if c.variant == VariantBinary {
		return wire.NewBinaryDecoder(c.maxFrameSize)
	}
	return wire.NewTextDecoder(c.maxFrameSize)
}

func (c *Collector) handle(frame wire.Frame) (entity.Message, error) {
	if c.variant == VariantBinary {
		return c.dispatcher.HandleBinary(frame)
	}
	return c.dispatcher.HandleText(frame)
}

// ConnectionState implements the status endpoint contract.
func (c *Collector) ConnectionState() string {
	return c.manager.State().String()
}

func (c *Collector) SubscriptionCount() int {
	return c.subs.Count()
}

// Run blocks until ctx is cancelled or a fatal condition. Mid-stream
// failures reconnect with the same bounded policy as the initial connect;
// the full subscription set is re-sent before reconciliation resumes.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.manager.Connect(ctx); err != nil {
		return err
	}
	if err := c.subscribeInitial(); err != nil {
		return err
	}

	for {
		err := c.manager.ReadLoop(ctx, c.newDecoder(), func(frame wire.Frame) {
			c.onFrame(ctx, frame)
		})
		if err == nil {
			c.log.Info("collector stopped")
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, conn.ErrStreamClosed) && !errors.Is(err, conn.ErrStreamCorrupt) {
			return err
		}

		c.log.Warnf("stream lost, reconnecting: %v", err)
		c.subs.SuspendReconcile()
		if err := c.manager.Reconnect(ctx); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
		if err := c.subs.Resubscribe(); err != nil {
			c.log.Errorf("resubscribe after reconnect: %v", err)
		}
		c.subs.ResumeReconcile()
	}
}

func (c *Collector) subscribeInitial() error {
	for _, sub := range c.initial {
		if _, err := c.subs.Subscribe(sub); err != nil {
			return fmt.Errorf("initial subscribe %s: %w", sub.Key(), err)
		}
	}

	c.log.WithField("count", len(c.initial)).Info("initial subscriptions sent")
	return nil
}

func (c *Collector) onFrame(ctx context.Context, frame wire.Frame) {
	message, err := c.handle(frame)
	if err != nil {
		if c.decodeThrottle.Allow() {
			entry := c.log.WithField("suppressed", c.decodeThrottle.TakeSuppressed())
			if c.variant == VariantBinary {
				entry = entry.WithField("type", dispatch.BinaryTypeName(frame.Type))
			}
			entry.Errorf("frame dropped: %v", err)
		}
		return
	}

	switch m := message.(type) {
	case entity.TickMessage:
		c.persistTick(ctx, m.Tick)
	case entity.DepthMessage:
		c.persistDepth(ctx, m.Depth)
	case entity.ControlMessage:
		if m.Kind == "ERROR" {
			c.log.Errorf("upstream error: %s", m.Text)
		} else {
			c.log.Infof("upstream status: %s", m.Text)
		}
	case entity.UnknownMessage:
		if c.variant == VariantBinary {
			c.log.WithFields(logrus.Fields{
				"type":  dispatch.BinaryTypeName(m.BinaryType),
				"bytes": len(m.Raw),
			}).Debug("unhandled message type")
		} else {
			c.log.WithField("type", m.TextType).Debug("unhandled message type")
		}
	case nil:
		// intentionally ignored frame
	}
}

func (c *Collector) persistTick(ctx context.Context, tick entity.TickRecord) {
	if err := c.ticks.Insert(ctx, tick); err != nil {
		if c.persistThrottle.Allow() {
			c.log.WithFields(logrus.Fields{
				"symbol":     tick.Symbol,
				"timestamp":  tick.Timestamp,
				"kind":       "tick",
				"suppressed": c.persistThrottle.TakeSuppressed(),
			}).Errorf("record dropped: %v", err)
		}
		return
	}

	if c.publisher != nil {
		if err := c.publisher.PublishTick(tick); err != nil {
			c.log.Debugf("publish tick %s: %v", tick.Symbol, err)
		}
	}
}

func (c *Collector) persistDepth(ctx context.Context, depth entity.DepthSnapshot) {
	if err := c.depth.Insert(ctx, depth); err != nil {
		if c.persistThrottle.Allow() {
			c.log.WithFields(logrus.Fields{
				"symbol":     depth.Symbol,
				"timestamp":  depth.Timestamp,
				"kind":       "depth",
				"suppressed": c.persistThrottle.TakeSuppressed(),
			}).Errorf("record dropped: %v", err)
		}
		return
	}

	if c.publisher != nil {
		if err := c.publisher.PublishDepth(depth); err != nil {
			c.log.Debugf("publish depth %s: %v", depth.Symbol, err)
		}
	}
}
