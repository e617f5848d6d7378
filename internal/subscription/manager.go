package subscription

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krobus00/futures-feed-service/internal/conn"
	"github.com/krobus00/futures-feed-service/internal/entity"
	"github.com/krobus00/futures-feed-service/internal/queue"
	"github.com/krobus00/futures-feed-service/internal/symbols"
)

type Status int

const (
	StatusFailed Status = iota
	StatusSubscribed
	StatusAlreadySubscribed
)

// Sender is the live write path, satisfied by *conn.Manager.
type Sender interface {
	Send(frame []byte) error
	State() conn.State
}

// SymbolStore persists symbols taken off the control queue. Optional.
type SymbolStore interface {
	Upsert(ctx context.Context, symbol entity.Symbol) error
}

type Config struct {
	ReconcileInterval   time.Duration
	MaxConsecutiveFails int
}

// Manager exclusively owns the subscription set. The connection layer
// never mutates it; resubscription after a reconnect is sequenced here so
// nothing is silently lost.
type Manager struct {
	cfg      Config
	sender   Sender
	encoder  FrameEncoder
	queue    queue.ControlQueue
	resolver *symbols.Resolver
	store    SymbolStore
	log      *logrus.Entry

	mu  sync.Mutex
	set map[string]entity.Subscription

	suspended atomic.Bool
}

func NewManager(cfg Config, sender Sender, encoder FrameEncoder, controlQueue queue.ControlQueue, resolver *symbols.Resolver, store SymbolStore) *Manager {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 5 * time.Second
	}
	if cfg.MaxConsecutiveFails <= 0 {
		cfg.MaxConsecutiveFails = 10
	}

	return &Manager{
		cfg:      cfg,
		sender:   sender,
		encoder:  encoder,
		queue:    controlQueue,
		resolver: resolver,
		store:    store,
		log:      logrus.WithField("component", "subscription"),
		set:      make(map[string]entity.Subscription),
	}
}

func (m *Manager) normalize(sub entity.Subscription) entity.Subscription {
	sub.Symbol = strings.ToUpper(strings.TrimSpace(sub.Symbol))
	sub.Exchange = strings.ToUpper(strings.TrimSpace(sub.Exchange))
	if sub.Exchange == "" {
		sub.Exchange = m.resolver.ResolveExchange(sub.Symbol)
	}
	return sub
}

// Subscribe sends one subscribe frame for a pair not yet in the set.
// Duplicates are a no-op: the control queue may redeliver requests, so
// idempotency lives here rather than at the producer. A non-nil error
// always pairs with StatusFailed.
func (m *Manager) Subscribe(sub entity.Subscription) (Status, error) {
	sub = m.normalize(sub)
	if sub.Symbol == "" {
		return StatusFailed, fmt.Errorf("empty symbol")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.set[sub.Key()]; ok {
		return StatusAlreadySubscribed, nil
	}

	frame, err := m.encoder.EncodeSubscribe(sub)
	if err != nil {
		return StatusFailed, fmt.Errorf("encode subscribe %s: %w", sub.Key(), err)
	}
	if err := m.sender.Send(frame); err != nil {
		return StatusFailed, fmt.Errorf("send subscribe %s: %w", sub.Key(), err)
	}

	m.set[sub.Key()] = sub
	m.log.WithFields(logrus.Fields{
		"symbol":   sub.Symbol,
		"exchange": sub.Exchange,
	}).Info("subscribed")
	return StatusSubscribed, nil
}

// Unsubscribe removes the pair from the set and tells the feed.
func (m *Manager) Unsubscribe(sub entity.Subscription) error {
	sub = m.normalize(sub)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.set[sub.Key()]; !ok {
		return nil
	}

	frame, err := m.encoder.EncodeUnsubscribe(sub)
	if err != nil {
		return fmt.Errorf("encode unsubscribe %s: %w", sub.Key(), err)
	}
	if err := m.sender.Send(frame); err != nil {
		return fmt.Errorf("send unsubscribe %s: %w", sub.Key(), err)
	}

	delete(m.set, sub.Key())
	return nil
}

// Snapshot returns the current set in a stable order.
func (m *Manager) Snapshot() []entity.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := make([]entity.Subscription, 0, len(m.set))
	for _, sub := range m.set {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Key() < subs[j].Key() })
	return subs
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.set)
}

// Resubscribe re-sends the whole set after a reconnect. The caller must
// suspend reconciliation around the reconnect so the full set is on the
// wire before new requests are taken.
func (m *Manager) Resubscribe() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, sub := range m.set {
		frame, err := m.encoder.EncodeSubscribe(sub)
		if err != nil {
			return fmt.Errorf("encode resubscribe %s: %w", key, err)
		}
		if err := m.sender.Send(frame); err != nil {
			return fmt.Errorf("send resubscribe %s: %w", key, err)
		}
	}

	m.log.WithField("count", len(m.set)).Info("resubscribed full set")
	return nil
}

// SuspendReconcile makes Run skip polling until ResumeReconcile, used to
// order the post-reconnect resubscribe ahead of new queue requests.
func (m *Manager) SuspendReconcile() {
	m.suspended.Store(true)
}

func (m *Manager) ResumeReconcile() {
	m.suspended.Store(false)
}

// Reconcile drains every pending control queue request and applies it.
// A malformed request is dropped, never requeued: requeueing it would
// feed the same poison entry to every restart. Only transport-class
// failures go back on the queue and count toward escalation.
func (m *Manager) Reconcile(ctx context.Context) error {
	for {
		req, err := m.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if req == nil {
			return nil
		}

		sub := m.normalize(entity.Subscription{Symbol: req.Symbol, Exchange: req.Exchange})
		if sub.Symbol == "" {
			m.log.WithField("request_id", req.RequestID).Error("dropping subscription request with empty symbol")
			continue
		}

		status, err := m.Subscribe(sub)
		if err != nil {
			// Push the request back so a transient send failure does not
			// drop it; it will be retried next interval.
			if pushErr := m.queue.Push(ctx, *req); pushErr != nil {
				m.log.Errorf("requeue %s failed: %v", sub.Key(), pushErr)
			}
			return err
		}
		if status == StatusAlreadySubscribed {
			m.log.WithField("symbol", sub.Key()).Debug("duplicate subscription request ignored")
			continue
		}

		if m.store != nil {
			symbol := entity.Symbol{Symbol: sub.Symbol, Exchange: sub.Exchange, Active: true}
			if err := m.store.Upsert(ctx, symbol); err != nil {
				m.log.Errorf("persist symbol %s failed: %v", sub.Key(), err)
			}
		}
	}
}

// Run polls the control queue on a fixed cadence until ctx is cancelled.
// Consecutive failures are counted and escalate to a fatal return after
// the configured limit; a permanently broken queue must be observable,
// not an endless sleep-and-continue loop.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ReconcileInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if m.suspended.Load() || m.sender.State() != conn.StateConnected {
				continue
			}

			if err := m.Reconcile(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				failures++
				m.log.WithField("consecutive_failures", failures).Errorf("reconcile failed: %v", err)
				if failures >= m.cfg.MaxConsecutiveFails {
					return fmt.Errorf("reconcile failed %d times in a row: %w", failures, err)
				}
				continue
			}
			failures = 0
		}
	}
}
