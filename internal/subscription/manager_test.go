package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/krobus00/futures-feed-service/internal/conn"
	"github.com/krobus00/futures-feed-service/internal/entity"
	"github.com/krobus00/futures-feed-service/internal/symbols"
)

type fakeSender struct {
	frames  [][]byte
	state   conn.State
	sendErr error
}

func (s *fakeSender) Send(frame []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSender) State() conn.State {
	return s.state
}

type fakeQueue struct {
	pending []entity.SubscriptionRequest
	popErr  error
}

func (q *fakeQueue) Pop(ctx context.Context) (*entity.SubscriptionRequest, error) {
	if q.popErr != nil {
		return nil, q.popErr
	}
	if len(q.pending) == 0 {
		return nil, nil
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	return &req, nil
}

func (q *fakeQueue) Push(ctx context.Context, req entity.SubscriptionRequest) error {
	q.pending = append(q.pending, req)
	return nil
}

func (q *fakeQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.pending)), nil
}

func (q *fakeQueue) Close() error { return nil }

type fakeSymbolStore struct {
	upserts []entity.Symbol
}

func (s *fakeSymbolStore) Upsert(ctx context.Context, symbol entity.Symbol) error {
	s.upserts = append(s.upserts, symbol)
	return nil
}

func newTestManager(sender *fakeSender, controlQueue *fakeQueue, store SymbolStore) *Manager {
	cfg := Config{ReconcileInterval: time.Millisecond, MaxConsecutiveFails: 3}
	return NewManager(cfg, sender, BinaryFrameEncoder{}, controlQueue, symbols.NewResolver("CME"), store)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected}
	manager := newTestManager(sender, &fakeQueue{}, nil)

	status, err := manager.Subscribe(entity.Subscription{Symbol: "esu5"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if status != StatusSubscribed {
		t.Fatalf("status = %d, want StatusSubscribed", status)
	}

	// same pair again, different casing
	status, err = manager.Subscribe(entity.Subscription{Symbol: "ESU5", Exchange: "cme"})
	if err != nil {
		t.Fatalf("duplicate subscribe: %v", err)
	}
	if status != StatusAlreadySubscribed {
		t.Fatalf("status = %d, want StatusAlreadySubscribed", status)
	}

	if len(sender.frames) != 1 {
		t.Fatalf("frames sent = %d, want 1", len(sender.frames))
	}
	if manager.Count() != 1 {
		t.Fatalf("count = %d, want 1", manager.Count())
	}
}

func TestSubscribeResolvesExchangeFromPrefix(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected}
	manager := newTestManager(sender, &fakeQueue{}, nil)

	if _, err := manager.Subscribe(entity.Subscription{Symbol: "GCQ5"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	snapshot := manager.Snapshot()
	if len(snapshot) != 1 || snapshot[0].Exchange != "COMEX" {
		t.Fatalf("snapshot = %+v", snapshot)
	}
}

func TestSubscribeSendFailureKeepsPairOut(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected, sendErr: errors.New("broken pipe")}
	manager := newTestManager(sender, &fakeQueue{}, nil)

	status, err := manager.Subscribe(entity.Subscription{Symbol: "ESU5"})
	if err == nil {
		t.Fatal("expected send error")
	}
	if status != StatusFailed {
		t.Fatalf("status = %d, want StatusFailed", status)
	}
	if manager.Count() != 0 {
		t.Fatalf("count = %d, want 0 after failed send", manager.Count())
	}
}

func TestUnsubscribeRemovesPair(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected}
	manager := newTestManager(sender, &fakeQueue{}, nil)

	if _, err := manager.Subscribe(entity.Subscription{Symbol: "NQU5"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := manager.Unsubscribe(entity.Subscription{Symbol: "NQU5"}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if manager.Count() != 0 {
		t.Fatalf("count = %d, want 0", manager.Count())
	}

	// unknown pair is a no-op, no frame goes out
	sent := len(sender.frames)
	if err := manager.Unsubscribe(entity.Subscription{Symbol: "CLU5"}); err != nil {
		t.Fatalf("unsubscribe unknown: %v", err)
	}
	if len(sender.frames) != sent {
		t.Fatalf("frames sent = %d, want %d", len(sender.frames), sent)
	}
}

func TestReconcileDrainsQueue(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected}
	controlQueue := &fakeQueue{pending: []entity.SubscriptionRequest{
		{Symbol: "NQU5"},
		{Symbol: "NQU5"}, // redelivered
		{Symbol: "GCQ5", Exchange: "comex"},
	}}
	store := &fakeSymbolStore{}
	manager := newTestManager(sender, controlQueue, store)

	if err := manager.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if len(controlQueue.pending) != 0 {
		t.Fatalf("queue not drained: %v", controlQueue.pending)
	}
	if manager.Count() != 2 {
		t.Fatalf("count = %d, want 2", manager.Count())
	}
	if len(sender.frames) != 2 {
		t.Fatalf("frames sent = %d, want 2 (duplicate ignored)", len(sender.frames))
	}
	if len(store.upserts) != 2 {
		t.Fatalf("symbol upserts = %d, want 2", len(store.upserts))
	}
}

func TestReconcileRequeuesOnSendFailure(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected, sendErr: errors.New("broken pipe")}
	controlQueue := &fakeQueue{pending: []entity.SubscriptionRequest{{Symbol: "ESU5"}}}
	manager := newTestManager(sender, controlQueue, nil)

	if err := manager.Reconcile(context.Background()); err == nil {
		t.Fatal("expected reconcile error")
	}
	if len(controlQueue.pending) != 1 || controlQueue.pending[0].Symbol != "ESU5" {
		t.Fatalf("request not requeued: %v", controlQueue.pending)
	}
}

func TestReconcileDropsMalformedRequest(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected}
	controlQueue := &fakeQueue{pending: []entity.SubscriptionRequest{
		{Symbol: ""},
		{Symbol: "   "},
		{Symbol: "ESU5"},
	}}
	manager := newTestManager(sender, controlQueue, nil)

	if err := manager.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// the empty-symbol entries are gone for good, the valid one applied
	if len(controlQueue.pending) != 0 {
		t.Fatalf("queue not drained: %v", controlQueue.pending)
	}
	if manager.Count() != 1 {
		t.Fatalf("count = %d, want 1", manager.Count())
	}
	if len(sender.frames) != 1 {
		t.Fatalf("frames sent = %d, want 1", len(sender.frames))
	}
}

func TestRunSurvivesMalformedRequest(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected}
	controlQueue := &fakeQueue{pending: []entity.SubscriptionRequest{{Symbol: ""}}}
	manager := newTestManager(sender, controlQueue, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("run = %v, want clean return despite bad queue entry", err)
	}
	if len(controlQueue.pending) != 0 {
		t.Fatalf("bad entry still queued: %v", controlQueue.pending)
	}
}

func TestResubscribeResendsFullSet(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected}
	manager := newTestManager(sender, &fakeQueue{}, nil)

	for _, symbol := range []string{"ESU5", "NQU5", "GCQ5"} {
		if _, err := manager.Subscribe(entity.Subscription{Symbol: symbol}); err != nil {
			t.Fatalf("subscribe %s: %v", symbol, err)
		}
	}

	sender.frames = nil
	if err := manager.Resubscribe(); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if len(sender.frames) != 3 {
		t.Fatalf("frames sent = %d, want 3", len(sender.frames))
	}
	if manager.Count() != 3 {
		t.Fatalf("count = %d, want 3", manager.Count())
	}
}

func TestRunEscalatesAfterConsecutiveFailures(t *testing.T) {
	sender := &fakeSender{state: conn.StateConnected}
	controlQueue := &fakeQueue{popErr: errors.New("queue unreachable")}
	manager := newTestManager(sender, controlQueue, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := manager.Run(ctx)
	if err == nil {
		t.Fatal("expected fatal error after repeated reconcile failures")
	}
	if !errors.Is(err, controlQueue.popErr) {
		t.Fatalf("err = %v, want wrapped pop error", err)
	}
}

func TestRunSkipsWhileSuspendedOrDisconnected(t *testing.T) {
	sender := &fakeSender{state: conn.StateDisconnected}
	controlQueue := &fakeQueue{pending: []entity.SubscriptionRequest{{Symbol: "ESU5"}}}
	manager := newTestManager(sender, controlQueue, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(controlQueue.pending) != 1 {
		t.Fatal("queue polled while disconnected")
	}

	sender.state = conn.StateConnected
	manager.SuspendReconcile()
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(controlQueue.pending) != 1 {
		t.Fatal("queue polled while suspended")
	}

	manager.ResumeReconcile()
	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(controlQueue.pending) != 0 {
		t.Fatal("queue not drained after resume")
	}
}
