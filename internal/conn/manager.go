package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krobus00/futures-feed-service/internal/util"
	"github.com/krobus00/futures-feed-service/internal/wire"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

var (
	// ErrConnectExhausted means the bounded initial connect gave up. This
	// is operator-actionable and propagates as a fatal condition.
	ErrConnectExhausted = errors.New("conn: connect attempts exhausted")

	// ErrNotConnected is returned by Send outside the Connected state.
	ErrNotConnected = errors.New("conn: not connected")

	// ErrStreamClosed marks a mid-stream EOF or read error after a
	// successful connect. Retryable: whether to reconnect is the caller's
	// decision, so resubscription can be sequenced explicitly.
	ErrStreamClosed = errors.New("conn: stream closed")

	// ErrStreamCorrupt marks unrecoverable framing corruption. The
	// connection is already dropped when this is returned.
	ErrStreamCorrupt = errors.New("conn: stream corrupt")
)

// FrameDecoder is the buffering decoder driven by the read loop. Both
// wire.BinaryDecoder and wire.TextDecoder satisfy it.
type FrameDecoder interface {
	Feed(p []byte)
	Next() (wire.Frame, bool, error)
	Buffered() int
}

type Config struct {
	Addr            string
	ConnectAttempts int
	ConnectBackoff  time.Duration
	DialTimeout     time.Duration
	ReadBufferSize  int
}

// Manager owns one upstream socket: bounded-retry connect, the read loop,
// the serialized write path and disconnect. It never reconnects on its
// own.
type Manager struct {
	cfg    Config
	dialer Dialer
	log    *logrus.Entry

	writeMu sync.Mutex
	conn    io.ReadWriteCloser
	state   atomic.Int32
	closing atomic.Bool
}

func NewManager(cfg Config, dialer Dialer) *Manager {
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 5
	}
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 4096
	}

	return &Manager{
		cfg:    cfg,
		dialer: dialer,
		log:    logrus.WithField("upstream", cfg.Addr),
	}
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// Connect dials the upstream with bounded attempts and fixed backoff.
// After exhausting attempts it returns ErrConnectExhausted; an unreachable
// terminal is an operator problem, not something to retry forever.
func (m *Manager) Connect(ctx context.Context) error {
	m.setState(StateConnecting)
	m.closing.Store(false)

	var lastErr error
	for attempt := 1; attempt <= m.cfg.ConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			m.setState(StateDisconnected)
			return err
		}

		dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
		stream, err := m.dialer.Dial(dialCtx, m.cfg.Addr)
		cancel()
		if err == nil {
			m.writeMu.Lock()
			m.conn = stream
			m.writeMu.Unlock()
			m.setState(StateConnected)
			m.log.Info("connected to upstream feed")
			return nil
		}

		lastErr = err
		if attempt == m.cfg.ConnectAttempts {
			break
		}

		m.log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": m.cfg.ConnectAttempts,
			"retry_in":     m.cfg.ConnectBackoff.String(),
		}).Warnf("upstream connect failed: %v", err)

		select {
		case <-time.After(m.cfg.ConnectBackoff):
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return ctx.Err()
		}
	}

	m.setState(StateDisconnected)
	return fmt.Errorf("%w after %d attempts: %v", ErrConnectExhausted, m.cfg.ConnectAttempts, lastErr)
}

// Reconnect re-dials after a stream failure using the same bounded policy.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.setState(StateReconnecting)
	return m.Connect(ctx)
}

// Send writes one encoded frame. Writes are serialized under a mutex;
// interleaved writes from two goroutines would corrupt the framing.
func (m *Manager) Send(frame []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.conn == nil || m.State() != StateConnected {
		return ErrNotConnected
	}

	if _, err := m.conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadLoop consumes the socket until disconnect, feeding bytes through the
// decoder and handing complete frames to onFrame in strict arrival order.
// Malformed JSON lines are logged and skipped; framing corruption drops
// the connection and returns ErrStreamCorrupt; EOF or a read error returns
// ErrStreamClosed. A nil return means Disconnect was requested.
func (m *Manager) ReadLoop(ctx context.Context, decoder FrameDecoder, onFrame func(wire.Frame)) error {
	m.writeMu.Lock()
	stream := m.conn
	m.writeMu.Unlock()
	if stream == nil {
		return ErrNotConnected
	}

	badLineThrottle := util.NewLogThrottle(10*time.Second, 3)
	buf := make([]byte, m.cfg.ReadBufferSize)

	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
			for {
				frame, ok, err := decoder.Next()
				if errors.Is(err, wire.ErrMalformedLine) {
					if badLineThrottle.Allow() {
						m.log.WithField("suppressed", badLineThrottle.TakeSuppressed()).
							Warnf("skipping malformed json line: %.200s", frame.Payload)
					}
					continue
				}
				if err != nil {
					m.teardown()
					return fmt.Errorf("%w: %v", ErrStreamCorrupt, err)
				}
				if !ok {
					break
				}
				onFrame(frame)
			}
		}

		if readErr != nil {
			m.teardown()
			if m.closing.Load() || ctx.Err() != nil {
				m.log.Info("read loop stopped")
				return nil
			}
			if errors.Is(readErr, io.EOF) {
				if decoder.Buffered() > 0 {
					m.log.WithField("buffered", decoder.Buffered()).Warn("upstream closed mid-frame")
				} else {
					m.log.Warn("upstream closed connection")
				}
				return fmt.Errorf("%w: %v", ErrStreamClosed, readErr)
			}
			return fmt.Errorf("%w: %v", ErrStreamClosed, readErr)
		}
	}
}

// Disconnect closes the socket, which also unblocks a pending read.
func (m *Manager) Disconnect() error {
	m.closing.Store(true)
	return m.teardown()
}

func (m *Manager) teardown() error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.setState(StateDisconnected)
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}
