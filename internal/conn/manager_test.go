package conn

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/krobus00/futures-feed-service/internal/wire"
)

// scriptedStream serves pre-cut read chunks then EOF. Writes are recorded.
type scriptedStream struct {
	chunks [][]byte
	writes [][]byte
	closed bool
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := s.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		s.chunks[0] = chunk[n:]
	} else {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func (s *scriptedStream) Write(p []byte) (int, error) {
	s.writes = append(s.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type stubDialer struct {
	failures int
	stream   io.ReadWriteCloser
	calls    int
}

func (d *stubDialer) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, errors.New("connection refused")
	}
	if d.stream == nil {
		return &scriptedStream{}, nil
	}
	return d.stream, nil
}

func testConfig() Config {
	return Config{
		Addr:            "127.0.0.1:3010",
		ConnectAttempts: 3,
		ConnectBackoff:  time.Millisecond,
		DialTimeout:     time.Second,
	}
}

func TestConnectRetriesThenSucceeds(t *testing.T) {
	dialer := &stubDialer{failures: 2}
	manager := NewManager(testConfig(), dialer)

	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if dialer.calls != 3 {
		t.Fatalf("dial calls = %d, want 3", dialer.calls)
	}
	if manager.State() != StateConnected {
		t.Fatalf("state = %s, want connected", manager.State())
	}
}

func TestConnectExhaustsAttempts(t *testing.T) {
	dialer := &stubDialer{failures: 100}
	manager := NewManager(testConfig(), dialer)

	err := manager.Connect(context.Background())
	if !errors.Is(err, ErrConnectExhausted) {
		t.Fatalf("err = %v, want ErrConnectExhausted", err)
	}
	if dialer.calls != 3 {
		t.Fatalf("dial calls = %d, want 3", dialer.calls)
	}
	if manager.State() != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", manager.State())
	}
}

func TestSendRequiresConnection(t *testing.T) {
	manager := NewManager(testConfig(), &stubDialer{})

	if err := manager.Send([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestSendWritesWholeFrame(t *testing.T) {
	stream := &scriptedStream{}
	manager := NewManager(testConfig(), &stubDialer{stream: stream})
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	frame := wire.EncodeBinary(100, []byte{0x01, 0x02})
	if err := manager.Send(frame); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(stream.writes) != 1 || string(stream.writes[0]) != string(frame) {
		t.Fatalf("writes = %v", stream.writes)
	}
}

func TestReadLoopDeliversFramesInOrderAcrossFragments(t *testing.T) {
	first := wire.EncodeBinary(102, []byte("one"))
	second := wire.EncodeBinary(103, []byte("two"))
	joined := append(append([]byte(nil), first...), second...)

	// cut mid-header and mid-payload
	stream := &scriptedStream{chunks: [][]byte{joined[:3], joined[3:11], joined[11:]}}
	manager := NewManager(testConfig(), &stubDialer{stream: stream})
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	var types []uint16
	err := manager.ReadLoop(context.Background(), wire.NewBinaryDecoder(1<<20), func(frame wire.Frame) {
		types = append(types, frame.Type)
	})
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("err = %v, want ErrStreamClosed", err)
	}
	if len(types) != 2 || types[0] != 102 || types[1] != 103 {
		t.Fatalf("delivered types = %v", types)
	}
}

func TestReadLoopEOFMidHeaderDeliversNothing(t *testing.T) {
	frame := wire.EncodeBinary(102, []byte("payload"))

	stream := &scriptedStream{chunks: [][]byte{frame[:2]}}
	manager := NewManager(testConfig(), &stubDialer{stream: stream})
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	delivered := 0
	err := manager.ReadLoop(context.Background(), wire.NewBinaryDecoder(1<<20), func(wire.Frame) {
		delivered++
	})
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("err = %v, want ErrStreamClosed", err)
	}
	if delivered != 0 {
		t.Fatalf("delivered = %d, want 0", delivered)
	}
}

func TestReadLoopCorruptLengthDropsConnection(t *testing.T) {
	// length field below the 2-byte type minimum
	corrupt := []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x66}

	stream := &scriptedStream{chunks: [][]byte{corrupt}}
	manager := NewManager(testConfig(), &stubDialer{stream: stream})
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	err := manager.ReadLoop(context.Background(), wire.NewBinaryDecoder(1<<20), func(wire.Frame) {
		t.Fatal("no frame expected from corrupt stream")
	})
	if !errors.Is(err, ErrStreamCorrupt) {
		t.Fatalf("err = %v, want ErrStreamCorrupt", err)
	}
	if manager.State() != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", manager.State())
	}
	if !stream.closed {
		t.Fatal("stream not closed after corruption")
	}
}

func TestReadLoopSkipsMalformedLines(t *testing.T) {
	input := []byte("{\"type\":\"STATUS\"}\nnot json at all\n{\"type\":\"TICK\"}\n")

	stream := &scriptedStream{chunks: [][]byte{input}}
	manager := NewManager(testConfig(), &stubDialer{stream: stream})
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	var lines []string
	err := manager.ReadLoop(context.Background(), wire.NewTextDecoder(1<<20), func(frame wire.Frame) {
		lines = append(lines, string(frame.Payload))
	})
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("err = %v, want ErrStreamClosed", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %v, want the two valid json lines", lines)
	}
	if lines[0] != `{"type":"STATUS"}` || lines[1] != `{"type":"TICK"}` {
		t.Fatalf("lines = %v", lines)
	}
}

func TestDisconnectStopsReadLoopCleanly(t *testing.T) {
	stream := &scriptedStream{chunks: [][]byte{wire.EncodeBinary(102, []byte("x"))}}
	manager := NewManager(testConfig(), &stubDialer{stream: stream})
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := manager.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	err := manager.ReadLoop(context.Background(), wire.NewBinaryDecoder(1<<20), func(wire.Frame) {})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if manager.State() != StateDisconnected {
		t.Fatalf("state = %s", manager.State())
	}
}
