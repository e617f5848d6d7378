package conn

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer abstracts how the upstream socket is opened so the JSON plugin
// feed can run over plain TCP or a websocket endpoint with the same
// manager.
type Dialer interface {
	Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error)
}

type TCPDialer struct {
	Timeout time.Duration
}

func (d TCPDialer) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	netDialer := net.Dialer{Timeout: d.Timeout}
	return netDialer.DialContext(ctx, "tcp", addr)
}

type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	wsConn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	return &websocketStream{conn: wsConn}, nil
}

// websocketStream adapts a websocket connection to the byte-stream shape
// the read loop expects. Each websocket message is one frame; a newline is
// appended when missing so the line decoder sees the usual delimiter.
type websocketStream struct {
	conn    *websocket.Conn
	pending []byte
}

func (s *websocketStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if len(message) == 0 || message[len(message)-1] != '\n' {
			message = append(message, '\n')
		}
		s.pending = message
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *websocketStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *websocketStream) Close() error {
	return s.conn.Close()
}
