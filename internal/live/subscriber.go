package live

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	outboxSize   = 16
	pingInterval = 30 * time.Second
)

type subscriber struct {
	conn   *ws.Conn
	outbox chan []byte
}

func newSubscriber(conn *ws.Conn) *subscriber {
	return &subscriber{conn: conn, outbox: make(chan []byte, outboxSize)}
}

// serve blocks until the peer goes away or ctx ends.
func (s *subscriber) serve(ctx context.Context, hub *Hub) {
	hub.add(s)
	defer hub.remove(s)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.writeLoop(ctx)
	s.drainReads(ctx)
}

// drainReads discards anything the browser sends. The feed is one-way.
func (s *subscriber) drainReads(ctx context.Context) {
	for {
		if _, _, err := s.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (s *subscriber) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.outbox:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := s.conn.Write(writeCtx, ws.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
