package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsTransport carries one msgpack message per binary WebSocket frame
type wsTransport struct {
	conn *websocket.Conn
	idle time.Duration

	writeMu sync.Mutex // Send and the ping loop both write
	done    chan struct{}
	once    sync.Once
}

// NewWSTransport wraps an upgraded connection. With idle > 0 the client must
// send something (a report or a pong) at least that often.
func NewWSTransport(conn *websocket.Conn, idle time.Duration) Transport {
	t := &wsTransport{
		conn: conn,
		idle: idle,
		done: make(chan struct{}),
	}
	conn.SetReadLimit(maxMessageSize)
	if idle > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(idle))
		})
		go t.pingLoop(min(pingPeriod, idle*9/10))
	}
	return t
}

func (t *wsTransport) pingLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.writeMu.Lock()
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) Recv() (ClientUpdate, error) {
	if t.idle > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.idle))
	}
	msgType, data, err := t.conn.ReadMessage()
	if err != nil {
		return ClientUpdate{}, err
	}
	if msgType != websocket.BinaryMessage {
		return ClientUpdate{}, fmt.Errorf("%w: expected binary frame", ErrMalformedUpdate)
	}
	return DecodeUpdate(data)
}

func (t *wsTransport) Send(v any) error {
	data, err := EncodeMessage(v)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (t *wsTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
