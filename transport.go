package main

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Transport carries msgpack messages for one client connection. Recv and
// Send are each called from a single goroutine; Close may be called from
// any goroutine to unblock them.
type Transport interface {
	Recv() (ClientUpdate, error)
	Send(v any) error
	Close() error
	RemoteAddr() string
}

// isDisconnect reports whether err is an ordinary end of connection rather
// than something worth logging.
func isDisconnect(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrEmptyPayload) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
