package main

import (
	"bufio"
	"net"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// tcpTransport streams msgpack values back-to-back over a raw connection
type tcpTransport struct {
	conn net.Conn
	dec  *streamDecoder
	w    *bufio.Writer
	enc  *msgpack.Encoder
	idle time.Duration
}

// NewTCPTransport wraps an accepted connection. idle > 0 sets a read
// deadline before every receive.
func NewTCPTransport(conn net.Conn, idle time.Duration) Transport {
	w := bufio.NewWriter(conn)
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return &tcpTransport{
		conn: conn,
		dec:  newStreamDecoder(conn),
		w:    w,
		enc:  enc,
		idle: idle,
	}
}

func (t *tcpTransport) Recv() (ClientUpdate, error) {
	if t.idle > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.idle))
	}
	return t.dec.Next()
}

func (t *tcpTransport) Send(v any) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.enc.Encode(v); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
