package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	readBufferSize         = 8192
	maxMessageSize         = 64 * 1024
	maxReportedProjectiles = 64
)

var (
	ErrMalformedUpdate = errors.New("malformed update")
	ErrEmptyPayload    = errors.New("empty payload")
	ErrMessageTooLarge = errors.New("message too large")
)

// DecodeUpdate decodes and validates one msgpack-encoded client report
func DecodeUpdate(data []byte) (ClientUpdate, error) {
	if len(data) == 0 {
		return ClientUpdate{}, ErrEmptyPayload
	}
	var msg updateMsg
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return ClientUpdate{}, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	return msg.validate()
}

// EncodeMessage encodes a PlayerState or Snapshot
func EncodeMessage(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// projectileList decodes a reported projectile array without trusting the
// length in its header: entries past maxReportedProjectiles are skipped,
// and a length no message of maxMessageSize could hold is rejected before
// anything is allocated.
type projectileList []Projectile

func (l *projectileList) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n <= 0 {
		*l = nil
		return nil
	}
	if n > maxMessageSize {
		return fmt.Errorf("%w: projectile array of %d entries", ErrMalformedUpdate, n)
	}
	out := make([]Projectile, min(n, maxReportedProjectiles))
	for i := range out {
		if err := dec.Decode(&out[i]); err != nil {
			return err
		}
	}
	for i := len(out); i < n; i++ {
		if err := dec.Skip(); err != nil {
			return err
		}
	}
	*l = out
	return nil
}

// validate rejects reports without a position or with non-finite numbers.
// Missing angle defaults to 0 and missing projectiles to none.
func (m updateMsg) validate() (ClientUpdate, error) {
	if m.X == nil || m.Y == nil {
		return ClientUpdate{}, fmt.Errorf("%w: missing position", ErrMalformedUpdate)
	}
	if !finite(*m.X, *m.Y, m.Angle) {
		return ClientUpdate{}, fmt.Errorf("%w: non-finite position or angle", ErrMalformedUpdate)
	}
	projs := []Projectile(m.Projectiles)
	for i, p := range projs {
		if !p.valid() {
			return ClientUpdate{}, fmt.Errorf("%w: projectile %d is non-finite", ErrMalformedUpdate, i)
		}
	}
	if projs == nil {
		projs = []Projectile{}
	}
	return ClientUpdate{X: *m.X, Y: *m.Y, Angle: m.Angle, Projectiles: projs, Token: m.Token}, nil
}

// frameReader caps how many bytes one Decode may consume. It implements
// io.ByteScanner so the msgpack decoder reads through it without adding a
// buffer of its own.
type frameReader struct {
	r    *bufio.Reader
	left int
	over bool
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReaderSize(r, readBufferSize)}
}

func (f *frameReader) reset(limit int) {
	f.left = limit
	f.over = false
}

func (f *frameReader) Read(p []byte) (int, error) {
	if f.left <= 0 {
		f.over = true
		return 0, ErrMessageTooLarge
	}
	if len(p) > f.left {
		p = p[:f.left]
	}
	n, err := f.r.Read(p)
	f.left -= n
	return n, err
}

func (f *frameReader) ReadByte() (byte, error) {
	if f.left <= 0 {
		f.over = true
		return 0, ErrMessageTooLarge
	}
	b, err := f.r.ReadByte()
	if err == nil {
		f.left--
	}
	return b, err
}

func (f *frameReader) UnreadByte() error {
	if err := f.r.UnreadByte(); err != nil {
		return err
	}
	f.left++
	return nil
}

// streamDecoder reads back-to-back msgpack reports from a byte stream
type streamDecoder struct {
	frame *frameReader
	dec   *msgpack.Decoder
}

func newStreamDecoder(r io.Reader) *streamDecoder {
	fr := newFrameReader(r)
	return &streamDecoder{frame: fr, dec: msgpack.NewDecoder(fr)}
}

// Next blocks until one complete report has been read
func (s *streamDecoder) Next() (ClientUpdate, error) {
	s.frame.reset(maxMessageSize)
	var msg updateMsg
	if err := s.dec.Decode(&msg); err != nil {
		if s.frame.over {
			return ClientUpdate{}, ErrMessageTooLarge
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ClientUpdate{}, err
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) {
			return ClientUpdate{}, err
		}
		return ClientUpdate{}, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	return msg.validate()
}
