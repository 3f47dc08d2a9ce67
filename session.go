package main

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const maxMessagesPerSec = 240

var errRateLimited = errors.New("message rate limit exceeded")

// SessionState is the lifecycle of one connection
type SessionState int

const (
	StateConnecting SessionState = iota
	StateActive
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Session owns the receive/resolve/respond cycle for one client. It runs on
// its own goroutine and touches shared state only through the World.
type Session struct {
	hub       *Hub
	tr        Transport
	connID    string
	playerID  int
	accountID int64
	state     atomic.Int32 // SessionState, read from other goroutines
	startedAt time.Time

	msgCount   int
	msgResetAt time.Time
	badToken   string // last rejected token, not re-checked every cycle
}

// NewSession creates a session for an accepted transport. accountID is
// non-zero when the client authenticated during the handshake.
func NewSession(hub *Hub, tr Transport, accountID int64) *Session {
	return &Session{
		hub:       hub,
		tr:        tr,
		connID:    uuid.NewString(),
		playerID:  -1,
		accountID: accountID,
	}
}

// State returns the current lifecycle state. Safe to call while Run is
// active on another goroutine.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(st SessionState) {
	s.state.Store(int32(st))
}

// Run blocks until the connection ends. The player record is always removed
// before Run returns.
func (s *Session) Run() {
	err := s.activate()
	if err == nil {
		err = s.loop()
	}
	s.terminate(err)
}

// activate spawns the player and sends it its own record
func (s *Session) activate() error {
	state, err := s.hub.world.AddPlayer(s.connID)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	s.playerID = state.ID
	s.startedAt = time.Now()
	if s.accountID != 0 {
		s.bindAccount(s.accountID)
	}
	s.setState(StateActive)
	log.Printf("player %d connected from %s", s.playerID, s.tr.RemoteAddr())
	s.hub.track(EvtConnect, s.playerID, s.accountID, s.connID, nil)
	return s.tr.Send(state)
}

func (s *Session) loop() error {
	for {
		u, err := s.tr.Recv()
		if err != nil {
			return err
		}
		if !s.allow(time.Now()) {
			return errRateLimited
		}
		if u.Token != "" && s.accountID == 0 && u.Token != s.badToken {
			s.linkToken(u.Token)
		}
		snap, err := s.hub.world.Apply(s.playerID, u)
		if err != nil {
			return err
		}
		if err := s.tr.Send(snap); err != nil {
			return err
		}
	}
}

func (s *Session) allow(now time.Time) bool {
	if now.After(s.msgResetAt) {
		s.msgCount = 0
		s.msgResetAt = now.Add(time.Second)
	}
	s.msgCount++
	return s.msgCount <= maxMessagesPerSec
}

// linkToken binds the connection to the token's account. Invalid tokens
// are ignored and the player stays a guest.
func (s *Session) linkToken(token string) {
	if s.hub.auth == nil {
		return
	}
	id, username, err := s.hub.auth.ValidateToken(token)
	if err != nil {
		s.badToken = token
		log.Printf("player %d: %v", s.playerID, err)
		return
	}
	s.bindAccount(id)
	log.Printf("player %d linked to account %q", s.playerID, username)
}

func (s *Session) bindAccount(accountID int64) {
	s.accountID = accountID
	s.hub.world.Mutate(s.playerID, func(p *Player) { p.AccountID = accountID })
}

// terminate removes the player and its pending respawn, flushes stats and
// closes the connection.
func (s *Session) terminate(cause error) {
	s.setState(StateTerminated)
	s.tr.Close()
	if s.playerID < 0 {
		log.Printf("connection from %s refused: %v", s.tr.RemoteAddr(), cause)
		return
	}

	final, ok := s.hub.world.RemovePlayer(s.playerID)
	played := time.Since(s.startedAt)
	reason := "disconnected"
	if cause != nil && !isDisconnect(cause) {
		reason = cause.Error()
	}
	log.Printf("player %d left after %s: %s", s.playerID, humanize.RelTime(s.startedAt, time.Now(), "", ""), reason)
	s.hub.track(EvtDisconnect, s.playerID, s.accountID, s.connID, map[string]any{
		"reason":  reason,
		"seconds": played.Seconds(),
	})
	if ok && s.accountID != 0 {
		s.hub.flushStats(s.accountID, final.Stats, played)
	}
}
