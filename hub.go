package main

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Hub wires connections to the world and tracks them for admission control
// and shutdown.
type Hub struct {
	cfg       Config
	world     *World
	db        *DB
	auth      *Auth
	analytics *Analytics
	startedAt time.Time

	// Connection limiting (accessed from the TCP accept loop and HTTP handlers)
	connMu     deadlock.Mutex
	ipConns    map[string]int
	totalConns int

	liveMu  deadlock.Mutex
	live    map[Transport]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewHub creates a Hub. db, auth and analytics may be nil.
func NewHub(cfg Config, world *World, db *DB, auth *Auth, analytics *Analytics) *Hub {
	return &Hub{
		cfg:       cfg,
		world:     world,
		db:        db,
		auth:      auth,
		analytics: analytics,
		startedAt: time.Now(),
		ipConns:   make(map[string]int),
		live:      make(map[Transport]struct{}),
	}
}

// Admit reserves a connection slot for ip, returning false when either the
// per-IP or the total cap is reached. Every successful Admit must be paired
// with Release.
func (h *Hub) Admit(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.cfg.MaxConns > 0 && h.totalConns >= h.cfg.MaxConns {
		return false
	}
	if h.cfg.MaxConnsPerIP > 0 && h.ipConns[ip] >= h.cfg.MaxConnsPerIP {
		return false
	}
	h.ipConns[ip]++
	h.totalConns++
	return true
}

// Release frees a slot taken by Admit
func (h *Hub) Release(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}

// Go starts a session for tr on its own goroutine. The caller must already
// hold an Admit slot for ip; it is released when the session ends. Once
// CloseAll has started, tr is closed and no session is started.
func (h *Hub) Go(tr Transport, ip string, accountID int64) bool {
	h.liveMu.Lock()
	if h.closing {
		h.liveMu.Unlock()
		tr.Close()
		h.Release(ip)
		return false
	}
	h.live[tr] = struct{}{}
	h.wg.Add(1)
	h.liveMu.Unlock()

	go h.serve(tr, ip, accountID)
	return true
}

func (h *Hub) serve(tr Transport, ip string, accountID int64) {
	defer h.wg.Done()
	defer h.Release(ip)
	defer func() {
		h.liveMu.Lock()
		delete(h.live, tr)
		h.liveMu.Unlock()
	}()

	NewSession(h, tr, accountID).Run()
}

// ServeTCP accepts raw TCP clients until ln is closed. Each client gets its
// own goroutine.
func (h *Hub) ServeTCP(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("tcp: accept: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ip := hostOf(conn.RemoteAddr().String())
		if !h.Admit(ip) {
			log.Printf("tcp: too many connections, refusing %s", conn.RemoteAddr())
			conn.Close()
			continue
		}
		h.Go(NewTCPTransport(conn, h.cfg.IdleTimeout), ip, 0)
	}
}

// CloseAll closes every live transport and waits for their sessions to
// finish cleaning up. Sessions handed to Go afterwards are refused.
func (h *Hub) CloseAll() {
	h.liveMu.Lock()
	h.closing = true
	for tr := range h.live {
		tr.Close()
	}
	h.liveMu.Unlock()
	h.wg.Wait()
}

func (h *Hub) track(evtType string, playerID int, accountID int64, connID string, data map[string]any) {
	if h.analytics == nil {
		return
	}
	h.analytics.Track(NewEvent(evtType, playerID, accountID, connID, data))
}

// flushStats adds a finished session to the account's lifetime stats
func (h *Hub) flushStats(accountID int64, st CombatStats, played time.Duration) {
	if h.db == nil {
		return
	}
	stats, err := h.db.AddSessionStats(accountID, st, played)
	if err != nil {
		log.Printf("stats: account %d: %v", accountID, err)
		return
	}
	for _, a := range CheckAchievements(h.db, accountID, stats, st) {
		log.Printf("account %d unlocked %q", accountID, a.Name)
	}
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
