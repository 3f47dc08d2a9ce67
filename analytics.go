package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event types recorded in analytics_events
const (
	EvtConnect    = "connect"
	EvtDisconnect = "disconnect"
	EvtHit        = "hit"
	EvtKill       = "kill"
	EvtDeath      = "death"
	EvtSuperFired = "super_fired"
	EvtRespawn    = "respawn"
)

const (
	analyticsQueueSize  = 1024
	analyticsBatchSize  = 50
	analyticsFlushEvery = 5 * time.Second
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	PlayerID  int   // in-game id
	AccountID int64 // 0 for guests
	ConnID    string
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// NewEvent builds an event stamped with the current time
func NewEvent(evtType string, playerID int, accountID int64, connID string, data map[string]any) AnalyticsEvent {
	evt := AnalyticsEvent{
		Type:      evtType,
		PlayerID:  playerID,
		AccountID: accountID,
		ConnID:    connID,
		Timestamp: time.Now().UTC(),
	}
	if len(data) > 0 {
		if b, err := json.Marshal(data); err == nil {
			evt.Data = string(b)
		}
	}
	return evt
}

// Analytics persists events with batched background writes
type Analytics struct {
	db     *DB
	events chan AnalyticsEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewAnalytics creates and starts the background writer
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:     db,
		events: make(chan AnalyticsEvent, analyticsQueueSize),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event; it never blocks the caller, which may be holding
// the world lock.
func (a *Analytics) Track(evt AnalyticsEvent) {
	if a == nil {
		return
	}
	select {
	case a.events <- evt:
	default:
		// queue full, drop
	}
}

// Stop flushes pending events and shuts the writer down
func (a *Analytics) Stop() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		close(a.stop)
		a.wg.Wait()
	})
}

func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, analyticsBatchSize)
	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					a.flush(batch)
					return
				}
			}
		}
	}
}

func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		log.Printf("analytics: begin tx: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, player_id, account_id, conn_id, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("analytics: prepare: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		acct := sql.NullInt64{Int64: evt.AccountID, Valid: evt.AccountID > 0}
		conn := sql.NullString{String: evt.ConnID, Valid: evt.ConnID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, evt.PlayerID, acct, conn, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			log.Printf("analytics: insert: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("analytics: commit: %v", err)
	}
}

// EventCounts returns counts of each event type recorded since the given time
func (a *Analytics) EventCounts(since time.Time) (map[string]int, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= ?
		GROUP BY event_type`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			return nil, err
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// ActiveAccounts returns the number of distinct accounts that connected
// since the given time
func (a *Analytics) ActiveAccounts(since time.Time) (int, error) {
	if a == nil || a.db == nil {
		return 0, nil
	}
	var count int
	err := a.db.conn.QueryRow(`
		SELECT COUNT(DISTINCT account_id) FROM analytics_events
		WHERE account_id IS NOT NULL AND created_at >= ?`,
		since.UTC().Format(time.RFC3339)).Scan(&count)
	return count, err
}
