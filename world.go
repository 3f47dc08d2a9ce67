package main

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// ErrUnknownPlayer is returned when a player id is not in the world
var ErrUnknownPlayer = errors.New("unknown player")

// EventSink receives combat events. Track must not block.
type EventSink interface {
	Track(evt AnalyticsEvent)
}

// World is the single source of truth for every connected player.
//
// One mutex guards the whole store. Sessions hold it only for the in-memory
// part of a cycle and never across network I/O; snapshots are deep copies
// so they can be encoded after the lock is released.
type World struct {
	mu      deadlock.Mutex
	players map[int]*Player
	dead    map[int]time.Time // player id -> time of death, until respawn
	nextID  int
	arena   *Arena
	events  EventSink

	now func() time.Time
}

// NewWorld creates an empty world. events may be nil.
func NewWorld(arena *Arena, events EventSink) *World {
	return &World{
		players: make(map[int]*Player),
		dead:    make(map[int]time.Time),
		arena:   arena,
		events:  events,
		now:     time.Now,
	}
}

// AddPlayer allocates the next id, places a new player at a safe spawn and
// returns its initial state. Ids are never reused.
func (w *World) AddPlayer(connID string) (PlayerState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	x, y, err := w.arena.SafeSpawn()
	if err != nil {
		return PlayerState{}, err
	}
	id := w.nextID
	w.nextID++
	p := NewPlayer(id, x, y, randomColor(), w.now())
	p.ConnID = connID
	w.players[id] = p
	return p.ToState(), nil
}

// Mutate runs fn on the player's record under the world lock. It returns
// false if the player is gone.
func (w *World) Mutate(id int, fn func(p *Player)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// RemovePlayer deletes the player and any pending respawn in one step and
// returns the final record.
func (w *World) RemovePlayer(id int) (Player, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return Player{}, false
	}
	delete(w.players, id)
	delete(w.dead, id)
	return *p, true
}

// Snapshot returns a copy of every player's state
func (w *World) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// PlayerCount returns the number of players
func (w *World) PlayerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.players)
}

// DeadCount returns the number of players waiting to respawn
func (w *World) DeadCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dead)
}

// Apply runs one update cycle for player id: take the report if alive,
// resolve combat against everyone else, heal, then check respawn. It
// returns the snapshot to send back.
func (w *World) Apply(id int, u ClientUpdate) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[id]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	now := w.now()
	dt := now.Sub(p.lastCycle).Seconds()
	p.lastCycle = now

	if p.Alive {
		p.ApplyReport(u)
		res := ResolveCombat(p, w.othersLocked(id), now)
		w.recordCombat(p, res, now)
		Regenerate(p, now, dt)
	}
	w.checkRespawn(p, now)

	return w.snapshotLocked(), nil
}

// othersLocked returns every other player ordered by id so hit order does
// not depend on map iteration.
func (w *World) othersLocked(id int) []*Player {
	others := make([]*Player, 0, len(w.players))
	for oid, o := range w.players {
		if oid != id {
			others = append(others, o)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i].ID < others[j].ID })
	return others
}

func (w *World) recordCombat(shooter *Player, res CombatResult, now time.Time) {
	for i := 0; i < res.SupersFired; i++ {
		w.track(EvtSuperFired, shooter, nil)
	}
	for _, h := range res.Hits {
		w.track(EvtHit, shooter, map[string]any{"victim": h.VictimID, "damage": h.Damage, "super": h.Super})
	}
	for _, id := range res.Kills() {
		w.dead[id] = now
		log.Printf("player %d killed player %d", shooter.ID, id)
		w.track(EvtKill, shooter, map[string]any{"victim": id})
		w.track(EvtDeath, w.players[id], map[string]any{"killer": shooter.ID})
	}
}

// checkRespawn revives p once it has been dead longer than RespawnDelay.
// If no spawn point can be found it stays dead and is retried next cycle.
func (w *World) checkRespawn(p *Player, now time.Time) {
	if p.Alive {
		return
	}
	diedAt, ok := w.dead[p.ID]
	if !ok || now.Sub(diedAt).Seconds() <= RespawnDelay {
		return
	}
	x, y, err := w.arena.SafeSpawn()
	if err != nil {
		log.Printf("respawn player %d: %v", p.ID, err)
		return
	}
	p.Respawn(x, y, now)
	delete(w.dead, p.ID)
	w.track(EvtRespawn, p, nil)
}

func (w *World) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(w.players))
	for id, p := range w.players {
		snap[id] = p.ToState()
	}
	return snap
}

func (w *World) track(evtType string, p *Player, data map[string]any) {
	if w.events == nil || p == nil {
		return
	}
	w.events.Track(NewEvent(evtType, p.ID, p.AccountID, p.ConnID, data))
}
