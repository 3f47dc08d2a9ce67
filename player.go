package main

import (
	"time"
)

const (
	PlayerRadius   = 25.0
	MaxHealth      = 100.0
	MaxSuperCharge = 100.0
	RespawnDelay   = 5.0 // seconds dead before respawn
)

// CombatStats are per-connection counters, flushed to the database when the
// connection ends. They never go on the wire.
type CombatStats struct {
	Kills       int
	Deaths      int
	Hits        int
	SupersFired int
	Pierces     int // super shots that damaged two or more players in one cycle
	DamageDealt float64
}

// Player is the authoritative record for one connected client.
//
// Position, angle and projectiles are written only by the owning session.
// Health, Alive, SuperCharge and LastDamage may also be written by another
// session's combat resolution.
type Player struct {
	ID          int
	X, Y        float64
	Color       [3]int
	Alive       bool
	Health      float64
	Angle       float64
	SuperCharge float64
	LastDamage  time.Time
	Projectiles []Projectile

	AccountID int64  // 0 = guest
	ConnID    string // analytics correlation id
	JoinedAt  time.Time
	Stats     CombatStats

	lastCycle  time.Time
	seenSupers map[float64]struct{}
}

// NewPlayer creates a live player with full health at the given position
func NewPlayer(id int, x, y float64, color [3]int, now time.Time) *Player {
	return &Player{
		ID:          id,
		X:           x,
		Y:           y,
		Color:       color,
		Alive:       true,
		Health:      MaxHealth,
		LastDamage:  now,
		Projectiles: []Projectile{},
		JoinedAt:    now,
		lastCycle:   now,
	}
}

// ApplyReport overwrites the client-owned fields from an update. The
// position is clamped to the world.
func (p *Player) ApplyReport(u ClientUpdate) {
	p.X = Clamp(u.X, 0, WorldWidth)
	p.Y = Clamp(u.Y, 0, WorldHeight)
	p.Angle = u.Angle
	p.Projectiles = copyProjectiles(u.Projectiles)
}

// TakeDamage reduces health and returns true if the player died
func (p *Player) TakeDamage(dmg float64, now time.Time) bool {
	if !p.Alive {
		return false
	}
	p.Health -= dmg
	p.LastDamage = now
	if p.Health <= 0 {
		p.Health = 0
		p.Alive = false
		p.Stats.Deaths++
		return true
	}
	return false
}

// AddCharge increases the super meter, capped at MaxSuperCharge
func (p *Player) AddCharge(v float64) {
	p.SuperCharge = Clamp(p.SuperCharge+v, 0, MaxSuperCharge)
}

// Respawn brings the player back at (x,y) with fresh stats
func (p *Player) Respawn(x, y float64, now time.Time) {
	p.X = x
	p.Y = y
	p.Alive = true
	p.Health = MaxHealth
	p.SuperCharge = 0
	p.LastDamage = now
}

// ToState converts to protocol state. The projectile slice is copied so the
// result can be encoded outside the world lock.
func (p *Player) ToState() PlayerState {
	return PlayerState{
		X:              p.X,
		Y:              p.Y,
		Color:          p.Color,
		Alive:          p.Alive,
		Health:         p.Health,
		ID:             p.ID,
		Angle:          p.Angle,
		SuperCharge:    p.SuperCharge,
		LastDamageTime: unixSeconds(p.LastDamage),
		Projectiles:    copyProjectiles(p.Projectiles),
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
