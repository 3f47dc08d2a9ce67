package main

import (
	"math"
	"time"
)

const (
	RegenGrace = 2.0 // seconds after damage with no healing
	RegenBase  = 2.5 // health/s right after the grace window
	RegenAccel = 5.0 // quadratic ramp coefficient

	// The ramp is unbounded in principle; past this many seconds out of
	// combat any player heals to full in one cycle anyway.
	maxRegenRamp = 3600.0
)

// RegenRate returns the healing speed in health/s for a player who was last
// damaged sinceDamage seconds ago. Zero inside the grace window.
func RegenRate(sinceDamage float64) float64 {
	if sinceDamage <= RegenGrace {
		return 0
	}
	over := math.Min(sinceDamage-RegenGrace, maxRegenRamp)
	return RegenBase + over*over*RegenAccel
}

// Regenerate heals p for a cycle that lasted dt seconds and returns the
// amount healed.
func Regenerate(p *Player, now time.Time, dt float64) float64 {
	if !p.Alive || p.Health >= MaxHealth || dt <= 0 {
		return 0
	}
	rate := RegenRate(now.Sub(p.LastDamage).Seconds())
	if rate == 0 {
		return 0
	}
	before := p.Health
	p.Health = math.Min(MaxHealth, p.Health+rate*dt)
	return p.Health - before
}
