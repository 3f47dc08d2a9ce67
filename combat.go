package main

import "time"

// Hit records one projectile landing on one victim
type Hit struct {
	VictimID int
	Damage   float64
	Super    bool
	Killed   bool
}

// CombatResult summarises one resolver run
type CombatResult struct {
	Hits        []Hit
	SupersFired int // super projectiles seen for the first time this cycle
}

// Kills returns the ids of victims killed this cycle, in hit order
func (r CombatResult) Kills() []int {
	var ids []int
	for _, h := range r.Hits {
		if h.Killed {
			ids = append(ids, h.VictimID)
		}
	}
	return ids
}

// ResolveCombat tests each of the shooter's reported projectiles, in report
// order, against every other alive player.
//
// A regular shot damages at most one victim, is removed from the shooter's
// list when it hits, and charges the shooter's super meter. A super shot
// damages every target in range and is never removed here; its presence in
// the report zeroes the shooter's meter whether or not it hits.
//
// This is the only code path that writes another player's record. Callers
// must hold the world lock.
func ResolveCombat(shooter *Player, others []*Player, now time.Time) CombatResult {
	var res CombatResult
	kept := make([]Projectile, 0, len(shooter.Projectiles))
	seen := make(map[float64]struct{})

	for _, proj := range shooter.Projectiles {
		w := proj.Weapon()
		if proj.IsSuper {
			shooter.SuperCharge = 0
			seen[proj.ID] = struct{}{}
			if _, ok := shooter.seenSupers[proj.ID]; !ok {
				res.SupersFired++
				shooter.Stats.SupersFired++
			}
		}

		consumed := false
		victims := 0
		for _, o := range others {
			if o.ID == shooter.ID || !o.Alive {
				continue
			}
			if !WithinRadius(proj.X, proj.Y, w.HitRadius, o.X, o.Y) {
				continue
			}
			died := o.TakeDamage(w.Damage, now)
			res.Hits = append(res.Hits, Hit{VictimID: o.ID, Damage: w.Damage, Super: proj.IsSuper, Killed: died})
			victims++
			shooter.Stats.Hits++
			shooter.Stats.DamageDealt += w.Damage
			if died {
				shooter.Stats.Kills++
			}
			shooter.AddCharge(w.ChargePerHit)
			if !w.Pierces {
				consumed = true
				break
			}
		}
		if proj.IsSuper && victims >= 2 {
			shooter.Stats.Pierces++
		}
		if !consumed {
			kept = append(kept, proj)
		}
	}

	shooter.Projectiles = kept
	shooter.seenSupers = seen
	return res
}
