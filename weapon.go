package main

// WeaponKind identifies the kind of shot
type WeaponKind int

const (
	WeaponShot  WeaponKind = 0
	WeaponSuper WeaponKind = 1
)

// WeaponDef holds the combat rules for a kind of shot
type WeaponDef struct {
	HitRadius    float64 // projectile-to-player distance that counts as a hit
	Damage       float64
	Pierces      bool    // keeps going after the first victim and is never consumed
	ChargePerHit float64 // super charge awarded to the shooter per hit
}

var Weapons = [2]WeaponDef{
	// Regular shot: one victim, consumed on hit, charges the super meter
	{HitRadius: 35, Damage: 25, Pierces: false, ChargePerHit: 25},
	// Super: one-shot damage, pierces every overlapping target
	{HitRadius: 40, Damage: 100, Pierces: true, ChargePerHit: 0},
}

// GetWeaponDef returns the definition for a regular or super shot
func GetWeaponDef(isSuper bool) WeaponDef {
	if isSuper {
		return Weapons[WeaponSuper]
	}
	return Weapons[WeaponShot]
}
