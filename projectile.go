package main

// Projectile is one entry of a client's reported projectile list. The
// client owns its trajectory; the server only tests it for hits.
type Projectile struct {
	X       float64 `msgpack:"x" json:"x"`
	Y       float64 `msgpack:"y" json:"y"`
	VelX    float64 `msgpack:"vel_x" json:"vel_x"`
	VelY    float64 `msgpack:"vel_y" json:"vel_y"`
	ID      float64 `msgpack:"id" json:"id"`
	IsSuper bool    `msgpack:"is_super" json:"is_super"`
}

func (p Projectile) valid() bool {
	return finite(p.X, p.Y, p.VelX, p.VelY, p.ID)
}

// Weapon returns the definition governing this projectile
func (p Projectile) Weapon() WeaponDef {
	return GetWeaponDef(p.IsSuper)
}

func copyProjectiles(src []Projectile) []Projectile {
	out := make([]Projectile, len(src))
	copy(out, src)
	return out
}
