package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const (
	WorldWidth  = 1920.0
	WorldHeight = 1080.0

	SpawnInset       = 100.0 // spawn points stay this far from the world edge
	SpawnBuffer      = 5.0   // clearance between a spawned player and any wall
	maxSpawnAttempts = 10000
	validateStep     = 5.0
)

// ErrNoSpawn is returned when no collision-free spawn point could be found
var ErrNoSpawn = errors.New("no free spawn point in arena")

// Wall is a static axis-aligned obstacle
type Wall struct {
	X, Y, W, H float64
}

// Arena holds the static obstacle geometry and picks spawn points against it.
// It is immutable after construction and safe for concurrent use.
type Arena struct {
	Walls                  []Wall
	MinX, MaxX, MinY, MaxY float64 // spawn rectangle
	Clearance              float64 // player radius + buffer

	// rnd returns a uniform value in [0,1); tests replace it
	rnd func() float64
}

// DefaultArena returns the knockout map: six cover blocks around the centre
// of a 1920x1080 world.
func DefaultArena() *Arena {
	const cx, cy = WorldWidth / 2, WorldHeight / 2
	return NewArena([]Wall{
		{X: cx - 300, Y: cy - 250, W: 120, H: 150},
		{X: cx + 180, Y: cy - 250, W: 120, H: 150},
		{X: cx - 300, Y: cy + 100, W: 120, H: 150},
		{X: cx + 180, Y: cy + 100, W: 120, H: 150},
		{X: cx - 80, Y: cy - 120, W: 160, H: 80},
		{X: cx - 80, Y: cy + 40, W: 160, H: 80},
	})
}

// NewArena creates an arena with the standard spawn rectangle
func NewArena(walls []Wall) *Arena {
	return &Arena{
		Walls:     walls,
		MinX:      SpawnInset,
		MaxX:      WorldWidth - SpawnInset,
		MinY:      SpawnInset,
		MaxY:      WorldHeight - SpawnInset,
		Clearance: PlayerRadius + SpawnBuffer,
		rnd:       rand.Float64,
	}
}

// IsClear reports whether a player centred at (x,y) keeps the required
// clearance from every wall.
func (a *Arena) IsClear(x, y float64) bool {
	for _, w := range a.Walls {
		if CircleHitsRect(x, y, a.Clearance, w) {
			return false
		}
	}
	return true
}

// SafeSpawn samples uniform points in the spawn rectangle and returns the
// first one clear of all walls.
func (a *Arena) SafeSpawn() (float64, float64, error) {
	for i := 0; i < maxSpawnAttempts; i++ {
		x := a.MinX + a.rnd()*(a.MaxX-a.MinX)
		y := a.MinY + a.rnd()*(a.MaxY-a.MinY)
		if a.IsClear(x, y) {
			return x, y, nil
		}
	}
	return 0, 0, ErrNoSpawn
}

// Validate scans the spawn rectangle on a coarse grid and fails if no point
// is clear. Called once at startup so a broken map fails fast.
func (a *Arena) Validate() error {
	if a.MaxX < a.MinX || a.MaxY < a.MinY {
		return fmt.Errorf("invalid spawn rectangle [%.0f,%.0f]x[%.0f,%.0f]", a.MinX, a.MaxX, a.MinY, a.MaxY)
	}
	for y := a.MinY; y <= a.MaxY; y += validateStep {
		for x := a.MinX; x <= a.MaxX; x += validateStep {
			if a.IsClear(x, y) {
				return nil
			}
		}
	}
	return ErrNoSpawn
}
