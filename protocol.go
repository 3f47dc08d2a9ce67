package main

// ClientUpdate is one validated client report
type ClientUpdate struct {
	X, Y        float64
	Angle       float64
	Projectiles []Projectile
	Token       string // optional account token, links the connection once
}

// updateMsg is the wire form of a client report. Position is a pointer so a
// missing field can be told apart from zero.
type updateMsg struct {
	X           *float64       `msgpack:"x"`
	Y           *float64       `msgpack:"y"`
	Angle       float64        `msgpack:"angle"`
	Projectiles projectileList `msgpack:"projectiles"`
	Token       string         `msgpack:"token"`
}

// PlayerState is one player as broadcast to clients
type PlayerState struct {
	X              float64      `msgpack:"x" json:"x"`
	Y              float64      `msgpack:"y" json:"y"`
	Color          [3]int       `msgpack:"color" json:"color"`
	Alive          bool         `msgpack:"alive" json:"alive"`
	Health         float64      `msgpack:"health" json:"health"`
	ID             int          `msgpack:"id" json:"id"`
	Angle          float64      `msgpack:"angle" json:"angle"`
	SuperCharge    float64      `msgpack:"super_charge" json:"super_charge"`
	LastDamageTime float64      `msgpack:"last_damage_time" json:"last_damage_time"` // unix seconds
	Projectiles    []Projectile `msgpack:"projectiles" json:"projectiles"`
}

// Snapshot is the full world state keyed by player id. Sent after every
// cycle; the first message on a connection is the bare PlayerState instead.
type Snapshot map[int]PlayerState

// AuthRequest is the body of /api/register and /api/login
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthOKMsg is returned on successful register/login
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"player_id"`
}

// ProfileDataMsg is the response to /api/profile
type ProfileDataMsg struct {
	Username     string   `json:"username"`
	Level        int      `json:"level"`
	XP           int      `json:"xp"`
	Kills        int      `json:"kills"`
	Deaths       int      `json:"deaths"`
	Hits         int      `json:"hits"`
	Damage       float64  `json:"damage"`
	Supers       int      `json:"supers"`
	Playtime     float64  `json:"playtime"`
	Achievements []string `json:"achievements"`
}

// StatusMsg is the response to /api/status
type StatusMsg struct {
	Players        int            `json:"players"`
	Dead           int            `json:"dead"`
	Connections    int            `json:"connections"`
	Uptime         string         `json:"uptime"`
	StartedAt      string         `json:"started_at"`
	Events24h      map[string]int `json:"events_24h,omitempty"`
	ActiveAccounts int            `json:"active_accounts_24h,omitempty"`
}

// ErrorMsg is the body of every API error
type ErrorMsg struct {
	Msg string `json:"msg"`
}
