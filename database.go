package main

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

const maxLevel = 100

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// AccountRow represents a registered account
type AccountRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// StatsRow holds lifetime combat stats for an account
type StatsRow struct {
	AccountID int64
	Kills     int
	Deaths    int
	Hits      int
	Damage    float64
	Supers    int
	Pierces   int
	Sessions  int
	Playtime  float64 // seconds
	XP        int
	Level     int
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Level    int    `json:"level"`
	XP       int    `json:"xp"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer at a time; sessions flush concurrently on disconnect
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats (
		account_id INTEGER PRIMARY KEY REFERENCES accounts(id),
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		hits INTEGER NOT NULL DEFAULT 0,
		damage REAL NOT NULL DEFAULT 0,
		supers INTEGER NOT NULL DEFAULT 0,
		pierces INTEGER NOT NULL DEFAULT 0,
		sessions INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS achievements (
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		achievement_id TEXT NOT NULL,
		unlocked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account_id, achievement_id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id INTEGER NOT NULL,
		account_id INTEGER,
		conn_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_created ON analytics_events(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateAccount creates an account and its stats row, returning the id
func (db *DB) CreateAccount(username, passHash string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO accounts (username, pass_hash) VALUES (?, ?)", username, passHash)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("INSERT INTO stats (account_id) VALUES (?)", id); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// GetAccountByUsername returns nil, nil if no such account exists
func (db *DB) GetAccountByUsername(username string) (*AccountRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM accounts WHERE username = ?",
		username,
	)
	a := &AccountRow{}
	err := row.Scan(&a.ID, &a.Username, &a.PassHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM accounts WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetStats returns nil, nil for an unknown account
func (db *DB) GetStats(accountID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(`
		SELECT account_id, kills, deaths, hits, damage, supers, pierces, sessions, playtime, xp, level
		FROM stats WHERE account_id = ?`,
		accountID,
	)
	s := &StatsRow{}
	err := row.Scan(&s.AccountID, &s.Kills, &s.Deaths, &s.Hits, &s.Damage, &s.Supers, &s.Pierces,
		&s.Sessions, &s.Playtime, &s.XP, &s.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// SessionXP is the experience earned by one connection's worth of combat
func SessionXP(st CombatStats, playtime time.Duration) int {
	return st.Kills*50 + st.Hits*5 + st.Pierces*25 + int(playtime.Minutes())*2
}

// XPForLevel returns the total XP needed to reach level. Each step from
// level i to i+1 costs 100 * i^1.5.
func XPForLevel(level int) int {
	total := 0.0
	for i := 1; i < level; i++ {
		total += 100 * math.Pow(float64(i), 1.5)
	}
	return int(total)
}

// CalculateLevel returns the level reached with totalXP, capped at maxLevel
func CalculateLevel(totalXP int) int {
	level := 1
	for level < maxLevel && totalXP >= XPForLevel(level+1) {
		level++
	}
	return level
}

// AddSessionStats folds one connection's counters into the account's
// lifetime stats and returns the updated row.
func (db *DB) AddSessionStats(accountID int64, st CombatStats, playtime time.Duration) (*StatsRow, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE stats SET
			kills = kills + ?,
			deaths = deaths + ?,
			hits = hits + ?,
			damage = damage + ?,
			supers = supers + ?,
			pierces = pierces + ?,
			sessions = sessions + 1,
			playtime = playtime + ?,
			xp = xp + ?
		WHERE account_id = ?`,
		st.Kills, st.Deaths, st.Hits, st.DamageDealt, st.SupersFired, st.Pierces,
		playtime.Seconds(), SessionXP(st, playtime), accountID,
	)
	if err != nil {
		return nil, err
	}

	var totalXP int
	if err := tx.QueryRow("SELECT xp FROM stats WHERE account_id = ?", accountID).Scan(&totalXP); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("UPDATE stats SET level = ? WHERE account_id = ?", CalculateLevel(totalXP), accountID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetStats(accountID)
}

// GetLeaderboard returns top accounts sorted by the given field
func (db *DB) GetLeaderboard(orderBy string, limit int) ([]LeaderboardEntry, error) {
	validCols := map[string]string{
		"kills":  "s.kills",
		"deaths": "s.deaths",
		"level":  "s.level",
		"xp":     "s.xp",
		"kd":     "CASE WHEN s.deaths > 0 THEN CAST(s.kills AS REAL)/s.deaths ELSE s.kills END",
	}
	col, ok := validCols[orderBy]
	if !ok {
		col = "s.xp"
	}

	rows, err := db.conn.Query(`SELECT a.username, s.level, s.xp, s.kills, s.deaths
		FROM stats s JOIN accounts a ON a.id = s.account_id
		ORDER BY `+col+` DESC, a.id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []LeaderboardEntry{}
	for rows.Next() {
		e := LeaderboardEntry{Rank: len(result) + 1}
		if err := rows.Scan(&e.Username, &e.Level, &e.XP, &e.Kills, &e.Deaths); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetSetting returns "" when the key is unset
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting upserts a key
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// GetAchievements returns the ids unlocked by an account
func (db *DB) GetAchievements(accountID int64) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT achievement_id FROM achievements WHERE account_id = ? ORDER BY unlocked_at, achievement_id",
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnlockAchievement returns true if the achievement was not already unlocked
func (db *DB) UnlockAchievement(accountID int64, achievementID string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT OR IGNORE INTO achievements (account_id, achievement_id) VALUES (?, ?)",
		accountID, achievementID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
