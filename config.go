package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings
type Config struct {
	TCPAddr       string        // raw TCP game endpoint
	HTTPAddr      string        // HTTP API + WebSocket endpoint, "" disables
	DBPath        string        // SQLite file, "" disables accounts, stats and analytics
	IdleTimeout   time.Duration // 0 = a silent client is kept forever
	MaxConnsPerIP int
	MaxConns      int
	PublicURL     string // base URL encoded in the QR join code, "" = from request
}

// DefaultConfig returns the settings used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		TCPAddr:       ":5555",
		HTTPAddr:      ":8080",
		DBPath:        "knockout.db",
		MaxConnsPerIP: 5,
		MaxConns:      1000,
	}
}

// LoadConfig builds the config from defaults, then the environment (and a
// .env file if present), then command-line flags.
func LoadConfig(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	cfg.TCPAddr = envString("KNOCKOUT_ADDR", cfg.TCPAddr)
	cfg.HTTPAddr = envString("KNOCKOUT_HTTP", cfg.HTTPAddr)
	cfg.DBPath = envString("KNOCKOUT_DB", cfg.DBPath)
	cfg.PublicURL = envString("KNOCKOUT_PUBLIC_URL", cfg.PublicURL)

	var err error
	if cfg.IdleTimeout, err = envDuration("KNOCKOUT_IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MaxConnsPerIP, err = envInt("KNOCKOUT_MAX_CONNS_PER_IP", cfg.MaxConnsPerIP); err != nil {
		return Config{}, err
	}
	if cfg.MaxConns, err = envInt("KNOCKOUT_MAX_CONNS", cfg.MaxConns); err != nil {
		return Config{}, err
	}

	flags := flag.NewFlagSet("knockout-server", flag.ContinueOnError)
	flags.StringVar(&cfg.TCPAddr, "addr", cfg.TCPAddr, "TCP game listen address")
	flags.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP/WebSocket listen address (empty disables)")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (empty disables persistence)")
	flags.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "disconnect clients silent for this long (0 = never)")
	flags.IntVar(&cfg.MaxConnsPerIP, "max-conns-per-ip", cfg.MaxConnsPerIP, "concurrent connections allowed per IP")
	flags.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "concurrent connections allowed in total")
	flags.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "base URL for the QR join code")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.TCPAddr == "" {
		return Config{}, errors.New("-addr must not be empty")
	}
	if cfg.IdleTimeout < 0 {
		return Config{}, errors.New("-idle-timeout must not be negative")
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
