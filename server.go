package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const (
	maxAuthBodySize     = 4096
	qrSize              = 256
	defaultLeaderboard  = 20
	maxLeaderboardLimit = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  readBufferSize,
	WriteBufferSize: readBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", hub.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/status", hub.handleStatus)
	mux.HandleFunc("GET /qr.png", hub.handleQR)
	mux.HandleFunc("POST /api/register", hub.handleRegister)
	mux.HandleFunc("POST /api/login", hub.handleLogin)
	mux.HandleFunc("GET /api/profile", hub.handleProfile)
	mux.HandleFunc("GET /api/leaderboard", hub.handleLeaderboard)

	return mux
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	var accountID int64
	if token := r.URL.Query().Get("token"); token != "" && h.auth != nil {
		id, _, err := h.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		accountID = id
	}

	ip := hostOf(r.RemoteAddr)
	if !h.Admit(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Release(ip)
		log.Printf("upgrade error: %v", err)
		return
	}
	h.Go(NewWSTransport(conn, h.cfg.IdleTimeout), ip, accountID)
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := StatusMsg{
		Players:     h.world.PlayerCount(),
		Dead:        h.world.DeadCount(),
		Connections: h.TotalConns(),
		Uptime:      humanize.RelTime(h.startedAt, time.Now(), "", ""),
		StartedAt:   h.startedAt.UTC().Format(time.RFC3339),
	}
	if h.analytics != nil {
		since := time.Now().Add(-24 * time.Hour)
		counts, err := h.analytics.EventCounts(since)
		if err != nil {
			log.Printf("status: event counts: %v", err)
		}
		status.Events24h = counts
		if status.ActiveAccounts, err = h.analytics.ActiveAccounts(since); err != nil {
			log.Printf("status: active accounts: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// handleQR renders the WebSocket join URL as a QR code for phones
func (h *Hub) handleQR(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(h.joinURL(r), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not render qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func (h *Hub) joinURL(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		return strings.TrimSuffix(h.cfg.PublicURL, "/") + "/ws"
	}
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + "/ws"
}

func (h *Hub) handleRegister(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeError(w, http.StatusNotFound, "accounts are disabled")
		return
	}
	req, ok := readAuthRequest(w, r)
	if !ok {
		return
	}
	id, token, err := h.auth.Register(req.Username, req.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUsernameTaken) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, AuthOKMsg{Token: token, Username: strings.TrimSpace(req.Username), PlayerID: id})
}

func (h *Hub) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeError(w, http.StatusNotFound, "accounts are disabled")
		return
	}
	req, ok := readAuthRequest(w, r)
	if !ok {
		return
	}
	id, token, err := h.auth.Login(req.Username, req.Password, hostOf(r.RemoteAddr))
	switch {
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		log.Printf("login: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, AuthOKMsg{Token: token, Username: strings.TrimSpace(req.Username), PlayerID: id})
}

func (h *Hub) handleProfile(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || h.db == nil {
		writeError(w, http.StatusNotFound, "accounts are disabled")
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	id, username, err := h.auth.ValidateToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	stats, err := h.db.GetStats(id)
	if err != nil || stats == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	achievements, err := h.db.GetAchievements(id)
	if err != nil {
		log.Printf("profile: achievements: %v", err)
	}
	writeJSON(w, http.StatusOK, ProfileDataMsg{
		Username:     username,
		Level:        stats.Level,
		XP:           stats.XP,
		Kills:        stats.Kills,
		Deaths:       stats.Deaths,
		Hits:         stats.Hits,
		Damage:       stats.Damage,
		Supers:       stats.Supers,
		Playtime:     stats.Playtime,
		Achievements: achievements,
	})
}

func (h *Hub) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeError(w, http.StatusNotFound, "stats are disabled")
		return
	}
	limit := defaultLeaderboard
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad limit")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}
	entries, err := h.db.GetLeaderboard(r.URL.Query().Get("by"), limit)
	if err != nil {
		log.Printf("leaderboard: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func readAuthRequest(w http.ResponseWriter, r *http.Request) (AuthRequest, bool) {
	var req AuthRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorMsg{Msg: msg})
}
