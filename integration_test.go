package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

type testServer struct {
	hub     *Hub
	db      *DB
	auth    *Auth
	srv     *httptest.Server
	wsURL   string
	tcpAddr string
}

// startTestServer runs the TCP listener and the HTTP/WebSocket mux against a
// temp database. Everything is torn down when the test ends.
func startTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	db := openTestDB(t)
	auth := newTestAuth(t, db)
	analytics := NewAnalytics(db)
	hub := NewHub(cfg, NewWorld(DefaultArena(), analytics), db, auth, analytics)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	tcpDone := make(chan struct{})
	go func() {
		defer close(tcpDone)
		hub.ServeTCP(ln)
	}()
	srv := httptest.NewServer(SetupRoutes(hub))

	t.Cleanup(func() {
		ln.Close()
		<-tcpDone
		srv.Close()
		hub.CloseAll()
		analytics.Stop()
	})

	return &testServer{
		hub:     hub,
		db:      db,
		auth:    auth,
		srv:     srv,
		wsURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		tcpAddr: ln.Addr().String(),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConnsPerIP = 0
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func update(x, y float64, projs ...Projectile) map[string]any {
	if projs == nil {
		projs = []Projectile{}
	}
	return map[string]any{"x": x, "y": y, "angle": 0.0, "projectiles": projs}
}

type tcpClient struct {
	conn net.Conn
	dec  *msgpack.Decoder
}

func dialTCP(t *testing.T, addr string) *tcpClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial TCP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &tcpClient{conn: conn, dec: msgpack.NewDecoder(conn)}
}

func (c *tcpClient) send(t *testing.T, msg any) {
	t.Helper()
	if _, err := c.conn.Write(mustMarshal(t, msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (c *tcpClient) decode(v any) error {
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return c.dec.Decode(v)
}

func (c *tcpClient) readWelcome(t *testing.T) PlayerState {
	t.Helper()
	var st PlayerState
	if err := c.decode(&st); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	return st
}

func (c *tcpClient) readSnapshot(t *testing.T) map[int]PlayerState {
	t.Helper()
	var snap map[int]PlayerState
	if err := c.decode(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return snap
}

// expectClosed waits for the server to drop the connection
func (c *tcpClient) expectClosed(t *testing.T) {
	t.Helper()
	var v any
	for {
		if err := c.decode(&v); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatal("server did not close the connection")
			}
			return
		}
	}
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", msgType)
	}
	if err := msgpack.Unmarshal(raw, v); err != nil {
		t.Fatalf("msgpack unmarshal: %v", err)
	}
}

func sendWS(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, mustMarshal(t, msg)); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func getWithToken(t *testing.T, url, token string) (*http.Response, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

// ---------- TCP ----------

func TestTCPWelcomeIsBareState(t *testing.T) {
	ts := startTestServer(t, testConfig())
	c := dialTCP(t, ts.tcpAddr)

	st := c.readWelcome(t)
	if st.ID != 0 || !st.Alive || st.Health != MaxHealth || st.SuperCharge != 0 {
		t.Errorf("welcome = %+v", st)
	}
	if !DefaultArena().IsClear(st.X, st.Y) {
		t.Errorf("spawned inside a wall at (%v,%v)", st.X, st.Y)
	}
}

func TestTCPSnapshotAfterUpdate(t *testing.T) {
	ts := startTestServer(t, testConfig())
	a := dialTCP(t, ts.tcpAddr)
	sa := a.readWelcome(t)
	b := dialTCP(t, ts.tcpAddr)
	sb := b.readWelcome(t)

	a.send(t, update(400, 300))
	snap := a.readSnapshot(t)

	if len(snap) != 2 {
		t.Fatalf("snapshot has %d players, want 2", len(snap))
	}
	if got := snap[sa.ID]; got.X != 400 || got.Y != 300 {
		t.Errorf("A at (%v,%v), want (400,300)", got.X, got.Y)
	}
	if got := snap[sb.ID]; got.X != sb.X || got.Y != sb.Y {
		t.Errorf("B moved without reporting")
	}
}

func TestTCPHitScenario(t *testing.T) {
	ts := startTestServer(t, testConfig())
	a := dialTCP(t, ts.tcpAddr)
	sa := a.readWelcome(t)
	b := dialTCP(t, ts.tcpAddr)
	sb := b.readWelcome(t)

	a.send(t, update(sa.X, sa.Y, Projectile{X: sb.X, Y: sb.Y, VelX: 5, ID: 1}))
	snap := a.readSnapshot(t)

	if got := snap[sb.ID]; got.Health != 75 || !got.Alive {
		t.Errorf("B health=%v alive=%v, want 75 true", got.Health, got.Alive)
	}
	if got := snap[sa.ID]; got.SuperCharge != 25 || len(got.Projectiles) != 0 {
		t.Errorf("A charge=%v projectiles=%d, want 25 and 0", got.SuperCharge, len(got.Projectiles))
	}

	// B sees the damage in its own next snapshot
	b.send(t, update(sb.X, sb.Y))
	if got := b.readSnapshot(t)[sb.ID]; got.Health != 75 {
		t.Errorf("B's own view health = %v, want 75", got.Health)
	}
}

func TestTCPDisconnectRemovesPlayer(t *testing.T) {
	ts := startTestServer(t, testConfig())
	a := dialTCP(t, ts.tcpAddr)
	sa := a.readWelcome(t)
	b := dialTCP(t, ts.tcpAddr)
	sb := b.readWelcome(t)

	b.conn.Close()
	waitFor(t, "B removed", func() bool { return ts.hub.world.PlayerCount() == 1 })

	a.send(t, update(sa.X, sa.Y))
	snap := a.readSnapshot(t)
	if _, ok := snap[sb.ID]; ok {
		t.Error("disconnected player still in snapshot")
	}
	waitFor(t, "slot released", func() bool { return ts.hub.TotalConns() == 1 })
}

func TestTCPMalformedUpdateDisconnects(t *testing.T) {
	ts := startTestServer(t, testConfig())
	c := dialTCP(t, ts.tcpAddr)
	c.readWelcome(t)

	c.send(t, map[string]any{"x": 1.0})
	c.expectClosed(t)
	waitFor(t, "player removed", func() bool { return ts.hub.world.PlayerCount() == 0 })
}

func TestTCPHalfCloseDisconnects(t *testing.T) {
	ts := startTestServer(t, testConfig())
	c := dialTCP(t, ts.tcpAddr)
	c.readWelcome(t)

	c.conn.(*net.TCPConn).CloseWrite()
	c.expectClosed(t)
	waitFor(t, "player removed", func() bool { return ts.hub.world.PlayerCount() == 0 })
}

func TestTCPSplitWrites(t *testing.T) {
	ts := startTestServer(t, testConfig())
	c := dialTCP(t, ts.tcpAddr)
	c.readWelcome(t)

	data := mustMarshal(t, update(123, 456))
	for _, b := range data {
		c.conn.Write([]byte{b})
		time.Sleep(time.Millisecond)
	}
	snap := c.readSnapshot(t)
	if got := snap[0]; got.X != 123 || got.Y != 456 {
		t.Errorf("position = (%v,%v), want (123,456)", got.X, got.Y)
	}
}

func TestTCPPerIPLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnsPerIP = 1
	ts := startTestServer(t, cfg)

	a := dialTCP(t, ts.tcpAddr)
	a.readWelcome(t)

	b := dialTCP(t, ts.tcpAddr)
	b.expectClosed(t)
	if n := ts.hub.world.PlayerCount(); n != 1 {
		t.Errorf("players = %d, want 1", n)
	}
}

func TestTCPRateLimit(t *testing.T) {
	ts := startTestServer(t, testConfig())
	c := dialTCP(t, ts.tcpAddr)
	c.readWelcome(t)

	var burst bytes.Buffer
	for i := 0; i < maxMessagesPerSec+20; i++ {
		burst.Write(mustMarshal(t, update(100, 100)))
	}
	c.conn.Write(burst.Bytes())
	c.expectClosed(t)
	waitFor(t, "player removed", func() bool { return ts.hub.world.PlayerCount() == 0 })
}

func TestTCPIdleTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	ts := startTestServer(t, cfg)
	c := dialTCP(t, ts.tcpAddr)
	c.readWelcome(t)

	c.expectClosed(t)
	waitFor(t, "player removed", func() bool { return ts.hub.world.PlayerCount() == 0 })
}

func TestKillFlushesAccountStats(t *testing.T) {
	ts := startTestServer(t, testConfig())
	accountID, token, err := ts.auth.Register("alice", "secret")
	if err != nil {
		t.Fatal(err)
	}

	a := dialTCP(t, ts.tcpAddr)
	sa := a.readWelcome(t)
	b := dialTCP(t, ts.tcpAddr)
	sb := b.readWelcome(t)

	for i := 0; i < 4; i++ {
		msg := update(sa.X, sa.Y, Projectile{X: sb.X, Y: sb.Y, ID: float64(i + 1)})
		msg["token"] = token
		a.send(t, msg)
		a.readSnapshot(t)
	}

	var linked int64
	ts.hub.world.Mutate(sa.ID, func(p *Player) { linked = p.AccountID })
	if linked != accountID {
		t.Fatalf("player linked to account %d, want %d", linked, accountID)
	}
	if ts.hub.world.Snapshot()[sb.ID].Alive {
		t.Fatal("B survived four hits")
	}

	a.conn.Close()
	waitFor(t, "stats flushed", func() bool {
		st, err := ts.db.GetStats(accountID)
		return err == nil && st != nil && st.Sessions == 1
	})
	st, _ := ts.db.GetStats(accountID)
	if st.Kills != 1 || st.Hits != 4 || st.Damage != 100 {
		t.Errorf("stats = %+v", st)
	}
	ids, _ := ts.db.GetAchievements(accountID)
	if len(ids) == 0 || ids[0] != "first_blood" {
		t.Errorf("achievements = %v, want first_blood", ids)
	}
}

func TestTCPBadTokenStaysGuest(t *testing.T) {
	ts := startTestServer(t, testConfig())
	c := dialTCP(t, ts.tcpAddr)
	st := c.readWelcome(t)

	msg := update(st.X, st.Y)
	msg["token"] = "bogus"
	c.send(t, msg)
	c.send(t, msg)
	c.readSnapshot(t)
	c.readSnapshot(t)

	var linked int64 = -1
	ts.hub.world.Mutate(st.ID, func(p *Player) { linked = p.AccountID })
	if linked != 0 {
		t.Errorf("account = %d, want guest", linked)
	}
}

func TestCloseAllEndsSessions(t *testing.T) {
	ts := startTestServer(t, testConfig())
	c := dialTCP(t, ts.tcpAddr)
	c.readWelcome(t)

	ts.hub.CloseAll()
	if n := ts.hub.world.PlayerCount(); n != 0 {
		t.Errorf("players after CloseAll = %d", n)
	}
	c.expectClosed(t)
}

// ---------- WebSocket ----------

func TestWSScenario(t *testing.T) {
	ts := startTestServer(t, testConfig())
	conn := dialWS(t, ts.wsURL)

	var st PlayerState
	readWS(t, conn, &st)
	if !st.Alive || st.Health != MaxHealth {
		t.Fatalf("welcome = %+v", st)
	}

	sendWS(t, conn, update(250, 260))
	var snap map[int]PlayerState
	readWS(t, conn, &snap)
	if got := snap[st.ID]; got.X != 250 || got.Y != 260 {
		t.Errorf("position = (%v,%v), want (250,260)", got.X, got.Y)
	}
}

func TestWSAndTCPShareWorld(t *testing.T) {
	ts := startTestServer(t, testConfig())
	tc := dialTCP(t, ts.tcpAddr)
	tst := tc.readWelcome(t)
	ws := dialWS(t, ts.wsURL)
	var wst PlayerState
	readWS(t, ws, &wst)

	sendWS(t, ws, update(wst.X, wst.Y, Projectile{X: tst.X, Y: tst.Y, ID: 1}))
	var snap map[int]PlayerState
	readWS(t, ws, &snap)
	if snap[tst.ID].Health != 75 {
		t.Errorf("TCP player health = %v, want 75", snap[tst.ID].Health)
	}
}

func TestWSTextFrameRejected(t *testing.T) {
	ts := startTestServer(t, testConfig())
	conn := dialWS(t, ts.wsURL)
	var st PlayerState
	readWS(t, conn, &st)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"x":1,"y":1}`))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the server to close the connection")
	}
	waitFor(t, "player removed", func() bool { return ts.hub.world.PlayerCount() == 0 })
}

func TestWSQueryToken(t *testing.T) {
	ts := startTestServer(t, testConfig())
	accountID, token, _ := ts.auth.Register("bob", "secret")

	conn := dialWS(t, ts.wsURL+"?token="+token)
	var st PlayerState
	readWS(t, conn, &st)

	var linked int64
	ts.hub.world.Mutate(st.ID, func(p *Player) { linked = p.AccountID })
	if linked != accountID {
		t.Errorf("account = %d, want %d", linked, accountID)
	}
}

func TestWSInvalidToken(t *testing.T) {
	ts := startTestServer(t, testConfig())
	_, resp, err := websocket.DefaultDialer.Dial(ts.wsURL+"?token=bogus", nil)
	if err == nil {
		t.Fatal("dial with a bad token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

// ---------- HTTP API ----------

func TestAPIRegisterLoginProfile(t *testing.T) {
	ts := startTestServer(t, testConfig())
	creds := AuthRequest{Username: "carol", Password: "secret"}

	resp, body := postJSON(t, ts.srv.URL+"/api/register", creds)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d: %s", resp.StatusCode, body)
	}
	var reg AuthOKMsg
	json.Unmarshal(body, &reg)
	if reg.Token == "" || reg.Username != "carol" || reg.PlayerID == 0 {
		t.Errorf("register = %+v", reg)
	}

	if resp, _ := postJSON(t, ts.srv.URL+"/api/register", creds); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", resp.StatusCode)
	}

	resp, body = postJSON(t, ts.srv.URL+"/api/login", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d: %s", resp.StatusCode, body)
	}
	var login AuthOKMsg
	json.Unmarshal(body, &login)

	bad := AuthRequest{Username: "carol", Password: "nope"}
	if resp, _ := postJSON(t, ts.srv.URL+"/api/login", bad); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", resp.StatusCode)
	}

	resp, body = getWithToken(t, ts.srv.URL+"/api/profile", login.Token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d: %s", resp.StatusCode, body)
	}
	var prof ProfileDataMsg
	json.Unmarshal(body, &prof)
	if prof.Username != "carol" || prof.Level != 1 || prof.Achievements == nil {
		t.Errorf("profile = %+v", prof)
	}

	if resp, _ := getWithToken(t, ts.srv.URL+"/api/profile", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous profile status = %d, want 401", resp.StatusCode)
	}
}

func TestAPIBadRequestBody(t *testing.T) {
	ts := startTestServer(t, testConfig())
	resp, err := http.Post(ts.srv.URL+"/api/register", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAPILeaderboard(t *testing.T) {
	ts := startTestServer(t, testConfig())
	for _, name := range []string{"dave", "erin"} {
		id, _, _ := ts.auth.Register(name, "secret")
		ts.db.AddSessionStats(id, CombatStats{Kills: len(name)}, 0)
	}

	resp, body := getWithToken(t, ts.srv.URL+"/api/leaderboard?by=kills&limit=1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var entries []LeaderboardEntry
	json.Unmarshal(body, &entries)
	if len(entries) != 1 || entries[0].Rank != 1 {
		t.Errorf("entries = %+v", entries)
	}

	if resp, _ := getWithToken(t, ts.srv.URL+"/api/leaderboard?limit=abc", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestAPIStatus(t *testing.T) {
	ts := startTestServer(t, testConfig())
	c := dialTCP(t, ts.tcpAddr)
	c.readWelcome(t)

	resp, body := getWithToken(t, ts.srv.URL+"/api/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st StatusMsg
	json.Unmarshal(body, &st)
	if st.Players != 1 || st.Connections != 1 || st.Dead != 0 || st.StartedAt == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestHealthz(t *testing.T) {
	ts := startTestServer(t, testConfig())
	resp, body := getWithToken(t, ts.srv.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestQRCode(t *testing.T) {
	ts := startTestServer(t, testConfig())
	resp, body := getWithToken(t, ts.srv.URL+"/qr.png", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestJoinURL(t *testing.T) {
	h := NewHub(Config{PublicURL: "https://play.example.test/"}, nil, nil, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/qr.png", nil)
	if got := h.joinURL(r); got != "https://play.example.test/ws" {
		t.Errorf("joinURL = %q", got)
	}
	h.cfg.PublicURL = ""
	r.Host = "10.0.0.2:8080"
	if got := h.joinURL(r); got != "ws://10.0.0.2:8080/ws" {
		t.Errorf("joinURL = %q", got)
	}
}

// ---------- session ----------

// pipeTransport feeds scripted updates to a session and records what it sends
type pipeTransport struct {
	in     chan ClientUpdate
	mu     sync.Mutex
	sent   []any
	closed chan struct{}
	once   sync.Once
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{in: make(chan ClientUpdate), closed: make(chan struct{})}
}

func (p *pipeTransport) Recv() (ClientUpdate, error) {
	select {
	case u, ok := <-p.in:
		if !ok {
			return ClientUpdate{}, io.EOF
		}
		return u, nil
	case <-p.closed:
		return ClientUpdate{}, net.ErrClosed
	}
}

func (p *pipeTransport) Send(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, v)
	return nil
}

func (p *pipeTransport) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) RemoteAddr() string { return "pipe" }

func TestSessionLifecycle(t *testing.T) {
	world := NewWorld(DefaultArena(), nil)
	hub := NewHub(testConfig(), world, nil, nil, nil)
	tr := newPipeTransport()
	s := NewSession(hub, tr, 0)
	if s.State() != StateConnecting {
		t.Fatalf("initial state = %v", s.State())
	}

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()
	tr.in <- ClientUpdate{X: 10, Y: 20, Projectiles: []Projectile{}}
	if st := s.State(); st != StateActive {
		t.Errorf("state while running = %v, want active", st)
	}
	tr.in <- ClientUpdate{X: 30, Y: 40, Projectiles: []Projectile{}}
	close(tr.in)
	<-done

	if s.State() != StateTerminated {
		t.Errorf("final state = %v", s.State())
	}
	if world.PlayerCount() != 0 {
		t.Error("player not removed after session ended")
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.sent) != 3 {
		t.Fatalf("sent %d messages, want welcome + 2 snapshots", len(tr.sent))
	}
	if _, ok := tr.sent[0].(PlayerState); !ok {
		t.Errorf("first message is %T, want PlayerState", tr.sent[0])
	}
	last, ok := tr.sent[2].(Snapshot)
	if !ok || last[0].X != 30 {
		t.Errorf("last message = %#v", tr.sent[2])
	}
}

func TestSessionRefusedWhenNoSpawn(t *testing.T) {
	world := NewWorld(NewArena([]Wall{{X: 0, Y: 0, W: WorldWidth, H: WorldHeight}}), nil)
	hub := NewHub(testConfig(), world, nil, nil, nil)
	tr := newPipeTransport()
	NewSession(hub, tr, 0).Run()

	select {
	case <-tr.closed:
	default:
		t.Error("transport left open")
	}
	if len(tr.sent) != 0 {
		t.Errorf("sent %d messages to a refused client", len(tr.sent))
	}
}

func TestGoRefusedAfterCloseAll(t *testing.T) {
	hub := NewHub(testConfig(), NewWorld(DefaultArena(), nil), nil, nil, nil)
	hub.CloseAll()

	if !hub.Admit("10.0.0.1") {
		t.Fatal("Admit refused")
	}
	tr := newPipeTransport()
	if hub.Go(tr, "10.0.0.1", 0) {
		t.Error("session started after CloseAll")
	}
	select {
	case <-tr.closed:
	default:
		t.Error("refused transport left open")
	}
	if hub.TotalConns() != 0 || hub.world.PlayerCount() != 0 {
		t.Errorf("conns=%d players=%d after refusal", hub.TotalConns(), hub.world.PlayerCount())
	}
}

func TestCloseAllDuringConnects(t *testing.T) {
	hub := NewHub(testConfig(), NewWorld(DefaultArena(), nil), nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if hub.Admit("10.0.0.1") {
				hub.Go(newPipeTransport(), "10.0.0.1", 0)
			}
		}()
	}
	hub.CloseAll()
	wg.Wait()
	hub.CloseAll()

	if hub.TotalConns() != 0 || hub.world.PlayerCount() != 0 {
		t.Errorf("conns=%d players=%d after shutdown", hub.TotalConns(), hub.world.PlayerCount())
	}
}

func TestSessionStateString(t *testing.T) {
	if StateActive.String() != "active" || SessionState(9).String() != "SessionState(9)" {
		t.Error("unexpected SessionState names")
	}
}

// ---------- util ----------

func TestClamp(t *testing.T) {
	tests := []struct{ v, lo, hi, want float64 }{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestDistance(t *testing.T) {
	d := Distance(0, 0, 3, 4)
	if d != 5 {
		t.Errorf("Distance(0,0,3,4) = %f, want 5", d)
	}
}
