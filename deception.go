// Deception
//
// A hidden-role murder mystery for 4+ players. One player is the forensic
// scientist, who knows the full truth but may only communicate through
// scene tiles; one is the murderer, who picked the means and clue; the
// investigators spend single-use badges on accusations; a witness saw
// something, and at five or more players an accomplice is in on it.
//
// Features:
// - WebSockets per room code: /path/:room and /path/:room/ws
// - First connection to a room becomes host
// - Players identified by cookie (playerID); reconnects reuse identity
// - Every processed event re-broadcasts a per-viewer projection, so no
//   client ever receives information its role is not entitled to
// - Host leaving (or an explicit close) tears the whole room down
// - Rooms auto-reaped after configurable idle timeout
// - Random 6-char room codes, with server-side collision check
// - Optional Redis snapshots allow rooms to survive a restart
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/Seednode/deception/game"
)

// clientMessage is the inbound wire envelope.
type clientMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// wireEvents lists the event types clients may submit. Internal signals
// (connect, connection loss, expiry) never come off the wire.
var wireEvents = map[string]bool{
	game.EventStartGame:        true,
	game.EventReset:            true,
	game.EventReady:            true,
	game.EventChat:             true,
	game.EventLeave:            true,
	game.EventClose:            true,
	game.EventSync:             true,
	game.EventJoinSeat:         true,
	game.EventConfirmDraft:     true,
	game.EventConfirmCrime:     true,
	game.EventConfirmTiles:     true,
	game.EventSolve:            true,
	game.EventSelectTileOption: true,
	game.EventReplaceTile:      true,
	game.EventIdentifyWitness:  true,
}

type client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	roomCode string

	// idleTimeout bounds how long a silent connection is kept. Browsers
	// answer the server's pings automatically, so only dead connections
	// ever hit the deadline.
	idleTimeout time.Duration
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.idleTimeout / 2)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump forwards wire events to the room actor. The close code
// distinguishes an intentional leave from a flaky connection: only a
// normal closure counts as leaving, so a network blip never purges a
// running room.
func (c *client) readPump(m *game.Manager, reg *registry) {
	defer func() {
		reg.remove(c)
		_ = c.conn.Close()
	}()

	ctx := context.Background()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				m.Dispatch(ctx, c.roomCode, game.Event{
					PlayerID: c.playerID,
					Type:     game.EventLeave,
				})
			} else {
				m.ConnectionLost(ctx, c.roomCode, c.playerID)
			}
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))

		if !wireEvents[msg.Type] {
			// ignore unknown types
			continue
		}

		m.Dispatch(ctx, c.roomCode, game.Event{
			PlayerID: c.playerID,
			Type:     msg.Type,
			Data:     msg.Data,
		})
	}
}

// registry tracks live connections per room and player, and implements
// the broadcast fan-out: one message per live connection, slow clients
// dropped rather than allowed to stall the room.
type registry struct {
	mu    sync.Mutex
	rooms map[string]map[string]map[*client]bool
	log   *zap.Logger
}

func newRegistry(log *zap.Logger) *registry {
	return &registry{
		rooms: make(map[string]map[string]map[*client]bool),
		log:   log,
	}
}

func (reg *registry) add(c *client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	players, ok := reg.rooms[c.roomCode]
	if !ok {
		players = make(map[string]map[*client]bool)
		reg.rooms[c.roomCode] = players
	}

	conns, ok := players[c.playerID]
	if !ok {
		conns = make(map[*client]bool)
		players[c.playerID] = conns
	}

	conns[c] = true
}

func (reg *registry) remove(c *client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.dropLocked(c)
}

func (reg *registry) dropLocked(c *client) {
	players, ok := reg.rooms[c.roomCode]
	if !ok {
		return
	}

	conns, ok := players[c.playerID]
	if !ok || !conns[c] {
		return
	}

	delete(conns, c)
	close(c.send)

	if len(conns) == 0 {
		delete(players, c.playerID)
	}
	if len(players) == 0 {
		delete(reg.rooms, c.roomCode)
	}
}

// Send delivers one message to every live connection of a player.
// A player with no connections is simply skipped.
func (reg *registry) Send(roomCode, playerID string, msg any) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	players, ok := reg.rooms[roomCode]
	if !ok {
		return
	}

	for c := range players[playerID] {
		select {
		case c.send <- msg:
		default:
			reg.log.Debug("dropping slow client",
				zap.String("room", roomCode),
				zap.String("player", playerID))
			reg.dropLocked(c)
		}
	}
}

// CloseRoom disconnects every remaining client of a torn-down room.
func (reg *registry) CloseRoom(roomCode string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	players, ok := reg.rooms[roomCode]
	if !ok {
		return
	}

	for _, conns := range players {
		for c := range conns {
			close(c.send)
			if c.conn != nil {
				_ = c.conn.Close()
			}
		}
	}

	delete(reg.rooms, roomCode)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "deception_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// serveWSForRooms upgrades a connection, registers it for broadcast, and
// feeds its events to the owning room actor.
func serveWSForRooms(cfg *Config, m *game.Manager, reg *registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomCode := ps.ByName("room")
		if roomCode == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		name := r.URL.Query().Get("name")
		if name == "" {
			name = "Player"
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: upgrade error: %v", err)
			return
		}

		c := &client{
			conn:        conn,
			send:        make(chan any, 8),
			playerID:    playerID,
			roomCode:    roomCode,
			idleTimeout: cfg.playerTimeout,
		}

		reg.add(c)
		m.Connect(context.Background(), roomCode, playerID, name)

		go c.writePump()
		c.readPump(m, reg)
	}
}

// qrHandler generates a PNG QR code for the current room URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomCode := ps.ByName("room")
	if roomCode == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:room/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

//go:embed assets/deception/index.html
var indexHTML []byte

func getRoomHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

// redirectNewRoom handles GET /path by generating a new room code (with
// server-side collision detection) and redirecting to /path/:room.
func redirectNewRoom(cfg *Config, path string, m *game.Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomCode := m.NewCode(r.Context())
		logf(cfg, "GAMES: Created room %s/%s", path, roomCode)
		http.Redirect(w, r, path+"/"+roomCode, http.StatusTemporaryRedirect)
	}
}

// registerDeceptionGame sets up routes so that:
//   - $path            → redirects to a new random room (6-char code)
//   - $path/:room      → HTML client
//   - $path/:room/ws   → WebSocket for that room
//   - $path/:room/qr   → PNG QR code for that room URL
func registerDeceptionGame(cfg *Config, path string, mux *httprouter.Router, m *game.Manager, reg *registry) {
	// Root path → redirect to new random room
	mux.GET(path, redirectNewRoom(cfg, path, m))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:room", getRoomHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:room/ws", serveWSForRooms(cfg, m, reg))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:room/qr", qrHandler)
}
