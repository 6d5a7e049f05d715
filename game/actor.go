package game

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Seednode/deception/catalog"
)

// Sender delivers an outbound message to every live connection currently
// registered for one player of one room. Players with no live connection
// are skipped; that is not an error.
type Sender interface {
	Send(roomCode, playerID string, msg any)

	// CloseRoom severs every remaining connection of a torn-down room.
	CloseRoom(roomCode string)
}

// Persister snapshots room state. Writes are best-effort: the actor logs
// failures and keeps playing on the in-memory copy.
type Persister interface {
	Save(ctx context.Context, r *Room) error
	Remove(ctx context.Context, r *Room) error
	LoadByCode(ctx context.Context, code string) (*Room, error)
}

// NopPersister is used when no cache is configured.
type NopPersister struct{}

func (NopPersister) Save(context.Context, *Room) error   { return nil }
func (NopPersister) Remove(context.Context, *Room) error { return nil }
func (NopPersister) LoadByCode(context.Context, string) (*Room, error) {
	return nil, nil
}

const (
	// actorQueueSize bounds the per-room event backlog. Events beyond it
	// are dropped, mirroring how slow websocket clients are dropped.
	actorQueueSize = 64

	persistTimeout = 3 * time.Second

	// eventExpire is enqueued by the idle reaper.
	eventExpire = "session_expired"
)

// Actor owns exclusive write access to one room. All events are applied
// strictly one at a time in arrival order, so the room state needs no
// locking of its own.
type Actor struct {
	room    *Room
	events  chan Event
	env     *Env
	persist Persister
	sender  Sender
	log     *zap.Logger
	manager *Manager

	mu         sync.RWMutex
	closed     bool
	lastActive time.Time
}

func newActor(room *Room, env *Env, persist Persister, sender Sender, log *zap.Logger, m *Manager) *Actor {
	return &Actor{
		room:       room,
		events:     make(chan Event, actorQueueSize),
		env:        env,
		persist:    persist,
		sender:     sender,
		log:        log,
		manager:    m,
		lastActive: time.Now(),
	}
}

// enqueue hands an event to the actor without blocking. A full queue or
// a torn-down actor drops the event.
func (a *Actor) enqueue(ev Event) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return false
	}

	select {
	case a.events <- ev:
		return true
	default:
		a.log.Warn("room event queue full, dropping event",
			zap.String("room", a.room.ID),
			zap.String("event", ev.Type))
		return false
	}
}

func (a *Actor) run() {
	for ev := range a.events {
		a.handle(ev)

		if a.room.Closed {
			a.teardown()
			return
		}
	}
}

// handle applies one event, then broadcasts the resulting state to every
// member before touching persistence. Snapshot writes are best-effort
// and never delay or fail gameplay.
func (a *Actor) handle(ev Event) {
	ctx := context.Background()

	res := a.room.Apply(ctx, ev, a.env)
	if !res.Applied {
		a.log.Debug("event rejected",
			zap.String("room", a.room.ID),
			zap.String("player", ev.PlayerID),
			zap.String("event", ev.Type),
			zap.String("reason", res.Reason))
	}

	a.mu.Lock()
	a.lastActive = time.Now()
	a.mu.Unlock()

	a.broadcast(ctx)

	if !a.room.Closed {
		saveCtx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()

		if err := a.persist.Save(saveCtx, a.room); err != nil {
			a.log.Warn("snapshot failed",
				zap.String("room", a.room.ID),
				zap.Error(err))
		}
	}
}

// broadcast computes one projection per member and delivers it to all of
// that member's live connections. Every client observes state versions
// in the exact order the actor applied them.
func (a *Actor) broadcast(ctx context.Context) {
	for _, p := range a.room.Players {
		state := Project(ctx, a.room, p.ID, a.env.Catalog)
		a.sender.Send(a.room.Code, p.ID, NewGameUpdate(state))
	}
}

// teardown purges a closed room: persisted state is deleted, the actor
// deregisters, and its queue is closed. Residual queued events are
// discarded with the channel.
func (a *Actor) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := a.persist.Remove(ctx, a.room); err != nil {
		a.log.Warn("room purge failed",
			zap.String("room", a.room.ID),
			zap.Error(err))
	}

	a.manager.remove(a.room.Code)
	a.sender.CloseRoom(a.room.Code)

	a.mu.Lock()
	a.closed = true
	close(a.events)
	a.mu.Unlock()

	a.log.Info("room closed",
		zap.String("room", a.room.ID),
		zap.String("code", a.room.Code))
}

func (a *Actor) idleSince() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.lastActive
}

// Manager supervises one actor per room, keyed by room code. Rooms are
// created on first connect (or recovered from the snapshot cache) and
// evicted on close, when empty, or after the idle timeout.
type Manager struct {
	mu     sync.Mutex
	actors map[string]*Actor

	persist     Persister
	cat         catalog.Accessor
	sender      Sender
	log         *zap.Logger
	idleTimeout time.Duration
}

// NewManager wires the room supervisor. An idleTimeout of zero disables
// the reaper.
func NewManager(persist Persister, cat catalog.Accessor, sender Sender, log *zap.Logger, idleTimeout time.Duration) *Manager {
	if persist == nil {
		persist = NopPersister{}
	}

	m := &Manager{
		actors:      make(map[string]*Actor),
		persist:     persist,
		cat:         cat,
		sender:      sender,
		log:         log,
		idleTimeout: idleTimeout,
	}

	if idleTimeout > 0 {
		go m.reapLoop()
	}

	return m
}

// Connect registers a player connection with a room, creating or
// recovering the room as needed, and triggers a broadcast.
func (m *Manager) Connect(ctx context.Context, code, playerID, name string) {
	a := m.actor(ctx, code, true)
	if a == nil {
		return
	}

	a.enqueue(Event{
		PlayerID: playerID,
		Type:     eventConnect,
		Data:     map[string]any{"name": name},
	})
}

// Dispatch routes a player event to the owning actor. Events for rooms
// that neither live in memory nor in the cache are dropped.
func (m *Manager) Dispatch(ctx context.Context, code string, ev Event) {
	a := m.actor(ctx, code, false)
	if a == nil {
		m.log.Debug("event for unknown room dropped",
			zap.String("code", code),
			zap.String("event", ev.Type))
		return
	}

	a.enqueue(ev)
}

// ConnectionLost marks a player offline after an abnormal disconnect.
// Unlike an explicit leave it never purges the room; flaky connections
// must not destroy a running game.
func (m *Manager) ConnectionLost(ctx context.Context, code, playerID string) {
	m.Dispatch(ctx, code, Event{PlayerID: playerID, Type: eventConnectionLost})
}

// actor returns the live actor for a code, recovering the room from the
// snapshot cache or (when create is set) making a fresh one. The cache
// load runs outside the manager lock: one room's recovery must never
// stall dispatch to every other room.
func (m *Manager) actor(ctx context.Context, code string, create bool) *Actor {
	m.mu.Lock()
	if a, ok := m.actors[code]; ok {
		m.mu.Unlock()
		return a
	}
	m.mu.Unlock()

	room, err := m.persist.LoadByCode(ctx, code)
	if err != nil {
		m.log.Warn("room recovery failed",
			zap.String("code", code),
			zap.Error(err))
		room = nil
	}

	if room == nil && !create {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another connection may have built the actor while the load ran.
	if a, ok := m.actors[code]; ok {
		return a
	}

	if room == nil {
		room = NewRoom(uuid.NewString(), code)
		m.log.Info("room created",
			zap.String("room", room.ID),
			zap.String("code", code))
	} else {
		// The snapshot predates the restart; nobody is connected yet.
		for _, p := range room.Players {
			p.IsOnline = false
		}
		m.log.Info("room recovered from cache",
			zap.String("room", room.ID),
			zap.String("code", code))
	}

	env := NewEnv(time.Now().UnixNano(), m.cat)
	a := newActor(room, env, m.persist, m.sender, m.log, m)
	m.actors[code] = a
	go a.run()

	return a
}

func (m *Manager) remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.actors, code)
}

// codeAlphabet omits easily confused characters.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCode generates a six-character room code that collides with neither
// a live room nor a cached snapshot. Handing out a cached code would let
// its first visitor recover a stranger's game.
func (m *Manager) NewCode(ctx context.Context) string {
	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		out := make([]byte, len(buf))
		for i := range out {
			out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(out)

		m.mu.Lock()
		_, exists := m.actors[code]
		m.mu.Unlock()

		if exists {
			continue
		}

		if cached, err := m.persist.LoadByCode(ctx, code); err == nil && cached != nil {
			continue
		}

		return code
	}
}

// reapLoop periodically expires rooms that have been idle longer than
// the configured timeout.
func (m *Manager) reapLoop() {
	ticker := time.NewTicker(m.idleTimeout / 2)

	for range ticker.C {
		cutoff := time.Now().Add(-m.idleTimeout)

		m.mu.Lock()
		stale := make([]*Actor, 0)
		for _, a := range m.actors {
			if a.idleSince().Before(cutoff) {
				stale = append(stale, a)
			}
		}
		m.mu.Unlock()

		for _, a := range stale {
			a.enqueue(Event{Type: eventExpire})
		}
	}
}
