package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Seednode/deception/catalog"
)

type fakeSender struct {
	mu       sync.Mutex
	messages map[string][]GameUpdateMessage // keyed by playerID
	closed   []string
}

func newFakeSender() *fakeSender {
	return &fakeSender{messages: make(map[string][]GameUpdateMessage)}
}

func (f *fakeSender) Send(roomCode, playerID string, msg any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if update, ok := msg.(GameUpdateMessage); ok {
		f.messages[playerID] = append(f.messages[playerID], update)
	}
}

func (f *fakeSender) CloseRoom(roomCode string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = append(f.closed, roomCode)
}

func (f *fakeSender) updates(playerID string) []GameUpdateMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]GameUpdateMessage, len(f.messages[playerID]))
	copy(out, f.messages[playerID])

	return out
}

func (f *fakeSender) closedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.closed))
	copy(out, f.closed)

	return out
}

type fakePersister struct {
	mu      sync.Mutex
	saves   int
	removes int
	stored  *Room
}

func (f *fakePersister) Save(_ context.Context, _ *Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++

	return nil
}

func (f *fakePersister) Remove(_ context.Context, _ *Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++

	return nil
}

func (f *fakePersister) LoadByCode(_ context.Context, code string) (*Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stored != nil && f.stored.Code == code {
		return f.stored, nil
	}

	return nil, nil
}

func (f *fakePersister) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.saves, f.removes
}

func newTestManager(persist Persister, sender Sender) *Manager {
	return NewManager(persist, catalog.NewStatic(), sender, zap.NewNop(), 0)
}

func TestManagerConnectBroadcasts(t *testing.T) {
	sender := newFakeSender()
	m := newTestManager(&fakePersister{}, sender)
	ctx := context.Background()

	m.Connect(ctx, "ROOMAA", "alice", "Alice")

	require.Eventually(t, func() bool {
		return len(sender.updates("alice")) > 0
	}, time.Second, 5*time.Millisecond)

	update := sender.updates("alice")[0]
	assert.Equal(t, MessageGameUpdate, update.Type)
	require.NotNil(t, update.State)
	assert.Equal(t, "ROOMAA", update.State.RoomCode)
	assert.Equal(t, PhaseLobby, update.State.Phase)
	require.Len(t, update.State.Players, 1)
	assert.True(t, update.State.Players[0].IsHost, "first player in becomes host")
}

func TestManagerBroadcastOrdering(t *testing.T) {
	sender := newFakeSender()
	m := newTestManager(&fakePersister{}, sender)
	ctx := context.Background()

	m.Connect(ctx, "ROOMBB", "alice", "Alice")

	const lines = 20
	for i := 0; i < lines; i++ {
		m.Dispatch(ctx, "ROOMBB", Event{
			PlayerID: "alice",
			Type:     EventChat,
			Data:     map[string]any{"text": fmt.Sprintf("line %d", i)},
		})
	}

	require.Eventually(t, func() bool {
		updates := sender.updates("alice")
		if len(updates) == 0 {
			return false
		}
		last := updates[len(updates)-1].State
		return last.Data != nil && len(last.Data.Chat) == lines
	}, time.Second, 5*time.Millisecond)

	// Chat grows monotonically across broadcasts: state versions arrive
	// in apply order.
	prev := 0
	for _, update := range sender.updates("alice") {
		n := 0
		if update.State.Data != nil {
			n = len(update.State.Data.Chat)
		}
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}

	final := sender.updates("alice")[len(sender.updates("alice"))-1].State.Data.Chat
	for i, line := range final {
		assert.Equal(t, fmt.Sprintf("line %d", i), line.Text)
	}
}

func TestManagerHostLeaveTearsDown(t *testing.T) {
	sender := newFakeSender()
	persist := &fakePersister{}
	m := newTestManager(persist, sender)
	ctx := context.Background()

	m.Connect(ctx, "ROOMCC", "alice", "Alice")
	m.Connect(ctx, "ROOMCC", "bob", "Bob")

	require.Eventually(t, func() bool {
		return len(sender.updates("bob")) > 0
	}, time.Second, 5*time.Millisecond)

	m.Dispatch(ctx, "ROOMCC", Event{PlayerID: "alice", Type: EventLeave})

	require.Eventually(t, func() bool {
		_, removes := persist.counts()
		return removes == 1
	}, time.Second, 5*time.Millisecond)

	assert.Contains(t, sender.closedRooms(), "ROOMCC")

	// The actor is gone; a later event without create finds nothing.
	m.mu.Lock()
	_, exists := m.actors["ROOMCC"]
	m.mu.Unlock()
	assert.False(t, exists)
}

func TestManagerDispatchUnknownRoomDropped(t *testing.T) {
	sender := newFakeSender()
	m := newTestManager(&fakePersister{}, sender)

	m.Dispatch(context.Background(), "NOROOM", Event{PlayerID: "alice", Type: EventChat})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sender.updates("alice"))
}

func TestManagerRecoversFromPersister(t *testing.T) {
	stored := NewRoom("room-stored", "ROOMDD")
	stored.AddPlayer("alice", "Alice")
	stored.AddPlayer("bob", "Bob")

	sender := newFakeSender()
	m := newTestManager(&fakePersister{stored: stored}, sender)

	m.Connect(context.Background(), "ROOMDD", "alice", "Alice")

	require.Eventually(t, func() bool {
		return len(sender.updates("alice")) > 0
	}, time.Second, 5*time.Millisecond)

	state := sender.updates("alice")[0].State
	assert.Equal(t, "room-stored", state.RoomID)
	assert.Len(t, state.Players, 2, "recovered rooms keep their members")
}

func TestManagerEnqueueAfterTeardown(t *testing.T) {
	sender := newFakeSender()
	m := newTestManager(&fakePersister{}, sender)
	ctx := context.Background()

	m.Connect(ctx, "ROOMEE", "alice", "Alice")
	m.Dispatch(ctx, "ROOMEE", Event{PlayerID: "alice", Type: EventClose})

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, exists := m.actors["ROOMEE"]
		return !exists
	}, time.Second, 5*time.Millisecond)

	// Must not panic or deadlock.
	m.ConnectionLost(ctx, "ROOMEE", "alice")
}

func TestNewCodeShape(t *testing.T) {
	m := newTestManager(&fakePersister{}, newFakeSender())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := m.NewCode(ctx)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q", c)
		}
		seen[code] = true
	}

	assert.Greater(t, len(seen), 90, "codes should rarely collide")
}

// cachedCodesPersister reports the first N looked-up codes as occupied
// by a cached snapshot.
type cachedCodesPersister struct {
	fakePersister

	mu      sync.Mutex
	collide int
	calls   int
}

func (c *cachedCodesPersister) LoadByCode(_ context.Context, code string) (*Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.calls <= c.collide {
		return NewRoom("cached-room", code), nil
	}

	return nil, nil
}

func TestNewCodeSkipsCachedRooms(t *testing.T) {
	persist := &cachedCodesPersister{collide: 3}
	m := newTestManager(persist, newFakeSender())

	code := m.NewCode(context.Background())
	require.Len(t, code, 6)

	persist.mu.Lock()
	calls := persist.calls
	persist.mu.Unlock()

	assert.Equal(t, 4, calls, "the first three candidates were cached and must be rejected")
}

// slowPersister stalls every cache lookup, standing in for a sluggish
// Redis read.
type slowPersister struct {
	fakePersister
	delay time.Duration
}

func (s *slowPersister) LoadByCode(ctx context.Context, code string) (*Room, error) {
	time.Sleep(s.delay)

	return s.fakePersister.LoadByCode(ctx, code)
}

func TestDispatchNotBlockedByOtherRoomRecovery(t *testing.T) {
	sender := newFakeSender()
	m := newTestManager(&slowPersister{delay: 500 * time.Millisecond}, sender)
	ctx := context.Background()

	m.Connect(ctx, "ROOMFF", "alice", "Alice")
	require.Eventually(t, func() bool {
		return len(sender.updates("alice")) > 0
	}, 2*time.Second, 5*time.Millisecond)

	// Park another goroutine inside the slow recovery of a cold room.
	go m.Dispatch(ctx, "COLDXX", Event{PlayerID: "bob", Type: EventChat})
	time.Sleep(50 * time.Millisecond)

	// The live room must stay reachable while that lookup drags on.
	start := time.Now()
	m.Dispatch(ctx, "ROOMFF", Event{
		PlayerID: "alice",
		Type:     EventChat,
		Data:     map[string]any{"text": "still here"},
	})
	assert.Less(t, time.Since(start), 250*time.Millisecond,
		"dispatch to a live room stalled behind another room's cache lookup")

	require.Eventually(t, func() bool {
		updates := sender.updates("alice")
		last := updates[len(updates)-1].State
		return last.Data != nil && len(last.Data.Chat) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRecoveredRoomPlayersStartOffline(t *testing.T) {
	stored := NewRoom("room-stored", "ROOMGG")
	stored.AddPlayer("alice", "Alice")
	stored.AddPlayer("bob", "Bob")

	sender := newFakeSender()
	m := newTestManager(&fakePersister{stored: stored}, sender)

	m.Connect(context.Background(), "ROOMGG", "alice", "Alice")

	require.Eventually(t, func() bool {
		return len(sender.updates("alice")) > 0
	}, time.Second, 5*time.Millisecond)

	online := make(map[string]bool)
	for _, pv := range sender.updates("alice")[0].State.Players {
		online[pv.ID] = pv.IsOnline
	}

	assert.True(t, online["alice"], "the reconnecting player is online")
	assert.False(t, online["bob"], "a snapshotted player is offline until they reconnect")
}
