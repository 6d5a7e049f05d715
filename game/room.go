// Package game implements the server-side rules of the hidden-role
// deduction game Deception: room state, the phase state machine, role
// assignment and card dealing, the per-viewer visibility projection, and
// the per-room actor that serializes events and fans broadcasts out to
// every connected session.
package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is a player archetype. Roles govern information visibility and
// which events a player may issue.
type Role string

const (
	RoleForensic     Role = "FORENSIC_SCIENTIST"
	RoleMurderer     Role = "MURDERER"
	RoleAccomplice   Role = "ACCOMPLICE"
	RoleWitness      Role = "WITNESS"
	RoleInvestigator Role = "INVESTIGATOR"

	// RoleUnknown is the opaque marker rendered when a viewer is not
	// entitled to a player's true role.
	RoleUnknown Role = "UNKNOWN"
)

// Phase is a stage in the room lifecycle. Phases only ever advance;
// LOBBY is re-entered solely through an explicit reset.
type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseCardDrafting   Phase = "CARD_DRAFTING"
	PhaseCrimeSelection Phase = "CRIME_SELECTION"
	PhaseForensicSetup  Phase = "FORENSIC_SETUP"
	PhaseInvestigation  Phase = "INVESTIGATION"
	PhaseWitnessID      Phase = "WITNESS_IDENTIFICATION"
	PhaseGameOver       Phase = "GAME_OVER"
)

var phaseOrder = map[Phase]int{
	PhaseLobby:          0,
	PhaseCardDrafting:   1,
	PhaseCrimeSelection: 2,
	PhaseForensicSetup:  3,
	PhaseInvestigation:  4,
	PhaseWitnessID:      5,
	PhaseGameOver:       6,
}

// after reports whether p has passed other in the fixed phase sequence.
func (p Phase) after(other Phase) bool {
	return phaseOrder[p] > phaseOrder[other]
}

// Winner tags the side that won a finished game.
type Winner string

const (
	WinnerGood Winner = "GOOD"
	WinnerEvil Winner = "EVIL"
)

// Tile is one active forensic tile with its selectable options.
type Tile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Options  []string `json:"options"`
	Selected *int     `json:"selected_option,omitempty"`
}

// ChatMessage is one relayed chat line. The log is capped; chat is not
// persisted anywhere else.
type ChatMessage struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// Player is one participant in a room. Hands and draft pools are private
// to the player; the projector decides who sees what.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsHost    bool      `json:"is_host"`
	IsReady   bool      `json:"is_ready"`
	IsOnline  bool      `json:"is_online"`
	LastSeen  time.Time `json:"last_seen"`
	Role      Role      `json:"role,omitempty"`
	SeatIndex *int      `json:"seat_index,omitempty"`
	HasBadge  bool      `json:"has_badge"`

	MeansPool  []string `json:"means_pool,omitempty"`
	CluePool   []string `json:"clue_pool,omitempty"`
	MeansCards []string `json:"means_cards,omitempty"`
	ClueCards  []string `json:"clue_cards,omitempty"`
	Drafted    bool     `json:"drafted"`

	// Forensic-only fields.
	TileReplacements int    `json:"tile_replacements"`
	ActiveTiles      []Tile `json:"active_tiles,omitempty"`
}

// Room is the authoritative state of one game instance. It is mutated
// exclusively by its owning actor; everything else reads projections.
type Room struct {
	ID        string    `json:"room_id"`
	Code      string    `json:"room_code"`
	HostID    string    `json:"host_id,omitempty"`
	Players   []*Player `json:"players"`
	Phase     Phase     `json:"phase"`
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`

	// Crime solution, set once per game by confirm_crime.
	MurdererID string `json:"murderer_id,omitempty"`
	MeansID    string `json:"means_id,omitempty"`
	ClueID     string `json:"clue_id,omitempty"`

	Winner Winner        `json:"winner,omitempty"`
	Chat   []ChatMessage `json:"chat,omitempty"`

	// Closed marks the room for teardown; the actor purges it after the
	// final broadcast.
	Closed bool `json:"-"`
}

// NewRoom creates an empty room in the lobby phase.
func NewRoom(id, code string) *Room {
	return &Room{
		ID:        id,
		Code:      code,
		Phase:     PhaseLobby,
		CreatedAt: time.Now(),
	}
}

// AddPlayer registers a new player, or marks an existing one online again.
// The first player to join becomes host. Identity is unique within the
// room; a duplicate id never produces a second entry.
func (r *Room) AddPlayer(id, name string) *Player {
	if p := r.GetPlayer(id); p != nil {
		p.IsOnline = true
		p.LastSeen = time.Now()
		if name != "" {
			p.Name = name
		}
		return p
	}

	p := &Player{
		ID:       id,
		Name:     name,
		IsOnline: true,
		LastSeen: time.Now(),
	}

	if r.HostID == "" {
		r.HostID = id
		p.IsHost = true
	}

	r.Players = append(r.Players, p)

	return p
}

// RemovePlayer marks a player offline. Players are only dropped from the
// list on an explicit leave or kick (see DropPlayer).
func (r *Room) RemovePlayer(id string) {
	if p := r.GetPlayer(id); p != nil {
		p.IsOnline = false
		p.LastSeen = time.Now()
	}
}

// DropPlayer deletes a player entirely.
func (r *Room) DropPlayer(id string) bool {
	dst := r.Players[:0]
	dropped := false

	for _, p := range r.Players {
		if p.ID == id {
			dropped = true
			continue
		}
		dst = append(dst, p)
	}
	r.Players = dst

	return dropped
}

// GetPlayer returns the player with the given id, or nil.
func (r *Room) GetPlayer(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}

	return nil
}

// PlayerByRole returns the first player holding the given role, or nil.
func (r *Room) PlayerByRole(role Role) *Player {
	for _, p := range r.Players {
		if p.Role == role {
			return p
		}
	}

	return nil
}

// Serialize encodes the full room state for the snapshot cache.
func (r *Room) Serialize() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("serialize room %s: %w", r.ID, err)
	}

	return data, nil
}

// Deserialize restores a room from a cached snapshot.
func Deserialize(data []byte) (*Room, error) {
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("deserialize room: %w", err)
	}

	return &r, nil
}
