package game

import (
	"context"
	"time"

	"github.com/Seednode/deception/catalog"
)

// CardView is a card id enriched with display content. A card missing
// from the catalog renders as a placeholder, never a failure.
type CardView struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// PlayerView is one player as rendered for a specific viewer. Role is
// the true role only when the visibility rules permit; hands and draft
// pools are populated only in a player's own view.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"is_host"`
	IsReady   bool   `json:"is_ready"`
	IsOnline  bool   `json:"is_online"`
	SeatIndex *int   `json:"seat_index,omitempty"`
	Role      Role   `json:"role,omitempty"`
	HasBadge  bool   `json:"has_badge"`
	Drafted   bool   `json:"drafted"`

	MeansPool  []CardView `json:"means_pool,omitempty"`
	CluePool   []CardView `json:"clue_pool,omitempty"`
	MeansCards []CardView `json:"means_cards,omitempty"`
	ClueCards  []CardView `json:"clue_cards,omitempty"`
}

// SolutionView is the crime solution, present only when the viewer is
// entitled to it.
type SolutionView struct {
	MurdererID string `json:"murderer_id"`
	MeansID    string `json:"means_id"`
	ClueID     string `json:"clue_id"`
}

// PhaseData carries the loosely structured per-phase extras as a typed
// block rather than a free-form map.
type PhaseData struct {
	Tiles  []Tile        `json:"tiles,omitempty"`
	Winner Winner        `json:"winner,omitempty"`
	Chat   []ChatMessage `json:"chat,omitempty"`
}

// ViewerState is the role-filtered projection of a room delivered to one
// player.
type ViewerState struct {
	RoomID           string        `json:"room_id"`
	RoomCode         string        `json:"room_code"`
	Phase            Phase         `json:"phase"`
	Round            int           `json:"round"`
	Players          []PlayerView  `json:"players"`
	CurrentTurnOwner string        `json:"current_turn_owner,omitempty"`
	Solution         *SolutionView `json:"solution,omitempty"`
	Data             *PhaseData    `json:"data,omitempty"`
}

// GameUpdateMessage is the outbound envelope, one per live connection per
// processed event.
type GameUpdateMessage struct {
	Type      string       `json:"type"`
	Timestamp int64        `json:"timestamp"`
	State     *ViewerState `json:"state"`
}

// MessageGameUpdate is the single outbound message type.
const MessageGameUpdate = "GAME_UPDATE"

// NewGameUpdate wraps a projection for delivery.
func NewGameUpdate(state *ViewerState) GameUpdateMessage {
	return GameUpdateMessage{
		Type:      MessageGameUpdate,
		Timestamp: time.Now().UnixMilli(),
		State:     state,
	}
}

// Project computes the subset of room state the given viewer may see.
// It is side-effect free and safe to call concurrently for different
// viewers; the actor invokes it once per member on every broadcast.
func Project(ctx context.Context, r *Room, viewerID string, cat catalog.Accessor) *ViewerState {
	viewer := r.GetPlayer(viewerID)

	state := &ViewerState{
		RoomID:           r.ID,
		RoomCode:         r.Code,
		Phase:            r.Phase,
		Round:            r.Round,
		Players:          make([]PlayerView, 0, len(r.Players)),
		CurrentTurnOwner: r.turnOwner(viewer),
	}

	var cards cardIndex
	if viewer != nil {
		cards = indexCards(ctx, cat)
	}

	for _, target := range r.Players {
		view := PlayerView{
			ID:        target.ID,
			Name:      target.Name,
			IsHost:    target.IsHost,
			IsReady:   target.IsReady,
			IsOnline:  target.IsOnline,
			SeatIndex: target.SeatIndex,
			Role:      visibleRole(viewer, target),
			HasBadge:  target.HasBadge,
			Drafted:   target.Drafted,
		}

		if viewer != nil && viewer.ID == target.ID {
			view.MeansPool = cards.enrich(target.MeansPool)
			view.CluePool = cards.enrich(target.CluePool)
			view.MeansCards = cards.enrich(target.MeansCards)
			view.ClueCards = cards.enrich(target.ClueCards)
		}

		state.Players = append(state.Players, view)
	}

	if r.solutionVisible(viewer) {
		state.Solution = &SolutionView{
			MurdererID: r.MurdererID,
			MeansID:    r.MeansID,
			ClueID:     r.ClueID,
		}
	}

	state.Data = r.phaseData()

	return state
}

// visibleRole applies the role visibility table. Every branch either
// returns the target's true role or the opaque unknown marker.
func visibleRole(viewer, target *Player) Role {
	truth := target.Role
	if truth == "" {
		// Roles exist only between start_game and reset.
		return ""
	}

	switch {
	// A player always sees their own role.
	case viewer != nil && viewer.ID == target.ID:
		return truth

	// The forensic scientist's identity is public knowledge.
	case truth == RoleForensic:
		return truth

	case viewer == nil:
		return RoleUnknown

	// The forensic scientist sees everything.
	case viewer.Role == RoleForensic:
		return truth

	// The murderer and accomplice know each other and the forensic.
	case viewer.Role == RoleMurderer || viewer.Role == RoleAccomplice:
		if truth == RoleMurderer || truth == RoleAccomplice || truth == RoleForensic {
			return truth
		}
		return RoleUnknown

	// The witness knows who the murderer is, but not the accomplice.
	case viewer.Role == RoleWitness:
		if truth == RoleMurderer {
			return truth
		}
		return RoleUnknown
	}

	return RoleUnknown
}

// solutionVisible reports whether the viewer may see the crime solution:
// forensic and murderer always, the accomplice once the crime has been
// chosen, and everyone once the game is over.
func (r *Room) solutionVisible(viewer *Player) bool {
	if r.MurdererID == "" && r.MeansID == "" && r.ClueID == "" {
		return false
	}

	if r.Phase == PhaseGameOver {
		return true
	}

	if viewer == nil {
		return false
	}

	switch viewer.Role {
	case RoleForensic, RoleMurderer:
		return true
	case RoleAccomplice:
		return r.Phase.after(PhaseCrimeSelection)
	}

	return false
}

// turnOwner names the player expected to act in the current phase. In
// CRIME_SELECTION that is the murderer, whose identity must stay hidden
// from viewers not entitled to it.
func (r *Room) turnOwner(viewer *Player) string {
	switch r.Phase {
	case PhaseLobby:
		return r.HostID

	case PhaseCrimeSelection:
		murderer := r.PlayerByRole(RoleMurderer)
		if murderer == nil {
			return ""
		}
		if visibleRole(viewer, murderer) == RoleMurderer {
			return murderer.ID
		}
		return ""

	case PhaseForensicSetup:
		if forensic := r.PlayerByRole(RoleForensic); forensic != nil {
			return forensic.ID
		}

	case PhaseWitnessID:
		// Reaching this phase means the accusation landed in public.
		return r.MurdererID
	}

	return ""
}

// phaseData builds the shared extras block: the forensic tile spread
// once it exists (the tiles are the forensic scientist's public signal),
// the chat log, and the winner tag after the game ends.
func (r *Room) phaseData() *PhaseData {
	data := &PhaseData{}

	if r.Phase.after(PhaseCrimeSelection) {
		if forensic := r.PlayerByRole(RoleForensic); forensic != nil {
			data.Tiles = forensic.ActiveTiles
		}
	}

	if r.Phase == PhaseGameOver {
		data.Winner = r.Winner
	}

	data.Chat = r.Chat

	if data.Tiles == nil && data.Winner == "" && data.Chat == nil {
		return nil
	}

	return data
}

// cardIndex resolves card ids to display content.
type cardIndex map[string]catalog.Card

func indexCards(ctx context.Context, cat catalog.Accessor) cardIndex {
	if cat == nil {
		return nil
	}

	idx := make(cardIndex)

	for _, cardType := range []string{catalog.CardMeans, catalog.CardClue} {
		cards, err := cat.ListCards(ctx, cardType)
		if err != nil {
			continue
		}
		for _, c := range cards {
			idx[c.ID] = c
		}
	}

	return idx
}

func (idx cardIndex) enrich(ids []string) []CardView {
	if len(ids) == 0 {
		return nil
	}

	out := make([]CardView, 0, len(ids))

	for _, id := range ids {
		if c, ok := idx[id]; ok {
			out = append(out, CardView{ID: id, Content: c.Content, ImageURL: c.ImageURL})
			continue
		}
		out = append(out, CardView{ID: id, Content: "Unknown Card"})
	}

	return out
}
