package game

import (
	"context"
	"time"
)

// chatLogLimit caps the rolling chat log kept on the room.
const chatLogLimit = 50

// Apply runs one event through the phase state machine. It is the only
// mutation path for a room and must be called from the owning actor.
// Guard failures leave the room untouched and report a reason; the
// transport surfaces nothing beyond the unchanged re-broadcast.
func (r *Room) Apply(ctx context.Context, ev Event, env *Env) Result {
	switch ev.Type {
	case eventConnect:
		return r.applyConnect(ev)
	case eventExpire:
		r.Closed = true
		return applied()
	}

	p := r.GetPlayer(ev.PlayerID)
	if p == nil {
		return rejected("unknown player")
	}

	switch ev.Type {
	case eventConnectionLost:
		r.RemovePlayer(p.ID)
		return applied()

	case EventReady:
		p.IsReady = true
		return applied()

	case EventJoinSeat:
		return r.applyJoinSeat(p, ev)

	case EventChat:
		return r.applyChat(p, ev)

	case EventSync:
		// Read-only: forces a fresh broadcast after a reconnect.
		return applied()

	case EventLeave:
		return r.applyLeave(p, ev)

	case EventClose:
		if p.ID != r.HostID {
			return rejected("only the host may close the room")
		}
		r.Closed = true
		return applied()

	case EventStartGame:
		return r.applyStartGame(ctx, p, env)

	case EventConfirmDraft:
		return r.applyConfirmDraft(p, ev)

	case EventConfirmCrime:
		return r.applyConfirmCrime(ctx, p, ev, env)

	case EventConfirmTiles:
		if r.Phase != PhaseForensicSetup || p.Role != RoleForensic {
			return rejected("not awaiting tile confirmation")
		}
		r.Phase = PhaseInvestigation
		return applied()

	case EventSolve:
		return r.applySolve(p, ev)

	case EventSelectTileOption:
		return r.applySelectTileOption(p, ev)

	case EventReplaceTile:
		return r.applyReplaceTile(ctx, p, ev, env)

	case EventIdentifyWitness:
		return r.applyIdentifyWitness(p, ev)

	case EventReset:
		return r.applyReset(p)
	}

	return rejected("unknown event type")
}

func (r *Room) applyConnect(ev Event) Result {
	if p := r.GetPlayer(ev.PlayerID); p != nil {
		p.IsOnline = true
		p.LastSeen = time.Now()
		return applied()
	}

	if r.Phase != PhaseLobby {
		return rejected("game in progress")
	}

	r.AddPlayer(ev.PlayerID, stringField(ev.Data, "name"))

	return applied()
}

func (r *Room) applyJoinSeat(p *Player, ev Event) Result {
	seat, ok := intField(ev.Data, "seat_index")
	if !ok || seat < 0 {
		return rejected("missing seat index")
	}

	for _, other := range r.Players {
		if other.ID != p.ID && other.SeatIndex != nil && *other.SeatIndex == seat {
			return rejected("seat taken")
		}
	}

	p.SeatIndex = &seat

	return applied()
}

func (r *Room) applyChat(p *Player, ev Event) Result {
	text := stringField(ev.Data, "text")
	if text == "" {
		return rejected("empty chat message")
	}

	r.Chat = append(r.Chat, ChatMessage{
		PlayerID: p.ID,
		Name:     p.Name,
		Text:     text,
		SentAt:   time.Now(),
	})
	if len(r.Chat) > chatLogLimit {
		r.Chat = r.Chat[len(r.Chat)-chatLogLimit:]
	}

	return applied()
}

// applyLeave handles both a voluntary leave and a host kick (a leave
// carrying a target_id). Losing the host purges the room outright rather
// than transferring host privileges.
func (r *Room) applyLeave(p *Player, ev Event) Result {
	targetID := stringField(ev.Data, "target_id")
	if targetID == "" || targetID == p.ID {
		targetID = p.ID
	} else if p.ID != r.HostID {
		return rejected("only the host may kick")
	}

	if !r.DropPlayer(targetID) {
		return rejected("unknown player")
	}

	if targetID == r.HostID || len(r.Players) == 0 {
		r.Closed = true
	}

	return applied()
}

func (r *Room) applyStartGame(ctx context.Context, p *Player, env *Env) Result {
	if r.Phase != PhaseLobby {
		return rejected("game already started")
	}
	if p.ID != r.HostID {
		return rejected("only the host may start the game")
	}
	if len(r.Players) < MinPlayers {
		return rejected("not enough players")
	}

	assignRoles(r, env.Rand)
	dealPools(ctx, r, env)
	r.Phase = PhaseCardDrafting

	return applied()
}

func (r *Room) applyConfirmDraft(p *Player, ev Event) Result {
	if r.Phase != PhaseCardDrafting {
		return rejected("not drafting")
	}
	if p.Role == RoleForensic {
		return rejected("forensic scientist holds no cards")
	}
	if p.Drafted {
		return rejected("already drafted")
	}

	means := stringsField(ev.Data, "selected_means")
	clues := stringsField(ev.Data, "selected_clues")

	if !validSelection(means, p.MeansPool) || !validSelection(clues, p.CluePool) {
		return rejected("invalid card selection")
	}

	p.MeansCards = means
	p.ClueCards = clues
	p.Drafted = true

	// The phase advances implicitly once every suspect has drafted.
	for _, other := range r.Players {
		if other.Role != RoleForensic && !other.Drafted {
			return applied()
		}
	}
	r.Phase = PhaseCrimeSelection

	return applied()
}

// validSelection checks an exact hand-sized pick drawn from the player's
// own pool, with no duplicates.
func validSelection(picked, pool []string) bool {
	if len(picked) != handSize {
		return false
	}

	offered := make(map[string]bool, len(pool))
	for _, id := range pool {
		offered[id] = true
	}

	seen := make(map[string]bool, len(picked))
	for _, id := range picked {
		if !offered[id] || seen[id] {
			return false
		}
		seen[id] = true
	}

	return true
}

func (r *Room) applyConfirmCrime(ctx context.Context, p *Player, ev Event, env *Env) Result {
	if r.Phase != PhaseCrimeSelection {
		return rejected("not selecting the crime")
	}
	if p.Role != RoleMurderer {
		return rejected("only the murderer selects the crime")
	}

	meansID := stringField(ev.Data, "means_id")
	clueID := stringField(ev.Data, "clue_id")
	if meansID == "" || clueID == "" {
		return rejected("missing means or clue")
	}

	r.MeansID = meansID
	r.ClueID = clueID
	r.MurdererID = p.ID
	r.Round = 1

	if forensic := r.PlayerByRole(RoleForensic); forensic != nil {
		forensic.ActiveTiles = drawTiles(ctx, env)
		forensic.TileReplacements = 0
	}

	r.Phase = PhaseForensicSetup

	return applied()
}

func (r *Room) applySolve(p *Player, ev Event) Result {
	if r.Phase != PhaseInvestigation {
		return rejected("not investigating")
	}
	if p.Role == RoleForensic {
		return rejected("forensic scientist may not accuse")
	}
	if !p.HasBadge {
		return rejected("badge already spent")
	}

	suspectID := stringField(ev.Data, "suspect_id")
	meansID := stringField(ev.Data, "means_id")
	clueID := stringField(ev.Data, "clue_id")

	if suspectID == "" || meansID == "" || clueID == "" {
		return rejected("incomplete accusation")
	}
	if r.GetPlayer(suspectID) == nil {
		return rejected("unknown suspect")
	}

	if suspectID == r.MurdererID && meansID == r.MeansID && clueID == r.ClueID {
		r.Phase = PhaseWitnessID
		return applied()
	}

	p.HasBadge = false

	// The murderer escapes once no investigator or witness can accuse.
	for _, other := range r.Players {
		if (other.Role == RoleInvestigator || other.Role == RoleWitness) && other.HasBadge {
			return applied()
		}
	}

	r.Winner = WinnerEvil
	r.Phase = PhaseGameOver

	return applied()
}

func (r *Room) applySelectTileOption(p *Player, ev Event) Result {
	if p.Role != RoleForensic {
		return rejected("only the forensic scientist sets tiles")
	}
	if r.Phase != PhaseForensicSetup && r.Phase != PhaseInvestigation {
		return rejected("tiles are not active")
	}

	tileID := stringField(ev.Data, "tile_id")
	option, ok := intField(ev.Data, "option_index")
	if tileID == "" || !ok {
		return rejected("missing tile or option")
	}

	for i := range p.ActiveTiles {
		t := &p.ActiveTiles[i]
		if t.ID != tileID {
			continue
		}
		if option < 0 || option >= len(t.Options) {
			return rejected("option out of range")
		}
		t.Selected = &option
		return applied()
	}

	return rejected("unknown tile")
}

func (r *Room) applyReplaceTile(ctx context.Context, p *Player, ev Event, env *Env) Result {
	if p.Role != RoleForensic {
		return rejected("only the forensic scientist replaces tiles")
	}
	if r.Phase != PhaseInvestigation {
		return rejected("tiles may only be replaced during the investigation")
	}
	if p.TileReplacements >= maxTileReplacements {
		return rejected("no replacements left")
	}

	tileID := stringField(ev.Data, "tile_id")
	if tileID == "" {
		return rejected("missing tile id")
	}

	active := make(map[string]bool, len(p.ActiveTiles))
	for _, t := range p.ActiveTiles {
		active[t.ID] = true
	}

	for i := range p.ActiveTiles {
		old := p.ActiveTiles[i]
		if old.ID != tileID {
			continue
		}

		drawn := sampleTiles(ctx, env, old.Type, 1, active)
		if len(drawn) == 0 {
			return rejected("no replacement tile available")
		}

		p.ActiveTiles[i] = drawn[0]
		p.TileReplacements++

		return applied()
	}

	return rejected("unknown tile")
}

func (r *Room) applyIdentifyWitness(p *Player, ev Event) Result {
	if r.Phase != PhaseWitnessID {
		return rejected("not identifying the witness")
	}
	if p.Role != RoleMurderer {
		return rejected("only the murderer identifies the witness")
	}

	target := r.GetPlayer(stringField(ev.Data, "target_id"))
	if target == nil {
		return rejected("unknown target")
	}

	if target.Role == RoleWitness {
		r.Winner = WinnerEvil
	} else {
		r.Winner = WinnerGood
	}
	r.Phase = PhaseGameOver

	return applied()
}

// applyReset returns a finished room to the lobby. The role multiset is
// recomputed on the next start_game.
func (r *Room) applyReset(p *Player) Result {
	if r.Phase != PhaseGameOver {
		return rejected("game still in progress")
	}
	if p.ID != r.HostID {
		return rejected("only the host may reset")
	}

	r.Phase = PhaseLobby
	r.Round = 0
	r.MurdererID = ""
	r.MeansID = ""
	r.ClueID = ""
	r.Winner = ""

	for _, player := range r.Players {
		player.Role = ""
		player.HasBadge = false
		player.MeansPool = nil
		player.CluePool = nil
		player.MeansCards = nil
		player.ClueCards = nil
		player.Drafted = false
		player.TileReplacements = 0
		player.ActiveTiles = nil
	}

	return applied()
}
