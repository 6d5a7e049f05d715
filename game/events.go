package game

// Event type strings accepted from clients. The transport attributes each
// event to a player identity it established itself; the game only checks
// role and host guards.
const (
	EventStartGame        = "start_game"
	EventReset            = "reset"
	EventReady            = "ready"
	EventChat             = "chat"
	EventLeave            = "leave"
	EventClose            = "close"
	EventSync             = "sync"
	EventJoinSeat         = "join_seat"
	EventConfirmDraft     = "confirm_draft"
	EventConfirmCrime     = "confirm_crime"
	EventConfirmTiles     = "confirm_tiles"
	EventSolve            = "solve"
	EventSelectTileOption = "select_tile_option"
	EventReplaceTile      = "replace_tile"
	EventIdentifyWitness  = "identify_witness"

	// Internal signals enqueued by the transport, never parsed off the
	// wire. A lost connection only marks the player offline; an explicit
	// leave is the one that can tear a room down.
	eventConnect        = "player_connect"
	eventConnectionLost = "connection_lost"
)

// Event is the transport-agnostic inbound envelope.
type Event struct {
	PlayerID string         `json:"-"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
}

// Result reports whether an event changed state. Invalid events never
// corrupt state; they are rejected with a reason that the transport is
// free to suppress.
type Result struct {
	Applied bool
	Reason  string
}

func applied() Result {
	return Result{Applied: true}
}

func rejected(reason string) Result {
	return Result{Reason: reason}
}

// stringField extracts a string payload field, tolerating absence.
func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}

	s, _ := data[key].(string)

	return s
}

// intField extracts an integer payload field. JSON numbers arrive as
// float64; both forms are accepted.
func intField(data map[string]any, key string) (int, bool) {
	if data == nil {
		return 0, false
	}

	switch v := data[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}

	return 0, false
}

// stringsField extracts a list of string ids from a payload field.
func stringsField(data map[string]any, key string) []string {
	if data == nil {
		return nil
	}

	raw, ok := data[key].([]any)
	if !ok {
		// Already-typed slices show up in tests and internal callers.
		if typed, ok := data[key].([]string); ok {
			return typed
		}
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
