// Package catalog provides read-only access to the static game content:
// means/clue cards and the forensic scene tiles. Lookups never fail the
// game; an empty or unreachable catalog just yields fewer cards.
package catalog

import "context"

// Card types.
const (
	CardMeans = "MEANS"
	CardClue  = "CLUE"
)

// Tile types.
const (
	TileCauseOfDeath = "CAUSE_OF_DEATH"
	TileLocation     = "LOCATION"
	TileScene        = "SCENE"
)

// Card is a single means or clue card.
type Card struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// Tile is a forensic tile definition with its selectable options.
type Tile struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Options []string `json:"options"`
}

// Accessor lists cards and tiles by type. Implementations must be safe for
// concurrent use; callers treat an empty result as a valid catalog.
type Accessor interface {
	ListCards(ctx context.Context, cardType string) ([]Card, error)
	ListTiles(ctx context.Context, tileType string) ([]Tile, error)
}
