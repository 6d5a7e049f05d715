package game

import (
	"context"
	"math/rand"

	"github.com/Seednode/deception/catalog"
)

const (
	// MinPlayers is the minimum room size for a game to start.
	MinPlayers = 4

	// accompliceThreshold is the player count at which an Accomplice
	// joins the role set.
	accompliceThreshold = 5

	// draftPoolSize is how many cards of each family a player is offered,
	// clamped to the catalog size.
	draftPoolSize = 10

	// handSize is the number of cards of each family a player keeps.
	handSize = 5

	// sceneTileCount is how many scene tiles the forensic scientist draws
	// alongside the cause-of-death and location tiles.
	sceneTileCount = 4

	// maxTileReplacements caps how often the forensic scientist may swap
	// a tile during the investigation.
	maxTileReplacements = 2
)

// Env carries the actor-owned collaborators the state machine needs:
// a random source (seedable for reproducible games) and the read-only
// content catalog.
type Env struct {
	Rand    *rand.Rand
	Catalog catalog.Accessor
}

// NewEnv builds an Env with a deterministic random source.
func NewEnv(seed int64, cat catalog.Accessor) *Env {
	return &Env{
		Rand:    rand.New(rand.NewSource(seed)),
		Catalog: cat,
	}
}

// assignRoles partitions the players: exactly one forensic scientist, one
// murderer, one witness, an accomplice at five or more players, and
// investigators for the remainder. The player list is shuffled first so
// the fixed roles come off a uniformly random tail.
func assignRoles(r *Room, rng *rand.Rand) {
	shuffled := make([]*Player, len(r.Players))
	copy(shuffled, r.Players)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	pop := func() *Player {
		p := shuffled[len(shuffled)-1]
		shuffled = shuffled[:len(shuffled)-1]
		return p
	}

	pop().Role = RoleForensic
	pop().Role = RoleMurderer
	if len(r.Players) >= accompliceThreshold {
		pop().Role = RoleAccomplice
	}
	pop().Role = RoleWitness

	for _, p := range shuffled {
		p.Role = RoleInvestigator
	}

	// Every suspect gets one accusation badge; the forensic scientist is
	// never a suspect.
	for _, p := range r.Players {
		p.HasBadge = p.Role != RoleForensic
	}
}

// dealPools offers every non-forensic player an independent random draft
// pool of means and clue cards. Pools are sampled without replacement
// from the shared catalog and may overlap across players.
func dealPools(ctx context.Context, r *Room, env *Env) {
	means := cardIDs(ctx, env, catalog.CardMeans)
	clues := cardIDs(ctx, env, catalog.CardClue)

	for _, p := range r.Players {
		if p.Role == RoleForensic {
			continue
		}

		p.MeansPool = samplePool(env.Rand, means)
		p.CluePool = samplePool(env.Rand, clues)
		p.MeansCards = nil
		p.ClueCards = nil
		p.Drafted = false
	}
}

func cardIDs(ctx context.Context, env *Env, cardType string) []string {
	if env.Catalog == nil {
		return nil
	}

	cards, err := env.Catalog.ListCards(ctx, cardType)
	if err != nil {
		// An unavailable catalog degrades to empty pools rather than
		// blocking the game.
		return nil
	}

	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}

	return ids
}

func samplePool(rng *rand.Rand, ids []string) []string {
	size := min(draftPoolSize, len(ids))
	if size == 0 {
		return nil
	}

	pool := make([]string, 0, size)
	for _, i := range rng.Perm(len(ids))[:size] {
		pool = append(pool, ids[i])
	}

	return pool
}

// drawTiles builds the forensic scientist's initial spread: one
// cause-of-death tile, one location tile and four scene tiles, each with
// no option selected yet. Short catalogs yield fewer tiles; an empty one
// yields none.
func drawTiles(ctx context.Context, env *Env) []Tile {
	out := make([]Tile, 0, 2+sceneTileCount)

	out = append(out, sampleTiles(ctx, env, catalog.TileCauseOfDeath, 1, nil)...)
	out = append(out, sampleTiles(ctx, env, catalog.TileLocation, 1, nil)...)
	out = append(out, sampleTiles(ctx, env, catalog.TileScene, sceneTileCount, nil)...)

	return out
}

// sampleTiles draws up to count tiles of a type, skipping any ids in use.
func sampleTiles(ctx context.Context, env *Env, tileType string, count int, exclude map[string]bool) []Tile {
	if env.Catalog == nil {
		return nil
	}

	defs, err := env.Catalog.ListTiles(ctx, tileType)
	if err != nil {
		return nil
	}

	eligible := make([]catalog.Tile, 0, len(defs))
	for _, d := range defs {
		if !exclude[d.ID] {
			eligible = append(eligible, d)
		}
	}

	size := min(count, len(eligible))
	out := make([]Tile, 0, size)

	for _, i := range env.Rand.Perm(len(eligible))[:size] {
		d := eligible[i]
		out = append(out, Tile{
			ID:      d.ID,
			Name:    d.Name,
			Type:    d.Type,
			Options: d.Options,
		})
	}

	return out
}
