package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres serves catalog content from the cards/tiles tables. Results are
// cached per type after the first successful query; the content is static
// for the lifetime of the process.
type Postgres struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	cards map[string][]Card
	tiles map[string][]Tile
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:  pool,
		cards: make(map[string][]Card),
		tiles: make(map[string][]Tile),
	}
}

func (p *Postgres) ListCards(ctx context.Context, cardType string) ([]Card, error) {
	p.mu.RLock()
	cached, ok := p.cards[cardType]
	p.mu.RUnlock()

	if ok {
		return cached, nil
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, type, content, COALESCE(image_url, '') FROM cards WHERE type = $1 ORDER BY id`,
		cardType)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	var out []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.Type, &c.Content, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}

	p.mu.Lock()
	p.cards[cardType] = out
	p.mu.Unlock()

	return out, nil
}

func (p *Postgres) ListTiles(ctx context.Context, tileType string) ([]Tile, error) {
	p.mu.RLock()
	cached, ok := p.tiles[tileType]
	p.mu.RUnlock()

	if ok {
		return cached, nil
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, name, type, options FROM tiles WHERE type = $1 ORDER BY id`,
		tileType)
	if err != nil {
		return nil, fmt.Errorf("query tiles: %w", err)
	}
	defer rows.Close()

	var out []Tile
	for rows.Next() {
		var t Tile
		if err := rows.Scan(&t.ID, &t.Name, &t.Type, &t.Options); err != nil {
			return nil, fmt.Errorf("scan tile: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read tiles: %w", err)
	}

	p.mu.Lock()
	p.tiles[tileType] = out
	p.mu.Unlock()

	return out, nil
}
