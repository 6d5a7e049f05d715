package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Seednode/deception/game"
)

// Record is the durable slice of room state. It is copied out of the
// live room on the actor's goroutine so the asynchronous mirror write
// never touches state the actor may be mutating. Secrets stay out of
// the durable rows: hands, pools, tiles and the crime solution live
// only in memory and the snapshot cache.
type Record struct {
	ID        string
	Code      string
	HostID    string
	Phase     string
	Round     int
	Winner    string
	CreatedAt time.Time
	Players   []PlayerRecord
}

// PlayerRecord is one durable player row.
type PlayerRecord struct {
	ID        string
	Name      string
	IsHost    bool
	IsOnline  bool
	SeatIndex *int
	LastSeen  time.Time
}

// NewRecord extracts the durable fields from a room.
func NewRecord(r *game.Room) Record {
	rec := Record{
		ID:        r.ID,
		Code:      r.Code,
		HostID:    r.HostID,
		Phase:     string(r.Phase),
		Round:     r.Round,
		Winner:    string(r.Winner),
		CreatedAt: r.CreatedAt,
		Players:   make([]PlayerRecord, 0, len(r.Players)),
	}

	for _, p := range r.Players {
		rec.Players = append(rec.Players, PlayerRecord{
			ID:        p.ID,
			Name:      p.Name,
			IsHost:    p.IsHost,
			IsOnline:  p.IsOnline,
			SeatIndex: p.SeatIndex,
			LastSeen:  p.LastSeen,
		})
	}

	return rec
}

// Mirror writes durable room and player rows to Postgres.
type Mirror struct {
	pool *pgxpool.Pool
}

// NewMirror wraps an existing connection pool.
func NewMirror(pool *pgxpool.Pool) *Mirror {
	return &Mirror{pool: pool}
}

// Save upserts the room row and rewrites its player rows.
func (m *Mirror) Save(ctx context.Context, rec Record) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("mirror begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO games (id, room_code, host_id, status, round, winner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET host_id = EXCLUDED.host_id,
		    status = EXCLUDED.status,
		    round = EXCLUDED.round,
		    winner = EXCLUDED.winner`,
		rec.ID, rec.Code, rec.HostID, rec.Phase, rec.Round, rec.Winner, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("mirror game upsert: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM players WHERE game_id = $1`, rec.ID); err != nil {
		return fmt.Errorf("mirror player sweep: %w", err)
	}

	for _, p := range rec.Players {
		_, err := tx.Exec(ctx, `
			INSERT INTO players (game_id, player_id, name, is_host, is_online, seat_index, last_seen)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.ID, p.ID, p.Name, p.IsHost, p.IsOnline, p.SeatIndex, p.LastSeen)
		if err != nil {
			return fmt.Errorf("mirror player insert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("mirror commit: %w", err)
	}

	return nil
}

// Remove deletes the room and its player rows.
func (m *Mirror) Remove(ctx context.Context, roomID string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("mirror begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM players WHERE game_id = $1`, roomID); err != nil {
		return fmt.Errorf("mirror player delete: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM games WHERE id = $1`, roomID); err != nil {
		return fmt.Errorf("mirror game delete: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("mirror commit: %w", err)
	}

	return nil
}
