package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Seednode/deception/game"
)

// mirrorTimeout bounds each fire-and-forget mirror write.
const mirrorTimeout = 5 * time.Second

// Bridge combines the snapshot cache and the durable mirror behind the
// actor's Persister contract. The cache write happens on the calling
// goroutine; the mirror write is fully asynchronous so it can never sit
// on the gameplay critical path. Either half may be absent.
type Bridge struct {
	cache  *Cache
	mirror *Mirror
	log    *zap.Logger
}

// NewBridge builds a bridge from optional halves.
func NewBridge(cache *Cache, mirror *Mirror, log *zap.Logger) *Bridge {
	return &Bridge{
		cache:  cache,
		mirror: mirror,
		log:    log,
	}
}

func (b *Bridge) Save(ctx context.Context, r *game.Room) error {
	var err error
	if b.cache != nil {
		err = b.cache.Save(ctx, r)
	}

	if b.mirror != nil {
		// Copy the durable fields now; the write itself runs detached
		// from the event loop with its own deadline.
		rec := NewRecord(r)
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
			defer cancel()

			if merr := b.mirror.Save(mctx, rec); merr != nil {
				b.log.Warn("durable mirror write failed",
					zap.String("room", rec.ID),
					zap.Error(merr))
			}
		}()
	}

	return err
}

func (b *Bridge) Remove(ctx context.Context, r *game.Room) error {
	var err error
	if b.cache != nil {
		err = b.cache.Delete(ctx, r)
	}

	if b.mirror != nil {
		if merr := b.mirror.Remove(ctx, r.ID); merr != nil {
			b.log.Warn("durable mirror delete failed",
				zap.String("room", r.ID),
				zap.Error(merr))
		}
	}

	return err
}

func (b *Bridge) LoadByCode(ctx context.Context, code string) (*game.Room, error) {
	if b.cache == nil {
		return nil, nil
	}

	return b.cache.LoadByCode(ctx, code)
}
