package pipeline

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"valeads-engine/internal/domain"
	"valeads-engine/internal/store"
)

// BatchWriter splits large dataset writes into chunks.
type BatchWriter struct {
	Tree        store.Tree
	Size        int
	Concurrency int
	// PerSecond paces chunk writes; 0 leaves them unpaced.
	PerSecond float64
}

func chunk(children map[string]any, size int) []map[string]any {
	if size <= 0 {
		size = len(children)
	}
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []map[string]any
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		c := make(map[string]any, end-start)
		for _, k := range keys[start:end] {
			c[k] = children[k]
		}
		out = append(out, c)
	}
	return out
}

// Merge upserts children into path. Every chunk must succeed; chunks already
// written stay written when a later one fails.
func (b BatchWriter) Merge(ctx context.Context, path string, children map[string]any) error {
	return b.writeAll(ctx, path, chunk(children, b.Size))
}

// Replace makes children the full content of path: the first chunk replaces,
// the rest merge on top.
func (b BatchWriter) Replace(ctx context.Context, path string, children map[string]any) error {
	chunks := chunk(children, b.Size)
	if len(chunks) == 0 {
		return b.Tree.Set(ctx, path, map[string]any{})
	}
	if err := b.Tree.Set(ctx, path, chunks[0]); err != nil {
		return err
	}
	return b.writeAll(ctx, path, chunks[1:])
}

func (b BatchWriter) writeAll(ctx context.Context, path string, chunks []map[string]any) error {
	if len(chunks) == 0 {
		return nil
	}

	var lim *rate.Limiter
	if b.PerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(b.PerSecond), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Concurrency, 1))

	var written atomic.Int32
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			if lim != nil {
				if err := lim.Wait(gctx); err != nil {
					return &domain.StorageError{Op: "update", Path: path, Err: err}
				}
			}
			if err := b.Tree.Update(gctx, path, c); err != nil {
				log.Error().Err(err).Str("dataset", path).Int("chunk", i).Msg("chunk write failed")
				return err
			}
			written.Add(1)
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		log.Warn().
			Str("dataset", path).
			Int32("written", written.Load()).
			Int("chunks", len(chunks)).
			Msg("batch write incomplete")
	}
	return err
}
