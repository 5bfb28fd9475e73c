package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/kickoff/internal/domain/model"
)

// DefaultBlendFactor is the weight a new report carries against history.
const DefaultBlendFactor = 0.3

// PerformanceStore reads and writes the metrics the performance strategy balances on.
type PerformanceStore interface {
	Performance(ctx context.Context, ids []string) (map[string]model.Performance, error)
	UpsertPerformance(ctx context.Context, metrics []model.Performance) error
}

// Blender applies reports by folding them into stored performance as an
// exponential moving average.
type Blender struct {
	store PerformanceStore
	alpha float64

	// mu serializes read-modify-write so concurrent reports for one player are not lost.
	mu      sync.Mutex
	applied atomic.Int64
}

// NewBlender returns a Blender weighting each report by alpha. Values outside
// (0, 1] fall back to DefaultBlendFactor.
func NewBlender(store PerformanceStore, alpha float64) *Blender {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultBlendFactor
	}
	return &Blender{store: store, alpha: alpha}
}

// Apply folds r into the stored performance of its player.
func (b *Blender) Apply(ctx context.Context, r Report) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.store.Performance(ctx, []string{r.PlayerID})
	if err != nil {
		return fmt.Errorf("read performance of %s: %w", r.PlayerID, err)
	}
	prev, ok := current[r.PlayerID]
	next := prev.Blend(r, b.alpha, ok)
	if err := b.store.UpsertPerformance(ctx, []model.Performance{next}); err != nil {
		return fmt.Errorf("write performance of %s: %w", r.PlayerID, err)
	}
	b.applied.Add(1)
	return nil
}

// Applied returns how many reports have been folded in.
func (b *Blender) Applied() int64 {
	return b.applied.Load()
}
