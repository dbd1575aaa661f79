package cache

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/models"
)

// Bloom fronts a Store with a bloom filter of ids ever merged, so lookups
// for items that were never cached skip the backend round trip.
type Bloom struct {
	Store
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	n      uint
	fp     float64
	skips  uint64
}

func NewBloom(inner Store, expectedItems uint, fpRate float64) *Bloom {
	return &Bloom{
		Store:  inner,
		filter: bloom.NewWithEstimates(expectedItems, fpRate),
		n:      expectedItems,
		fp:     fpRate,
	}
}

// Warm loads every id already present in the backend.
func (b *Bloom) Warm(ctx context.Context) error {
	ids, err := b.Store.IDs(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	for _, id := range ids {
		b.filter.AddString(id)
	}
	b.mu.Unlock()

	logger.Log.Debug().Int("ids", len(ids)).Msg("cache bloom filter warmed")
	return nil
}

func (b *Bloom) Get(ctx context.Context, id string) (models.Fields, bool, error) {
	b.mu.Lock()
	present := b.filter.TestString(id)
	if !present {
		b.skips++
	}
	b.mu.Unlock()

	if !present {
		return nil, false, nil
	}
	return b.Store.Get(ctx, id)
}

func (b *Bloom) Merge(ctx context.Context, id string, fields models.Fields) error {
	if err := b.Store.Merge(ctx, id, fields); err != nil {
		return err
	}
	b.mu.Lock()
	b.filter.AddString(id)
	b.mu.Unlock()
	return nil
}

func (b *Bloom) Clear(ctx context.Context) error {
	if err := b.Store.Clear(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.filter = bloom.NewWithEstimates(b.n, b.fp)
	b.mu.Unlock()
	return nil
}

// Skips counts lookups answered by the filter alone.
func (b *Bloom) Skips() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.skips
}
