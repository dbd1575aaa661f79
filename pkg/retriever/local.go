package retriever

import (
	"context"
	"fmt"
	"sync"

	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/models"
	"github.com/video-analitics/queuesorter/pkg/source"
)

// Local reads fields that are available on the queue page itself. It is
// never cached and never rate limited.
type Local struct {
	catalog *catalog.Catalog
	source  source.ItemSource

	mu       sync.Mutex
	snapshot map[string]*models.Item
}

func NewLocal(cat *catalog.Catalog, src source.ItemSource) *Local {
	return &Local{catalog: cat, source: src}
}

func (l *Local) ID() string                { return l.catalog.Owner() }
func (l *Local) Catalog() *catalog.Catalog { return l.catalog }

func (l *Local) CanRetrieveData(fields []models.FieldName) bool {
	return l.catalog.CanSupply(fields)
}

// Read lists the queue and keeps a copy of what it saw. Later refreshes are
// served from that copy so they match the positions of this read.
func (l *Local) Read(ctx context.Context) ([]*models.Item, error) {
	items, err := l.source.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	snap := make(map[string]*models.Item, len(items))
	for _, it := range items {
		snap[it.ID] = it.Clone()
	}
	l.mu.Lock()
	l.snapshot = snap
	l.mu.Unlock()
	return items, nil
}

// RetrieveData resets the local fields of items to the last read. The queue
// is listed only when nothing was read yet.
func (l *Local) RetrieveData(ctx context.Context, _ Request, items []*models.Item, checkin Checkin) error {
	l.mu.Lock()
	byID := l.snapshot
	l.mu.Unlock()
	if byID == nil {
		if _, err := l.Read(ctx); err != nil {
			return err
		}
		l.mu.Lock()
		byID = l.snapshot
		l.mu.Unlock()
	}

	names := l.catalog.Names()
	always := func(*models.Item) bool { return true }
	step := func(_ context.Context, _ int, it *models.Item) {
		src, ok := byID[it.ID]
		if !ok {
			return
		}
		for _, name := range names {
			if v, ok := src.Get(name); ok {
				it.Set(name, v)
			} else {
				delete(it.Fields, name)
			}
		}
	}

	return Sequence(ctx, items, always, step, checkin, nil)
}
