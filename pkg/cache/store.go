package cache

import (
	"context"

	"github.com/video-analitics/queuesorter/pkg/models"
)

// Store holds previously retrieved remote field values per item. Each store
// is bound to one queue namespace.
type Store interface {
	Get(ctx context.Context, id string) (models.Fields, bool, error)
	// Merge writes fields over the stored record, last write wins per field.
	Merge(ctx context.Context, id string, fields models.Fields) error
	Invalidate(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	IDs(ctx context.Context) ([]string, error)
}

// persistable drops sentinel values, which only mean "failed this time".
func persistable(fields models.Fields) models.Fields {
	out := make(models.Fields, len(fields))
	for k, v := range fields {
		if !v.IsSentinel() {
			out[k] = v
		}
	}
	return out
}
