package retriever

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/models"
)

// ErrStopped is returned when a checkin or the context asked retrieval to stop.
var ErrStopped = errors.New("retrieval stopped")

// Checkin is called after each position of the input, fetched or skipped.
// Returning true stops the retriever before its next network call.
type Checkin func(index int) (stop bool)

type Request struct {
	Fields       []models.FieldName
	ForceRefresh bool
}

// Retriever populates the fields of its catalog onto items. RetrieveData
// always fills every selectable field it owns, not only the requested ones,
// and returns exactly once, after the last item or after a stop.
type Retriever interface {
	ID() string
	Catalog() *catalog.Catalog
	CanRetrieveData(fields []models.FieldName) bool
	RetrieveData(ctx context.Context, req Request, items []*models.Item, checkin Checkin) error
}

// Step processes one item that needs work.
type Step func(ctx context.Context, index int, item *models.Item)

// Sequence walks items strictly in order. Items for which needs reports false
// are skipped without waiting on the limiter; every position is checked in.
// A nil limiter means no pacing.
func Sequence(ctx context.Context, items []*models.Item, needs func(*models.Item) bool, step Step, checkin Checkin, limiter *rate.Limiter) error {
	for i, it := range items {
		if ctx.Err() != nil {
			return ErrStopped
		}

		if needs(it) {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return ErrStopped
				}
			}
			step(ctx, i, it)
		}

		if checkin != nil && checkin(i) {
			return ErrStopped
		}
	}
	return nil
}
